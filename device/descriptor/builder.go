package descriptor

import "github.com/ardnew/usbengine/pkg"

// MaxEndpointsPerInterface bounds the fixed-size endpoint array carried by
// an Interface, avoiding dynamic allocation.
const MaxEndpointsPerInterface = 16

// MaxInterfaces bounds the fixed-size interface array carried by a
// Configuration.
const MaxInterfaces = 8

// MaxAssociations bounds the fixed-size interface-association array
// carried by a Configuration.
const MaxAssociations = 4

// Endpoint describes one non-control endpoint contributed to a
// configuration's descriptor blob. It carries only the static descriptor
// fields; runtime stall state and data belong to the bus and the class
// that owns the endpoint.
type Endpoint struct {
	Address       uint8 // endpoint address, including direction bit
	Attributes    uint8 // transfer type, and sync/usage for isochronous
	MaxPacketSize uint16
	Interval      uint8
}

func (e Endpoint) header() endpointHeader {
	return endpointHeader{
		EndpointAddress: e.Address,
		Attributes:      e.Attributes,
		MaxPacketSize:   e.MaxPacketSize,
		Interval:        e.Interval,
	}
}

// Interface describes one USB interface and its endpoints. Only alternate
// setting 0 is ever marshaled; alternate settings are reserved but not
// implemented.
type Interface struct {
	Number      uint8
	Class       uint8
	SubClass    uint8
	Protocol    uint8
	StringIndex uint8

	endpoints [MaxEndpointsPerInterface]Endpoint
	count     int
}

// AddEndpoint appends an endpoint to the interface's descriptor.
func (i *Interface) AddEndpoint(ep Endpoint) error {
	if i.count >= MaxEndpointsPerInterface {
		return pkg.ErrNoMemory
	}
	i.endpoints[i.count] = ep
	i.count++
	return nil
}

// Endpoints returns the endpoints added so far. The returned slice
// references internal storage and must not be retained.
func (i *Interface) Endpoints() []Endpoint { return i.endpoints[:i.count] }

func (i *Interface) header() interfaceHeader {
	return interfaceHeader{
		InterfaceNumber:   i.Number,
		AlternateSetting:  0,
		NumEndpoints:      uint8(i.count),
		InterfaceClass:    i.Class,
		InterfaceSubClass: i.SubClass,
		InterfaceProtocol: i.Protocol,
		InterfaceIndex:    i.StringIndex,
	}
}

// Association groups contiguous interfaces under one function, the way a
// composite CDC-ACM device associates its control and data interfaces.
type Association struct {
	FirstInterface   uint8
	InterfaceCount   uint8
	FunctionClass    uint8
	FunctionSubClass uint8
	FunctionProtocol uint8
	StringIndex      uint8
}

func (a Association) header() associationHeader {
	return associationHeader{
		FirstInterface:   a.FirstInterface,
		InterfaceCount:   a.InterfaceCount,
		FunctionClass:    a.FunctionClass,
		FunctionSubClass: a.FunctionSubClass,
		FunctionProtocol: a.FunctionProtocol,
		FunctionIndex:    a.StringIndex,
	}
}

// Configuration assembles the single active configuration's descriptor
// blob: its own header, any interface associations, and every interface
// with its endpoints, concatenated in wire order. Only one configuration
// value is ever active at a time (see ConfigurationValue); a device does
// not choose among several configuration blobs.
type Configuration struct {
	Attributes  uint8
	MaxPower    uint8
	StringIndex uint8

	interfaces   [MaxInterfaces]*Interface
	ifaceCount   int
	associations [MaxAssociations]Association
	assocCount   int
}

// NewConfiguration returns a bus-powered configuration with no remote
// wakeup support and 100mA of requested power; callers adjust Attributes
// and MaxPower as needed.
func NewConfiguration() *Configuration {
	return &Configuration{
		Attributes: ConfigAttrBusPowered,
		MaxPower:   50,
	}
}

// AddInterface appends an interface to the configuration.
func (c *Configuration) AddInterface(iface *Interface) error {
	if c.ifaceCount >= MaxInterfaces {
		return pkg.ErrNoMemory
	}
	c.interfaces[c.ifaceCount] = iface
	c.ifaceCount++
	return nil
}

// AddAssociation appends an interface association to the configuration.
func (c *Configuration) AddAssociation(assoc Association) error {
	if c.assocCount >= MaxAssociations {
		return pkg.ErrNoMemory
	}
	c.associations[c.assocCount] = assoc
	c.assocCount++
	return nil
}

// SetSelfPowered sets or clears the self-powered configuration attribute.
func (c *Configuration) SetSelfPowered(v bool) {
	if v {
		c.Attributes |= ConfigAttrSelfPowered
	} else {
		c.Attributes &^= ConfigAttrSelfPowered
	}
}

// SetRemoteWakeup sets or clears the remote-wakeup-capable attribute.
func (c *Configuration) SetRemoteWakeup(v bool) {
	if v {
		c.Attributes |= ConfigAttrRemoteWakeup
	} else {
		c.Attributes &^= ConfigAttrRemoteWakeup
	}
}

func (c *Configuration) totalLength() uint16 {
	length := uint16(ConfigurationSize)
	length += uint16(c.assocCount) * AssociationSize
	for idx := 0; idx < c.ifaceCount; idx++ {
		length += InterfaceSize
		length += uint16(c.interfaces[idx].count) * EndpointSize
	}
	return length
}

// MarshalTo writes the configuration descriptor header followed by every
// association, interface, and endpoint descriptor, in that order, exactly
// as the host expects the entire configuration blob. Returns the number
// of bytes written, or 0 if buf is too small for any one piece.
func (c *Configuration) MarshalTo(buf []byte) int {
	offset := 0

	header := configurationHeader{
		TotalLength:        c.totalLength(),
		NumInterfaces:      uint8(c.ifaceCount),
		ConfigurationValue: ConfigurationValue,
		ConfigurationIndex: c.StringIndex,
		Attributes:         c.Attributes,
		MaxPower:           c.MaxPower,
	}
	n := header.marshalTo(buf[offset:])
	if n == 0 {
		return 0
	}
	offset += n

	for idx := 0; idx < c.assocCount; idx++ {
		h := c.associations[idx].header()
		n = h.marshalTo(buf[offset:])
		if n == 0 {
			return 0
		}
		offset += n
	}

	for idx := 0; idx < c.ifaceCount; idx++ {
		iface := c.interfaces[idx]
		h := iface.header()
		n = h.marshalTo(buf[offset:])
		if n == 0 {
			return 0
		}
		offset += n

		for _, ep := range iface.Endpoints() {
			epHeader := ep.header()
			n = epHeader.marshalTo(buf[offset:])
			if n == 0 {
				return 0
			}
			offset += n
		}
	}

	return offset
}

// ConfigurationValue is the only configuration value a device ever
// reports; multiple simultaneous configurations are not supported.
const ConfigurationValue = 1
