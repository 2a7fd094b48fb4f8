// Package descriptor builds and serializes the static USB descriptor
// blobs a device hands back during GET_DESCRIPTOR requests: device,
// configuration (with its interfaces, endpoints, and associations), and
// string descriptors. None of it depends on bus or transaction state; a
// Provider's output is a pure function of how it was configured.
package descriptor

import (
	"encoding/binary"

	"github.com/ardnew/usbengine/pkg"
)

// USB Descriptor Types (USB 2.0 Spec Table 9-5).
const (
	TypeDevice               = 0x01
	TypeConfiguration        = 0x02
	TypeString               = 0x03
	TypeInterface            = 0x04
	TypeEndpoint             = 0x05
	TypeDeviceQualifier      = 0x06
	TypeOtherSpeedConfig     = 0x07
	TypeInterfacePower       = 0x08
	TypeOTG                  = 0x09
	TypeDebug                = 0x0A
	TypeInterfaceAssociation = 0x0B
	TypeBOS                  = 0x0F
	TypeDeviceCapability     = 0x10
	TypeHID                  = 0x21
	TypeHIDReport            = 0x22
	TypeHIDPhysical          = 0x23
	TypeCSInterface          = 0x24 // Class-specific interface
	TypeCSEndpoint           = 0x25 // Class-specific endpoint
)

// USB Class Codes.
const (
	ClassPerInterface = 0x00 // Class defined at interface level
	ClassAudio        = 0x01
	ClassCDC          = 0x02
	ClassHID          = 0x03
	ClassPhysical     = 0x05
	ClassImage        = 0x06
	ClassPrinter      = 0x07
	ClassMassStorage  = 0x08
	ClassHub          = 0x09
	ClassCDCData      = 0x0A
	ClassSmartCard    = 0x0B
	ClassContentSec   = 0x0D
	ClassVideo        = 0x0E
	ClassHealthcare   = 0x0F
	ClassAudioVideo   = 0x10
	ClassBillboard    = 0x11
	ClassDiagnostic   = 0xDC
	ClassWireless     = 0xE0
	ClassMisc         = 0xEF
	ClassAppSpecific  = 0xFE
	ClassVendor       = 0xFF
)

// Device represents a USB device descriptor (18 bytes).
type Device struct {
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// DeviceSize is the size of a device descriptor in bytes.
const DeviceSize = 18

// MarshalTo serializes the device descriptor to buf. Returns the number
// of bytes written (DeviceSize if buf is large enough, 0 otherwise).
func (d *Device) MarshalTo(buf []byte) int {
	if len(buf) < DeviceSize {
		return 0
	}
	buf[0] = DeviceSize
	buf[1] = TypeDevice
	binary.LittleEndian.PutUint16(buf[2:4], d.USBVersion)
	buf[4] = d.DeviceClass
	buf[5] = d.DeviceSubClass
	buf[6] = d.DeviceProtocol
	buf[7] = d.MaxPacketSize0
	binary.LittleEndian.PutUint16(buf[8:10], d.VendorID)
	binary.LittleEndian.PutUint16(buf[10:12], d.ProductID)
	binary.LittleEndian.PutUint16(buf[12:14], d.DeviceVersion)
	buf[14] = d.ManufacturerIndex
	buf[15] = d.ProductIndex
	buf[16] = d.SerialNumberIndex
	buf[17] = d.NumConfigurations
	return DeviceSize
}

// ParseDevice parses a device descriptor from data into out.
func ParseDevice(data []byte, out *Device) error {
	if len(data) < DeviceSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != TypeDevice {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.USBVersion = binary.LittleEndian.Uint16(data[2:4])
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.VendorID = binary.LittleEndian.Uint16(data[8:10])
	out.ProductID = binary.LittleEndian.Uint16(data[10:12])
	out.DeviceVersion = binary.LittleEndian.Uint16(data[12:14])
	out.ManufacturerIndex = data[14]
	out.ProductIndex = data[15]
	out.SerialNumberIndex = data[16]
	out.NumConfigurations = data[17]
	return nil
}

// Configuration attribute bits.
const (
	ConfigAttrBusPowered   = 0x80
	ConfigAttrSelfPowered  = 0x40
	ConfigAttrRemoteWakeup = 0x20
)

// configurationHeader represents a USB configuration descriptor (9 bytes).
type configurationHeader struct {
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8
}

// ConfigurationSize is the size of a configuration descriptor header in bytes.
const ConfigurationSize = 9

func (c *configurationHeader) marshalTo(buf []byte) int {
	if len(buf) < ConfigurationSize {
		return 0
	}
	buf[0] = ConfigurationSize
	buf[1] = TypeConfiguration
	binary.LittleEndian.PutUint16(buf[2:4], c.TotalLength)
	buf[4] = c.NumInterfaces
	buf[5] = c.ConfigurationValue
	buf[6] = c.ConfigurationIndex
	buf[7] = c.Attributes
	buf[8] = c.MaxPower
	return ConfigurationSize
}

// interfaceHeader represents a USB interface descriptor (9 bytes).
type interfaceHeader struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8
}

// InterfaceSize is the size of an interface descriptor in bytes.
const InterfaceSize = 9

func (i *interfaceHeader) marshalTo(buf []byte) int {
	if len(buf) < InterfaceSize {
		return 0
	}
	buf[0] = InterfaceSize
	buf[1] = TypeInterface
	buf[2] = i.InterfaceNumber
	buf[3] = i.AlternateSetting
	buf[4] = i.NumEndpoints
	buf[5] = i.InterfaceClass
	buf[6] = i.InterfaceSubClass
	buf[7] = i.InterfaceProtocol
	buf[8] = i.InterfaceIndex
	return InterfaceSize
}

// endpointHeader represents a USB endpoint descriptor (7 bytes).
type endpointHeader struct {
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

// EndpointSize is the size of an endpoint descriptor in bytes.
const EndpointSize = 7

func (e *endpointHeader) marshalTo(buf []byte) int {
	if len(buf) < EndpointSize {
		return 0
	}
	buf[0] = EndpointSize
	buf[1] = TypeEndpoint
	buf[2] = e.EndpointAddress
	buf[3] = e.Attributes
	binary.LittleEndian.PutUint16(buf[4:6], e.MaxPacketSize)
	buf[6] = e.Interval
	return EndpointSize
}

// associationHeader represents an interface association descriptor (8 bytes),
// used by composite devices such as CDC-ACM to group related interfaces.
type associationHeader struct {
	FirstInterface   uint8
	InterfaceCount   uint8
	FunctionClass    uint8
	FunctionSubClass uint8
	FunctionProtocol uint8
	FunctionIndex    uint8
}

// AssociationSize is the size of an interface association descriptor in bytes.
const AssociationSize = 8

func (a *associationHeader) marshalTo(buf []byte) int {
	if len(buf) < AssociationSize {
		return 0
	}
	buf[0] = AssociationSize
	buf[1] = TypeInterfaceAssociation
	buf[2] = a.FirstInterface
	buf[3] = a.InterfaceCount
	buf[4] = a.FunctionClass
	buf[5] = a.FunctionSubClass
	buf[6] = a.FunctionProtocol
	buf[7] = a.FunctionIndex
	return AssociationSize
}

// StringTo writes a USB string descriptor to buf, encoding s as UTF-16LE.
// Each rune is written as one 16-bit code unit: runes above U+FFFF are
// truncated to their low 16 bits, not encoded as surrogate pairs. Strings
// longer than 126 runes are cut to 126.
// Returns the number of bytes written, or 0 if buf is too small.
func StringTo(buf []byte, s string) int {
	runes := []rune(s)
	length := 2 + len(runes)*2
	if length > 254 {
		length = 254
		runes = runes[:(length-2)/2]
	}
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = TypeString
	for i, r := range runes {
		binary.LittleEndian.PutUint16(buf[2+i*2:], uint16(r))
	}
	return length
}

// LanguagesTo writes the supported-language-ID string descriptor (index 0)
// to buf. Returns the number of bytes written, or 0 if buf is too small.
func LanguagesTo(buf []byte, langIDs ...uint16) int {
	length := 2 + len(langIDs)*2
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = TypeString
	for i, id := range langIDs {
		binary.LittleEndian.PutUint16(buf[2+i*2:], id)
	}
	return length
}

// LangIDUSEnglish is the language ID for US English.
const LangIDUSEnglish = 0x0409
