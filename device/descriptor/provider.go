package descriptor

import "github.com/ardnew/usbengine/pkg"

// MaxStrings bounds the fixed-size string table a Provider can hold.
const MaxStrings = 16

// StringResponder is the capability a string-descriptor request is
// answered through. It is satisfied structurally by the device package's
// control-transfer responder; this package never imports device.
type StringResponder interface {
	Accept(write func([]byte) int) error
	AcceptWith(data []byte) error
	Reject()
}

// CustomStringFunc answers a string descriptor request whose index falls
// outside the provider's static string table.
type CustomStringFunc func(id int, xfer StringResponder)

// Provider implements the descriptor-provider contract: static functions
// that yield device, configuration, and string descriptor bytes, plus the
// control endpoint's negotiated max packet size. It carries no per-
// transaction state.
type Provider struct {
	Device           Device
	Config           *Configuration
	EP0MaxPacketSize uint8
	CustomStrings    CustomStringFunc

	strings     [MaxStrings]string
	stringCount int
}

// NewProvider returns a Provider for the given device descriptor fields,
// configuration, and EP0 max packet size (one of 8, 16, 32, 64).
func NewProvider(dev Device, config *Configuration, ep0MaxPacketSize uint8) *Provider {
	return &Provider{
		Device:           dev,
		Config:           config,
		EP0MaxPacketSize: ep0MaxPacketSize,
	}
}

// AddString appends a UTF-16LE string and returns the index later GET_
// DESCRIPTOR(STRING) requests use to retrieve it. Index 0 is reserved for
// the supported-language-ID array and is never returned here.
func (p *Provider) AddString(s string) (uint8, error) {
	if p.stringCount >= MaxStrings {
		return 0, pkg.ErrNoMemory
	}
	p.strings[p.stringCount] = s
	index := uint8(p.stringCount + 1)
	p.stringCount++
	return index, nil
}

// GetDeviceDescriptor writes the 18-byte device descriptor to buf.
func (p *Provider) GetDeviceDescriptor(buf []byte) int {
	d := p.Device
	d.MaxPacketSize0 = p.EP0MaxPacketSize
	d.NumConfigurations = 1
	return d.MarshalTo(buf)
}

// GetConfigurationDescriptor writes the full configuration blob — header,
// associations, interfaces, and endpoints — to buf.
func (p *Provider) GetConfigurationDescriptor(buf []byte) int {
	if p.Config == nil {
		return 0
	}
	return p.Config.MarshalTo(buf)
}

// GetEP0MaxPacketSize returns the control endpoint's negotiated max
// packet size.
func (p *Provider) GetEP0MaxPacketSize() uint8 { return p.EP0MaxPacketSize }

// GetStringDescriptor answers a GET_DESCRIPTOR(STRING) request directly
// through xfer: index 0 yields the supported-language-ID array, indices
// within the static table yield their string, and anything else falls
// through to CustomStrings (or a STALL if none is installed).
func (p *Provider) GetStringDescriptor(langID uint16, index uint8, xfer StringResponder) {
	if index == 0 {
		xfer.Accept(func(buf []byte) int { return LanguagesTo(buf, LangIDUSEnglish) })
		return
	}
	if i := int(index) - 1; i >= 0 && i < p.stringCount {
		s := p.strings[i]
		xfer.Accept(func(buf []byte) int { return StringTo(buf, s) })
		return
	}
	if p.CustomStrings != nil {
		p.CustomStrings(int(index), xfer)
		return
	}
	xfer.Reject()
}
