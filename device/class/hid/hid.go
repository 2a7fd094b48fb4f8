package hid

import (
	"github.com/ardnew/usbengine/device"
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

// MaxReportSize is the largest input, output, or feature report this
// class driver will stage in a single buffer.
const MaxReportSize = 64

// HID implements the device.Class contract for a single HID interface.
// One instance owns exactly one interrupt IN endpoint and optionally one
// interrupt OUT endpoint; a composite device with two HID interfaces
// (e.g. keyboard plus mouse) uses two instances.
type HID struct {
	InterfaceNumber uint8

	bus   bus.Bus
	inEP  bus.EndpointAddress
	outEP bus.EndpointAddress
	hasOut bool

	reportDescriptor []byte
	hidDescriptor    HIDDescriptor

	protocol uint8 // 0 = boot, 1 = report
	idleRate uint8 // idle rate in 4ms units, 0 = infinite

	onOutputReport  func(data []byte)
	onFeatureReport func(reportID uint8, data []byte)
	onSetProtocol   func(protocol uint8)
	onSetIdle       func(rate uint8, reportID uint8)

	reportBuf [MaxReportSize]byte
	sendBusy  bool
}

// New returns a HID class driver for interfaceNumber. reportDescriptor is
// stored by reference, not copied.
func New(interfaceNumber uint8, reportDescriptor []byte) *HID {
	return &HID{
		InterfaceNumber:  interfaceNumber,
		reportDescriptor: reportDescriptor,
		hidDescriptor: HIDDescriptor{
			HIDVersion:     0x0111,
			CountryCode:    CountryNone,
			NumDescriptors: 1,
			ReportDescType: DescriptorTypeReport,
			ReportDescLen:  uint16(len(reportDescriptor)),
		},
		protocol: ProtocolReport,
	}
}

// Attach allocates this class's endpoints on b. Call once, before
// bus.Freeze. outMaxPacketSize of 0 means no interrupt OUT endpoint.
func (h *HID) Attach(b bus.Bus, inMaxPacketSize, outMaxPacketSize uint16, interval uint8) error {
	h.bus = b

	in := bus.In(0)
	handle, err := b.Alloc(bus.EndpointConfig{
		Address:       &in,
		Type:          bus.TransferInterrupt,
		MaxPacketSize: inMaxPacketSize,
		Interval:      interval,
	})
	if err != nil {
		return err
	}
	h.inEP = handle.Address

	if outMaxPacketSize == 0 {
		return nil
	}
	out := bus.Out(0)
	handle, err = b.Alloc(bus.EndpointConfig{
		Address:       &out,
		Type:          bus.TransferInterrupt,
		MaxPacketSize: outMaxPacketSize,
		Interval:      interval,
	})
	if err != nil {
		return err
	}
	h.outEP = handle.Address
	h.hasOut = true
	return nil
}

// SetOnOutputReport sets the callback for output reports from the host.
func (h *HID) SetOnOutputReport(cb func(data []byte)) { h.onOutputReport = cb }

// SetOnFeatureReport sets the callback for feature report requests.
func (h *HID) SetOnFeatureReport(cb func(reportID uint8, data []byte)) { h.onFeatureReport = cb }

// SetOnSetProtocol sets the callback for protocol changes.
func (h *HID) SetOnSetProtocol(cb func(protocol uint8)) { h.onSetProtocol = cb }

// SetOnSetIdle sets the callback for idle rate changes.
func (h *HID) SetOnSetIdle(cb func(rate uint8, reportID uint8)) { h.onSetIdle = cb }

// Protocol returns the current protocol (boot or report).
func (h *HID) Protocol() uint8 { return h.protocol }

// IdleRate returns the current idle rate.
func (h *HID) IdleRate() uint8 { return h.idleRate }

// SendReport queues an input report on the interrupt IN endpoint. It
// returns pkg.ErrWouldBlock if a previous report is still in flight; the
// caller should retry on a later Poll cycle.
func (h *HID) SendReport(data []byte) error {
	if h.sendBusy {
		return pkg.ErrWouldBlock
	}
	n := copy(h.reportBuf[:], data)
	if _, err := h.bus.Write(h.inEP, h.reportBuf[:n]); err != nil {
		return err
	}
	h.sendBusy = true
	return nil
}

// SendKeyboardReport marshals and queues a keyboard report.
func (h *HID) SendKeyboardReport(report *KeyboardReport) error {
	var buf [KeyboardReportSize]byte
	report.MarshalTo(buf[:])
	return h.SendReport(buf[:])
}

// SendMouseReport marshals and queues a mouse report.
func (h *HID) SendMouseReport(report *MouseReport) error {
	var buf [MouseReportSize]byte
	report.MarshalTo(buf[:])
	return h.SendReport(buf[:])
}

// Reset clears in-flight state. It does not reallocate endpoints.
func (h *HID) Reset() {
	h.protocol = ProtocolReport
	h.idleRate = 0
	h.sendBusy = false
}

// Poll is a no-op; HID has nothing to do outside of control and endpoint
// events.
func (h *HID) Poll() {}

// ControlIn answers GET_DESCRIPTOR(HID/Report) and the class-specific
// GET_REPORT, GET_IDLE, and GET_PROTOCOL requests for this interface.
func (h *HID) ControlIn(xfer *device.Responder) {
	req := xfer.Request()
	if !h.forThisInterface(req) {
		return
	}

	if req.IsStandard() && req.Request == device.RequestGetDescriptor {
		h.getDescriptor(req, xfer)
		return
	}
	if !req.IsClass() {
		return
	}

	switch req.Request {
	case RequestGetReport:
		// No host-readable feature/input report state is tracked yet;
		// report a single zero byte rather than stalling the request.
		xfer.AcceptWith([]byte{0})
	case RequestGetIdle:
		xfer.AcceptWith([]byte{h.idleRate})
	case RequestGetProtocol:
		xfer.AcceptWith([]byte{h.protocol})
	}
}

// ControlOut handles SET_REPORT, SET_IDLE, and SET_PROTOCOL for this
// interface.
func (h *HID) ControlOut(xfer *device.Responder) {
	req := xfer.Request()
	if !h.forThisInterface(req) || !req.IsClass() {
		return
	}

	switch req.Request {
	case RequestSetReport:
		reportType := uint8(req.Value >> 8)
		reportID := uint8(req.Value)
		h.dispatchSetReport(reportType, reportID, xfer.Data())
		xfer.AcceptStatus()
	case RequestSetIdle:
		h.idleRate = uint8(req.Value >> 8)
		if h.onSetIdle != nil {
			h.onSetIdle(h.idleRate, uint8(req.Value))
		}
		xfer.AcceptStatus()
	case RequestSetProtocol:
		h.protocol = uint8(req.Value)
		if h.onSetProtocol != nil {
			h.onSetProtocol(h.protocol)
		}
		xfer.AcceptStatus()
	}
}

func (h *HID) dispatchSetReport(reportType, reportID uint8, data []byte) {
	switch reportType {
	case ReportTypeOutput:
		if h.onOutputReport != nil {
			h.onOutputReport(data)
		}
	case ReportTypeFeature:
		if h.onFeatureReport != nil {
			h.onFeatureReport(reportID, data)
		}
	}
}

func (h *HID) getDescriptor(req *device.SetupPacket, xfer *device.Responder) {
	switch req.DescriptorType() {
	case DescriptorTypeHID:
		xfer.Accept(func(buf []byte) int { return h.hidDescriptor.MarshalTo(buf) })
	case DescriptorTypeReport:
		xfer.AcceptWith(h.reportDescriptor)
	}
}

func (h *HID) forThisInterface(req *device.SetupPacket) bool {
	return req.IsInterfaceRecipient() && req.InterfaceNumber() == h.InterfaceNumber
}

// EndpointSetup is unused; HID never expects a SETUP packet on a non-zero
// endpoint.
func (h *HID) EndpointSetup(addr bus.EndpointAddress) {}

// EndpointOut reads a queued output report from the interrupt OUT
// endpoint, if this interface has one.
func (h *HID) EndpointOut(addr bus.EndpointAddress) {
	if !h.hasOut || addr != h.outEP {
		return
	}
	var buf [MaxReportSize]byte
	n, err := h.bus.Read(addr, buf[:])
	if err != nil {
		return
	}
	if h.onOutputReport != nil {
		h.onOutputReport(buf[:n])
	}
}

// EndpointInComplete clears the in-flight flag once the host has
// acknowledged the queued input report, allowing SendReport to queue the
// next one.
func (h *HID) EndpointInComplete(addr bus.EndpointAddress) {
	if addr == h.inEP {
		h.sendBusy = false
	}
}

var _ device.Class = (*HID)(nil)
