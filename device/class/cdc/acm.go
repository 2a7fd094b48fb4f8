package cdc

import (
	"github.com/ardnew/usbengine/device"
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

// ACM implements the device.Class contract for a CDC-ACM (Abstract Control
// Model) interface pair: one control interface carrying the class-specific
// requests and notification endpoint, and one data interface carrying the
// bulk IN/OUT pipe. One instance owns both interfaces.
type ACM struct {
	ControlInterfaceNumber uint8
	DataInterfaceNumber    uint8

	bus       bus.Bus
	notifyEP  bus.EndpointAddress
	dataInEP  bus.EndpointAddress
	dataOutEP bus.EndpointAddress

	lineCoding   LineCoding
	controlState uint16
	serialState  uint16

	onLineCodingChange   func(*LineCoding)
	onControlStateChange func(dtr, rts bool)
	onBreak              func(millis uint16)
	onReceive            func(data []byte)

	responseBuf [LineCodingSize]byte
	notifyBuf   [10]byte
	txBusy      bool
	notifyBusy  bool
}

// NewACM returns a CDC-ACM class driver for the given control and data
// interface numbers.
func NewACM(controlInterfaceNumber, dataInterfaceNumber uint8) *ACM {
	return &ACM{
		ControlInterfaceNumber: controlInterfaceNumber,
		DataInterfaceNumber:    dataInterfaceNumber,
		lineCoding:             DefaultLineCoding,
	}
}

// Attach allocates this class's endpoints on b. Call once, before
// bus.Freeze.
func (a *ACM) Attach(b bus.Bus, notifyMaxPacketSize, dataMaxPacketSize uint16, notifyInterval uint8) error {
	a.bus = b

	notify := bus.In(0)
	h, err := b.Alloc(bus.EndpointConfig{
		Address:       &notify,
		Type:          bus.TransferInterrupt,
		MaxPacketSize: notifyMaxPacketSize,
		Interval:      notifyInterval,
	})
	if err != nil {
		return err
	}
	a.notifyEP = h.Address

	in := bus.In(0)
	h, err = b.Alloc(bus.EndpointConfig{Address: &in, Type: bus.TransferBulk, MaxPacketSize: dataMaxPacketSize})
	if err != nil {
		return err
	}
	a.dataInEP = h.Address

	out := bus.Out(0)
	h, err = b.Alloc(bus.EndpointConfig{Address: &out, Type: bus.TransferBulk, MaxPacketSize: dataMaxPacketSize})
	if err != nil {
		return err
	}
	a.dataOutEP = h.Address
	return nil
}

// SetOnLineCodingChange sets the callback for line coding changes.
func (a *ACM) SetOnLineCodingChange(cb func(*LineCoding)) { a.onLineCodingChange = cb }

// SetOnControlStateChange sets the callback for control line state changes.
func (a *ACM) SetOnControlStateChange(cb func(dtr, rts bool)) { a.onControlStateChange = cb }

// SetOnBreak sets the callback for break signaling.
func (a *ACM) SetOnBreak(cb func(millis uint16)) { a.onBreak = cb }

// SetOnReceive sets the callback invoked with bytes read from the bulk OUT
// endpoint as they arrive.
func (a *ACM) SetOnReceive(cb func(data []byte)) { a.onReceive = cb }

// LineCoding returns the current line coding configuration.
func (a *ACM) LineCoding() LineCoding { return a.lineCoding }

// DTR returns the current DTR (Data Terminal Ready) state.
func (a *ACM) DTR() bool { return a.controlState&ControlLineDTR != 0 }

// RTS returns the current RTS (Request To Send) state.
func (a *ACM) RTS() bool { return a.controlState&ControlLineRTS != 0 }

// Write queues data on the bulk IN endpoint. It returns pkg.ErrWouldBlock
// if a previous write is still in flight.
func (a *ACM) Write(data []byte) (int, error) {
	if a.txBusy {
		return 0, pkg.ErrWouldBlock
	}
	n, err := a.bus.Write(a.dataInEP, data)
	if err != nil {
		return 0, err
	}
	a.txBusy = true
	return n, nil
}

// SendSerialState sends a SERIAL_STATE notification to the host over the
// interrupt IN endpoint.
func (a *ACM) SendSerialState(state uint16) error {
	if a.notifyBusy {
		return pkg.ErrWouldBlock
	}
	a.serialState = state

	a.notifyBuf[0] = 0xA1 // bmRequestType: device-to-host, class, interface
	a.notifyBuf[1] = NotificationSerialState
	a.notifyBuf[2] = 0
	a.notifyBuf[3] = 0
	a.notifyBuf[4] = a.ControlInterfaceNumber
	a.notifyBuf[5] = 0
	a.notifyBuf[6] = 2
	a.notifyBuf[7] = 0
	a.notifyBuf[8] = byte(state)
	a.notifyBuf[9] = byte(state >> 8)

	if _, err := a.bus.Write(a.notifyEP, a.notifyBuf[:]); err != nil {
		return err
	}
	a.notifyBusy = true
	return nil
}

// Reset clears in-flight state. It does not reallocate endpoints.
func (a *ACM) Reset() {
	a.lineCoding = DefaultLineCoding
	a.controlState = 0
	a.serialState = 0
	a.txBusy = false
	a.notifyBusy = false
}

// Poll is a no-op; ACM has nothing to do outside of control and endpoint
// events.
func (a *ACM) Poll() {}

// ControlIn answers GET_LINE_CODING for the control interface.
func (a *ACM) ControlIn(xfer *device.Responder) {
	req := xfer.Request()
	if !a.forControlInterface(req) || !req.IsClass() {
		return
	}
	if req.Request != RequestGetLineCoding {
		return
	}
	n := a.lineCoding.MarshalTo(a.responseBuf[:])
	xfer.AcceptWith(a.responseBuf[:n])
}

// ControlOut handles SET_LINE_CODING, SET_CONTROL_LINE_STATE, and
// SEND_BREAK for the control interface.
func (a *ACM) ControlOut(xfer *device.Responder) {
	req := xfer.Request()
	if !a.forControlInterface(req) || !req.IsClass() {
		return
	}

	switch req.Request {
	case RequestSetLineCoding:
		if !ParseLineCoding(xfer.Data(), &a.lineCoding) {
			xfer.Reject()
			return
		}
		xfer.AcceptStatus()
		if a.onLineCodingChange != nil {
			lc := a.lineCoding
			a.onLineCodingChange(&lc)
		}
	case RequestSetControlLineState:
		a.controlState = req.Value
		xfer.AcceptStatus()
		if a.onControlStateChange != nil {
			a.onControlStateChange(a.DTR(), a.RTS())
		}
	case RequestSendBreak:
		millis := req.Value
		xfer.AcceptStatus()
		if a.onBreak != nil {
			a.onBreak(millis)
		}
	}
}

func (a *ACM) forControlInterface(req *device.SetupPacket) bool {
	return req.IsInterfaceRecipient() && req.InterfaceNumber() == a.ControlInterfaceNumber
}

// EndpointSetup is unused; ACM never expects a SETUP packet on a non-zero
// endpoint.
func (a *ACM) EndpointSetup(addr bus.EndpointAddress) {}

// EndpointOut drains the bulk OUT endpoint and forwards received bytes to
// the receive callback, if one is set.
func (a *ACM) EndpointOut(addr bus.EndpointAddress) {
	if addr != a.dataOutEP || a.onReceive == nil {
		return
	}
	var buf [MaxPacketSize]byte
	n, err := a.bus.Read(addr, buf[:])
	if err != nil {
		return
	}
	a.onReceive(buf[:n])
}

// EndpointInComplete clears the in-flight flag for whichever IN endpoint
// the host just acknowledged.
func (a *ACM) EndpointInComplete(addr bus.EndpointAddress) {
	switch addr {
	case a.dataInEP:
		a.txBusy = false
	case a.notifyEP:
		a.notifyBusy = false
	}
}

var _ device.Class = (*ACM)(nil)
