package device

import (
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/device/descriptor"
	"github.com/ardnew/usbengine/pkg"
)

// Direction reports which half of a control transfer the control pipe is
// about to drive. It is informational: dispatch-table selection is
// driven by the SETUP packet's own direction bit, not by this value (see
// DESIGN.md).
type Direction uint8

// Control transfer directions.
const (
	DirectionOut Direction = iota
	DirectionIn
)

// Class is the contract every class implementation satisfies. A fresh
// slice of Classes is supplied to every Poll call; nothing about a class
// is retained by the device core between calls.
type Class interface {
	// Reset is called for every class whenever the bus signals a reset,
	// after the device core's own state has been cleared.
	Reset()

	// Poll is called once per device Poll call, after all endpoint
	// dispatch for that cycle has completed.
	Poll()

	// ControlIn offers the class first refusal on a device-to-host
	// control request. A class that recognizes the request calls
	// Accept, AcceptWith, or Reject on xfer and must not touch it
	// again; one that doesn't recognize the request leaves xfer
	// untouched so the next class (or the standard handler) can try.
	ControlIn(xfer *Responder)

	// ControlOut offers the class first refusal on a host-to-device
	// control request, under the same consume-once discipline as
	// ControlIn.
	ControlOut(xfer *Responder)

	// EndpointSetup is called when a SETUP packet arrives on a non-zero
	// endpoint. Most hardware never raises this; the hook exists for
	// peripherals that do.
	EndpointSetup(addr bus.EndpointAddress)

	// EndpointOut is called when an OUT packet is ready to read on one
	// of the class's endpoints.
	EndpointOut(addr bus.EndpointAddress)

	// EndpointInComplete is called when a queued IN packet on one of
	// the class's endpoints has been acknowledged by the host.
	EndpointInComplete(addr bus.EndpointAddress)
}

// DescriptorProvider supplies the static descriptor bytes and EP0 max
// packet size the device core needs to answer GET_DESCRIPTOR requests.
// It holds no per-transaction state; descriptor.Provider is the reference
// implementation.
type DescriptorProvider interface {
	GetDeviceDescriptor(buf []byte) int
	GetConfigurationDescriptor(buf []byte) int
	GetStringDescriptor(langID uint16, index uint8, xfer descriptor.StringResponder)
	GetEP0MaxPacketSize() uint8
}

// Responder is the single-use capability offered to classes and the
// standard request handler during control dispatch. It may be consumed
// exactly once, by calling Accept, AcceptWith, AcceptStatus, or Reject;
// Taken reports whether that has already happened, so later handlers in
// the same dispatch know to stand down. This models the capability as a
// value that is taken, not a shared flag, so a handler cannot accidentally
// act after another handler already has.
type Responder struct {
	pipe  *ControlPipe
	taken bool
}

// Taken reports whether some handler has already consumed this responder.
func (r *Responder) Taken() bool { return r.taken }

// Request returns the SETUP packet this transaction is answering.
func (r *Responder) Request() *SetupPacket { return r.pipe.Request() }

// Data returns the bytes received during a host-to-device transaction's
// data stage. It is only meaningful from within a ControlOut handler, and
// the returned slice is only valid until the next control transaction.
func (r *Responder) Data() []byte { return r.pipe.dataBuf[:r.pipe.dataLen] }

// Accept stages a device-to-host response: write is called once with a
// buffer sized to at most the request's declared length, and must return
// the number of bytes it produced. The pipe then drives the IN data
// stage and the following OUT status stage on its own.
func (r *Responder) Accept(write func([]byte) int) error {
	if r.taken {
		return pkg.ErrInvalidState
	}
	r.taken = true
	return r.pipe.accept(write)
}

// AcceptWith is a convenience wrapper around Accept that copies a fixed
// byte slice as the response.
func (r *Responder) AcceptWith(data []byte) error {
	if r.taken {
		return pkg.ErrInvalidState
	}
	r.taken = true
	return r.pipe.acceptWith(data)
}

// AcceptStatus acknowledges a host-to-device (or no-data) transaction by
// queuing the zero-length IN status packet.
func (r *Responder) AcceptStatus() error {
	if r.taken {
		return pkg.ErrInvalidState
	}
	r.taken = true
	return r.pipe.acceptStatus()
}

// Reject stalls both halves of the control pipe, ending the transaction.
func (r *Responder) Reject() {
	if r.taken {
		return
	}
	r.taken = true
	r.pipe.reject()
}
