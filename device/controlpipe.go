package device

import (
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

// MaxControlDataSize bounds the control pipe's data-stage buffer. It must
// be large enough to hold the largest descriptor blob a provider returns;
// anything a host requests beyond it is truncated, never overrun.
const MaxControlDataSize = 512

// PipeState names the states of the endpoint-zero control pipe.
type PipeState uint8

// Control pipe states.
const (
	PipeIdle       PipeState = iota // awaiting a SETUP packet
	PipeDataIn                      // streaming a device-to-host data stage
	PipeDataOut                     // accumulating a host-to-device data stage
	PipeStatusIn                    // the zero-length IN status packet is queued
	PipeStatusOut                   // awaiting the zero-length OUT status packet
	PipeStalled                     // both halves halted until the next SETUP
	PipeCompleteIn                  // the IN status packet was just acknowledged
)

func (s PipeState) String() string {
	switch s {
	case PipeIdle:
		return "idle"
	case PipeDataIn:
		return "data-in"
	case PipeDataOut:
		return "data-out"
	case PipeStatusIn:
		return "status-in"
	case PipeStatusOut:
		return "status-out"
	case PipeStalled:
		return "stalled"
	case PipeCompleteIn:
		return "complete-in"
	default:
		return "unknown"
	}
}

// ControlPipe owns both halves of endpoint zero and drives the SETUP/
// DATA/STATUS state machine for control transfers. It is not reentrant
// and holds no goroutines; every method runs to completion against the
// bus it was initialized with.
type ControlPipe struct {
	bus bus.Bus
	mps uint16

	state   PipeState
	request SetupPacket

	dataBuf [MaxControlDataSize]byte

	// host-to-device accumulation
	dataLen  int
	expected int

	// device-to-host staging
	stagedLen  int
	stagedOff  int
	pendingZLP bool
}

func (p *ControlPipe) init(b bus.Bus, mps uint16) {
	p.bus = b
	p.mps = mps
	p.state = PipeIdle
}

// State returns the pipe's current state.
func (p *ControlPipe) State() PipeState { return p.state }

// Request returns the most recently parsed SETUP packet.
func (p *ControlPipe) Request() *SetupPacket { return &p.request }

// reset drops any in-flight transaction, returns to Idle, and clears the
// stall condition on both halves.
func (p *ControlPipe) reset() {
	p.state = PipeIdle
	p.dataLen, p.expected = 0, 0
	p.stagedLen, p.stagedOff = 0, 0
	p.pendingZLP = false
	p.bus.SetStalled(bus.Out(0), false)
	p.bus.SetStalled(bus.In(0), false)
}

func (p *ControlPipe) stall() {
	p.state = PipeStalled
	p.bus.SetStalled(bus.Out(0), true)
	p.bus.SetStalled(bus.In(0), true)
}

// HandleSetup reads and parses a pending SETUP packet from endpoint
// zero's OUT half. A SETUP packet always aborts any transaction already
// in flight and clears a prior Stalled condition, per USB 2.0 8.5.3.
//
// It returns (DirectionIn, true) once the pipe has a dispatch ready to
// run — either because the request carries no data stage, or because it
// is device-to-host and the handler still needs to supply the response.
// The caller picks the dispatch table from the SETUP packet's direction
// bit, so a no-data host-to-device request still runs control-out
// dispatch. A host-to-device request with a data stage returns
// (_, false); the data must still be read via HandleOut before dispatch.
func (p *ControlPipe) HandleSetup() (Direction, bool) {
	var raw [SetupPacketSize]byte
	n, err := p.bus.Read(bus.Out(0), raw[:])
	if err != nil || n < SetupPacketSize {
		return 0, false
	}
	if err := ParseSetupPacket(raw[:n], &p.request); err != nil {
		return 0, false
	}

	p.state = PipeIdle
	p.dataLen, p.stagedLen, p.stagedOff = 0, 0, 0
	p.pendingZLP = false
	p.bus.SetStalled(bus.Out(0), false)
	p.bus.SetStalled(bus.In(0), false)

	switch {
	case p.request.Length == 0:
		p.state = PipeStatusIn
		return DirectionIn, true
	case p.request.IsDeviceToHost():
		p.state = PipeDataIn
		return DirectionIn, true
	default:
		p.expected = int(p.request.Length)
		if p.expected > MaxControlDataSize {
			p.expected = MaxControlDataSize
		}
		p.state = PipeDataOut
		return 0, false
	}
}

// HandleOut services an OUT-direction event on endpoint zero once the
// pipe is past the SETUP stage: either accumulating a host-to-device
// data stage, or absorbing the zero-length status packet that closes a
// device-to-host transaction.
//
// It returns (DirectionOut, true) once every byte of a host-to-device
// data stage has been received and control-out dispatch should run.
func (p *ControlPipe) HandleOut() (Direction, bool) {
	switch p.state {
	case PipeStatusOut:
		var scratch [8]byte
		p.bus.Read(bus.Out(0), scratch[:])
		p.state = PipeIdle
		return 0, false
	case PipeDataOut:
		n, err := p.bus.Read(bus.Out(0), p.dataBuf[p.dataLen:p.expected])
		if err != nil {
			return 0, false
		}
		p.dataLen += n
		if p.dataLen < p.expected {
			return 0, false
		}
		return DirectionOut, true
	default:
		return 0, false
	}
}

// HandleInComplete is called when the hardware reports an IN packet on
// endpoint zero departed. It pumps the next chunk of a device-to-host
// data stage, and returns true iff this completion closes the status
// stage of a host-to-device (or no-data) transaction — the only event
// after which a deferred SET_ADDRESS may be applied to the bus.
func (p *ControlPipe) HandleInComplete() bool {
	switch p.state {
	case PipeDataIn:
		p.pumpDataIn()
		return false
	case PipeStatusIn:
		p.state = PipeCompleteIn
		return true
	default:
		return false
	}
}

// accept stages up to the request's declared length of response bytes,
// produced by write, and begins delivering them.
func (p *ControlPipe) accept(write func([]byte) int) error {
	if p.state != PipeDataIn {
		return pkg.ErrInvalidState
	}
	max := int(p.request.Length)
	if max > MaxControlDataSize {
		max = MaxControlDataSize
	}
	n := write(p.dataBuf[:max])
	if n < 0 || n > max {
		p.stall()
		return pkg.ErrBufferOverflow
	}
	p.stagedLen = n
	p.stagedOff = 0
	return p.pumpDataIn()
}

// acceptWith copies a fixed byte slice as the device-to-host response.
func (p *ControlPipe) acceptWith(data []byte) error {
	return p.accept(func(buf []byte) int { return copy(buf, data) })
}

// acceptStatus acknowledges a host-to-device transaction by queuing the
// zero-length IN status packet.
func (p *ControlPipe) acceptStatus() error {
	if p.state != PipeDataOut && p.state != PipeStatusIn {
		return pkg.ErrInvalidState
	}
	p.state = PipeStatusIn
	_, err := p.bus.Write(bus.In(0), nil)
	return err
}

// reject stalls both halves of the pipe, ending the transaction.
func (p *ControlPipe) reject() {
	p.stall()
}

// pumpDataIn writes the next packet of a staged device-to-host response,
// inserting a trailing zero-length packet when the response is shorter
// than the host requested and lands exactly on a max-packet-size
// boundary (the standard USB short-packet termination rule).
func (p *ControlPipe) pumpDataIn() error {
	mps := int(p.mps)
	if mps <= 0 {
		mps = 8
	}

	if remain := p.stagedLen - p.stagedOff; remain > 0 {
		chunk := remain
		if chunk > mps {
			chunk = mps
		}
		n, err := p.bus.Write(bus.In(0), p.dataBuf[p.stagedOff:p.stagedOff+chunk])
		if err != nil {
			return err
		}
		p.stagedOff += n
		if p.stagedOff >= p.stagedLen {
			if chunk == mps && p.stagedLen < int(p.request.Length) {
				p.pendingZLP = true
			} else {
				p.state = PipeStatusOut
			}
		}
		return nil
	}

	if p.pendingZLP {
		p.pendingZLP = false
		if _, err := p.bus.Write(bus.In(0), nil); err != nil {
			return err
		}
	}
	p.state = PipeStatusOut
	return nil
}
