// Package sim implements an in-memory, non-blocking bus.Bus for testing
// device cores and classes without real hardware. It models each
// endpoint's OUT and IN halves as a small fixed-size FIFO and lets a test
// drive bus-level events (SETUP packets, resets, suspend/resume) directly,
// the way a hardware FIFO-based controller would report them.
package sim

import (
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

// fifoSize bounds each endpoint half's buffer. It comfortably holds one
// full-speed bulk packet plus slack for a short queued control response.
const fifoSize = 512

// numEndpoints is the number of endpoint numbers the sim tracks per
// direction, matching bus.EndpointAddress's 4-bit number field.
const numEndpoints = 16

type fifo struct {
	buf [fifoSize]byte
	len int
}

func (f *fifo) write(data []byte) (int, error) {
	if f.len+len(data) > fifoSize {
		return 0, pkg.ErrWouldBlock
	}
	copy(f.buf[f.len:], data)
	f.len += len(data)
	return len(data), nil
}

func (f *fifo) read(buf []byte) (int, error) {
	if f.len == 0 {
		return 0, pkg.ErrWouldBlock
	}
	n := copy(buf, f.buf[:f.len])
	remaining := copy(f.buf[:], f.buf[n:f.len])
	f.len = remaining
	return n, nil
}

// Bus is a simulated, single-threaded bus.Bus. It is not safe for
// concurrent use, matching the device core's own single-threaded contract.
type Bus struct {
	speed  bus.Speed
	frozen bool
	addr   uint8

	allocatedOut [numEndpoints]bool
	allocatedIn  [numEndpoints]bool
	stalledOut   [numEndpoints]bool
	stalledIn    [numEndpoints]bool

	// host→device: what Read drains.
	outFIFO [numEndpoints]fifo
	// device→host: what Write fills; a test drains it with Sent.
	inFIFO [numEndpoints]fifo

	pendingKind         bus.PollKind
	pendingEPOut        uint16
	pendingEPInComplete uint16
	pendingEPSetup      uint16
}

// New returns a Bus with the given negotiated link speed.
func New(speed bus.Speed) *Bus {
	return &Bus{speed: speed}
}

// Alloc reserves the next free endpoint number in the Address's direction
// when its endpoint number is 0, or validates the requested address
// otherwise. A nil Address is rejected with pkg.ErrInvalidRequest.
func (b *Bus) Alloc(cfg bus.EndpointConfig) (bus.EndpointHandle, error) {
	if b.frozen {
		return bus.EndpointHandle{}, pkg.ErrInvalidState
	}
	if cfg.Address == nil {
		return bus.EndpointHandle{}, pkg.ErrInvalidRequest
	}
	want := *cfg.Address
	if want.Number() != 0 {
		if b.allocated(want) {
			return bus.EndpointHandle{}, pkg.ErrBusy
		}
		b.setAllocated(want, true)
		return bus.EndpointHandle{Address: want}, nil
	}

	// Number 0 on a non-control request means "assign the next free
	// number in this address's direction"; endpoint zero itself is
	// reserved and never allocated through this path.
	for n := uint8(1); n < numEndpoints; n++ {
		addr := bus.EndpointAddress(n)
		if want.IsIn() {
			addr = bus.In(n)
			if b.allocatedIn[n] {
				continue
			}
		} else {
			addr = bus.Out(n)
			if b.allocatedOut[n] {
				continue
			}
		}
		b.setAllocated(addr, true)
		return bus.EndpointHandle{Address: addr}, nil
	}
	return bus.EndpointHandle{}, pkg.ErrNoMemory
}

func (b *Bus) allocated(addr bus.EndpointAddress) bool {
	if addr.IsIn() {
		return b.allocatedIn[addr.Number()]
	}
	return b.allocatedOut[addr.Number()]
}

func (b *Bus) setAllocated(addr bus.EndpointAddress, v bool) {
	if addr.IsIn() {
		b.allocatedIn[addr.Number()] = v
	} else {
		b.allocatedOut[addr.Number()] = v
	}
}

// Freeze finalizes allocation.
func (b *Bus) Freeze() error {
	b.frozen = true
	return nil
}

// Poll returns and clears whatever event state a test has injected since
// the previous call.
func (b *Bus) Poll() (bus.PollResult, error) {
	result := bus.PollResult{
		Kind:         b.pendingKind,
		EPOut:        b.pendingEPOut,
		EPInComplete: b.pendingEPInComplete,
		EPSetup:      b.pendingEPSetup,
	}
	b.pendingKind = bus.PollNone
	b.pendingEPOut = 0
	b.pendingEPInComplete = 0
	b.pendingEPSetup = 0
	return result, nil
}

// Reset clears every FIFO, stall bit, and the address register, as real
// hardware does on a bus reset.
func (b *Bus) Reset() {
	for n := 0; n < numEndpoints; n++ {
		b.outFIFO[n].len = 0
		b.inFIFO[n].len = 0
		b.stalledOut[n] = false
		b.stalledIn[n] = false
	}
	b.addr = 0
}

// ForceReset queues a reset event for the next Poll, simulating a
// device-initiated disconnect/reconnect cycle.
func (b *Bus) ForceReset() { b.pendingKind = bus.PollReset }

// Suspend and Resume are no-ops on the simulated bus; they exist so device
// core code that calls them during PollSuspend/PollResume handling has
// something to call.
func (b *Bus) Suspend() {}
func (b *Bus) Resume()  {}

// SetDeviceAddress records the address the device core has applied.
func (b *Bus) SetDeviceAddress(addr uint8) { b.addr = addr }

// Address returns the address last applied via SetDeviceAddress.
func (b *Bus) Address() uint8 { return b.addr }

// SetStalled halts or clears the halt condition on one endpoint direction.
func (b *Bus) SetStalled(addr bus.EndpointAddress, stalled bool) {
	if addr.IsIn() {
		b.stalledIn[addr.Number()] = stalled
	} else {
		b.stalledOut[addr.Number()] = stalled
	}
}

// IsStalled reports the current halt condition of one endpoint direction.
func (b *Bus) IsStalled(addr bus.EndpointAddress) bool {
	if addr.IsIn() {
		return b.stalledIn[addr.Number()]
	}
	return b.stalledOut[addr.Number()]
}

// Read drains the named OUT endpoint's receive FIFO.
func (b *Bus) Read(addr bus.EndpointAddress, buf []byte) (int, error) {
	return b.outFIFO[addr.Number()].read(buf)
}

// Write queues data on the named IN endpoint's transmit FIFO. A test reads
// it back with Sent to assert on what the device transmitted.
func (b *Bus) Write(addr bus.EndpointAddress, data []byte) (int, error) {
	return b.inFIFO[addr.Number()].write(data)
}

// Speed reports the negotiated link speed.
func (b *Bus) Speed() bus.Speed { return b.speed }

// InjectSetup queues SETUP packet bytes for endpoint n's OUT half and
// raises the corresponding bit of the next Poll's EPSetup bitmap.
func (b *Bus) InjectSetup(n uint8, packet []byte) {
	b.outFIFO[n].len = 0
	b.outFIFO[n].write(packet)
	b.pendingKind = bus.PollData
	b.pendingEPSetup |= 1 << n
}

// InjectOut queues data for endpoint n's OUT half and raises the
// corresponding bit of the next Poll's EPOut bitmap.
func (b *Bus) InjectOut(n uint8, data []byte) {
	b.outFIFO[n].write(data)
	b.pendingKind = bus.PollData
	b.pendingEPOut |= 1 << n
}

// SignalInComplete raises endpoint n's bit in the next Poll's
// EPInComplete bitmap, as if the host had just acknowledged a queued IN
// packet.
func (b *Bus) SignalInComplete(n uint8) {
	b.pendingKind = bus.PollData
	b.pendingEPInComplete |= 1 << n
}

// SignalSuspend and SignalResume queue the matching bus-level event for
// the next Poll.
func (b *Bus) SignalSuspend() { b.pendingKind = bus.PollSuspend }
func (b *Bus) SignalResume()  { b.pendingKind = bus.PollResume }

// Sent drains and returns whatever the device has written to endpoint n's
// IN half since the last call.
func (b *Bus) Sent(n uint8) []byte {
	var out [fifoSize]byte
	count, err := b.inFIFO[n].read(out[:])
	if err != nil {
		return nil
	}
	cp := make([]byte, count)
	copy(cp, out[:count])
	return cp
}
