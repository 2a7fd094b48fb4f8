package device

import (
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

// Device is the protocol engine's core: it owns the control pipe, tracks
// chapter 9 device state, and drives one class list through a bus poll
// cycle. It holds no goroutines and is not safe for concurrent use — the
// whole point of the design is that there is never more than one caller.
type Device struct {
	bus  bus.Bus
	desc DescriptorProvider
	pipe ControlPipe

	state State

	selfPowered         bool
	remoteWakeupEnabled bool

	// pendingAddress is the address staged by SET_ADDRESS, applied once
	// its status stage completes. 0 means none pending — SET_ADDRESS
	// never accepts address 0, so the zero value is unambiguous.
	pendingAddress uint8
}

// NewDevice returns a Device bound to b and desc. The bus must not yet be
// frozen; the caller allocates class endpoints and calls bus.Freeze before
// the first Poll.
func NewDevice(b bus.Bus, desc DescriptorProvider) *Device {
	d := &Device{bus: b, desc: desc, state: StateDefault}
	d.pipe.init(b, uint16(desc.GetEP0MaxPacketSize()))
	return d
}

// State returns the device's current chapter 9 state.
func (d *Device) State() State { return d.state }

// IsSelfPowered reports the value GET_STATUS(Device) reports in bit 0.
func (d *Device) IsSelfPowered() bool { return d.selfPowered }

// SetSelfPowered records whether the device is self-powered. This reflects
// board-level reality and is not reset by a bus reset.
func (d *Device) SetSelfPowered(v bool) { d.selfPowered = v }

// IsRemoteWakeupEnabled reports whether the host has enabled remote
// wakeup via SET_FEATURE(DEVICE_REMOTE_WAKEUP). Cleared on every reset.
func (d *Device) IsRemoteWakeupEnabled() bool { return d.remoteWakeupEnabled }

// Poll drives one cycle of the device: it polls the bus once and reacts
// to whatever it reports. It returns true only when there was bus
// activity a class might need to act on (a Data event); None, Reset, and
// a Suspend transition all return false without touching any class's
// Poll. classes is a fresh slice supplied by the caller on every call;
// nothing about it is retained between calls.
func (d *Device) Poll(classes []Class) bool {
	result, err := d.bus.Poll()
	if err != nil {
		pkg.LogError(pkg.ComponentDevice, "bus poll failed", "error", err)
		return false
	}

	if d.state == StateSuspend {
		if result.Kind == bus.PollSuspend || result.Kind == bus.PollNone {
			return false
		}
		d.bus.Resume()
		d.state = StateDefault
		pkg.LogDebug(pkg.ComponentDevice, "bus resumed")
	}

	switch result.Kind {
	case bus.PollNone:
		return false
	case bus.PollReset:
		d.reset(classes)
		return false
	case bus.PollSuspend:
		d.bus.Suspend()
		d.state = StateSuspend
		pkg.LogDebug(pkg.ComponentDevice, "bus suspended")
		return false
	case bus.PollResume:
		// Already handled above if it ended a suspend; otherwise a
		// spurious Resume while not suspended is a no-op.
	case bus.PollData:
		d.dispatchEP0(classes, result)
		d.dispatchEndpoints(classes, result)
		for _, c := range classes {
			c.Poll()
		}
		return true
	}
	return false
}

// reset reinitializes the bus, the control pipe, and device-core state,
// then notifies every class. Remote wakeup is disabled on every reset per
// USB 2.0 9.1.1.6; self-powered status is a board characteristic and is
// left untouched.
func (d *Device) reset(classes []Class) {
	d.bus.Reset()
	d.pipe.init(d.bus, uint16(d.desc.GetEP0MaxPacketSize()))
	d.state = StateDefault
	d.remoteWakeupEnabled = false
	d.pendingAddress = 0

	for _, c := range classes {
		c.Reset()
	}
	pkg.LogDebug(pkg.ComponentDevice, "bus reset")
}

// dispatchEP0 services endpoint zero against the bitmaps reported for this
// poll cycle. Only bit 0 of each bitmap is ever consulted here; non-zero
// endpoints are handled by dispatchEndpoints.
func (d *Device) dispatchEP0(classes []Class, result bus.PollResult) {
	const bit = uint16(1)

	if result.EPSetup&bit != 0 {
		if _, ready := d.pipe.HandleSetup(); ready {
			d.serviceControl(classes)
		}
	} else if result.EPOut&bit != 0 {
		if _, ready := d.pipe.HandleOut(); ready {
			d.serviceControl(classes)
		}
	}
	if result.EPInComplete&bit != 0 {
		if d.pipe.HandleInComplete() {
			d.applyPendingAddress()
		}
	}
}

// serviceControl runs one control transaction's dispatch once the control
// pipe reports it is ready, and stalls the pipe if nothing claims it.
// Dispatch-table selection is driven by the SETUP packet's own direction
// bit, not by any value the control pipe itself returned.
func (d *Device) serviceControl(classes []Class) {
	req := d.pipe.Request()
	resp := &Responder{pipe: &d.pipe}

	if req.IsDeviceToHost() {
		d.controlIn(classes, req, resp)
	} else {
		d.controlOut(classes, req, resp)
	}

	if !resp.Taken() {
		resp.Reject()
	}
}

// applyPendingAddress programs the bus address register once the status
// stage of the SET_ADDRESS request that requested it has completed, per
// USB 2.0 9.4.6 — the new address must not take effect any earlier.
func (d *Device) applyPendingAddress() {
	if d.pendingAddress == 0 {
		return
	}
	d.bus.SetDeviceAddress(d.pendingAddress)
	d.state = StateAddressed
	pkg.LogDebug(pkg.ComponentDevice, "address applied", "address", d.pendingAddress)
	d.pendingAddress = 0
}

// dispatchEndpoints walks endpoint numbers 1-15 and offers every class a
// look at any event this poll cycle reported for that endpoint.
func (d *Device) dispatchEndpoints(classes []Class, result bus.PollResult) {
	for n := uint8(1); n < MaxEndpoints; n++ {
		bit := uint16(1) << n

		if result.EPSetup&bit != 0 {
			addr := bus.Out(n)
			for _, c := range classes {
				c.EndpointSetup(addr)
			}
		}
		if result.EPOut&bit != 0 {
			addr := bus.Out(n)
			for _, c := range classes {
				c.EndpointOut(addr)
			}
		}
		if result.EPInComplete&bit != 0 {
			addr := bus.In(n)
			for _, c := range classes {
				c.EndpointInComplete(addr)
			}
		}
	}
}
