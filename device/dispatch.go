package device

import (
	"encoding/binary"

	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/device/descriptor"
)

// controlIn offers every class first refusal on a device-to-host control
// request, then falls back to the standard request table. A request no
// class or standard handler claims is left untouched for the caller to
// stall.
func (d *Device) controlIn(classes []Class, req *SetupPacket, resp *Responder) {
	for _, c := range classes {
		c.ControlIn(resp)
		if resp.Taken() {
			return
		}
	}
	if req.IsStandard() {
		d.standardIn(req, resp)
	}
}

// controlOut offers every class first refusal on a host-to-device control
// request, then falls back to the standard request table, under the same
// consume-once discipline as controlIn.
func (d *Device) controlOut(classes []Class, req *SetupPacket, resp *Responder) {
	for _, c := range classes {
		c.ControlOut(resp)
		if resp.Taken() {
			return
		}
	}
	if req.IsStandard() {
		d.standardOut(req, resp)
	}
}

// standardIn services the standard device-to-host requests of USB 2.0
// Table 9-4.
func (d *Device) standardIn(req *SetupPacket, resp *Responder) {
	switch req.Request {
	case RequestGetStatus:
		d.getStatus(req, resp)
	case RequestGetDescriptor:
		d.getDescriptor(req, resp)
	case RequestGetConfiguration:
		// Reports the single configuration as active unconditionally,
		// even before SET_CONFIGURATION has ever been accepted.
		resp.AcceptWith([]byte{ConfigurationValue})
	case RequestGetInterface:
		if req.IsInterfaceRecipient() {
			resp.AcceptWith([]byte{DefaultAlternateSetting})
		}
	}
}

// standardOut services the standard host-to-device requests of USB 2.0
// Table 9-4.
func (d *Device) standardOut(req *SetupPacket, resp *Responder) {
	switch req.Request {
	case RequestSetAddress:
		d.setAddress(req, resp)
	case RequestSetConfiguration:
		d.setConfiguration(req, resp)
	case RequestSetInterface:
		d.setInterface(req, resp)
	case RequestSetFeature:
		d.setFeature(req, resp, true)
	case RequestClearFeature:
		d.setFeature(req, resp, false)
	}
}

// getStatus answers GET_STATUS for all three recipients USB 2.0 9.4.5
// defines.
func (d *Device) getStatus(req *SetupPacket, resp *Responder) {
	var status uint16

	switch {
	case req.IsDeviceRecipient():
		if d.selfPowered {
			status |= 1 << 0
		}
		if d.remoteWakeupEnabled {
			status |= 1 << 1
		}
	case req.IsInterfaceRecipient():
		// Interfaces carry no status bits; report zero.
	case req.IsEndpointRecipient():
		addr := bus.EndpointAddress(req.EndpointAddress())
		if d.bus.IsStalled(addr) {
			status |= 1 << 0
		}
	default:
		return
	}

	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], status)
	resp.AcceptWith(buf[:])
}

// getDescriptor answers GET_DESCRIPTOR by delegating to the device core's
// DescriptorProvider; string descriptors may be answered by a custom
// string callback, which runs synchronously within this call.
func (d *Device) getDescriptor(req *SetupPacket, resp *Responder) {
	switch req.DescriptorType() {
	case descriptor.TypeDevice:
		resp.Accept(func(buf []byte) int { return d.desc.GetDeviceDescriptor(buf) })
	case descriptor.TypeConfiguration:
		resp.Accept(func(buf []byte) int { return d.desc.GetConfigurationDescriptor(buf) })
	case descriptor.TypeString:
		d.desc.GetStringDescriptor(req.Index, req.DescriptorIndex(), resp)
	}
}

// setAddress validates and stages a SET_ADDRESS request. The address is
// not applied to the bus until the status stage of this transaction
// completes; see Device.applyPendingAddress.
func (d *Device) setAddress(req *SetupPacket, resp *Responder) {
	addr := uint8(req.Value)
	if addr == 0 || addr > 127 {
		return
	}
	d.pendingAddress = addr
	resp.AcceptStatus()
}

// setConfiguration handles SET_CONFIGURATION. Only the single advertised
// configuration value and the unconfigure value 0 are accepted.
func (d *Device) setConfiguration(req *SetupPacket, resp *Responder) {
	switch uint8(req.Value) {
	case 0:
		d.state = StateAddressed
	case ConfigurationValue:
		d.state = StateConfigured
	default:
		return
	}
	resp.AcceptStatus()
}

// setInterface handles SET_INTERFACE. Alternate settings are reserved in
// the wire format but not otherwise implemented, so only the default
// alternate setting is ever accepted.
//
// TODO: accept and track per-interface alternate settings once a class
// needs more than one.
func (d *Device) setInterface(req *SetupPacket, resp *Responder) {
	if uint8(req.Value) != DefaultAlternateSetting {
		return
	}
	resp.AcceptStatus()
}

// setFeature implements both SET_FEATURE and CLEAR_FEATURE, which differ
// only in which way they drive the feature bit.
func (d *Device) setFeature(req *SetupPacket, resp *Responder, set bool) {
	switch {
	case req.IsDeviceRecipient() && req.Value == FeatureDeviceRemoteWakeup:
		d.remoteWakeupEnabled = set
		resp.AcceptStatus()
	case req.IsEndpointRecipient() && req.Value == FeatureEndpointHalt:
		addr := bus.EndpointAddress(req.EndpointAddress())
		d.bus.SetStalled(addr, set)
		resp.AcceptStatus()
	}
}
