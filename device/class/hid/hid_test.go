package hid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbengine/device"
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/device/bus/sim"
	"github.com/ardnew/usbengine/device/class/hid"
	"github.com/ardnew/usbengine/device/descriptor"
	"github.com/ardnew/usbengine/pkg"
)

func newTestKeyboard(t *testing.T) (*device.Device, *hid.HID, *sim.Bus) {
	t.Helper()
	b := sim.New(bus.SpeedFull)
	kb := hid.New(0, hid.KeyboardReportDescriptor)
	require.NoError(t, kb.Attach(b, 8, 0, 10))
	require.NoError(t, b.Freeze())

	provider := descriptor.NewProvider(descriptor.Device{USBVersion: 0x0200}, descriptor.NewConfiguration(), 64)
	dev := device.NewDevice(b, provider)
	return dev, kb, b
}

func TestHIDGetReportDescriptorViaControlIn(t *testing.T) {
	dev, kb, b := newTestKeyboard(t)
	classes := []device.Class{kb}

	var pkt device.SetupPacket
	device.GetDescriptorSetup(&pkt, hid.DescriptorTypeReport, 0, uint16(len(hid.KeyboardReportDescriptor)))
	pkt.RequestType = device.RequestDirectionDeviceToHost | device.RequestTypeStandard | device.RequestRecipientInterface

	var raw [device.SetupPacketSize]byte
	pkt.MarshalTo(raw[:])
	b.InjectSetup(0, raw[:])

	require.True(t, dev.Poll(classes))
	sent := b.Sent(0)

	// The descriptor is longer than one 64-byte EP0 packet; acknowledging
	// the first packet makes the control pipe send the rest.
	b.SignalInComplete(0)
	require.True(t, dev.Poll(classes))
	sent = append(sent, b.Sent(0)...)

	assert.Equal(t, hid.KeyboardReportDescriptor, sent)
}

func TestHIDSendReportThenBlocksUntilAcked(t *testing.T) {
	_, kb, b := newTestKeyboard(t)

	report := &hid.KeyboardReport{Modifiers: hid.ModLeftShift}
	report.SetKey(hid.KeyA)
	require.NoError(t, kb.SendKeyboardReport(report))

	err := kb.SendKeyboardReport(report)
	assert.ErrorIs(t, err, pkg.ErrWouldBlock)

	sent := b.Sent(1)
	require.Len(t, sent, hid.KeyboardReportSize)
	assert.Equal(t, uint8(hid.ModLeftShift), sent[0])
	assert.Equal(t, uint8(hid.KeyA), sent[2])

	kb.EndpointInComplete(bus.In(1))
	assert.NoError(t, kb.SendKeyboardReport(report))
}
