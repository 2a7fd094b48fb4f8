package device

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/device/bus/sim"
	"github.com/ardnew/usbengine/device/descriptor"
)

func newTestDevice(t *testing.T) (*Device, *sim.Bus) {
	t.Helper()
	provider := descriptor.NewProvider(descriptor.Device{
		USBVersion: 0x0200,
		VendorID:   0xcafe,
		ProductID:  0xbabe,
	}, descriptor.NewConfiguration(), 64)

	b := sim.New(bus.SpeedFull)
	require.NoError(t, b.Freeze())
	return NewDevice(b, provider), b
}

func injectSetup(b *sim.Bus, pkt SetupPacket) {
	var raw [SetupPacketSize]byte
	pkt.MarshalTo(raw[:])
	b.InjectSetup(0, raw[:])
}

func TestPollResetEntersDefaultState(t *testing.T) {
	dev, b := newTestDevice(t)
	b.ForceReset()

	assert.False(t, dev.Poll(nil))
	assert.Equal(t, StateDefault, dev.State())
}

func TestGetDeviceDescriptor(t *testing.T) {
	dev, b := newTestDevice(t)

	var pkt SetupPacket
	GetDescriptorSetup(&pkt, descriptor.TypeDevice, 0, descriptor.DeviceSize)
	injectSetup(b, pkt)

	assert.True(t, dev.Poll(nil))

	resp := b.Sent(0)
	require.Len(t, resp, descriptor.DeviceSize)
	assert.Equal(t, uint8(descriptor.DeviceSize), resp[0])
	assert.Equal(t, uint8(descriptor.TypeDevice), resp[1])
	assert.Equal(t, uint16(0xcafe), binary.LittleEndian.Uint16(resp[8:10]))
}

func TestSetAddressDeferredUntilStatusStageCompletes(t *testing.T) {
	dev, b := newTestDevice(t)

	var pkt SetupPacket
	GetSetAddressSetup(&pkt, 5)
	injectSetup(b, pkt)

	require.True(t, dev.Poll(nil))
	assert.Equal(t, uint8(0), b.Address(), "address must not apply before the status stage completes")
	assert.Equal(t, StateDefault, dev.State())

	b.SignalInComplete(0)
	require.True(t, dev.Poll(nil))

	assert.Equal(t, uint8(5), b.Address())
	assert.Equal(t, StateAddressed, dev.State())
}

func TestSetAddressRejectsOutOfRange(t *testing.T) {
	dev, b := newTestDevice(t)

	var pkt SetupPacket
	GetSetAddressSetup(&pkt, 200)
	injectSetup(b, pkt)

	require.True(t, dev.Poll(nil))
	assert.True(t, b.IsStalled(bus.Out(0)))
	assert.True(t, b.IsStalled(bus.In(0)))
	assert.Equal(t, StateDefault, dev.State())
}

func TestSetConfigurationTransitionsToConfigured(t *testing.T) {
	dev, b := newTestDevice(t)

	var pkt SetupPacket
	GetSetConfigurationSetup(&pkt, ConfigurationValue)
	injectSetup(b, pkt)

	require.True(t, dev.Poll(nil))
	assert.Equal(t, StateConfigured, dev.State())
}

func TestGetConfigurationAlwaysReportsTheOneConfiguration(t *testing.T) {
	dev, b := newTestDevice(t)

	var pkt SetupPacket
	GetConfigurationSetup(&pkt)
	injectSetup(b, pkt)

	require.True(t, dev.Poll(nil))
	assert.Equal(t, []byte{ConfigurationValue}, b.Sent(0))
}

func TestGetStatusReportsStalledEndpoint(t *testing.T) {
	dev, b := newTestDevice(t)
	b.SetStalled(bus.In(1), true)

	var pkt SetupPacket
	GetStatusSetup(&pkt, RequestRecipientEndpoint, uint16(bus.In(1).Byte()))
	injectSetup(b, pkt)

	require.True(t, dev.Poll(nil))
	resp := b.Sent(0)
	require.Len(t, resp, 2)
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(resp))
}

func TestUnknownVendorRequestStalls(t *testing.T) {
	dev, b := newTestDevice(t)

	var pkt SetupPacket
	pkt.RequestType = RequestDirectionDeviceToHost | RequestTypeVendor | RequestRecipientDevice
	pkt.Request = 0x55
	pkt.Length = 1
	injectSetup(b, pkt)

	require.True(t, dev.Poll(nil))
	assert.True(t, b.IsStalled(bus.Out(0)))
	assert.True(t, b.IsStalled(bus.In(0)))
}

func TestSuspendThenResetReturnsToDefault(t *testing.T) {
	dev, b := newTestDevice(t)

	b.SignalSuspend()
	require.False(t, dev.Poll(nil))
	assert.Equal(t, StateSuspend, dev.State())

	b.ForceReset()
	require.False(t, dev.Poll(nil))
	assert.Equal(t, StateDefault, dev.State())
}

func TestRemoteWakeupFeatureToggle(t *testing.T) {
	dev, b := newTestDevice(t)

	var set SetupPacket
	GetSetFeatureSetup(&set, RequestRecipientDevice, FeatureDeviceRemoteWakeup, 0)
	injectSetup(b, set)
	require.True(t, dev.Poll(nil))
	assert.True(t, dev.IsRemoteWakeupEnabled())

	var clear SetupPacket
	GetClearFeatureSetup(&clear, RequestRecipientDevice, FeatureDeviceRemoteWakeup, 0)
	injectSetup(b, clear)
	require.True(t, dev.Poll(nil))
	assert.False(t, dev.IsRemoteWakeupEnabled())
}
