package msc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbengine/device"
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/device/bus/sim"
	"github.com/ardnew/usbengine/device/class/msc"
	"github.com/ardnew/usbengine/device/descriptor"
)

func newTestMSC(t *testing.T) (*device.Device, *msc.MSC, *sim.Bus) {
	t.Helper()
	b := sim.New(bus.SpeedFull)
	storage := msc.NewMemoryStorage(4096, 512)
	m := msc.New(storage, "ACME", "TestDisk")
	require.NoError(t, m.Attach(b, 64))
	require.NoError(t, b.Freeze())

	provider := descriptor.NewProvider(descriptor.Device{USBVersion: 0x0200}, descriptor.NewConfiguration(), 64)
	dev := device.NewDevice(b, provider)
	return dev, m, b
}

func cbw(tag uint32, lun uint8, dataLen uint32, flags uint8, cb ...byte) []byte {
	buf := make([]byte, msc.CBWSize)
	buf[0], buf[1], buf[2], buf[3] = 0x55, 0x53, 0x42, 0x43
	buf[4], buf[5], buf[6], buf[7] = byte(tag), byte(tag>>8), byte(tag>>16), byte(tag>>24)
	buf[8], buf[9], buf[10], buf[11] = byte(dataLen), byte(dataLen>>8), byte(dataLen>>16), byte(dataLen>>24)
	buf[12] = flags
	buf[13] = lun
	buf[14] = uint8(len(cb))
	copy(buf[15:], cb)
	return buf
}

func TestMSCInquiryReturnsDataThenCSW(t *testing.T) {
	_, m, b := newTestMSC(t)

	cmd := cbw(1, 0, 36, msc.CBWFlagDataIn, msc.SCSIInquiry, 0, 0, 0, 36, 0)
	b.InjectOut(1, cmd)
	m.EndpointOut(bus.Out(1))

	sent := b.Sent(1)
	require.Len(t, sent, 36)
	assert.Equal(t, uint8(msc.DeviceTypeDisk), sent[0])

	m.EndpointInComplete(bus.In(1))
	csw := b.Sent(1)
	require.Len(t, csw, msc.CSWSize)
	assert.Equal(t, uint8(msc.CSWStatusGood), csw[12])
}

func TestMSCWrite10ThenReadBack(t *testing.T) {
	_, m, b := newTestMSC(t)

	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}

	writeCmd := cbw(2, 0, 512, 0, msc.SCSIWrite10, 0, 0, 0, 0, 0, 0, 0, 1, 0)
	b.InjectOut(1, writeCmd)
	m.EndpointOut(bus.Out(1))

	b.InjectOut(1, payload)
	m.EndpointOut(bus.Out(1))

	csw := b.Sent(1)
	require.Len(t, csw, msc.CSWSize)
	assert.Equal(t, uint8(msc.CSWStatusGood), csw[12])
	m.EndpointInComplete(bus.In(1))

	readCmd := cbw(3, 0, 512, msc.CBWFlagDataIn, msc.SCSIRead10, 0, 0, 0, 0, 0, 0, 0, 1, 0)
	b.InjectOut(1, readCmd)
	m.EndpointOut(bus.Out(1))

	data := b.Sent(1)
	require.Len(t, data, 512)
	assert.Equal(t, payload, data)
}

func TestMSCGetMaxLUNViaControlIn(t *testing.T) {
	dev, m, b := newTestMSC(t)
	m.SetMaxLUN(3)
	classes := []device.Class{m}

	var pkt device.SetupPacket
	pkt.RequestType = device.RequestDirectionDeviceToHost | device.RequestTypeClass | device.RequestRecipientInterface
	pkt.Request = msc.RequestGetMaxLUN
	pkt.Length = 1

	var raw [device.SetupPacketSize]byte
	pkt.MarshalTo(raw[:])
	b.InjectSetup(0, raw[:])

	require.True(t, dev.Poll(classes))
	assert.Equal(t, []byte{3}, b.Sent(0))
}
