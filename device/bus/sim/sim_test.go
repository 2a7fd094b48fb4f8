package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

func TestAllocRejectsAfterFreeze(t *testing.T) {
	b := New(bus.SpeedFull)
	require.NoError(t, b.Freeze())

	want := bus.In(1)
	_, err := b.Alloc(bus.EndpointConfig{Address: &want})
	assert.Error(t, err)
}

func TestAllocAutoAssignsFreeNumber(t *testing.T) {
	b := New(bus.SpeedFull)
	in := bus.In(0)

	h1, err := b.Alloc(bus.EndpointConfig{Address: &in, Type: bus.TransferBulk})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), h1.Address.Number())

	h2, err := b.Alloc(bus.EndpointConfig{Address: &in, Type: bus.TransferBulk})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), h2.Address.Number())
}

func TestInjectSetupReportedOnPoll(t *testing.T) {
	b := New(bus.SpeedFull)
	packet := []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}
	b.InjectSetup(0, packet)

	result, err := b.Poll()
	require.NoError(t, err)
	assert.Equal(t, bus.PollData, result.Kind)
	assert.Equal(t, uint16(1), result.EPSetup)

	var buf [8]byte
	n, err := b.Read(bus.Out(0), buf[:])
	require.NoError(t, err)
	assert.Equal(t, packet, buf[:n])
}

func TestPollClearsStateBetweenCalls(t *testing.T) {
	b := New(bus.SpeedFull)
	b.SignalSuspend()

	result, err := b.Poll()
	require.NoError(t, err)
	assert.Equal(t, bus.PollSuspend, result.Kind)

	result, err = b.Poll()
	require.NoError(t, err)
	assert.Equal(t, bus.PollNone, result.Kind)
}

func TestWriteThenSentRoundTrips(t *testing.T) {
	b := New(bus.SpeedFull)
	n, err := b.Write(bus.In(1), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), b.Sent(1))
	assert.Nil(t, b.Sent(1))
}

func TestReadWouldBlockOnEmptyFIFO(t *testing.T) {
	b := New(bus.SpeedFull)
	var buf [8]byte
	_, err := b.Read(bus.Out(3), buf[:])
	assert.ErrorIs(t, err, pkg.ErrWouldBlock)
}

func TestResetClearsAddressAndStalls(t *testing.T) {
	b := New(bus.SpeedFull)
	b.SetDeviceAddress(5)
	b.SetStalled(bus.In(1), true)

	b.Reset()

	assert.Equal(t, uint8(0), b.Address())
	assert.False(t, b.IsStalled(bus.In(1)))
}
