package usb

import (
	"testing"

	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestFindSupportedDeviceTuple(t *testing.T) {
	tuple, ok := FindSupportedDeviceTuple(0x1546, 0x01a8)
	require.True(t, ok)
	assert.Equal(t, UBlox8, tuple.DeviceType)
	assert.Equal(t, "u-blox 8", tuple.Name)

	_, ok = FindSupportedDeviceTuple(0x1d50, 0x6089)
	assert.False(t, ok)
}

func TestParseProduct(t *testing.T) {
	vid, pid, err := ParseProduct("1546/1a8/100")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1546), vid)
	assert.Equal(t, uint16(0x01a8), pid)

	for _, bad := range []string{"", "1546", "zz/1a8/1", "1546/xyz"} {
		_, _, err := ParseProduct(bad)
		assert.Error(t, err, bad)
	}
}

func TestHotplug(t *testing.T) {
	log.Init(true)
	m := NewUSBDeviceManager(false)

	m.HotplugReceived(0x1546, 0x01a7, true)
	assert.True(t, m.Attached(UBlox7))

	ev := <-m.Events()
	assert.True(t, ev.Added)
	assert.Equal(t, UBlox7, ev.DeviceType)

	// Unsupported devices are ignored
	m.HotplugReceived(0x1234, 0x5678, true)
	assert.Empty(t, m.Events())

	m.HotplugReceived(0x1546, 0x01a7, false)
	assert.False(t, m.Attached(UBlox7))
	assert.False(t, (<-m.Events()).Added)

	// Without a reader events are dropped, not blocking
	for i := 0; i < 20; i++ {
		m.HotplugReceived(0x1546, 0x01a9, i%2 == 0)
	}

	m.Shutdown()
}

func TestResetUnattached(t *testing.T) {
	m := NewUSBDeviceManager(false)
	assert.ErrorIs(t, m.ResetDevice(UBlox9), &NotFoundError{})
	assert.Error(t, m.ResetDevice(DeviceType(99)))
}

func TestMatchPorts(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "1546", PID: "01A8"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
		{Name: "/dev/ttyACM2", IsUSB: true, VID: "bogus", PID: "01A8"},
	}

	name, tuple, ok := matchPorts(ports)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyACM1", name)
	assert.Equal(t, gousb.ID(0x01a8), tuple.ProductID)

	name, tuple, ok = matchPorts(ports[:2])
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB0", name)
	assert.Equal(t, BridgeCP210x, tuple.DeviceType)

	_, _, ok = matchPorts(ports[:1])
	assert.False(t, ok)
}
