package ubx

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFeature(t *testing.T) {
	f, ok := LookupFeature("GSV")
	require.True(t, ok)
	assert.Equal(t, byte(0xF0), f.Class)
	assert.Equal(t, byte(0x03), f.ID)

	f, ok = LookupFeature("vtg")
	require.True(t, ok)
	assert.Equal(t, byte(0x05), f.ID)

	// Only the first three characters are compared
	f, ok = LookupFeature("ZdAx")
	require.True(t, ok)
	assert.Equal(t, byte(0x08), f.ID)

	_, ok = LookupFeature("XYZ")
	assert.False(t, ok)
	_, ok = LookupFeature("GS")
	assert.False(t, ok)

	assert.Len(t, Features, 16)
}

func TestCfgPrtLayout(t *testing.T) {
	p := CfgPrt(PortUART1, 38400)
	require.Len(t, p, 20)

	assert.Equal(t, byte(1), p[0])
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(p[2:]))
	assert.Equal(t, uint32(0x08D0), binary.LittleEndian.Uint32(p[4:]))
	assert.Equal(t, uint32(38400), binary.LittleEndian.Uint32(p[8:]))
	assert.Equal(t, uint16(0x0007), binary.LittleEndian.Uint16(p[12:]))
	assert.Equal(t, uint16(0x0003), binary.LittleEndian.Uint16(p[14:]))
	assert.Equal(t, []byte{0, 0, 0, 0}, p[16:])
}

func TestCfgRateAndNav5(t *testing.T) {
	assert.Equal(t, []byte{0xC8, 0x00, 0x01, 0x00, 0x00, 0x00}, CfgRate(Rate5Hz))

	p := CfgNav5(DynAutomotive)
	require.Len(t, p, 36)
	assert.Equal(t, []byte{0x01, 0x00, 0x04}, p[:3])
	assert.Equal(t, make([]byte, 33), p[3:])
}

func TestParseDynModel(t *testing.T) {
	m, err := ParseDynModel("Automotive")
	assert.NoError(t, err)
	assert.Equal(t, DynAutomotive, m)
	assert.Equal(t, "automotive", m.String())

	_, err = ParseDynModel("rocket")
	assert.Error(t, err)
}

func TestResetAndPowerPayloads(t *testing.T) {
	assert.Equal(t, []byte{0xFF, 0xFF, 0x02, 0x00}, CfgRst(ColdStart))
	assert.Equal(t, []byte{0x00, 0x00, 0x02, 0x00}, CfgRst(HotStart))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, CfgRstHardware())

	save := CfgCfgSave()
	require.Len(t, save, 13)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(save[0:]))
	assert.Equal(t, uint32(0xFFFF), binary.LittleEndian.Uint32(save[4:]))
	assert.Equal(t, byte(0x17), save[12])

	assert.Equal(t, []byte{0xE8, 0x03, 0, 0, 0x02, 0, 0, 0}, RxmPmreq(1000))
}

func TestIsAck(t *testing.T) {
	ack, nak := IsAck(Frame{Class: ClassACK, ID: IDAckNak, Payload: []byte{ClassCFG, IDCfgPrt}}, ClassCFG, IDCfgPrt)
	assert.False(t, ack)
	assert.True(t, nak)

	ack, nak = IsAck(Frame{Class: ClassACK, ID: IDAckAck, Payload: []byte{ClassCFG, IDCfgMsg}}, ClassCFG, IDCfgPrt)
	assert.False(t, ack)
	assert.False(t, nak)
}
