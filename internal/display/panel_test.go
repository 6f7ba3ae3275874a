package display

import (
	"testing"

	"github.com/LeoCommon/odometer/internal/odometer"
	"github.com/LeoCommon/odometer/pkg/nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodFix(speed uint32) nmea.Fix {
	f := nmea.NewFix()
	f.GoodData = true
	f.Speed = speed
	return f
}

func render(p *Panel, m Mode, fix nmea.Fix, c odometer.Counters) string {
	p.SetMode(m)
	return p.Render(fix, c)
}

func TestSpeed(t *testing.T) {
	miles := NewPanel(odometer.Miles)
	km := NewPanel(odometer.Kilometers)

	// 22.4 knots
	assert.Equal(t, "  25", render(miles, ModeSpeed, goodFix(2240), odometer.Counters{}))
	assert.Equal(t, "  41", render(km, ModeSpeed, goodFix(2240), odometer.Counters{}))

	assert.Equal(t, " 999", render(miles, ModeSpeed, goodFix(100000), odometer.Counters{}))
	assert.Equal(t, "   0", render(miles, ModeSpeed, goodFix(0), odometer.Counters{}))

	assert.Equal(t, "----", render(miles, ModeSpeed, goodFix(nmea.InvalidSpeed), odometer.Counters{}))

	noSignal := goodFix(2240)
	noSignal.GoodData = false
	assert.Equal(t, "----", render(miles, ModeSpeed, noSignal, odometer.Counters{}))
}

func TestCounters(t *testing.T) {
	p := NewPanel(odometer.Miles)
	c := odometer.Counters{Engine: 123456.78, TripA: 123456.78, TripB: 0}
	fix := nmea.NewFix()

	assert.Equal(t, "3456", render(p, ModeOdomLo, fix, c))
	assert.Equal(t, "  12", render(p, ModeOdomHi, fix, c))
	assert.Equal(t, "456.8", render(p, ModeTripA, fix, c))
	assert.Equal(t, "0.0", render(p, ModeTripB, fix, c))

	c.Engine = 42
	assert.Equal(t, "  42", render(p, ModeOdomLo, fix, c))
	assert.Equal(t, "   0", render(p, ModeOdomHi, fix, c))
}

func TestQuality(t *testing.T) {
	p := NewPanel(odometer.Miles)
	fix := nmea.NewFix()

	assert.Equal(t, "----", render(p, ModeSats, fix, odometer.Counters{}))
	assert.Equal(t, "----", render(p, ModeDOP, fix, odometer.Counters{}))

	fix.SatsUsed = 7
	fix.HDOP = 130
	assert.Equal(t, "   7", render(p, ModeSats, fix, odometer.Counters{}))
	assert.Equal(t, " 1.3", render(p, ModeDOP, fix, odometer.Counters{}))

	fix.HDOP = 25000
	assert.Equal(t, "99.9", render(p, ModeDOP, fix, odometer.Counters{}))
}

func TestError(t *testing.T) {
	p := NewPanel(odometer.Miles)
	p.ShowError(ErrDisk)
	assert.Equal(t, "E 10", p.Render(goodFix(2240), odometer.Counters{}))

	p.ShowError(0)
	assert.Equal(t, "  25", p.Render(goodFix(2240), odometer.Counters{}))
}

func TestModes(t *testing.T) {
	p := NewPanel(odometer.Miles)
	assert.Equal(t, ModeSpeed, p.Mode())

	p.SetMode(ModeDOP)
	assert.Equal(t, ModeSpeed, p.Next())
	assert.Equal(t, ModeOdomLo, p.Next())

	p.SetMode(Mode(42))
	assert.Equal(t, ModeOdomLo, p.Mode())

	m, err := ParseMode("TRIP_A")
	require.NoError(t, err)
	assert.Equal(t, ModeTripA, m)
	assert.Equal(t, "trip_a", m.String())

	_, err = ParseMode("clock")
	assert.Error(t, err)
}
