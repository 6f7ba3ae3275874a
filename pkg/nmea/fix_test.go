package nmea

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloatAccessorsOnInvalidFix(t *testing.T) {
	f := NewFix()

	lat, lon := f.FloatPosition()
	assert.Equal(t, InvalidFloatAngle, lat)
	assert.Equal(t, InvalidFloatAngle, lon)
	assert.Equal(t, InvalidFloatAltitude, f.FloatAltitude())
	assert.Equal(t, InvalidFloatAngle, f.FloatCourse())
	assert.Equal(t, InvalidFloatSpeed, f.SpeedKnots())
	assert.Equal(t, InvalidFloatSpeed, f.SpeedMPH())
	assert.Equal(t, InvalidFloatSpeed, f.SpeedKMPH())

	_, ok := f.UTC()
	assert.False(t, ok)
	assert.Equal(t, InvalidAge, f.PositionAge(time.Now()))
}

func TestSpeedConversions(t *testing.T) {
	f := NewFix()
	f.Speed = 2240

	assert.InDelta(t, 22.4, f.SpeedKnots(), 1e-9)
	assert.InDelta(t, 22.4*1.15077945, f.SpeedMPH(), 1e-9)
	assert.InDelta(t, 22.4*0.51444444, f.SpeedMPS(), 1e-9)
	assert.InDelta(t, 22.4*1.852, f.SpeedKMPH(), 1e-9)
}

func TestCrackDateTime(t *testing.T) {
	f := NewFix()
	f.Date = 230394
	f.Time = 12351945

	c := f.CrackDateTime()
	assert.Equal(t, CrackedDateTime{Year: 1994, Month: 3, Day: 23, Hour: 12, Minute: 35, Second: 19, Hundredths: 45}, c)

	utc, ok := f.UTC()
	assert.True(t, ok)
	assert.Equal(t, time.Date(1994, time.March, 23, 12, 35, 19, 450*int(time.Millisecond), time.UTC), utc)

	// Years up to 80 belong to this century
	f.Date = 10180
	assert.Equal(t, 2080, f.CrackDateTime().Year)
	f.Date = 10181
	assert.Equal(t, 1981, f.CrackDateTime().Year)
}

func TestFixTypeString(t *testing.T) {
	assert.Equal(t, "3d", Fix3D.String())
	assert.Equal(t, "invalid", InvalidFixType.String())
	assert.Equal(t, "unknown(0)", FixType(0).String())
}
