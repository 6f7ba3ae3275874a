package nmea

import (
	"fmt"
	"time"
)

// Sentinels for fields that were never decoded. Invalid is never represented by absence.
const (
	InvalidAngle      int32  = 999999999
	InvalidAltitude   int32  = 999999999
	InvalidTime       uint32 = 0xFFFFFFFF
	InvalidDate       uint32 = 0
	InvalidSpeed      uint32 = 999999999
	InvalidCourse     uint32 = 999999999
	InvalidHDOP       uint32 = 0xFFFFFFFF
	InvalidPDOP       uint16 = 0xFFFF
	InvalidSatellites uint8  = 0xFF

	// InvalidAge is reported when no fix was ever committed
	InvalidAge time.Duration = -1
)

// Float renditions of the sentinels
const (
	InvalidFloatAngle    = 1000.0
	InvalidFloatAltitude = 1000000.0
	InvalidFloatSpeed    = -1.0
)

const (
	MPHPerKnot    = 1.15077945
	MPSPerKnot    = 0.51444444
	KMPHPerKnot   = 1.852
	MilesPerMeter = 0.00062137112
	KMPerMeter    = 0.001
)

type FixType uint8

const (
	FixNone        FixType = 1
	Fix2D          FixType = 2
	Fix3D          FixType = 3
	InvalidFixType FixType = 0xFF
)

func (f FixType) String() string {
	switch f {
	case FixNone:
		return "none"
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	case InvalidFixType:
		return "invalid"
	}
	return fmt.Sprintf("unknown(%d)", uint8(f))
}

// Fix is one committed, checksum validated snapshot of the decoded fields.
// Latitude/Longitude are millionths of a degree, Speed is hundredths of a knot,
// Course is hundredths of a degree, Altitude is centimeters, DOPs are hundredths.
type Fix struct {
	Time       uint32 // hhmmsscc
	Date       uint32 // ddmmyy
	Latitude   int32
	Longitude  int32
	Speed      uint32
	Course     uint32
	Altitude   int32
	HDOP       uint32
	PDOP       uint16
	SatsUsed   uint8
	SatsInView uint8
	FixType    FixType
	GoodData   bool

	// Latched when time/date resp. position last committed, zero if never
	TimeFixAt     time.Time
	PositionFixAt time.Time
}

// NewFix returns a fix with every field set to its invalid sentinel
func NewFix() Fix {
	return Fix{
		Time:       InvalidTime,
		Date:       InvalidDate,
		Latitude:   InvalidAngle,
		Longitude:  InvalidAngle,
		Speed:      InvalidSpeed,
		Course:     InvalidCourse,
		Altitude:   InvalidAltitude,
		HDOP:       InvalidHDOP,
		PDOP:       InvalidPDOP,
		SatsUsed:   InvalidSatellites,
		SatsInView: InvalidSatellites,
		FixType:    InvalidFixType,
	}
}

// HasPosition reports whether both coordinates were ever decoded
func (f Fix) HasPosition() bool {
	return f.Latitude != InvalidAngle && f.Longitude != InvalidAngle
}

func age(at time.Time, now time.Time) time.Duration {
	if at.IsZero() {
		return InvalidAge
	}
	return now.Sub(at)
}

// PositionAge returns how old the position is relative to now
func (f Fix) PositionAge(now time.Time) time.Duration {
	return age(f.PositionFixAt, now)
}

// TimeAge returns how old the time/date is relative to now
func (f Fix) TimeAge(now time.Time) time.Duration {
	return age(f.TimeFixAt, now)
}

func (f Fix) FloatPosition() (lat float64, lon float64) {
	lat, lon = InvalidFloatAngle, InvalidFloatAngle
	if f.Latitude != InvalidAngle {
		lat = float64(f.Latitude) / 1000000.0
	}
	if f.Longitude != InvalidAngle {
		lon = float64(f.Longitude) / 1000000.0
	}
	return lat, lon
}

// FloatAltitude in meters
func (f Fix) FloatAltitude() float64 {
	if f.Altitude == InvalidAltitude {
		return InvalidFloatAltitude
	}
	return float64(f.Altitude) / 100.0
}

// FloatCourse in degrees
func (f Fix) FloatCourse() float64 {
	if f.Course == InvalidCourse {
		return InvalidFloatAngle
	}
	return float64(f.Course) / 100.0
}

func (f Fix) SpeedKnots() float64 {
	if f.Speed == InvalidSpeed {
		return InvalidFloatSpeed
	}
	return float64(f.Speed) / 100.0
}

func (f Fix) SpeedMPH() float64 {
	return f.convertSpeed(MPHPerKnot)
}

func (f Fix) SpeedMPS() float64 {
	return f.convertSpeed(MPSPerKnot)
}

func (f Fix) SpeedKMPH() float64 {
	return f.convertSpeed(KMPHPerKnot)
}

func (f Fix) convertSpeed(perKnot float64) float64 {
	if f.Speed == InvalidSpeed {
		return InvalidFloatSpeed
	}
	return perKnot * float64(f.Speed) / 100.0
}

// CrackedDateTime holds the decomposed ddmmyy / hhmmsscc pair
type CrackedDateTime struct {
	Year       int
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Hundredths uint8
}

// CrackDateTime splits date and time into their components, two digit years above 80 are 19xx
func (f Fix) CrackDateTime() CrackedDateTime {
	var c CrackedDateTime

	ddmm := f.Date / 100
	c.Year = int(f.Date % 100)
	if c.Year > 80 {
		c.Year += 1900
	} else {
		c.Year += 2000
	}
	c.Month = uint8(ddmm % 100)
	c.Day = uint8(ddmm / 100)

	hhmmss := f.Time / 100
	c.Hundredths = uint8(f.Time % 100)
	c.Second = uint8(hhmmss % 100)
	c.Minute = uint8((hhmmss / 100) % 100)
	c.Hour = uint8(hhmmss / 10000)

	return c
}

// UTC combines date and time into a timestamp, false if either was never decoded
func (f Fix) UTC() (time.Time, bool) {
	if f.Date == InvalidDate || f.Time == InvalidTime {
		return time.Time{}, false
	}

	c := f.CrackDateTime()
	return time.Date(c.Year, time.Month(c.Month), int(c.Day),
		int(c.Hour), int(c.Minute), int(c.Second), int(c.Hundredths)*int(10*time.Millisecond), time.UTC), true
}
