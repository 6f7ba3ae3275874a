package telemetry

import (
	"time"

	"github.com/LeoCommon/odometer/internal/odometer"
	"github.com/LeoCommon/odometer/pkg/geodesy"
	"github.com/LeoCommon/odometer/pkg/nmea"
)

// Report is the JSON document published per interval. Fields the receiver
// has not decoded yet are left out.
type Report struct {
	Session string     `json:"session"`
	Name    string     `json:"name,omitempty"`
	Time    *time.Time `json:"time,omitempty"`

	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`
	Altitude  *float64 `json:"alt_m,omitempty"`
	SpeedKMPH *float64 `json:"speed_kmph,omitempty"`
	Course    *float64 `json:"course,omitempty"`
	Cardinal  string   `json:"cardinal,omitempty"`

	SatsUsed   *uint8   `json:"sats_used,omitempty"`
	SatsInView *uint8   `json:"sats_in_view,omitempty"`
	HDOP       *float64 `json:"hdop,omitempty"`
	PDOP       *float64 `json:"pdop,omitempty"`
	FixType    string   `json:"fix_type"`
	GoodData   bool     `json:"good_data"`

	Moving   bool              `json:"moving"`
	Unit     string            `json:"unit"`
	Odometer odometer.Counters `json:"odometer"`
}

// State is everything a report is built from
type State struct {
	Fix      nmea.Fix
	Counters odometer.Counters
	Unit     odometer.Unit
	Moving   bool

	// Course over ground from consecutive positions, used when the receiver reports none
	Heading     float64
	HaveHeading bool
}

func ptr[T any](v T) *T {
	return &v
}

func BuildReport(s State) Report {
	f := s.Fix
	r := Report{
		FixType:  f.FixType.String(),
		GoodData: f.GoodData,
		Moving:   s.Moving,
		Unit:     s.Unit.String(),
		Odometer: s.Counters,
	}

	if t, ok := f.UTC(); ok {
		r.Time = &t
	}

	if f.HasPosition() {
		lat, lon := f.FloatPosition()
		r.Latitude, r.Longitude = &lat, &lon
	}

	if f.Altitude != nmea.InvalidAltitude {
		r.Altitude = ptr(f.FloatAltitude())
	}

	if f.Speed != nmea.InvalidSpeed {
		r.SpeedKMPH = ptr(f.SpeedKMPH())
	}

	if f.Course != nmea.InvalidCourse {
		course := f.FloatCourse()
		r.Course = &course
		r.Cardinal = geodesy.Cardinal(course)
	} else if s.HaveHeading {
		r.Cardinal = geodesy.Cardinal(s.Heading)
	}

	if f.SatsUsed != nmea.InvalidSatellites {
		r.SatsUsed = ptr(f.SatsUsed)
	}
	if f.SatsInView != nmea.InvalidSatellites {
		r.SatsInView = ptr(f.SatsInView)
	}

	if f.HDOP != nmea.InvalidHDOP {
		r.HDOP = ptr(float64(f.HDOP) / 100)
	}
	if f.PDOP != nmea.InvalidPDOP {
		r.PDOP = ptr(float64(f.PDOP) / 100)
	}

	return r
}
