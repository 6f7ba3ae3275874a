// Package display renders the text of the four digit vehicle display.
// The panel only formats, the caller pulls the text and pushes it to the hardware.
package display

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/LeoCommon/odometer/internal/odometer"
	"github.com/LeoCommon/odometer/pkg/nmea"
)

// Error codes shown as "E xx"
const (
	ErrDisk     = 0x10
	ErrReceiver = 0x20
)

const (
	maxSpeed = 999.9
	noData   = "----"
)

type Mode int

const (
	ModeSpeed Mode = iota
	ModeOdomLo
	ModeOdomHi
	ModeTripA
	ModeTripB
	ModeSats
	ModeDOP

	numModes
)

var modeNames = [numModes]string{"speed", "odom_lo", "odom_hi", "trip_a", "trip_b", "sats", "dop"}

func (m Mode) String() string {
	if m < 0 || m >= numModes {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(name, s) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown display mode %q", s)
}

type Panel struct {
	mu   sync.Mutex
	mode Mode
	unit odometer.Unit
	err  int
}

func NewPanel(unit odometer.Unit) *Panel {
	return &Panel{unit: unit}
}

func (p *Panel) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *Panel) SetMode(m Mode) {
	if m < 0 || m >= numModes {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
}

// Next advances to the following mode, wrapping around
func (p *Panel) Next() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mode = (p.mode + 1) % numModes
	return p.mode
}

// ShowError latches an error code, it replaces every mode until cleared with code 0
func (p *Panel) ShowError(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = code
}

func (p *Panel) Render(fix nmea.Fix, c odometer.Counters) string {
	p.mu.Lock()
	mode, code := p.mode, p.err
	p.mu.Unlock()

	if code != 0 {
		return fmt.Sprintf("E %2x", code)
	}

	switch mode {
	case ModeSpeed:
		return p.speed(fix)
	case ModeOdomLo:
		whole, _ := math.Modf(c.Engine)
		return fmt.Sprintf("%4.0f", float64(int64(whole)%10000))
	case ModeOdomHi:
		whole, _ := math.Modf(c.Engine)
		return fmt.Sprintf("%4.0f", float64(int64(whole*0.0001)%10000))
	case ModeTripA:
		return trip(c.TripA)
	case ModeTripB:
		return trip(c.TripB)
	case ModeSats:
		if fix.SatsUsed == nmea.InvalidSatellites {
			return noData
		}
		return fmt.Sprintf("%4d", fix.SatsUsed)
	case ModeDOP:
		if fix.HDOP == nmea.InvalidHDOP {
			return noData
		}
		return fmt.Sprintf("%4.1f", math.Min(float64(fix.HDOP)/100, 99.9))
	}

	return noData
}

func (p *Panel) speed(fix nmea.Fix) string {
	if !fix.GoodData || fix.Speed == nmea.InvalidSpeed {
		return noData
	}

	speed := fix.SpeedMPH()
	if p.unit == odometer.Kilometers {
		speed = fix.SpeedKMPH()
	}

	return fmt.Sprintf("%4d", int(math.Floor(math.Min(speed, maxSpeed))))
}

// trip shows the last three whole digits and the tenth, 123456.78 reads 456.8
func trip(v float64) string {
	whole, fract := math.Modf(v)
	return fmt.Sprintf("%3.1f", float64(int64(whole)%1000)+fract)
}
