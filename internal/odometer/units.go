package odometer

import (
	"fmt"
	"strings"
)

const (
	MetersPerMile      = 1609.34
	MetersPerKilometer = 1000.0
)

type Counter int

const (
	Engine Counter = iota
	TripA
	TripB

	numCounters
)

var counterNames = [numCounters]string{"engine", "trip_a", "trip_b"}

func (c Counter) String() string {
	if c < 0 || c >= numCounters {
		return fmt.Sprintf("Counter(%d)", int(c))
	}
	return counterNames[c]
}

func (c Counter) valid() bool {
	return c >= 0 && c < numCounters
}

// ParseCounter accepts "engine", "trip_a"/"a" and "trip_b"/"b"
func ParseCounter(s string) (Counter, error) {
	switch strings.ToLower(s) {
	case "engine", "odo":
		return Engine, nil
	case "trip_a", "tripa", "a":
		return TripA, nil
	case "trip_b", "tripb", "b":
		return TripB, nil
	}
	return 0, fmt.Errorf("unknown counter %q", s)
}

// Unit is the display unit, counters are always kept in meters
type Unit int

const (
	Miles Unit = iota
	Kilometers
)

// SupportedOptions lists the options for the config parser
func (u Unit) SupportedOptions() []string {
	return []string{"miles", "km"}
}

func (u Unit) String() string {
	if u == Kilometers {
		return "km"
	}
	return "miles"
}

// Meters returns the length of one unit
func (u Unit) Meters() float64 {
	if u == Kilometers {
		return MetersPerKilometer
	}
	return MetersPerMile
}

func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(s) {
	case "", "miles", "mi":
		return Miles, nil
	case "km", "kilometers", "kilometres":
		return Kilometers, nil
	}
	return 0, fmt.Errorf("unknown distance unit %q, supported: %s", s, strings.Join(Miles.SupportedOptions(), ", "))
}

// Policy selects the quantity the movement hysteresis is applied to
type Policy int

const (
	// PolicyDistance compares the distance between consecutive fixes, in meters
	PolicyDistance Policy = iota
	// PolicySpeed compares the reported ground speed, in knots
	PolicySpeed
)

func (p Policy) SupportedOptions() []string {
	return []string{"distance", "speed"}
}

func (p Policy) String() string {
	if p == PolicySpeed {
		return "speed"
	}
	return "distance"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "distance":
		return PolicyDistance, nil
	case "speed":
		return PolicySpeed, nil
	}
	return 0, fmt.Errorf("unknown movement policy %q, supported: %s", s, strings.Join(PolicyDistance.SupportedOptions(), ", "))
}
