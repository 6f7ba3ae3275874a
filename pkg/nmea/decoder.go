// Package nmea is a streaming, allocation free decoder for the GPRMC, GPGGA,
// GPGSV and GPGSA sentences. Fields are staged while a sentence is being
// received and committed as one group once its checksum matches.
package nmea

import (
	"time"
)

const (
	// 14 usable characters plus the terminator slot, longer terms are truncated
	termSize       = 15
	sentenceTagLen = 5
)

type sentenceType uint8

const (
	sentenceOther sentenceType = iota
	sentenceRMC
	sentenceGGA
	sentenceGSV
	sentenceGSA
)

func classify(term []byte) sentenceType {
	if len(term) < sentenceTagLen {
		return sentenceOther
	}

	switch string(term[:sentenceTagLen]) {
	case "GPRMC":
		return sentenceRMC
	case "GPGGA":
		return sentenceGGA
	case "GPGSV":
		return sentenceGSV
	case "GPGSA":
		return sentenceGSA
	}
	return sentenceOther
}

// Stats counts what went through the decoder since it was created
type Stats struct {
	Characters      uint64
	GoodSentences   uint32
	FailedChecksums uint32
}

type Option func(*Decoder)

// WithClock replaces time.Now as the source for fix timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// Decoder must only be fed from a single goroutine, it does no locking.
type Decoder struct {
	now func() time.Time

	fix      Fix
	staged   Fix
	goodData bool

	term         [termSize]byte
	termOffset   int
	termNumber   int
	parity       byte
	checksumTerm bool
	sentence     sentenceType

	newTimeFix     time.Time
	newPositionFix time.Time

	stats Stats
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		now: time.Now,
		fix: NewFix(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Feed pumps one character through the decoder. It returns true exactly when
// a recognized sentence passed its checksum and its fields were committed.
func (d *Decoder) Feed(c byte) bool {
	d.stats.Characters++

	switch c {
	case ',':
		d.parity ^= c
		fallthrough
	case '\r', '\n', '*':
		committed := d.termComplete(d.term[:d.termOffset])
		d.termNumber++
		d.termOffset = 0
		d.checksumTerm = c == '*'
		return committed

	case '$':
		d.discardStaged()
		d.termNumber = 0
		d.termOffset = 0
		d.parity = 0
		d.sentence = sentenceOther
		d.checksumTerm = false
		// The first sentence after the UTC edge is usually RMC, latch here to keep the skew small
		d.newTimeFix = d.now()
		return false
	}

	if d.termOffset < termSize-1 {
		d.term[d.termOffset] = c
		d.termOffset++
	}

	if !d.checksumTerm {
		d.parity ^= c
	}

	return false
}

// MidTerm reports whether characters of an unfinished term are buffered
func (d *Decoder) MidTerm() bool {
	return d.termOffset != 0
}

func (d *Decoder) termComplete(term []byte) bool {
	if d.checksumTerm {
		sum, ok := parseChecksum(term)
		if !ok || sum != d.parity {
			d.stats.FailedChecksums++
			d.discardStaged()
			return false
		}

		d.stats.GoodSentences++
		return d.commit()
	}

	// The first term determines the sentence type
	if d.termNumber == 0 {
		d.sentence = classify(term)
		return false
	}

	if len(term) == 0 || d.sentence == sentenceOther {
		return false
	}

	d.stage(term)
	return false
}

func (d *Decoder) commit() bool {
	switch d.sentence {
	case sentenceRMC:
		d.fix.Time = d.staged.Time
		d.fix.Date = d.staged.Date
		d.fix.TimeFixAt = d.newTimeFix
		if d.goodData {
			d.fix.PositionFixAt = d.newPositionFix
		}
		d.fix.Latitude = d.staged.Latitude
		d.fix.Longitude = d.staged.Longitude
		d.fix.Speed = d.staged.Speed
		d.fix.Course = d.staged.Course
		d.fix.GoodData = d.goodData

	case sentenceGGA:
		if d.goodData {
			d.fix.PositionFixAt = d.newPositionFix
		}
		d.fix.Altitude = d.staged.Altitude
		d.staged.Altitude = 0
		d.fix.Time = d.staged.Time
		d.fix.Latitude = d.staged.Latitude
		d.fix.Longitude = d.staged.Longitude
		d.fix.HDOP = d.staged.HDOP
		d.staged.HDOP = 0
		d.fix.SatsUsed = d.staged.SatsUsed
		d.staged.SatsUsed = 0
		d.fix.GoodData = d.goodData

	case sentenceGSV:
		d.fix.SatsInView = d.staged.SatsInView
		d.staged.SatsInView = 0

	case sentenceGSA:
		d.fix.FixType = d.staged.FixType
		d.staged.FixType = 0
		d.fix.PDOP = d.staged.PDOP
		d.staged.PDOP = 0

	default:
		return false
	}

	return true
}

// discardStaged drops whatever the current sentence staged. Coordinates, time and
// validity fall back to the committed values, status fields to zero.
func (d *Decoder) discardStaged() {
	d.staged = d.fix
	d.staged.Altitude = 0
	d.staged.HDOP = 0
	d.staged.PDOP = 0
	d.staged.SatsUsed = 0
	d.staged.SatsInView = 0
	d.staged.FixType = 0
	d.goodData = d.fix.GoodData
	d.newPositionFix = d.fix.PositionFixAt
}

func (d *Decoder) stage(term []byte) {
	switch d.sentence {
	case sentenceRMC:
		switch d.termNumber {
		case 1:
			d.staged.Time = uint32(parseDecimal(term))
		case 2:
			d.goodData = term[0] == 'A'
		case 3:
			d.stageLatitude(term)
		case 4:
			d.stageNorthSouth(term)
		case 5:
			d.staged.Longitude = parseDegrees(term)
		case 6:
			d.stageEastWest(term)
		case 7:
			d.staged.Speed = uint32(parseDecimal(term))
		case 8:
			d.staged.Course = uint32(parseDecimal(term))
		case 9:
			d.staged.Date = uint32(atoi(term))
		}

	case sentenceGGA:
		switch d.termNumber {
		// Term 1 carries the time too, but it is already skewed by the time GGA arrives
		case 2:
			d.stageLatitude(term)
		case 3:
			d.stageNorthSouth(term)
		case 4:
			d.staged.Longitude = parseDegrees(term)
		case 5:
			d.stageEastWest(term)
		case 6:
			d.goodData = term[0] > '0'
		case 7:
			d.staged.SatsUsed = uint8(atoi(term))
		case 8:
			d.staged.HDOP = uint32(parseDecimal(term))
		case 9:
			d.staged.Altitude = parseDecimal(term)
		}

	case sentenceGSV:
		// Repeated in every GSV sentence of a cycle, the last one wins
		if d.termNumber == 3 {
			d.staged.SatsInView = uint8(atoi(term))
		}

	case sentenceGSA:
		switch d.termNumber {
		case 2:
			d.staged.FixType = FixType(atoi(term))
		case 15:
			d.staged.PDOP = uint16(parseDecimal(term))
		}
	}
}

func (d *Decoder) stageLatitude(term []byte) {
	d.staged.Latitude = parseDegrees(term)
	d.newPositionFix = d.now()
}

func (d *Decoder) stageNorthSouth(term []byte) {
	if term[0] == 'S' {
		d.staged.Latitude = -d.staged.Latitude
	}
}

func (d *Decoder) stageEastWest(term []byte) {
	if term[0] == 'W' {
		d.staged.Longitude = -d.staged.Longitude
	}
}

// Snapshot returns the committed fields without draining anything
func (d *Decoder) Snapshot() Fix {
	return d.fix
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// Position returns the coordinates in millionths of a degree and the age of the last position fix
func (d *Decoder) Position() (lat int32, lon int32, fixAge time.Duration) {
	return d.fix.Latitude, d.fix.Longitude, d.fix.PositionAge(d.now())
}

// DateTime returns ddmmyy, hhmmsscc and the age of the last time fix
func (d *Decoder) DateTime() (date uint32, tod uint32, fixAge time.Duration) {
	return d.fix.Date, d.fix.Time, d.fix.TimeAge(d.now())
}

func (d *Decoder) Speed() uint32 {
	return d.fix.Speed
}

func (d *Decoder) Course() uint32 {
	return d.fix.Course
}

func (d *Decoder) GoodData() bool {
	return d.fix.GoodData
}

// The accessors below drain: the stored value is reset to zero once read, so
// a zero on the next read means nothing new was committed in between.

func (d *Decoder) Altitude() int32 {
	v := d.fix.Altitude
	d.fix.Altitude = 0
	return v
}

func (d *Decoder) HDOP() uint32 {
	v := d.fix.HDOP
	d.fix.HDOP = 0
	return v
}

func (d *Decoder) PDOP() uint16 {
	v := d.fix.PDOP
	d.fix.PDOP = 0
	return v
}

func (d *Decoder) SatsUsed() uint8 {
	v := d.fix.SatsUsed
	d.fix.SatsUsed = 0
	return v
}

func (d *Decoder) SatsInView() uint8 {
	v := d.fix.SatsInView
	d.fix.SatsInView = 0
	return v
}

func (d *Decoder) FixType() FixType {
	v := d.fix.FixType
	d.fix.FixType = 0
	return v
}

// ResetStatus marks the receiver status fields invalid, e.g. after the receiver was restarted.
// Like Feed it must run on the goroutine feeding the decoder.
func (d *Decoder) ResetStatus() {
	d.fix.SatsUsed = InvalidSatellites
	d.fix.SatsInView = InvalidSatellites
	d.fix.FixType = InvalidFixType
	d.fix.HDOP = InvalidHDOP
	d.fix.PDOP = InvalidPDOP
	d.fix.Altitude = InvalidAltitude
}
