package odometer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/LeoCommon/odometer/pkg/geodesy"
	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/LeoCommon/odometer/pkg/nmea"
	"go.uber.org/zap"
)

const (
	DefaultBlobName       = "odom.bin"
	DefaultLogName        = "odom.log"
	DefaultLowerThreshold = 1.0
	DefaultUpperThreshold = 2.0
	DefaultSaveDistance   = 50 * MetersPerMile

	blobSize = int(numCounters) * 8
)

var (
	ErrEngineReset    = errors.New("the engine odometer cannot be reset")
	ErrUnknownCounter = errors.New("unknown counter")
)

// Storage persists named blobs. Read must return an error matching
// os.ErrNotExist for a name that was never written.
type Storage interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Append(name string, data []byte) error
}

type Settings struct {
	Unit   Unit
	Policy Policy
	// Idle becomes moving above Upper, moving becomes idle below Lower
	Lower float64
	Upper float64
	// Meters of engine distance between periodic saves
	SaveDistance float64

	BlobName string
	LogName  string
}

func DefaultSettings() Settings {
	return Settings{
		Unit:         Miles,
		Policy:       PolicyDistance,
		Lower:        DefaultLowerThreshold,
		Upper:        DefaultUpperThreshold,
		SaveDistance: DefaultSaveDistance,
		BlobName:     DefaultBlobName,
		LogName:      DefaultLogName,
	}
}

// Counters holds the three counters in the display unit
type Counters struct {
	Engine float64 `json:"engine"`
	TripA  float64 `json:"trip_a"`
	TripB  float64 `json:"trip_b"`
}

type Option func(*Tracker)

func WithSettings(s Settings) Option {
	return func(t *Tracker) {
		t.settings = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker integrates travelled distance from consecutive fixes
type Tracker struct {
	mu sync.Mutex

	store    Storage
	settings Settings
	now      func() time.Time

	// meters
	counters  [numCounters]float64
	lastSaved float64
	savedAt   time.Time

	moving  bool
	havePos bool
	prevLat int32
	prevLon int32

	// degrees between the last two distinct samples
	heading     float64
	haveHeading bool
}

func NewTracker(store Storage, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		settings: DefaultSettings(),
		now:      time.Now,
		prevLat:  nmea.InvalidAngle,
		prevLon:  nmea.InvalidAngle,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Update feeds one fix. Invalid data drops the previous sample so no distance
// is integrated across a gap. The returned error is a failed save, the
// counters are updated regardless.
func (t *Tracker) Update(lat, lon int32, speed uint32, valid bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !valid || lat == nmea.InvalidAngle || lon == nmea.InvalidAngle {
		t.havePos = false
		t.haveHeading = false
		return nil
	}

	if !t.havePos {
		t.prevLat, t.prevLon = lat, lon
		t.havePos = true
		return nil
	}

	if t.prevLat == lat && t.prevLon == lon {
		return nil
	}

	dist := geodesy.DistanceMillionths(t.prevLat, t.prevLon, lat, lon)
	t.heading = geodesy.BearingMillionths(t.prevLat, t.prevLon, lat, lon)
	t.haveHeading = true
	t.prevLat, t.prevLon = lat, lon

	metric := dist
	if t.settings.Policy == PolicySpeed {
		metric = 0
		if speed != nmea.InvalidSpeed {
			metric = float64(speed) / 100
		}
	}

	var err error
	if t.moving {
		if metric < t.settings.Lower {
			err = t.save()
			t.moving = false
			log.Debug("stopped moving", zap.Float64("metric", metric))
		}
	} else if metric > t.settings.Upper {
		t.moving = true
		log.Debug("started moving", zap.Float64("metric", metric))
	}

	if t.moving {
		for i := range t.counters {
			t.counters[i] += dist
		}

		if t.counters[Engine]-t.lastSaved > t.settings.SaveDistance {
			err = t.save()
		}
	}

	return err
}

// Heading returns the course over ground derived from the last two positions.
// It is unset until two distinct valid positions followed each other.
func (t *Tracker) Heading() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.heading, t.haveHeading
}

func (t *Tracker) Moving() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moving
}

// Reset zeroes a trip counter and persists the result
func (t *Tracker) Reset(c Counter) error {
	if c == Engine {
		return ErrEngineReset
	}
	if !c.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCounter, c)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[c] = 0
	return t.save()
}

// Set overwrites a counter with a value in the display unit and persists the result
func (t *Tracker) Set(c Counter, value float64) error {
	if !c.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCounter, c)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[c] = value * t.settings.Unit.Meters()
	return t.save()
}

// Get returns a counter in the display unit
func (t *Tracker) Get(c Counter) float64 {
	if !c.valid() {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[c] / t.settings.Unit.Meters()
}

func (t *Tracker) Counters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.settings.Unit.Meters()
	return Counters{
		Engine: t.counters[Engine] / m,
		TripA:  t.counters[TripA] / m,
		TripB:  t.counters[TripB] / m,
	}
}

func (t *Tracker) Unit() Unit {
	return t.settings.Unit
}

// Load restores the counters. A missing or short blob is a first run and leaves them at zero.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := t.store.Read(t.settings.BlobName)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("no saved odometer, starting from zero")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading odometer: %w", err)
	}

	if len(data) < blobSize {
		log.Warn("saved odometer too short, starting from zero", zap.Int("len", len(data)))
		return nil
	}

	for i := range t.counters {
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		t.counters[i] = v
	}
	t.lastSaved = t.counters[Engine]

	log.Info("loaded odometer",
		zap.Float64("engine_m", t.counters[Engine]),
		zap.Float64("trip_a_m", t.counters[TripA]),
		zap.Float64("trip_b_m", t.counters[TripB]))
	return nil
}

func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.save()
}

func (t *Tracker) save() error {
	blob := make([]byte, 0, blobSize)
	for _, v := range t.counters {
		blob = binary.LittleEndian.AppendUint64(blob, math.Float64bits(v))
	}

	if err := t.store.Write(t.settings.BlobName, blob); err != nil {
		log.Error("failed to save odometer", zap.Error(err))
		return fmt.Errorf("saving odometer: %w", err)
	}

	now := t.now()
	var age time.Duration
	if !t.savedAt.IsZero() {
		age = now.Sub(t.savedAt).Truncate(time.Second)
	}

	t.lastSaved = t.counters[Engine]
	t.savedAt = now

	line := fmt.Sprintf("%s,%s,%.1f,%.1f,%.1f\n", now.UTC().Format(time.RFC3339), age,
		t.counters[Engine], t.counters[TripA], t.counters[TripB])
	if err := t.store.Append(t.settings.LogName, []byte(line)); err != nil {
		log.Warn("failed to append odometer log", zap.Error(err))
	}

	log.Debug("saved odometer", zap.Float64("engine_m", t.counters[Engine]))
	return nil
}
