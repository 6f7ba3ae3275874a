package config

import (
	"fmt"
	"path/filepath"

	"github.com/LeoCommon/odometer/internal/odometer"
)

const DefaultMaxLogSize = 1 << 20

type OdometerConfig struct {
	StorageDir string `toml:"storage_dir"`
	BlobName   string `toml:"blob_name,omitempty"`
	LogName    string `toml:"log_name,omitempty"`
	MaxLogSize int    `toml:"max_log_size,omitempty" comment:"bytes after which the save log is archived, 0 never archives"`

	Unit   string `toml:"unit" comment:"display unit, miles or km"`
	Policy string `toml:"policy" comment:"movement detection on distance (meters) or speed (knots)"`

	LowerThreshold float64 `toml:"lower_threshold" comment:"moving becomes idle below this"`
	UpperThreshold float64 `toml:"upper_threshold" comment:"idle becomes moving above this"`
	SaveDistance   float64 `toml:"save_distance_m" comment:"meters travelled between periodic saves"`

	ResetCounter string `toml:"reset_counter" comment:"trip counter reset by SIGUSR2, trip_a or trip_b"`
}

func DefaultOdometerConfig() OdometerConfig {
	return OdometerConfig{
		StorageDir:     DefaultStorageDir,
		BlobName:       odometer.DefaultBlobName,
		LogName:        odometer.DefaultLogName,
		MaxLogSize:     DefaultMaxLogSize,
		Unit:           odometer.Miles.String(),
		Policy:         odometer.PolicyDistance.String(),
		LowerThreshold: odometer.DefaultLowerThreshold,
		UpperThreshold: odometer.DefaultUpperThreshold,
		SaveDistance:   odometer.DefaultSaveDistance,
		ResetCounter:   odometer.TripA.String(),
	}
}

// Settings converts the section into tracker settings, call Verify first
func (o OdometerConfig) Settings() (odometer.Settings, error) {
	unit, err := odometer.ParseUnit(o.Unit)
	if err != nil {
		return odometer.Settings{}, err
	}

	policy, err := odometer.ParsePolicy(o.Policy)
	if err != nil {
		return odometer.Settings{}, err
	}

	s := odometer.DefaultSettings()
	s.Unit = unit
	s.Policy = policy
	s.Lower = o.LowerThreshold
	s.Upper = o.UpperThreshold
	s.SaveDistance = o.SaveDistance
	if o.BlobName != "" {
		s.BlobName = o.BlobName
	}
	if o.LogName != "" {
		s.LogName = o.LogName
	}

	return s, nil
}

// ResetTarget returns the counter reset on request, the engine counter is never one
func (o OdometerConfig) ResetTarget() (odometer.Counter, error) {
	if o.ResetCounter == "" {
		return odometer.TripA, nil
	}

	c, err := odometer.ParseCounter(o.ResetCounter)
	if err != nil {
		return 0, err
	}
	if c == odometer.Engine {
		return 0, odometer.ErrEngineReset
	}
	return c, nil
}

type OdometerConfigManager struct {
	BaseConfigManager[OdometerConfig]
}

func (a *OdometerConfigManager) Verify() error {
	c := a.C()

	if c.StorageDir == "" {
		return fmt.Errorf("%w: storage_dir is required", ErrInvalidConfig)
	}

	for _, name := range []string{c.BlobName, c.LogName} {
		if name != "" && name != filepath.Base(name) {
			return fmt.Errorf("%w: %q must be a plain file name", ErrInvalidConfig, name)
		}
	}

	if _, err := c.Settings(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if _, err := c.ResetTarget(); err != nil {
		return fmt.Errorf("%w: reset_counter: %w", ErrInvalidConfig, err)
	}

	if c.LowerThreshold < 0 || c.LowerThreshold > c.UpperThreshold {
		return fmt.Errorf("%w: thresholds need 0 <= lower <= upper", ErrInvalidConfig)
	}

	if c.SaveDistance <= 0 {
		return fmt.Errorf("%w: save_distance_m must be positive", ErrInvalidConfig)
	}

	if c.MaxLogSize < 0 {
		return fmt.Errorf("%w: negative max_log_size", ErrInvalidConfig)
	}

	return nil
}

func NewOdometerConfigManager(config *OdometerConfig, mgr *Manager) *OdometerConfigManager {
	j := OdometerConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
