package config

import (
	"fmt"
	"time"

	"github.com/LeoCommon/odometer/internal/display"
)

const DefaultWatchdogInterval = 10 * time.Second

// If you want to modify any field at run-time here, make sure to lock it using a mutex
type ClientConfig struct {
	Name             string       `toml:"name,omitempty" comment:"name of this vehicle, reported with the telemetry"`
	Debug            bool         `toml:"debug"`
	WatchdogInterval TOMLDuration `toml:"watchdog_interval,omitempty" comment:"interval of the systemd watchdog notifications"`
	DisplayMode      string       `toml:"display_mode" comment:"mode shown at start: speed, odom_lo, odom_hi, trip_a, trip_b, sats or dop"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WatchdogInterval: TOMLDuration(DefaultWatchdogInterval),
		DisplayMode:      display.ModeSpeed.String(),
	}
}

// Mode returns the initial display mode, empty selects the speed
func (c ClientConfig) Mode() (display.Mode, error) {
	if c.DisplayMode == "" {
		return display.ModeSpeed, nil
	}
	return display.ParseMode(c.DisplayMode)
}

type ClientConfigManager struct {
	BaseConfigManager[ClientConfig]
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *ClientConfigManager) Verify() error {
	c := a.C()
	if c.WatchdogInterval.Value() < 0 {
		return fmt.Errorf("%w: negative watchdog interval", ErrInvalidConfig)
	}
	if _, err := c.Mode(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func NewClientConfigManager(config *ClientConfig, mgr *Manager) *ClientConfigManager {
	j := ClientConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
