package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultTelemetryTopic    = "odometer/telemetry"
	DefaultTelemetryInterval = 5 * time.Second
)

type TelemetryConfig struct {
	Enabled  bool         `toml:"enabled"`
	Broker   string       `toml:"broker,omitempty" comment:"mqtt broker url, e.g. tcp://localhost:1883"`
	Topic    string       `toml:"topic,omitempty"`
	ClientID string       `toml:"client_id,omitempty" comment:"defaults to the client name"`
	Username string       `toml:"username,omitempty"`
	Password string       `toml:"password,omitempty"`
	Interval TOMLDuration `toml:"interval,omitempty"`
	QoS      byte         `toml:"qos"`
	Retained bool         `toml:"retained"`
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Topic:    DefaultTelemetryTopic,
		Interval: TOMLDuration(DefaultTelemetryInterval),
	}
}

type TelemetryConfigManager struct {
	BaseConfigManager[TelemetryConfig]
}

func (a *TelemetryConfigManager) Verify() error {
	c := a.C()

	if !c.Enabled {
		return nil
	}

	u, err := url.Parse(c.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: telemetry broker %q is not a valid url", ErrInvalidConfig, c.Broker)
	}

	if c.Topic == "" {
		return fmt.Errorf("%w: telemetry topic is required", ErrInvalidConfig)
	}

	if c.QoS > 2 {
		return fmt.Errorf("%w: qos must be 0, 1 or 2", ErrInvalidConfig)
	}

	if c.Interval.Value() <= 0 {
		return fmt.Errorf("%w: telemetry interval must be positive", ErrInvalidConfig)
	}

	return nil
}

func NewTelemetryConfigManager(config *TelemetryConfig, mgr *Manager) *TelemetryConfigManager {
	j := TelemetryConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
