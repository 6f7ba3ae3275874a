package config

import (
	"fmt"
	"time"

	"github.com/LeoCommon/odometer/pkg/ubx"
)

const (
	DefaultReceiverDevice   = "/dev/ttyACM0"
	DefaultReceiverBaud     = 9600
	DefaultAckTimeout       = 500 * time.Millisecond
	DefaultConfigureRetries = 3
)

type ReceiverConfig struct {
	Device      string `toml:"device" comment:"serial device, empty to search for a supported usb receiver"`
	Baud        int    `toml:"baud" comment:"baud rate the receiver starts with"`
	TargetBaud  int    `toml:"target_baud,omitempty" comment:"baud rate to switch to after start, 0 keeps the initial rate"`
	DetectBauds []int  `toml:"detect_bauds,omitempty" comment:"rates probed when the receiver is silent at the configured one"`

	FixRateMs uint16 `toml:"fix_rate_ms" comment:"measurement interval, 0 keeps the receiver default"`
	DynModel  string `toml:"dyn_model" comment:"platform model, e.g. automotive, portable, pedestrian"`

	AckTimeout       TOMLDuration `toml:"ack_timeout"`
	ConfigureRetries int          `toml:"configure_retries"`
	Persist          bool         `toml:"persist" comment:"store the applied settings in the receiver's non-volatile memory"`

	EnableChip string `toml:"enable_chip,omitempty" comment:"gpio chip of the receiver enable line, e.g. gpiochip0"`
	EnableLine string `toml:"enable_line,omitempty" comment:"name or offset of the enable line"`

	Features map[string]uint8 `toml:"features,omitempty" comment:"nmea sentence output rates by mnemonic, 0 disables"`
}

func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Device:           DefaultReceiverDevice,
		Baud:             DefaultReceiverBaud,
		FixRateMs:        ubx.Rate1Hz,
		DynModel:         ubx.DynAutomotive.String(),
		AckTimeout:       TOMLDuration(DefaultAckTimeout),
		ConfigureRetries: DefaultConfigureRetries,
	}
}

// GPIOEnabled is true when an enable line is configured
func (r ReceiverConfig) GPIOEnabled() bool {
	return r.EnableChip != "" && r.EnableLine != ""
}

type ReceiverConfigManager struct {
	BaseConfigManager[ReceiverConfig]
}

func (a *ReceiverConfigManager) Verify() error {
	c := a.C()

	if c.Baud <= 0 || c.TargetBaud < 0 {
		return fmt.Errorf("%w: receiver baud rate must be positive", ErrInvalidConfig)
	}

	for _, b := range c.DetectBauds {
		if b <= 0 {
			return fmt.Errorf("%w: detect baud rate %d", ErrInvalidConfig, b)
		}
	}

	if _, err := ubx.ParseDynModel(c.DynModel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.AckTimeout.Value() <= 0 {
		return fmt.Errorf("%w: ack timeout must be positive", ErrInvalidConfig)
	}

	if (c.EnableChip == "") != (c.EnableLine == "") {
		return fmt.Errorf("%w: enable_chip and enable_line must be set together", ErrInvalidConfig)
	}

	for mnemonic := range c.Features {
		if _, ok := ubx.LookupFeature(mnemonic); !ok {
			return fmt.Errorf("%w: unknown nmea feature %q", ErrInvalidConfig, mnemonic)
		}
	}

	return nil
}

func NewReceiverConfigManager(config *ReceiverConfig, mgr *Manager) *ReceiverConfigManager {
	j := ReceiverConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
