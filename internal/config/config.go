package config

import (
	"errors"
	"flag"
	"os"
	"sync"
	"time"

	"github.com/LeoCommon/odometer/pkg/file"
	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	ProductName             = "odometer"
	UserdataDirectoryPrefix = "/data/"
	ConfigFolder            = "config/"

	ConfigPathPrefix = ConfigFolder + ProductName + "/"
	ConfigFile       = "config.toml"

	DefaultConfigPath = UserdataDirectoryPrefix + ConfigPathPrefix + ConfigFile
	DefaultStorageDir = UserdataDirectoryPrefix + ProductName + "/"

	DefaultDebugModeValue = false
)

var ErrInvalidConfig = errors.New("invalid config")

type CLIFlags struct {
	ConfigPath string
	Device     string
	Debug      bool
}

type MainConfig struct {
	Client    ClientConfig    `toml:"client"`
	Receiver  ReceiverConfig  `toml:"receiver"`
	Odometer  OdometerConfig  `toml:"odometer"`
	Telemetry TelemetryConfig `toml:"telemetry,omitempty"`
}

type ConfigManager interface {
	lock()
	unlock()
	Verify() error
}

type ConfigManagerKey string

const (
	CMClient    ConfigManagerKey = "client"
	CMReceiver  ConfigManagerKey = "receiver"
	CMOdometer  ConfigManagerKey = "odometer"
	CMTelemetry ConfigManagerKey = "telemetry"
)

type ConfigManagerStore map[ConfigManagerKey]ConfigManager

type Manager struct {
	mu sync.RWMutex

	// The actual config, never share this with other code
	config *MainConfig

	// The config manager store (pointers)
	store ConfigManagerStore

	// The config path
	path string
}

func section[T ConfigManager](m *Manager, key ConfigManagerKey) T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[key].(T)
	if !ok {
		log.Panic("implementation mistake, config section missing", zap.String("section", string(key)))
	}
	return cm
}

func (m *Manager) Client() *ClientConfigManager {
	return section[*ClientConfigManager](m, CMClient)
}

func (m *Manager) Receiver() *ReceiverConfigManager {
	return section[*ReceiverConfigManager](m, CMReceiver)
}

func (m *Manager) Odometer() *OdometerConfigManager {
	return section[*OdometerConfigManager](m, CMOdometer)
}

func (m *Manager) Telemetry() *TelemetryConfigManager {
	return section[*TelemetryConfigManager](m, CMTelemetry)
}

// Load reads the config file over the defaults. With acceptEmptyConfig a
// missing file is not an error and the defaults apply.
func (m *Manager) Load(path string, acceptEmptyConfig bool) error {
	data, err := os.ReadFile(path)
	if err == nil {
		if err = toml.Unmarshal(data, m.config); err != nil {
			log.Error("failed to unmarshal config file", zap.Error(err))
			return err
		}
	}

	if err != nil && !acceptEmptyConfig {
		return err
	}

	// Store the load path
	m.path = path

	// Each config section manager gets his own locking primitive
	m.store = ConfigManagerStore{
		CMClient:    NewClientConfigManager(&m.config.Client, m),
		CMReceiver:  NewReceiverConfigManager(&m.config.Receiver, m),
		CMOdometer:  NewOdometerConfigManager(&m.config.Odometer, m),
		CMTelemetry: NewTelemetryConfigManager(&m.config.Telemetry, m),
	}

	// Verify all configs contain the mandatory values
	for key, value := range m.store {
		if err := value.Verify(); err != nil {
			log.Error("config section failed verification", zap.String("section", string(key)), zap.Error(err))
			return err
		}
	}

	// Debug log output
	log.Debug("active config", zap.Any("config", m.config), zap.String("path", m.path))

	return nil
}

// Save locks all configs and writes it to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Lock all config managers
	for _, value := range m.store {
		value.lock()
	}

	// Unlock the config managers when we are done
	defer func() {
		for _, value := range m.store {
			value.unlock()
		}
	}()

	// Marshal the config, does not use getters, so no locking => safe
	configData, err := toml.Marshal(m.config)
	if err != nil {
		return err
	}

	if err := file.WriteAtomic(m.path, configData); err != nil {
		log.Error("Failed to write config file", zap.Error(err))
		return err
	}

	return nil
}

// New returns the config with every default filled in
func New() *MainConfig {
	return &MainConfig{
		Client:    DefaultClientConfig(),
		Receiver:  DefaultReceiverConfig(),
		Odometer:  DefaultOdometerConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func NewManager() *Manager {
	return &Manager{
		mu:     sync.RWMutex{},
		store:  make(ConfigManagerStore),
		config: New(),
	}
}

func ParseCLIFlags() CLIFlags {
	flags := CLIFlags{}

	flag.StringVar(&flags.ConfigPath, "config", DefaultConfigPath, "relative or absolute path to the config file")
	flag.StringVar(&flags.Device, "device", "", "serial device of the receiver, overrides the config file")
	flag.BoolVar(&flags.Debug, "debug", DefaultDebugModeValue, "true if the debug logging should be enabled")

	flag.Parse()

	return flags
}

type TOMLDuration time.Duration

func (d *TOMLDuration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = TOMLDuration(x)
	return nil
}

func (c TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(c).String()), nil
}

func (c TOMLDuration) Value() time.Duration {
	return time.Duration(c)
}
