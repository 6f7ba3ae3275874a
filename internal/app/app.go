package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/LeoCommon/odometer/internal/config"
	"github.com/LeoCommon/odometer/internal/display"
	"github.com/LeoCommon/odometer/internal/odometer"
	"github.com/LeoCommon/odometer/internal/storage"
	"github.com/LeoCommon/odometer/internal/telemetry"
	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/LeoCommon/odometer/pkg/systemd"
	"github.com/LeoCommon/odometer/pkg/ublox"
	"github.com/LeoCommon/odometer/pkg/usb"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Display shows the rendered panel text, e.g. on a seven segment driver
type Display interface {
	Show(text string) error
}

// App global app struct that contains all services
type App struct {
	// A global wait group, all go routines that should
	// terminate when the application ends should be registered here
	WG sync.WaitGroup

	// SIGUSR1 advances the display mode, SIGUSR2 resets the configured trip counter
	ReloadSignal chan os.Signal
	ExitSignal   chan os.Signal

	Conf       *config.Manager
	Storage    *storage.Dir
	Tracker    *odometer.Tracker
	Panel      *display.Panel
	UsbManager *usb.USBDeviceManager
	Receiver   *ublox.Receiver
	Telemetry  *telemetry.Publisher
	Display    Display

	TestRunning bool

	// port is opened by Run unless it was provided up front
	port      ublox.Port
	usbDevice *usb.DeviceTuple
	text      atomic.String
	flags     config.CLIFlags

	// Trip counter reset by SIGUSR2
	resetCounter odometer.Counter
}

func (a *App) Shutdown() {
	if a.Tracker != nil {
		if err := a.Tracker.Save(); err != nil {
			log.Error("final odometer save failed", zap.Error(err))
		}
	}

	if a.Receiver != nil {
		if err := a.Receiver.Close(); err != nil {
			log.Warn("could not release the receiver enable line", zap.Error(err))
		}
	}

	if sp, ok := a.port.(*ublox.SerialPort); ok {
		log.Info("closing receiver port", zap.String("device", sp.Name()), zap.Int("baud", sp.Baud()))
	}

	if closer, ok := a.port.(io.Closer); ok {
		_ = closer.Close()
	}

	if a.Telemetry != nil {
		a.Telemetry.Close()
	}

	if a.UsbManager != nil {
		a.UsbManager.Shutdown()
	}

	if a.ExitSignal != nil {
		signal.Stop(a.ExitSignal)
		signal.Stop(a.ReloadSignal)
	}

	if err := systemd.Stopping(); err != nil && !errors.Is(err, systemd.ErrNoSocket) {
		log.Debug("could not notify systemd", zap.Error(err))
	}

	log.Sync()
}

func (a *App) loadConfiguration(configPath string, acceptEmptyConfig bool) error {
	// Create the new config manager and load the configuration
	a.Conf = config.NewManager()
	if err := a.Conf.Load(configPath, acceptEmptyConfig); err != nil {
		if configPath == config.DefaultConfigPath {
			return err
		}

		log.Error("an error occurred while trying to load the config file, trying default path", zap.String("path", configPath), zap.Error(err))
		a.Conf = config.NewManager()
		if err = a.Conf.Load(config.DefaultConfigPath, acceptEmptyConfig); err != nil {
			return err
		}
	}

	// Allow overwriting the device
	if len(a.flags.Device) != 0 {
		a.Conf.Receiver().Set(func(param *config.ReceiverConfig) {
			param.Device = a.flags.Device
		})
	}

	return nil
}

func (a *App) setupOdometer() error {
	oc := a.Conf.Odometer().C()

	settings, err := oc.Settings()
	if err != nil {
		return err
	}

	a.resetCounter, err = oc.ResetTarget()
	if err != nil {
		return err
	}

	mode, err := a.Conf.Client().C().Mode()
	if err != nil {
		return err
	}

	a.Panel = display.NewPanel(settings.Unit)
	a.Panel.SetMode(mode)

	a.Storage, err = storage.Open(oc.StorageDir, storage.WithMaxLogSize(oc.MaxLogSize))
	if err != nil {
		a.Panel.ShowError(display.ErrDisk)
		return fmt.Errorf("opening odometer storage: %w", err)
	}

	log.Info("odometer storage opened", zap.String("path", a.Storage.Path()))

	a.Tracker = odometer.NewTracker(a.Storage, odometer.WithSettings(settings))
	if err := a.Tracker.Load(); err != nil {
		a.Panel.ShowError(display.ErrDisk)
		return err
	}

	return nil
}

// Setup parses the command line and prepares all services, the receiver is opened by Run
func Setup(instrumentation bool) (*App, error) {
	// Skip cli flag parsing on testing
	var flags config.CLIFlags
	if !instrumentation {
		flags = config.ParseCLIFlags()
	} else {
		flags = config.CLIFlags{ConfigPath: config.DefaultConfigPath, Debug: true}
	}

	return SetupWithFlags(flags, instrumentation)
}

func SetupWithFlags(flags config.CLIFlags, instrumentation bool) (*App, error) {
	app := App{flags: flags, TestRunning: instrumentation}

	// Register a quit signal
	app.ExitSignal = make(chan os.Signal, 1)
	signal.Notify(app.ExitSignal, os.Interrupt, syscall.SIGTERM)

	// Register the reload signal
	app.ReloadSignal = make(chan os.Signal, 1)
	signal.Notify(app.ReloadSignal, syscall.SIGUSR1, syscall.SIGUSR2)

	// Initialize logger
	log.Init(flags.Debug)

	log.Info("odometer starting")

	// Load the configuration file, a missing one is fine, the defaults apply
	if err := app.loadConfiguration(flags.ConfigPath, true); err != nil {
		app.Shutdown()
		return nil, err
	}

	if err := app.setupOdometer(); err != nil {
		log.Error("could not set up the odometer", zap.Error(err))
		app.Shutdown()
		return nil, err
	}

	// Setup usb and run the device scan to get startup output, no udev when testing
	app.UsbManager = usb.NewUSBDeviceManager(!instrumentation)
	if !instrumentation {
		app.UsbManager.FindSupportedDevices()
	}

	return &app, nil
}

// Text returns what the display currently shows
func (a *App) Text() string {
	return a.text.Load()
}

func (a *App) telemetryState() telemetry.State {
	heading, ok := a.Tracker.Heading()
	return telemetry.State{
		Fix:         a.Receiver.Fix(),
		Counters:    a.Tracker.Counters(),
		Unit:        a.Tracker.Unit(),
		Moving:      a.Tracker.Moving(),
		Heading:     heading,
		HaveHeading: ok,
	}
}
