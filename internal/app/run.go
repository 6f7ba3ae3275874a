package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/LeoCommon/odometer/internal/config"
	"github.com/LeoCommon/odometer/internal/display"
	"github.com/LeoCommon/odometer/internal/telemetry"
	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/LeoCommon/odometer/pkg/systemd"
	"github.com/LeoCommon/odometer/pkg/ublox"
	"github.com/LeoCommon/odometer/pkg/ubx"
	"go.uber.org/zap"
)

const (
	// Longest time the display shows stale text without a new fix
	displayRefresh = 100 * time.Millisecond
	// How often the changed flag is polled
	fixPoll = 20 * time.Millisecond
	// Time to wait for the first sentence before probing baud rates
	silenceWindow = 1500 * time.Millisecond
)

// UsePort makes Run use the given port instead of opening the configured device
func (a *App) UsePort(port ublox.Port) {
	a.port = port
}

func (a *App) openPort(rc config.ReceiverConfig) error {
	if a.port != nil {
		return nil
	}

	device := rc.Device
	if device == "" {
		name, tuple, err := a.UsbManager.FindPort()
		if err != nil {
			if ports, lerr := ublox.ListPorts(); lerr == nil {
				log.Warn("no supported receiver found", zap.Strings("ports", ports))
			}
			return err
		}
		device, a.usbDevice = name, &tuple
	}

	port, err := ublox.OpenPort(device, rc.Baud)
	if err != nil {
		return err
	}

	a.port = port
	return nil
}

func (a *App) newReceiver(rc config.ReceiverConfig) *ublox.Receiver {
	opts := []ublox.Option{ublox.WithAckTimeout(rc.AckTimeout.Value())}

	if rc.GPIOEnabled() {
		line, err := ublox.OpenEnableLine(rc.EnableChip, rc.EnableLine)
		if err != nil {
			log.Warn("receiver enable line unavailable", zap.Error(err))
		} else {
			opts = append(opts, ublox.WithEnableLine(line))
		}
	}

	return ublox.NewReceiver(a.port, opts...)
}

// awaitSentence blocks until the receiver committed a sentence or the window passed
func (a *App) awaitSentence(ctx context.Context, window time.Duration) bool {
	deadline := time.NewTimer(window)
	defer deadline.Stop()

	ticker := time.NewTicker(fixPoll)
	defer ticker.Stop()

	for {
		if a.Receiver.Sentences() > 0 {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return a.Receiver.Sentences() > 0
		case <-ticker.C:
		}
	}
}

// configureReceiver applies the receiver section, retrying the whole set. The
// receiver keeps streaming NMEA at its defaults if every attempt fails.
func (a *App) configureReceiver(ctx context.Context, rc config.ReceiverConfig) error {
	if len(rc.DetectBauds) > 0 && !a.awaitSentence(ctx, silenceWindow) {
		log.Warn("receiver silent, probing baud rates", zap.Ints("candidates", rc.DetectBauds))
		if _, err := a.Receiver.DetectBaud(ctx, rc.DetectBauds, silenceWindow); err != nil {
			return err
		}
	}

	model, err := ubx.ParseDynModel(rc.DynModel)
	if err != nil {
		return err
	}

	settings := ublox.Settings{
		Baud:      rc.TargetBaud,
		FixRateMs: rc.FixRateMs,
		DynModel:  model,
		Features:  rc.Features,
	}

	attempts := rc.ConfigureRetries + 1
	for i := 1; i <= attempts; i++ {
		if err = a.Receiver.Configure(settings); err == nil {
			log.Info("receiver configured", zap.Int("attempt", i))
			a.notifyStatus("receiver configured")

			if rc.Persist {
				if serr := a.Receiver.Save(); serr != nil {
					log.Warn("could not store the receiver configuration", zap.Error(serr))
				}
			}
			return nil
		}

		log.Warn("receiver configuration failed", zap.Int("attempt", i), zap.Error(err))
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Retrying does not make a feature known
		if errors.Is(err, ublox.ErrUnknownFeature) {
			break
		}
	}

	if a.usbDevice != nil {
		if rerr := a.UsbManager.ResetDevice(a.usbDevice.DeviceType); rerr != nil {
			log.Warn("usb reset of the receiver failed", zap.Error(rerr))
		}
	}

	return err
}

func (a *App) startTelemetry(ctx context.Context) {
	tc := a.Conf.Telemetry().C()
	if !tc.Enabled {
		return
	}

	name := a.Conf.Client().C().Name
	pub, err := telemetry.Connect(telemetry.Options{
		Broker:   tc.Broker,
		ClientID: tc.ClientID,
		Username: tc.Username,
		Password: tc.Password,
		Topic:    tc.Topic,
		QoS:      tc.QoS,
		Retained: tc.Retained,
		Name:     name,
	})
	if err != nil {
		log.Error("telemetry disabled, broker connection failed", zap.Error(err))
		return
	}

	a.Telemetry = pub
	log.Info("publishing telemetry", zap.String("topic", tc.Topic), zap.Stringer("session", pub.Session()))

	a.WG.Add(1)
	go func() {
		defer a.WG.Done()
		_ = pub.Run(ctx, tc.Interval.Value(), a.telemetryState)
	}()
}

// Run opens the receiver and drives the odometer until ctx ends, an exit
// signal arrives or the receiver fails. It returns nil on a regular exit.
func (a *App) Run(ctx context.Context) error {
	rc := a.Conf.Receiver().C()

	if err := a.openPort(rc); err != nil {
		a.Panel.ShowError(display.ErrReceiver)
		return fmt.Errorf("opening receiver: %w", err)
	}

	a.Receiver = a.newReceiver(rc)
	if err := a.Receiver.SetEnabled(true); err != nil {
		log.Warn("could not enable the receiver", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.WG.Wait()
	}()

	readErr := make(chan error, 1)
	a.WG.Add(1)
	go func() {
		defer a.WG.Done()
		readErr <- a.Receiver.Run(ctx)
	}()

	a.WG.Add(1)
	go func() {
		defer a.WG.Done()
		if err := a.configureReceiver(ctx, rc); err != nil && ctx.Err() == nil {
			log.Error("running with the receiver defaults", zap.Error(err))
			a.notifyStatus("running with the receiver defaults")
		}
	}()

	a.startTelemetry(ctx)

	if err := systemd.Ready(); err != nil && !errors.Is(err, systemd.ErrNoSocket) {
		log.Warn("could not notify systemd", zap.Error(err))
	}

	return a.loop(ctx, readErr)
}

func (a *App) loop(ctx context.Context, readErr <-chan error) error {
	fixTicker := time.NewTicker(fixPoll)
	defer fixTicker.Stop()

	refresh := time.NewTicker(displayRefresh)
	defer refresh.Stop()

	watchdogInterval := systemd.WatchdogInterval()
	if watchdogInterval <= 0 {
		watchdogInterval = a.Conf.Client().C().WatchdogInterval.Value()
	}
	if watchdogInterval <= 0 {
		watchdogInterval = config.DefaultWatchdogInterval
	}
	watchdog := time.NewTicker(watchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-a.ExitSignal:
			log.Info("exit signal received - shutting down")
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			a.Panel.ShowError(display.ErrReceiver)
			a.refreshDisplay()
			return fmt.Errorf("receiver stopped: %w", err)

		case sig := <-a.ReloadSignal:
			a.handleSignal(sig)
			a.refreshDisplay()

		case ev := <-a.UsbManager.Events():
			if !ev.Added && a.usbDevice != nil && ev.DeviceType == a.usbDevice.DeviceType {
				log.Warn("receiver unplugged", zap.String("device", ev.String()))
			}

		case <-fixTicker.C:
			if a.Receiver.Changed() {
				a.onFix()
				refresh.Reset(displayRefresh)
			}

		case <-refresh.C:
			a.refreshDisplay()

		case <-watchdog.C:
			if err := systemd.EntertainWatchdog(); err != nil && !errors.Is(err, systemd.ErrNoSocket) {
				log.Warn("watchdog notification failed", zap.Error(err))
			}
		}
	}
}

func (a *App) notifyStatus(status string) {
	if err := systemd.Status(status); err != nil && !errors.Is(err, systemd.ErrNoSocket) {
		log.Debug("could not send status to systemd", zap.Error(err))
	}
}

func (a *App) onFix() {
	fix := a.Receiver.Fix()

	if err := a.Tracker.Update(fix.Latitude, fix.Longitude, fix.Speed, fix.GoodData); err != nil {
		a.Panel.ShowError(display.ErrDisk)
	}

	a.refreshDisplay()
}

func (a *App) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGUSR1:
		log.Info("display mode", zap.Stringer("mode", a.Panel.Next()))
	case syscall.SIGUSR2:
		if err := a.Tracker.Reset(a.resetCounter); err != nil {
			log.Error("trip reset failed", zap.Stringer("counter", a.resetCounter), zap.Error(err))
		}
	}
}

func (a *App) refreshDisplay() {
	text := a.Panel.Render(a.Receiver.Fix(), a.Tracker.Counters())
	if a.text.Swap(text) == text {
		return
	}

	if a.Display == nil {
		log.Debug("display", zap.String("text", text))
		return
	}

	if err := a.Display.Show(text); err != nil {
		log.Warn("display update failed", zap.Error(err))
	}
}
