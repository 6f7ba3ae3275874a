package ublox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/LeoCommon/odometer/pkg/misc"
	"github.com/LeoCommon/odometer/pkg/ubx"
	"go.uber.org/zap"
)

var (
	ErrUnknownFeature = errors.New("unknown NMEA feature")
	ErrBaudNotFound   = errors.New("receiver silent at every candidate baud rate")
)

// WriteCommand frames and sends a UBX message. CFG class messages block until
// the receiver answers with any valid frame or the ack timeout expires.
// Must not be called from the reader goroutine.
func (r *Receiver) WriteCommand(class, id byte, payload []byte) error {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	if err := r.writeFrame(class, id, payload); err != nil {
		return err
	}

	if class != ubx.ClassCFG {
		return nil
	}

	return r.awaitResponse(class, id)
}

func (r *Receiver) writeFrame(class, id byte, payload []byte) error {
	// Drop a stale response so it is not taken as the answer to this command
	r.ubx.ResponseReady()

	if _, err := r.port.Write(ubx.Encode(class, id, payload)); err != nil {
		return fmt.Errorf("sending %02X/%02X: %w", class, id, err)
	}

	log.Debug("sent ubx command", zap.Uint8("class", class), zap.Uint8("id", id), zap.Int("len", len(payload)))
	return nil
}

func (r *Receiver) awaitResponse(class, id byte) error {
	deadline := time.Now().Add(r.ackTimeout)

	for {
		if r.ubx.ResponseReady() {
			if _, nak := ubx.IsAck(r.ubx.Frame(), class, id); nak {
				log.Warn("receiver rejected command", zap.Uint8("class", class), zap.Uint8("id", id))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return misc.NewTimedOutError(fmt.Sprintf("no response to %02X/%02X", class, id), r.ackTimeout)
		}

		time.Sleep(ackPollInterval)
	}
}

// SetFeatureRate sets how often an NMEA sentence is output, per navigation solution
func (r *Receiver) SetFeatureRate(mnemonic string, rate byte) error {
	f, ok := ubx.LookupFeature(mnemonic)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, mnemonic)
	}

	return r.WriteCommand(ubx.ClassCFG, ubx.IDCfgMsg, ubx.CfgMsg(f.Class, f.ID, rate))
}

func (r *Receiver) DisableFeature(mnemonic string) error {
	return r.SetFeatureRate(mnemonic, 0)
}

// SetBaud reconfigures UART1 of the receiver and then the local port. The local
// switch happens even without an answer, the receiver may already listen at the new rate.
func (r *Receiver) SetBaud(baud int) error {
	err := r.WriteCommand(ubx.ClassCFG, ubx.IDCfgPrt, ubx.CfgPrt(ubx.PortUART1, uint32(baud)))
	if err == nil {
		// Poll the port configuration, this flushes the change on older firmware
		if perr := r.WriteCommand(ubx.ClassCFG, ubx.IDCfgPrt, nil); perr != nil {
			log.Warn("port configuration poll unanswered", zap.Error(perr))
		}
	}

	if serr := r.port.SetBaud(baud); serr != nil {
		return errors.Join(err, fmt.Errorf("switching local baud to %d: %w", baud, serr))
	}

	log.Info("switched receiver baud rate", zap.Int("baud", baud), zap.NamedError("ack", err))
	return err
}

// SetFixRate sets the measurement interval in milliseconds, see the ubx.Rate constants
func (r *Receiver) SetFixRate(intervalMs uint16) error {
	return r.WriteCommand(ubx.ClassCFG, ubx.IDCfgRate, ubx.CfgRate(intervalMs))
}

func (r *Receiver) SetDynModel(model ubx.DynModel) error {
	return r.WriteCommand(ubx.ClassCFG, ubx.IDCfgNav5, ubx.CfgNav5(model))
}

// Restart performs a hot, warm or cold start. The receiver does not answer CFG-RST.
func (r *Receiver) Restart(mode ubx.ResetMode) error {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	if err := r.writeFrame(ubx.ClassCFG, ubx.IDCfgRst, ubx.CfgRst(mode)); err != nil {
		return err
	}

	r.resetStatus.Store(true)
	return nil
}

// HardwareReset triggers a watchdog reset of the receiver
func (r *Receiver) HardwareReset() error {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	if err := r.writeFrame(ubx.ClassCFG, ubx.IDCfgRst, ubx.CfgRstHardware()); err != nil {
		return err
	}

	r.resetStatus.Store(true)
	return nil
}

// Save stores the active configuration in the receiver's non-volatile memory
func (r *Receiver) Save() error {
	return r.WriteCommand(ubx.ClassCFG, ubx.IDCfgCfg, ubx.CfgCfgSave())
}

// FactoryReset clears the stored configuration and reloads the defaults
func (r *Receiver) FactoryReset() error {
	return r.WriteCommand(ubx.ClassCFG, ubx.IDCfgCfg, ubx.CfgCfgFactoryReset())
}

// Sleep puts the receiver into backup mode, zero sleeps until the host wakes it
func (r *Receiver) Sleep(d time.Duration) error {
	return r.WriteCommand(ubx.ClassRXM, ubx.IDRxmPmreq, ubx.RxmPmreq(uint32(d.Milliseconds())))
}

// DetectBaud tries each candidate rate on the local port and returns the first
// one at which a valid NMEA sentence is committed within window.
func (r *Receiver) DetectBaud(ctx context.Context, candidates []int, window time.Duration) (int, error) {
	for _, baud := range candidates {
		if err := r.port.SetBaud(baud); err != nil {
			return 0, fmt.Errorf("switching local baud to %d: %w", baud, err)
		}

		before := r.Sentences()

		timer := time.NewTimer(window)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}

		if r.Sentences() != before {
			log.Info("detected receiver baud rate", zap.Int("baud", baud))
			return baud, nil
		}

		log.Debug("receiver silent", zap.Int("baud", baud))
	}

	return 0, ErrBaudNotFound
}

// Settings is the configuration applied by Configure
type Settings struct {
	Baud      int
	FixRateMs uint16
	DynModel  ubx.DynModel
	Features  map[string]byte
}

// Configure applies all settings and reports every failure, it does not retry
func (r *Receiver) Configure(s Settings) error {
	var errs []error

	if s.Baud > 0 {
		if err := r.SetBaud(s.Baud); err != nil {
			errs = append(errs, err)
		}
	}

	for mnemonic, rate := range s.Features {
		if err := r.SetFeatureRate(mnemonic, rate); err != nil {
			errs = append(errs, fmt.Errorf("feature %s: %w", mnemonic, err))
		}
	}

	if s.FixRateMs > 0 {
		if err := r.SetFixRate(s.FixRateMs); err != nil {
			errs = append(errs, fmt.Errorf("fix rate: %w", err))
		}
	}

	if err := r.SetDynModel(s.DynModel); err != nil {
		errs = append(errs, fmt.Errorf("dynamic model: %w", err))
	}

	return errors.Join(errs...)
}
