// Package ublox drives a u-blox receiver over a serial port. It demultiplexes
// the incoming byte stream into NMEA and UBX and sends UBX configuration commands.
package ublox

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/LeoCommon/odometer/pkg/nmea"
	"github.com/LeoCommon/odometer/pkg/ubx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	DefaultAckTimeout = 500 * time.Millisecond
	DefaultBaud       = 9600

	ackPollInterval = time.Millisecond
	readBufferSize  = 256
)

// Port is the serial link to the receiver
type Port interface {
	io.ReadWriter
	SetBaud(baud int) error
}

// EnableLine drives the receiver enable pin
type EnableLine interface {
	SetValue(value int) error
	Close() error
}

type Option func(*Receiver)

// WithAckTimeout changes how long CFG commands wait for a response
func WithAckTimeout(d time.Duration) Option {
	return func(r *Receiver) {
		r.ackTimeout = d
	}
}

func WithEnableLine(line EnableLine) Option {
	return func(r *Receiver) {
		r.enable = line
	}
}

// WithDecoderOptions passes options through to the NMEA decoder
func WithDecoderOptions(opts ...nmea.Option) Option {
	return func(r *Receiver) {
		r.nmeaOpts = append(r.nmeaOpts, opts...)
	}
}

// Receiver owns one NMEA and one UBX decoder. Ingest and Run belong to the
// reader goroutine, the only one mutating decoder state. Other goroutines
// observe committed fixes through Changed and Fix and may issue commands.
type Receiver struct {
	port     Port
	nmea     *nmea.Decoder
	ubx      *ubx.Decoder
	nmeaOpts []nmea.Option

	// Single slot cell: the snapshot is stored before the flag is raised
	fix       atomic.Value
	changed   atomic.Bool
	sentences atomic.Uint32

	// Raised by restarts, the reader marks the status fields invalid on its next byte
	resetStatus atomic.Bool

	cmdMu      sync.Mutex
	ackTimeout time.Duration
	enable     EnableLine
}

func NewReceiver(port Port, opts ...Option) *Receiver {
	r := &Receiver{
		port:       port,
		ubx:        ubx.NewDecoder(),
		ackTimeout: DefaultAckTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.nmea = nmea.NewDecoder(r.nmeaOpts...)
	r.fix.Store(nmea.NewFix())

	return r
}

// MidNMEATerm reports whether the NMEA decoder holds part of a term. UBX frames
// are only recognized outside of NMEA terms, a frame starting inside one is lost.
func (r *Receiver) MidNMEATerm() bool {
	return r.nmea.MidTerm()
}

// Ingest routes one received byte to the UBX or the NMEA decoder
func (r *Receiver) Ingest(c byte) {
	if r.resetStatus.Load() && r.resetStatus.Swap(false) {
		r.nmea.ResetStatus()
		r.fix.Store(r.nmea.Snapshot())
		r.changed.Store(true)
	}

	if !r.MidNMEATerm() && r.ubx.Feed(c) {
		return
	}

	if r.nmea.Feed(c) {
		r.fix.Store(r.nmea.Snapshot())
		r.sentences.Inc()
		r.changed.Store(true)
	}
}

// Changed reports a fix committed since the last call and clears the flag
func (r *Receiver) Changed() bool {
	return r.changed.Swap(false)
}

// Fix returns the latest committed snapshot
func (r *Receiver) Fix() nmea.Fix {
	return r.fix.Load().(nmea.Fix)
}

// Sentences counts committed NMEA sentences
func (r *Receiver) Sentences() uint32 {
	return r.sentences.Load()
}

func (r *Receiver) FrameStats() ubx.Stats {
	return r.ubx.Stats()
}

// Run reads from the port until ctx is done or the port fails.
// The port should have a read timeout so cancellation is noticed.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) && ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("reading from receiver failed", zap.Error(err))
			return err
		}

		for _, c := range buf[:n] {
			r.Ingest(c)
		}
	}
}

// SetEnabled drives the enable line, without one configured this is a no-op
func (r *Receiver) SetEnabled(enabled bool) error {
	if r.enable == nil {
		log.Debug("no enable line configured, ignoring", zap.Bool("enabled", enabled))
		return nil
	}

	v := 0
	if enabled {
		v = 1
	}
	return r.enable.SetValue(v)
}

// Close releases the enable line, the port is owned by the caller
func (r *Receiver) Close() error {
	if r.enable == nil {
		return nil
	}
	return r.enable.Close()
}
