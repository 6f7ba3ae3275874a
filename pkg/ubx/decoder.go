package ubx

import (
	"encoding/binary"
	"sync"

	"go.uber.org/atomic"
)

type state uint8

const (
	stateIdle state = iota
	stateSync
	statePayload
)

// Stats counts frames seen by the decoder, safe to read from any goroutine
type Stats struct {
	Frames          uint32
	FailedChecksums uint32
	Oversized       uint32
}

// Decoder reassembles UBX frames one byte at a time. Feed must be called from
// a single goroutine, ResponseReady and Frame may be polled from another one.
type Decoder struct {
	state  state
	buf    [bufferSize]byte
	offset int
	length int
	ckA    byte
	ckB    byte

	ready atomic.Bool

	mu      sync.Mutex
	last    [bufferSize]byte
	lastLen int

	frames    atomic.Uint32
	failed    atomic.Uint32
	oversized atomic.Uint32
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed returns false only when a byte is rejected outside of a frame, that is
// a non sync byte while idle or a broken sync pair. Everything else is consumed.
func (d *Decoder) Feed(c byte) bool {
	switch d.state {
	case stateIdle:
		if c != Sync1 {
			return false
		}
		d.state = stateSync
		d.ready.Store(false)
		d.length = 0
		d.offset = 0
		d.ckA, d.ckB = 0, 0

	case stateSync:
		if c != Sync2 {
			d.state = stateIdle
			return false
		}
		d.state = statePayload

	case statePayload:
		if d.offset >= len(d.buf) {
			d.state = stateIdle
			return true
		}

		d.buf[d.offset] = c
		d.offset++

		if d.offset == headerLen {
			d.length = int(binary.LittleEndian.Uint16(d.buf[2:4]))
			if d.length > MaxPayload {
				d.oversized.Inc()
				d.state = stateIdle
				return true
			}
		}

		if d.offset <= d.length+headerLen {
			d.ckA += c
			d.ckB += d.ckA
		}

		if d.offset == d.length+headerLen+checksumLen {
			if d.ckA == d.buf[d.length+headerLen] && d.ckB == d.buf[d.length+headerLen+1] {
				d.publish()
			} else {
				d.failed.Inc()
			}
			d.state = stateIdle
		}
	}

	return true
}

func (d *Decoder) publish() {
	d.mu.Lock()
	d.lastLen = copy(d.last[:], d.buf[:d.length+headerLen])
	d.mu.Unlock()

	d.frames.Inc()
	d.ready.Store(true)
}

// InFrame reports whether the decoder is past the first sync byte
func (d *Decoder) InFrame() bool {
	return d.state != stateIdle
}

// ResponseReady is edge triggered, it reports a completed frame once and clears itself
func (d *Decoder) ResponseReady() bool {
	return d.ready.Swap(false)
}

// Frame returns a copy of the last validated frame
func (d *Decoder) Frame() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastLen < headerLen {
		return Frame{}
	}

	return Frame{
		Class:   d.last[0],
		ID:      d.last[1],
		Payload: append([]byte(nil), d.last[headerLen:d.lastLen]...),
	}
}

func (d *Decoder) Class() byte {
	return d.Frame().Class
}

func (d *Decoder) ID() byte {
	return d.Frame().ID
}

func (d *Decoder) Len() int {
	return len(d.Frame().Payload)
}

func (d *Decoder) Payload() []byte {
	return d.Frame().Payload
}

func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:          d.frames.Load(),
		FailedChecksums: d.failed.Load(),
		Oversized:       d.oversized.Load(),
	}
}
