// Package ubx implements the u-blox binary protocol subset used to configure
// the receiver: frame encoding, a streaming frame decoder and CFG payloads.
package ubx

import (
	"encoding/binary"
	"fmt"
)

// Sync bytes
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

const (
	// MaxPayload is the largest payload the decoder accepts
	MaxPayload = 100

	headerLen   = 4 // class, id, length
	checksumLen = 2
	bufferSize  = MaxPayload + headerLen + checksumLen
)

// Frame is one validated UBX message without sync and checksum bytes
type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("%02X/%02X len %d", f.Class, f.ID, len(f.Payload))
}

// Is matches class and id
func (f Frame) Is(class, id byte) bool {
	return f.Class == class && f.ID == id
}

// Checksum computes the 8-bit Fletcher checksum over class, id, length and payload
func Checksum(data []byte) (ckA, ckB byte) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// AppendFrame appends the complete wire representation to dst
func AppendFrame(dst []byte, class, id byte, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, Sync1, Sync2, class, id)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(payload)))
	dst = append(dst, payload...)
	ckA, ckB := Checksum(dst[start+2:])
	return append(dst, ckA, ckB)
}

// Encode returns the wire representation of a single frame
func Encode(class, id byte, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, len(payload)+headerLen+checksumLen+2), class, id, payload)
}
