package ublox

import (
	"time"

	"github.com/LeoCommon/odometer/pkg/log"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Reads return after this long without data so the read loop can notice cancellation
const readTimeout = 100 * time.Millisecond

// SerialPort is a Port on a tty device
type SerialPort struct {
	serial.Port

	name string
	mode *serial.Mode
}

func OpenPort(name string, baud int) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		log.Error("error while opening serial device", zap.String("device", name), zap.Error(err))
		return nil, err
	}

	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}

	log.Info("opened receiver port", zap.String("device", name), zap.Int("baud", baud))
	return &SerialPort{Port: p, name: name, mode: mode}, nil
}

func (p *SerialPort) SetBaud(baud int) error {
	p.mode.BaudRate = baud
	return p.Port.SetMode(p.mode)
}

func (p *SerialPort) Baud() int {
	return p.mode.BaudRate
}

func (p *SerialPort) Name() string {
	return p.name
}

// ListPorts returns the serial devices present on the system
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
