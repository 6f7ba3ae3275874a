//go:build linux

package ublox

import (
	"fmt"
	"strconv"

	"github.com/warthog618/go-gpiocdev"
)

type gpioLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenEnableLine requests the receiver enable pin as an output, initially low.
// line is either a line name like "GPIO17" or a numeric offset on the chip.
func OpenEnableLine(chipPath string, line string) (EnableLine, error) {
	chip, err := gpiocdev.NewChip(chipPath, gpiocdev.WithConsumer("odometer-gps-en"))
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", chipPath, err)
	}

	offset, err := strconv.Atoi(line)
	if err != nil {
		offset, err = chip.FindLine(line)
		if err != nil {
			_ = chip.Close()
			return nil, fmt.Errorf("gpio line %q not found on %s: %w", line, chipPath, err)
		}
	}

	l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("requesting gpio line %q: %w", line, err)
	}

	return &gpioLine{chip: chip, line: l}, nil
}

func (g *gpioLine) SetValue(value int) error {
	return g.line.SetValue(value)
}

// Close switches the receiver off and releases the line
func (g *gpioLine) Close() error {
	if g.line == nil {
		return nil
	}

	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil

	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
