//go:build !linux

package ublox

import "errors"

func OpenEnableLine(chipPath string, line string) (EnableLine, error) {
	return nil, errors.New("gpio enable line unsupported on this platform")
}
