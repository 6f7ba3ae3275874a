package usb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

type DeviceType int

const (
	Unknown DeviceType = iota
	// u-blox receivers with native usb
	UBlox6
	UBlox7
	UBlox8
	UBlox9
	// usb uart bridges found on receiver breakout boards
	BridgeCP210x
)

const UBloxVendorID gousb.ID = 0x1546

var (
	SupportedDevices = DeviceMap{
		UBlox6: {
			VendorID:  UBloxVendorID,
			ProductID: 0x01a6,
			Name:      "u-blox 6",
		},
		UBlox7: {
			VendorID:  UBloxVendorID,
			ProductID: 0x01a7,
			Name:      "u-blox 7",
		},
		UBlox8: {
			VendorID:  UBloxVendorID,
			ProductID: 0x01a8,
			Name:      "u-blox 8",
		},
		UBlox9: {
			VendorID:  UBloxVendorID,
			ProductID: 0x01a9,
			Name:      "u-blox 9",
		},
		BridgeCP210x: {
			VendorID:  0x10c4,
			ProductID: 0xea60,
			Name:      "CP210x UART bridge",
		},
	}
)

type Device struct {
	Name      string
	VendorID  gousb.ID
	ProductID gousb.ID
}

func (d *Device) String() string {
	return fmt.Sprintf("%s pid: %s vid: %s", d.Name, d.ProductID.String(), d.VendorID.String())
}

type DeviceMap map[DeviceType]*Device

type DeviceTuple struct {
	*Device
	DeviceType
}

func FindSupportedDeviceTuple(vendorID gousb.ID, productID gousb.ID) (DeviceTuple, bool) {
	for k, device := range SupportedDevices {
		if device.VendorID == vendorID && device.ProductID == productID {
			return DeviceTuple{DeviceType: k, Device: device}, true
		}
	}
	return DeviceTuple{}, false
}

func ParseHexUINT16(str string) (uint16, error) {
	val, err := strconv.ParseUint(str, 16, 16)
	if err != nil {
		return 0, err
	}

	return uint16(val), nil
}

// ParseProduct splits a udev PRODUCT value like "1546/1a8/100" (VID/PID/REVISION)
func ParseProduct(product string) (vid uint16, pid uint16, err error) {
	s := strings.Split(product, "/")
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("malformed product string %q", product)
	}

	if vid, err = ParseHexUINT16(s[0]); err != nil {
		return 0, 0, fmt.Errorf("could not parse hex vid %q: %w", s[0], err)
	}
	if pid, err = ParseHexUINT16(s[1]); err != nil {
		return 0, 0, fmt.Errorf("could not parse hex pid %q: %w", s[1], err)
	}

	return vid, pid, nil
}
