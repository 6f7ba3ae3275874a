package usb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DiscoResearchSat/go-udev/netlink"
	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// HotplugEvent reports a supported device being attached or removed
type HotplugEvent struct {
	DeviceTuple
	Added bool
}

type USBDeviceManager struct {
	sync.Mutex
	sync.WaitGroup

	// A map of currently connected devices
	devices DeviceMap
	// Hotplug notifications, dropped when nobody reads them
	events chan HotplugEvent
	// Channel to close the udev monitor if its enabled
	udevCloseChannel chan struct{}
	// The udev event connection, if not nil, udev monitoring is active
	udev *netlink.UEventConn
}

// NewUSBDeviceManager creates the manager, with hotplug it also starts the udev monitor
func NewUSBDeviceManager(hotplug bool) *USBDeviceManager {
	m := &USBDeviceManager{
		devices:          make(DeviceMap),
		events:           make(chan HotplugEvent, 8),
		udevCloseChannel: make(chan struct{}),
	}

	if !hotplug {
		return m
	}

	// Connect to udev
	m.udev = new(netlink.UEventConn)
	if err := m.udev.Connect(netlink.UdevEvent); err != nil {
		log.Error("Could not connect to udev, hotplug support not available!", zap.Error(err))
		m.udev = nil
	} else {
		// run monitor
		m.Add(1)
		go m.monitor()
	}

	return m
}

func (m *USBDeviceManager) Events() <-chan HotplugEvent {
	return m.events
}

func (m *USBDeviceManager) FindSupportedDevices() DeviceMap {
	m.Lock()
	defer m.Unlock()

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	for supported, d := range SupportedDevices {
		dev, err := usbCtx.OpenDeviceWithVIDPID(d.VendorID, d.ProductID)
		if dev == nil {
			log.Debug("device not attached", zap.String("device", d.String()))
			continue
		}

		// close the device
		dev.Close()

		if err != nil {
			log.Error("error while iterating over usb devices", zap.Error(err))
			continue
		}

		// Add the device to the found devices
		m.devices[supported] = d
		log.Info("found supported device", zap.String("device", d.String()))
	}

	return m.copyDevices()
}

func (m *USBDeviceManager) copyDevices() DeviceMap {
	out := make(DeviceMap, len(m.devices))
	for k, v := range m.devices {
		out[k] = v
	}
	return out
}

func (m *USBDeviceManager) Attached(target DeviceType) bool {
	m.Lock()
	defer m.Unlock()

	_, ok := m.devices[target]
	return ok
}

// FindPort returns the serial device of the first attached supported receiver
func (m *USBDeviceManager) FindPort() (string, DeviceTuple, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", DeviceTuple{}, err
	}

	name, tuple, ok := matchPorts(ports)
	if !ok {
		return "", DeviceTuple{}, NewNotFoundError("no supported receiver attached")
	}

	m.Lock()
	m.devices[tuple.DeviceType] = tuple.Device
	m.Unlock()

	log.Info("found receiver port", zap.String("port", name), zap.String("device", tuple.String()))
	return name, tuple, nil
}

// matchPorts prefers native u-blox devices over uart bridges, then the port name
func matchPorts(ports []*enumerator.PortDetails) (string, DeviceTuple, bool) {
	type candidate struct {
		name  string
		tuple DeviceTuple
	}

	var found []candidate
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}

		vid, verr := ParseHexUINT16(p.VID)
		pid, perr := ParseHexUINT16(p.PID)
		if verr != nil || perr != nil {
			continue
		}

		if tuple, ok := FindSupportedDeviceTuple(gousb.ID(vid), gousb.ID(pid)); ok {
			found = append(found, candidate{p.Name, tuple})
		}
	}

	if len(found) == 0 {
		return "", DeviceTuple{}, false
	}

	sort.Slice(found, func(i, j int) bool {
		iNative := found[i].tuple.VendorID == UBloxVendorID
		jNative := found[j].tuple.VendorID == UBloxVendorID
		if iNative != jNative {
			return iNative
		}
		return found[i].name < found[j].name
	})

	return found[0].name, found[0].tuple, true
}

func (m *USBDeviceManager) HotplugReceived(vendorID uint16, productID uint16, wasAdded bool) {
	m.Lock()
	defer m.Unlock()

	// Try to find device, silently ignore if not supported
	tuple, found := FindSupportedDeviceTuple(gousb.ID(vendorID), gousb.ID(productID))
	if !found {
		log.Debug("no matching device found", zap.String("vid", gousb.ID(vendorID).String()), zap.String("pid", gousb.ID(productID).String()))
		return
	}

	// No further checks, no duplicates as key is unique
	if !wasAdded {
		delete(m.devices, tuple.DeviceType)
		log.Info("hotplug device removed", zap.String("device", tuple.Device.String()))
	} else {
		log.Info("hotplug device added", zap.String("device", tuple.Device.String()))
		m.devices[tuple.DeviceType] = tuple.Device
	}

	select {
	case m.events <- HotplugEvent{DeviceTuple: tuple, Added: wasAdded}:
	default:
		log.Warn("hotplug event dropped", zap.String("device", tuple.Device.String()))
	}
}

func (m *USBDeviceManager) Shutdown() {
	m.Lock()
	monitoring := m.udev != nil
	m.Unlock()

	// Close the udev monitor if it exists, the monitor takes the lock while handling events
	if monitoring {
		log.Info("closing udev monitor channel")
		m.udevCloseChannel <- struct{}{}
	}

	m.Wait()
}

// ResetDevice issues a usb port reset, the receiver reboots and re-enumerates
func (m *USBDeviceManager) ResetDevice(target DeviceType) error {
	m.Lock()
	defer m.Unlock()

	// Grab the details for more descriptive errors
	supd, exists := SupportedDevices[target]
	if !exists {
		return fmt.Errorf("device unknown, add it to the code")
	}

	d, exists := m.devices[target]
	if !exists {
		return NewNotFoundError(fmt.Sprintf("device with Name '%s' not attached", supd.Name))
	}

	// Try acquiring the device and issuing a simple usb reset
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()
	dev, _ := usbCtx.OpenDeviceWithVIDPID(d.VendorID, d.ProductID)
	if dev == nil {
		log.Error("the device was detected previously, but disappeared!", zap.String("device", d.String()))
		return NewVanishedError(fmt.Sprintf("%s disappeared but was detected before", d.String()))
	}

	// Close when we are done
	defer dev.Close()

	if err := dev.Reset(); err != nil {
		log.Error("resetting usb device failed", zap.String("device", d.String()))
		return err
	}

	log.Info("usb device reset", zap.String("device", d.String()))
	return nil
}

// Monitor events
func (m *USBDeviceManager) monitor() {
	errors := make(chan error)

	// BIND OR UNBIND
	matchRule := fmt.Sprintf("%s|%s", netlink.BIND, netlink.UNBIND)
	deviceMatcher := &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				// Only match usb_device binds and unbinds
				Action: &matchRule,
				Env: map[string]string{
					"DEVTYPE": "usb_device",
				},
			},
		},
	}

	// Start he monitor
	ctx, cancelUdevMonitor := context.WithCancel(context.Background())
	queue := m.udev.Monitor(ctx, errors, deviceMatcher)

	// Defer the channel closing and marking wg as done
	defer func() {
		m.Lock()
		m.udev.Close()
		m.Done()
		m.Unlock()
	}()

udevMonitorLoop:
	for {
		select {
		case <-m.udevCloseChannel:
			// Wait until the queue terminates
			cancelUdevMonitor()
			// Wait for context-cancelled error
			<-errors
			break udevMonitorLoop

		case uevent := <-queue:
			pstr, pok := uevent.Env["PRODUCT"]
			if !pok {
				log.Debug("device did not contain product indicator", zap.Any("env", uevent.String()))
				continue
			}

			vid, pid, err := ParseProduct(pstr)
			if err != nil {
				log.Error("could not parse udev product", zap.Error(err))
				continue
			}

			// Forward the event to the usb matcher
			m.HotplugReceived(vid, pid, uevent.Action == netlink.BIND)
		case err := <-errors:
			log.Error("udev monitor encountered an error", zap.Error(err))
		}
	}

	log.Info("stopped observing udev events")
}
