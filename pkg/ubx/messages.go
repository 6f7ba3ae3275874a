package ubx

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Message classes
const (
	ClassNAV  byte = 0x01
	ClassRXM  byte = 0x02
	ClassACK  byte = 0x05
	ClassCFG  byte = 0x06
	ClassNMEA byte = 0xF0
)

// Message ids
const (
	IDAckNak byte = 0x00
	IDAckAck byte = 0x01

	IDCfgPrt  byte = 0x00
	IDCfgMsg  byte = 0x01
	IDCfgRst  byte = 0x04
	IDCfgRate byte = 0x08
	IDCfgCfg  byte = 0x09
	IDCfgNav5 byte = 0x24

	IDRxmPmreq byte = 0x41
)

// Feature is an NMEA output message of the receiver that can be rate configured
type Feature struct {
	Mnemonic    string
	Class       byte
	ID          byte
	Description string
}

var Features = []Feature{
	{"DTM", ClassNMEA, 0x0A, "datum reference"},
	{"GBS", ClassNMEA, 0x09, "satellite fault detection"},
	{"GGA", ClassNMEA, 0x00, "fix data"},
	{"GLL", ClassNMEA, 0x01, "latitude and longitude"},
	{"GLQ", ClassNMEA, 0x43, "poll, talker GL"},
	{"GNQ", ClassNMEA, 0x42, "poll, talker GN"},
	{"GNS", ClassNMEA, 0x0D, "GNSS fix data"},
	{"GPQ", ClassNMEA, 0x40, "poll, talker GP"},
	{"GRS", ClassNMEA, 0x06, "range residuals"},
	{"GSA", ClassNMEA, 0x02, "DOP and active satellites"},
	{"GST", ClassNMEA, 0x07, "pseudo range error statistics"},
	{"GSV", ClassNMEA, 0x03, "satellites in view"},
	{"RMC", ClassNMEA, 0x04, "recommended minimum data"},
	{"TXT", ClassNMEA, 0x41, "text transmission"},
	{"VTG", ClassNMEA, 0x05, "course and ground speed"},
	{"ZDA", ClassNMEA, 0x08, "time and date"},
}

// LookupFeature matches the first three characters case-insensitively, "gsv" and "GSVx" both find GSV
func LookupFeature(mnemonic string) (Feature, bool) {
	if len(mnemonic) < 3 {
		return Feature{}, false
	}

	for _, f := range Features {
		if strings.EqualFold(mnemonic[:3], f.Mnemonic) {
			return f, true
		}
	}
	return Feature{}, false
}

// CfgMsg sets the output rate of a message, 0 disables it, n outputs it every n-th solution
func CfgMsg(class, id, rate byte) []byte {
	return []byte{class, id, rate}
}

// Port settings for CFG-PRT on UART1: 8N1, UBX+NMEA+RTCM in, UBX+NMEA out
const (
	PortUART1     byte   = 1
	PortModeUART  uint32 = 0x000008D0
	InProtoMask   uint16 = 0x0007
	OutProtoMask  uint16 = 0x0003
	cfgPrtLength         = 20
	cfgRateLength        = 6
	cfgNav5Length        = 36
)

// CfgPrt builds the 20 byte port configuration with the given baud rate
func CfgPrt(port byte, baud uint32) []byte {
	p := make([]byte, cfgPrtLength)
	p[0] = port
	// p[1] reserved, p[2:4] txReady disabled
	binary.LittleEndian.PutUint32(p[4:], PortModeUART)
	binary.LittleEndian.PutUint32(p[8:], baud)
	binary.LittleEndian.PutUint16(p[12:], InProtoMask)
	binary.LittleEndian.PutUint16(p[14:], OutProtoMask)
	// p[16:18] flags, p[18:20] reserved
	return p
}

// Measurement rates in milliseconds
const (
	Rate1Hz    uint16 = 1000
	Rate5Hz    uint16 = 200
	Rate10Hz   uint16 = 100
	Rate0_33Hz uint16 = 3000
	Rate0_2Hz  uint16 = 5000
	Rate0_1Hz  uint16 = 10000
	Rate0_05Hz uint16 = 20000
)

// CfgRate sets the measurement interval, one navigation solution per measurement, aligned to UTC
func CfgRate(measRateMs uint16) []byte {
	p := make([]byte, cfgRateLength)
	binary.LittleEndian.PutUint16(p[0:], measRateMs)
	binary.LittleEndian.PutUint16(p[2:], 1)
	binary.LittleEndian.PutUint16(p[4:], 0)
	return p
}

type DynModel byte

const (
	DynPortable   DynModel = 0
	DynStationary DynModel = 2
	DynPedestrian DynModel = 3
	DynAutomotive DynModel = 4
	DynSea        DynModel = 5
	DynAirborne1g DynModel = 6
	DynAirborne2g DynModel = 7
	DynAirborne4g DynModel = 8
	DynWrist      DynModel = 9
)

var dynModelNames = map[string]DynModel{
	"portable":   DynPortable,
	"stationary": DynStationary,
	"pedestrian": DynPedestrian,
	"automotive": DynAutomotive,
	"sea":        DynSea,
	"airborne1g": DynAirborne1g,
	"airborne2g": DynAirborne2g,
	"airborne4g": DynAirborne4g,
	"wrist":      DynWrist,
}

func ParseDynModel(name string) (DynModel, error) {
	m, ok := dynModelNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown dynamic platform model %q", name)
	}
	return m, nil
}

func (m DynModel) String() string {
	for name, v := range dynModelNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("dyn(%d)", byte(m))
}

// CfgNav5 only applies the dynamic model, the mask leaves every other setting untouched
func CfgNav5(model DynModel) []byte {
	p := make([]byte, cfgNav5Length)
	binary.LittleEndian.PutUint16(p[0:], 1<<0)
	p[2] = byte(model)
	return p
}

// ResetMode selects which battery backed data CFG-RST clears
type ResetMode uint16

const (
	HotStart  ResetMode = 0x0000
	WarmStart ResetMode = 0x0001
	ColdStart ResetMode = 0xFFFF
)

const (
	resetHardwareImmediate byte = 0x00
	resetSoftwareGNSSOnly  byte = 0x02
)

// CfgRst restarts the GNSS part of the receiver. The receiver does not acknowledge it.
func CfgRst(mode ResetMode) []byte {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint16(p[0:], uint16(mode))
	p[2] = resetSoftwareGNSSOnly
	return p
}

// CfgRstHardware triggers an immediate watchdog reset
func CfgRstHardware() []byte {
	p := make([]byte, 4)
	p[2] = resetHardwareImmediate
	return p
}

const (
	cfgAllSections uint32 = 0x0000FFFF
	// BBR, flash, EEPROM, SPI flash
	cfgDeviceMask byte = 0x17
)

// CfgCfgSave writes the current configuration to non-volatile storage
func CfgCfgSave() []byte {
	return cfgCfg(0, cfgAllSections, 0)
}

// CfgCfgFactoryReset clears the stored configuration and loads the defaults
func CfgCfgFactoryReset() []byte {
	return cfgCfg(cfgAllSections, 0, cfgAllSections)
}

func cfgCfg(clearMask, saveMask, loadMask uint32) []byte {
	p := make([]byte, 13)
	binary.LittleEndian.PutUint32(p[0:], clearMask)
	binary.LittleEndian.PutUint32(p[4:], saveMask)
	binary.LittleEndian.PutUint32(p[8:], loadMask)
	p[12] = cfgDeviceMask
	return p
}

// RxmPmreq puts the receiver into backup mode for durationMs, 0 means until woken by the host
func RxmPmreq(durationMs uint32) []byte {
	p := make([]byte, 8)
	binary.LittleEndian.PutUint32(p[0:], durationMs)
	binary.LittleEndian.PutUint32(p[4:], 0x02)
	return p
}

// IsAck reports whether frame acknowledges the given CFG message, nak is true for ACK-NAK
func IsAck(f Frame, class, id byte) (ack bool, nak bool) {
	if f.Class != ClassACK || len(f.Payload) < 2 || f.Payload[0] != class || f.Payload[1] != id {
		return false, false
	}
	return f.ID == IDAckAck, f.ID == IDAckNak
}
