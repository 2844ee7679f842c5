package device

import (
	"errors"
	"time"
)

// Kind is the closed set of device families the gateway knows about.
type Kind string

const (
	KindDehumidifier     Kind = "dehumidifier"
	KindLiquidCooling    Kind = "liquidCooling"
	KindBMS              Kind = "bms"
	KindBMSMonomer       Kind = "bms_monomer"
	KindPCS              Kind = "pcs"
	KindIOModule         Kind = "IOmodule"
	KindBeidou           Kind = "beidou"
	KindAirConditioner   Kind = "AirConditioner"
	KindBatteryCell      Kind = "batteryCell"
	KindDosimeter        Kind = "dosimeter"
	KindElectricityMeter Kind = "electricityMeter"
	KindCANDevice        Kind = "canDevice"
)

var knownKinds = map[Kind]struct{}{
	KindDehumidifier:     {},
	KindLiquidCooling:    {},
	KindBMS:              {},
	KindBMSMonomer:       {},
	KindPCS:              {},
	KindIOModule:         {},
	KindBeidou:           {},
	KindAirConditioner:   {},
	KindBatteryCell:      {},
	KindDosimeter:        {},
	KindElectricityMeter: {},
	KindCANDevice:        {},
}

func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// TransportType tells how a command device is reached. The empty type means
// the device sits behind the CAN bridge.
type TransportType string

const (
	TransportNone      TransportType = ""
	TransportTcp       TransportType = "tcp"
	TransportSerial    TransportType = "serial"
	TransportModbusTcp TransportType = "modbusTcp"
)

const (
	DehumidifierPrefix  = "DH"
	LiquidCoolingPrefix = "LC"

	DehumidifierAddress  = "127.0.0.1:8082"
	LiquidCoolingAddress = "127.0.0.1:8083"

	defaultTimeout  = 5 * time.Second
	defaultBaudRate = 9600
	readBufferSize  = 1024
)

var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrNoReply        = errors.New("device sent no reply")
	ErrNotCommandable = errors.New("device has no command channel")
	ErrInvalidDevice  = errors.New("invalid device")
)
