package telemetry

import (
	"errors"
	"time"

	"emsgateway/pkg/device"
)

const (
	timestampBase = 2000
	// the segment count is a single byte
	maxSegments = 0xFF

	MonomerTag         = "f901"
	CompressionNone    = "00"
	MonomerSegmentsHex = "00"
)

// Info types stored in the subTag of every sample.
const (
	RuntimeInformation       = "runtimeInformation"
	ConfigurationInformation = "configurationInformation"
)

// Query windows per device family.
const (
	DefaultWindow = 30 * time.Second
	PCSWindow     = 3 * time.Minute
	MonomerWindow = 500 * time.Millisecond
)

var ErrEmptyRegisters = errors.New("sample has no registers")

// kindTags maps a device family to its two byte report tag.
var kindTags = map[device.Kind]string{
	device.KindDehumidifier:     "fb01",
	device.KindBMS:              "fc01",
	device.KindBMSMonomer:       "fc01",
	device.KindLiquidCooling:    "fa01",
	device.KindBatteryCell:      "f901",
	device.KindDosimeter:        "fe01",
	device.KindElectricityMeter: "fd01",
	device.KindIOModule:         "f601",
	device.KindPCS:              "ff03",
}

// virtualPrefixes name devices that report under the collector serial.
var virtualPrefixes = map[device.Kind]string{
	device.KindIOModule:       "IO",
	device.KindBeidou:         "BD",
	device.KindAirConditioner: "Air",
}

// metadataKeys are record columns that never carry register values.
var metadataKeys = map[string]struct{}{
	"_measurement": {},
	"tag":          {},
	"_time":        {},
	"deviceName":   {},
	"deviceSN":     {},
	"subTag":       {},
}

// Cell record tags of a bms_monomer snapshot, in report order.
const (
	SingleCellVoltage       = "SingleCellVoltage"
	SingleTemperature       = "SingleTemperature"
	RTControlTemperature    = "RTControlTemperature"
	MonomerEquilibriumState = "MonomerEquilibriumState"
)

var monomerOrder = []string{SingleCellVoltage, SingleTemperature, RTControlTemperature, MonomerEquilibriumState}
