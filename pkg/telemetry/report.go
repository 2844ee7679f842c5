package telemetry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"emsgateway/pkg/device"
	"emsgateway/pkg/utils/hexutil"
	"k8s.io/klog/v2"
)

var cellKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// Sample is the latest snapshot of one device sub-tag.
type Sample struct {
	DeviceType   device.Kind
	DeviceSerial string
	DeviceName   string
	Tag          string
	SubTag       string
	Time         time.Time
	Registers    map[string]string
}

// Header opens every report.
type Header struct {
	CollectorSerial string
	DeviceSerial    string
	Time            time.Time
	Tag             string
}

func (h Header) String() string {
	return hexutil.SerialField(h.CollectorSerial) + hexutil.SerialField(h.DeviceSerial) + Timestamp(h.Time) + h.Tag
}

// Timestamp renders t as six hex bytes: year-2000, month, day, hour,
// minute, second.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%02x%02x%02x%02x%02x%02x",
		t.Year()-timestampBase, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Tag returns the report tag of a device family, empty for families without
// one.
func Tag(kind device.Kind) string {
	return kindTags[kind]
}

// ReportSerial is the serial a device reports under. Devices without their
// own serial number use a prefix plus the collector serial.
func ReportSerial(kind device.Kind, deviceSerial, collectorSerial string) string {
	if prefix, ok := virtualPrefixes[kind]; ok {
		return prefix + collectorSerial
	}
	return deviceSerial
}

// EncodeReport concatenates header, segment count and segments. Segments
// beyond the 255 a count byte can announce are dropped.
func EncodeReport(h Header, segments []Segment) string {
	if len(segments) > maxSegments {
		klog.V(1).InfoS("Dropped report segments over the count limit", "device", h.DeviceSerial, "segments", len(segments), "limit", maxSegments)
		segments = segments[:maxSegments]
	}
	var sb strings.Builder
	sb.WriteString(h.String())
	sb.WriteString(fmt.Sprintf("%02X", len(segments)))
	for _, s := range segments {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Encode builds the segmented report of a sample taken at now.
func Encode(s *Sample, collectorSerial string, now time.Time) string {
	h := Header{
		CollectorSerial: collectorSerial,
		DeviceSerial:    ReportSerial(s.DeviceType, s.DeviceSerial, collectorSerial),
		Time:            now,
		Tag:             Tag(s.DeviceType),
	}
	return EncodeReport(h, Segments(Registers(s.Registers)))
}

// Registers drops record metadata, leaving register values only.
func Registers(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if _, ok := metadataKeys[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

// EncodeMonomer builds the cell level report of a battery stack. The cell
// count block lists the cell keys of the voltage record, the data block lists
// key and value of every cell for each record tag in fixed order.
func EncodeMonomer(records []*Sample, collectorSerial, deviceSerial string, now time.Time) string {
	byTag := make(map[string]*Sample, len(records))
	for _, r := range records {
		if _, ok := byTag[r.Tag]; !ok {
			byTag[r.Tag] = r
		}
	}

	var sb strings.Builder
	sb.WriteString(Header{
		CollectorSerial: collectorSerial,
		DeviceSerial:    deviceSerial,
		Time:            now,
		Tag:             MonomerTag,
	}.String())
	sb.WriteString(MonomerSegmentsHex)

	if voltage, ok := byTag[SingleCellVoltage]; ok {
		for _, k := range cellKeys(voltage.Registers) {
			sb.WriteString(k)
		}
	}
	sb.WriteString(CompressionNone)

	for _, tag := range monomerOrder {
		r, ok := byTag[tag]
		if !ok {
			continue
		}
		for _, k := range cellKeys(r.Registers) {
			sb.WriteString(k)
			sb.WriteString(r.Registers[k])
		}
	}
	return sb.String()
}

func cellKeys(registers map[string]string) []string {
	keys := make([]string, 0, len(registers))
	for k := range registers {
		if cellKeyPattern.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
