package telemetry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"emsgateway/pkg/device"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Source reads the latest device snapshots from the time-series store. A nil
// sample with a nil error means "no data".
type Source interface {
	Latest(ctx context.Context, kind device.Kind, subTag string, window time.Duration) (*Sample, error)
	Monomer(ctx context.Context) ([]*Sample, error)
}

// Writer stores device readings pushed by the local collectors.
type Writer interface {
	Write(ctx context.Context, batch *Batch) error
}

// Querier returns the raw records one device stored in a time range.
type Querier interface {
	Query(ctx context.Context, q *DeviceQuery) ([]map[string]interface{}, error)
}

// DeviceQuery selects the readings of one device. Start and Stop are flux
// range bounds: a relative duration like -1h, an RFC3339 time or now(). An
// empty Stop means now().
type DeviceQuery struct {
	Measurement string `json:"measurement"`
	DeviceName  string `json:"deviceName"`
	DeviceSN    string `json:"deviceSN"`
	Start       string `json:"start"`
	Stop        string `json:"stop,omitempty"`
}

var relativeBound = regexp.MustCompile(`^-?([0-9]+(ns|us|ms|mo|s|m|h|d|w|y))+$`)

func validBound(b string) bool {
	if b == "now()" || relativeBound.MatchString(b) {
		return true
	}
	_, err := time.Parse(time.RFC3339Nano, b)
	return err == nil
}

// Validate rejects queries that can not be turned into flux safely.
func (q *DeviceQuery) Validate() error {
	if len(q.Measurement) == 0 || len(q.DeviceName) == 0 || len(q.DeviceSN) == 0 {
		return errors.New("measurement, deviceName and deviceSN are required")
	}
	if !validBound(q.Start) {
		return errors.Errorf("invalid range start %q", q.Start)
	}
	if len(q.Stop) > 0 && !validBound(q.Stop) {
		return errors.Errorf("invalid range stop %q", q.Stop)
	}
	return nil
}

// Batch is one upload of readings from a single device.
type Batch struct {
	DeviceType   device.Kind `json:"deviceType"`
	DeviceName   string      `json:"deviceName"`
	SerialNumber string      `json:"serialNumber"`
	Timestamp    int64       `json:"timestamp"`
	TimeUnit     string      `json:"timeUnit,omitempty"`
	TimeSeries   []Reading   `json:"timeSeries"`
}

type Reading struct {
	Tag    string      `json:"tag,omitempty"`
	SubTag string      `json:"subTag,omitempty"`
	Field  string      `json:"field"`
	Value  interface{} `json:"value"`
}

// Time converts the batch timestamp using its unit, milliseconds by default.
func (b *Batch) Time() time.Time {
	switch strings.ToLower(b.TimeUnit) {
	case "s":
		return time.Unix(b.Timestamp, 0)
	case "us":
		return time.UnixMicro(b.Timestamp)
	case "ns":
		return time.Unix(0, b.Timestamp)
	default:
		return time.UnixMilli(b.Timestamp)
	}
}

type InfluxConfig struct {
	URL    string `json:"url,omitempty"`
	Token  string `json:"token,omitempty"`
	Org    string `json:"org,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

var _ Source = (*InfluxSource)(nil)
var _ Writer = (*InfluxSource)(nil)
var _ Querier = (*InfluxSource)(nil)

type InfluxSource struct {
	cfg    InfluxConfig
	client influxdb2.Client
	query  api.QueryAPI
	write  api.WriteAPIBlocking
}

func NewInfluxSource(cfg InfluxConfig) *InfluxSource {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSource{
		cfg:    cfg,
		client: client,
		query:  client.QueryAPI(cfg.Org),
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (is *InfluxSource) Ping(ctx context.Context) error {
	ok, err := is.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("influxdb at %s is not reachable", is.cfg.URL)
	}
	return nil
}

func (is *InfluxSource) Close() error {
	is.client.Close()
	return nil
}

func (is *InfluxSource) Latest(ctx context.Context, kind device.Kind, subTag string, window time.Duration) (*Sample, error) {
	samples, err := is.run(ctx, LatestQuery(is.cfg.Bucket, kind, subTag, window))
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		klog.V(4).InfoS("No telemetry in window", "device", kind, "subTag", subTag, "window", window)
		return nil, nil
	}
	return samples[0], nil
}

func (is *InfluxSource) Monomer(ctx context.Context) ([]*Sample, error) {
	return is.run(ctx, MonomerQuery(is.cfg.Bucket, MonomerWindow))
}

func (is *InfluxSource) Write(ctx context.Context, batch *Batch) error {
	ts := batch.Time()
	points := make([]*write.Point, 0, len(batch.TimeSeries))
	for _, r := range batch.TimeSeries {
		tags := map[string]string{
			"deviceSN":   batch.SerialNumber,
			"deviceName": batch.DeviceName,
		}
		if len(r.Tag) > 0 {
			tags["tag"] = r.Tag
		}
		if len(r.SubTag) > 0 {
			tags["subTag"] = r.SubTag
		}
		points = append(points, influxdb2.NewPoint(string(batch.DeviceType), tags, map[string]interface{}{r.Field: r.Value}, ts))
	}
	if len(points) == 0 {
		return nil
	}
	if err := is.write.WritePoint(ctx, points...); err != nil {
		klog.V(2).InfoS("Failed to write telemetry", "device", batch.SerialNumber, "err", err)
		return errors.Wrap(err, "write telemetry")
	}
	return nil
}

func (is *InfluxSource) Query(ctx context.Context, q *DeviceQuery) ([]map[string]interface{}, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	flux := DeviceRecordsQuery(is.cfg.Bucket, q)
	result, err := is.query.Query(ctx, flux)
	if err != nil {
		klog.V(2).InfoS("Failed to query device records", "query", flux, "err", err)
		return nil, errors.Wrap(err, "query device records")
	}
	defer result.Close()

	records := make([]map[string]interface{}, 0)
	for result.Next() {
		records = append(records, result.Record().Values())
	}
	if err = result.Err(); err != nil {
		return nil, errors.Wrap(err, "read device records")
	}
	klog.V(4).InfoS("Queried device records", "device", q.DeviceSN, "records", len(records))
	return records, nil
}

func (is *InfluxSource) run(ctx context.Context, flux string) ([]*Sample, error) {
	result, err := is.query.Query(ctx, flux)
	if err != nil {
		klog.V(2).InfoS("Failed to query telemetry", "query", flux, "err", err)
		return nil, errors.Wrap(err, "query telemetry")
	}
	defer result.Close()

	var samples []*Sample
	for result.Next() {
		record := result.Record()
		s, err := SampleFromRecord(record.Values(), record.Time())
		if err != nil {
			klog.V(2).InfoS("Skipped telemetry record", "err", err)
			continue
		}
		samples = append(samples, s)
	}
	if err = result.Err(); err != nil {
		return nil, errors.Wrap(err, "read telemetry")
	}
	return samples, nil
}

type recordMeta struct {
	Measurement string `mapstructure:"_measurement"`
	DeviceName  string `mapstructure:"deviceName"`
	DeviceSN    string `mapstructure:"deviceSN"`
	Tag         string `mapstructure:"tag"`
	SubTag      string `mapstructure:"subTag"`
}

// fluxColumns are added by the query engine itself.
var fluxColumns = map[string]struct{}{
	"result": {},
	"table":  {},
	"_start": {},
	"_stop":  {},
}

// SampleFromRecord splits a pivoted record into sample metadata and register
// values.
func SampleFromRecord(values map[string]interface{}, ts time.Time) (*Sample, error) {
	meta := recordMeta{}
	if err := mapstructure.WeakDecode(values, &meta); err != nil {
		return nil, errors.Wrap(err, "decode record metadata")
	}
	s := &Sample{
		DeviceType:   device.Kind(meta.Measurement),
		DeviceSerial: meta.DeviceSN,
		DeviceName:   meta.DeviceName,
		Tag:          meta.Tag,
		SubTag:       meta.SubTag,
		Time:         ts,
		Registers:    make(map[string]string, len(values)),
	}
	for k, v := range values {
		if _, ok := fluxColumns[k]; ok {
			continue
		}
		if _, ok := metadataKeys[k]; ok {
			continue
		}
		if v == nil {
			continue
		}
		s.Registers[k] = fmt.Sprint(v)
	}
	return s, nil
}

const latestQuery = `from(bucket: "%s")
  |> range(start: -%s, stop: now())
  |> filter(fn: (r) => r._measurement == "%s" and r.subTag == "%s")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> group(columns: ["deviceName", "deviceSN", "tag"])
  |> limit(n: 1)`

const monomerQuery = `from(bucket: "%s")
  |> range(start: -%s, stop: now())
  |> filter(fn: (r) => r._measurement == "%s")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> group(columns: ["deviceName", "deviceSN", "tag"])
  |> limit(n: 1)`

const deviceRecordsQuery = `from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "%s" and r.deviceName == "%s" and r.deviceSN == "%s")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> group(columns: ["deviceName", "deviceSN", "tag"])`

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// DeviceRecordsQuery expects a validated query.
func DeviceRecordsQuery(bucket string, q *DeviceQuery) string {
	stop := q.Stop
	if len(stop) == 0 {
		stop = "now()"
	}
	return fmt.Sprintf(deviceRecordsQuery, bucket, q.Start, stop,
		fluxEscaper.Replace(q.Measurement), fluxEscaper.Replace(q.DeviceName), fluxEscaper.Replace(q.DeviceSN))
}

func LatestQuery(bucket string, kind device.Kind, subTag string, window time.Duration) string {
	return fmt.Sprintf(latestQuery, bucket, FluxDuration(window), kind, subTag)
}

func MonomerQuery(bucket string, window time.Duration) string {
	return fmt.Sprintf(monomerQuery, bucket, FluxDuration(window), device.KindBMSMonomer)
}

// FluxDuration renders d in the largest whole unit flux understands.
func FluxDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
