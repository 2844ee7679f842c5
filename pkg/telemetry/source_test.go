package telemetry

import (
	"testing"
	"time"

	"emsgateway/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFluxDuration(t *testing.T) {
	assert.Equal(t, "30s", FluxDuration(30*time.Second))
	assert.Equal(t, "3m", FluxDuration(3*time.Minute))
	assert.Equal(t, "500ms", FluxDuration(500*time.Millisecond))
	assert.Equal(t, "2h", FluxDuration(2*time.Hour))
	assert.Equal(t, "0s", FluxDuration(0))
}

func TestLatestQuery(t *testing.T) {
	q := LatestQuery("ibox", device.KindPCS, RuntimeInformation, PCSWindow)
	assert.Contains(t, q, `from(bucket: "ibox")`)
	assert.Contains(t, q, `range(start: -3m, stop: now())`)
	assert.Contains(t, q, `r._measurement == "pcs" and r.subTag == "runtimeInformation"`)
	assert.Contains(t, q, `limit(n: 1)`)
}

func TestMonomerQuery(t *testing.T) {
	q := MonomerQuery("ibox", MonomerWindow)
	assert.Contains(t, q, `range(start: -500ms, stop: now())`)
	assert.Contains(t, q, `r._measurement == "bms_monomer"`)
}

func TestSampleFromRecord(t *testing.T) {
	ts := time.Now()
	s, err := SampleFromRecord(map[string]interface{}{
		"result":       "_result",
		"table":        int64(0),
		"_start":       ts,
		"_stop":        ts,
		"_time":        ts,
		"_measurement": "bms",
		"deviceName":   "slenergy",
		"deviceSN":     "BMS01",
		"tag":          "cluster",
		"subTag":       RuntimeInformation,
		"4E21":         "0001",
		"4E22":         int64(7),
		"4E23":         nil,
	}, ts)
	require.NoError(t, err)

	assert.Equal(t, device.KindBMS, s.DeviceType)
	assert.Equal(t, "BMS01", s.DeviceSerial)
	assert.Equal(t, "slenergy", s.DeviceName)
	assert.Equal(t, "cluster", s.Tag)
	assert.Equal(t, RuntimeInformation, s.SubTag)
	assert.Equal(t, ts, s.Time)
	assert.Equal(t, map[string]string{"4E21": "0001", "4E22": "7"}, s.Registers)
}

func TestBatchTime(t *testing.T) {
	assert.Equal(t, time.Unix(10, 0), (&Batch{Timestamp: 10, TimeUnit: "s"}).Time())
	assert.Equal(t, time.UnixMilli(10), (&Batch{Timestamp: 10}).Time())
	assert.Equal(t, time.UnixMicro(10), (&Batch{Timestamp: 10, TimeUnit: "US"}).Time())
	assert.Equal(t, time.Unix(0, 10), (&Batch{Timestamp: 10, TimeUnit: "ns"}).Time())
}

func TestDeviceRecordsQuery(t *testing.T) {
	q := &DeviceQuery{Measurement: "pcs", DeviceName: "slenergy", DeviceSN: "PCS1", Start: "-1h"}
	require.NoError(t, q.Validate())

	flux := DeviceRecordsQuery("ibox", q)
	assert.Contains(t, flux, `from(bucket: "ibox")`)
	assert.Contains(t, flux, `range(start: -1h, stop: now())`)
	assert.Contains(t, flux, `r._measurement == "pcs" and r.deviceName == "slenergy" and r.deviceSN == "PCS1"`)
	assert.NotContains(t, flux, "limit(")

	q.Stop = "2025-01-01T00:00:00Z"
	assert.Contains(t, DeviceRecordsQuery("ibox", q), `range(start: -1h, stop: 2025-01-01T00:00:00Z)`)

	q.DeviceSN = `PCS"1`
	assert.Contains(t, DeviceRecordsQuery("ibox", q), `r.deviceSN == "PCS\"1"`)
}

func TestDeviceQueryValidate(t *testing.T) {
	valid := func() *DeviceQuery {
		return &DeviceQuery{Measurement: "bms", DeviceName: "slenergy", DeviceSN: "BMS1", Start: "-30s"}
	}
	require.NoError(t, valid().Validate())

	q := valid()
	q.Start = "2025-01-01T08:00:00.5+08:00"
	q.Stop = "now()"
	assert.NoError(t, q.Validate())

	q = valid()
	q.Start = "-1h30m"
	assert.NoError(t, q.Validate())

	q = valid()
	q.Start = ""
	assert.Error(t, q.Validate())

	q = valid()
	q.Start = `-1h) |> drop(columns: ["x"]`
	assert.Error(t, q.Validate())

	q = valid()
	q.Stop = "yesterday"
	assert.Error(t, q.Validate())

	q = valid()
	q.DeviceSN = ""
	assert.Error(t, q.Validate())
}
