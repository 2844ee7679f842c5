package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	baseoptions "emsgateway/pkg/generic/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const configYaml = `
port: "9090"
collectorSerial: EMS0001
bridge:
  address: 0.0.0.0:5533
  timeout: 20s
transcode:
  legacyTail: true
uplink:
  broker: tcp://127.0.0.1:1883
  interval: 30s
devices:
- serial: PCS01
  kind: pcs
  transport:
    type: modbusTcp
    address: 192.168.1.20:502
    timeout: 2s
`

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYaml), 0o644))

	o := NewDefaultOptions()
	o.ConfigFile = path
	require.NoError(t, baseoptions.ParseAndApplyConfigFile(o, []string{"--port", "9191"}))

	assert.Equal(t, "9191", o.Port)
	assert.Equal(t, "EMS0001", o.CollectorSerial)
	assert.Equal(t, 20*time.Second, o.Bridge.Timeout.Duration)
	assert.True(t, o.Transcode.LegacyTail)
	assert.Equal(t, 30*time.Second, o.Uplink.Config().Interval)
	assert.Equal(t, 15*time.Second, o.Wait.Duration)
	require.Len(t, o.Devices, 1)
	assert.Empty(t, Validate(o))
}

func TestValidate(t *testing.T) {
	o := NewDefaultOptions()
	o.Port = "port"
	o.Bridge.Address = "5533"
	o.CertFile = "cert.pem"
	o.Devices = []map[string]interface{}{{"serial": "X1", "kind": "toaster"}}

	errs := Validate(o)
	assert.Len(t, errs, 4)
	assert.Contains(t, utilerrors.NewAggregate(errs).Error(), "invalid port")
}
