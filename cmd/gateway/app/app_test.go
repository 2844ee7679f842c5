package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emsgateway/cmd/gateway/options"
	"emsgateway/pkg/device"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitStorage, ExitCode(exit(ExitStorage, errors.New("disk"))))
	assert.Equal(t, ExitIP, ExitCode(errors.Wrap(exit(ExitIP, errors.New("ip")), "boot")))
	assert.Equal(t, ExitCLI, ExitCode(errors.New("plain")))
	assert.Nil(t, exit(ExitDeploy, nil))
}

func TestWaitForIP(t *testing.T) {
	assert.NoError(t, waitForIP(context.Background(), ""))

	ipFile := filepath.Join(t.TempDir(), "ip")
	require.NoError(t, os.WriteFile(ipFile, []byte("192.168.1.10"), 0o644))
	assert.NoError(t, waitForIP(context.Background(), ipFile))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, waitForIP(ctx, filepath.Join(t.TempDir(), "missing")))
}

func TestMissingSerialExits(t *testing.T) {
	cmd := NewGatewayCmd()
	cmd.SetArgs([]string{"--ip-file", ""})
	err := cmd.Execute()
	assert.Equal(t, ExitSerial, ExitCode(err))
}

func TestUnknownArgumentExits(t *testing.T) {
	cmd := NewGatewayCmd()
	cmd.SetArgs([]string{"serve"})
	err := cmd.Execute()
	assert.Equal(t, ExitCLI, ExitCode(err))
}

func TestNewConfig(t *testing.T) {
	o := options.NewDefaultOptions()
	o.CollectorSerial = "EMS0001"
	o.StorePath = t.TempDir()
	o.Bridge.Address = "127.0.0.1:0"
	o.Influx.URL = "http://127.0.0.1:1"
	o.Devices = []map[string]interface{}{
		{"serial": "PCS01", "kind": "pcs"},
	}

	c, err := newConfig(context.Background(), o)
	require.NoError(t, err)
	defer func() {
		for _, closer := range c.Closers {
			assert.NoError(t, closer.Closer(context.Background()))
		}
	}()

	dh, ok := c.DeviceMgr.Lookup("DHEMS0001")
	require.True(t, ok)
	assert.Equal(t, device.DehumidifierAddress, dh.Transport.Address)
	_, ok = c.DeviceMgr.CommandDevice("LCEMS0001")
	assert.True(t, ok)
	_, ok = c.DeviceMgr.Lookup("PCS01")
	assert.True(t, ok)
	assert.NotNil(t, c.Agent)
	assert.Len(t, c.Closers, 2)

	meta, err := c.GatewayMgr.GetGatewayMeta()
	require.NoError(t, err)
	assert.Equal(t, "EMS0001", meta.CollectorSerial)
}

func TestNewConfigRejectsBadDevice(t *testing.T) {
	o := options.NewDefaultOptions()
	o.CollectorSerial = "EMS0001"
	o.StorePath = t.TempDir()
	o.Devices = []map[string]interface{}{{"serial": "X1", "kind": "toaster"}}

	_, err := newConfig(context.Background(), o)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
