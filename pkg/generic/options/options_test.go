package options

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestLoggingConfigurationYaml(t *testing.T) {
	bo := NewDefaultBaseOptions()
	require.NoError(t, yaml.Unmarshal([]byte("logging:\n  verbosity: 4\n"), &bo))
	assert.Equal(t, "text", bo.Logging.Format)
	assert.EqualValues(t, 4, bo.Logging.Verbosity)

	out, err := yaml.Marshal(&bo)
	require.NoError(t, err)
	assert.Contains(t, string(out), "verbosity: 4")
	assert.NotContains(t, string(out), "ConfigFile")
}

func TestWriteDefaultConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefaultConfig(&buf, map[string]string{"port": "8080"}))
	assert.Contains(t, buf.String(), "# Default configuration")
	assert.Contains(t, buf.String(), "port: \"8080\"")
}
