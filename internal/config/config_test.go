package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ether.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidSimulationConfig(t *testing.T) {
	path := writeTemp(t, `
mode = "simulation"
poll_interval_millis = 250

[[port]]
name = "a-b"

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "simulation", cfg.Mode)
	require.Equal(t, 250, cfg.PollIntervalMillis)
	require.Len(t, cfg.Ports, 1)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaultsPollIntervalAndLogLevel(t *testing.T) {
	path := writeTemp(t, `
mode = "simulation"

[[port]]
name = "only"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500, cfg.PollIntervalMillis)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeTemp(t, `
mode = "bogus"

[[port]]
name = "a"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresInterfaceInLiveMode(t *testing.T) {
	path := writeTemp(t, `
mode = "live"

[[port]]
name = "eth0"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresAtLeastOnePort(t *testing.T) {
	path := writeTemp(t, `mode = "simulation"`)
	_, err := Load(path)
	require.Error(t, err)
}
