package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTemp(t, "common:\n  debug: true\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Common.Debug)
	assert.Equal(t, 30, cfg.Safety.StopDelaySeconds)
	assert.Equal(t, 3, cfg.Recovery.MaxAttempts)
	assert.Equal(t, "09:55", cfg.Timer.StartHHMM)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, byte(0x81), cfg.Camera.Address)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeTemp(t, `
obs:
  host: 192.168.1.50
  expected_profile: "NHLC live"
  profile_check_enabled: true
  profile_mismatch_action: switch
safety:
  stop_delay_seconds: 10
timer:
  start_hhmm: "18:30"
  weekday: 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.OBS.Host)
	assert.Equal(t, "switch", cfg.OBS.ProfileMismatchAction)
	assert.Equal(t, 10, cfg.Safety.StopDelaySeconds)
	assert.Equal(t, 2, cfg.Timer.Weekday)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad mismatch action", "obs:\n  profile_mismatch_action: explode\n"},
		{"bad weekday", "timer:\n  weekday: 9\n"},
		{"bad hhmm", "timer:\n  start_hhmm: \"25:00\"\n"},
		{"bad store backend", "store:\n  backend: etcd\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeTemp(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseHHMM(t *testing.T) {
	hh, mm, err := ParseHHMM("9:55")
	require.NoError(t, err)
	assert.Equal(t, 9, hh)
	assert.Equal(t, 55, mm)

	_, _, err = ParseHHMM("nope")
	assert.Error(t, err)
}
