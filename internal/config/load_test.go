package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/wfengine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wfengine.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := NewLoader().Load(testutil.Context(t), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysFileValues(t *testing.T) {
	path := writeConfig(t, `
listen          = "127.0.0.1:9000"
ops_port        = 0
log_format      = "text"
command_timeout = "2s"

execution {
  workers    = 8
  node_delay = "0s"
}

snapshots {
  batch_window = "10ms"
}

telemetry {
  metrics = false
}
`)
	cfg, err := NewLoader().Load(testutil.Context(t), path)
	require.NoError(t, err)

	want := Default()
	want.Listen = "127.0.0.1:9000"
	want.OpsPort = 0
	want.LogFormat = "text"
	want.CommandTimeout = 2 * time.Second
	want.Execution = Execution{Workers: 8}
	want.Snapshots.BatchWindow = 10 * time.Millisecond
	want.Telemetry.Metrics = false
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "syntax error",
			content: `listen = `,
			wantErr: "failed to parse config file",
		},
		{
			name:    "unknown attribute",
			content: `port = 1`,
			wantErr: "failed to decode config file",
		},
		{
			name:    "bad duration",
			content: `command_timeout = "soon"`,
			wantErr: "command_timeout",
		},
		{
			name:    "bad nested duration",
			content: "snapshots {\n  batch_window = \"1 minute\"\n}\n",
			wantErr: "snapshots.batch_window",
		},
		{
			name:    "invalid value",
			content: `log_level = "loud"`,
			wantErr: "log_level must be one of [debug info warn error]",
		},
		{
			name:    "nested invalid value",
			content: "execution {\n  workers = 0\n}\n",
			wantErr: "execution.workers must be at least 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := NewLoader().Load(testutil.Context(t), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(testutil.Context(t), filepath.Join(t.TempDir(), "absent.hcl"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Listen = ""
	cfg.OpsPort = 70000
	cfg.CommandTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen is required")
	assert.Contains(t, err.Error(), "ops_port must be at most 65535")
	assert.Contains(t, err.Error(), "command_timeout must be greater than 0")
}
