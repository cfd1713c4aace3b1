package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/wfengine/internal/config"
	"github.com/specialistvlad/wfengine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupAppTest creates an app logging at debug level into a buffer.
func setupAppTest(t *testing.T, mutate func(*config.Server)) (*App, *testutil.SafeBuffer) {
	t.Helper()
	srv := config.Default()
	srv.LogLevel = "debug"
	srv.LogFormat = "text"
	srv.Execution.NodeDelay = 0
	if mutate != nil {
		mutate(&srv)
	}
	cfg, err := NewConfig(Config{Server: srv})
	require.NoError(t, err)

	logBuffer := &testutil.SafeBuffer{}
	a := NewApp(logBuffer, cfg)
	t.Cleanup(func() {
		a.registry.Close()
		if os.Getenv(testutil.LogsEnv) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return a, logBuffer
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{Server: config.Default()})
	require.NoError(t, err)

	bad := config.Default()
	bad.LogFormat = "xml"
	_, err = NewConfig(Config{Server: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestNewApp_BrokenCatalogPanics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.hcl"), []byte(`node "x" {`), 0o600))

	assert.Panics(t, func() {
		setupAppTest(t, func(s *config.Server) { s.CatalogPath = dir })
	})
}

func TestOpsHandler(t *testing.T) {
	testCases := []struct {
		name        string
		metrics     bool
		path        string
		wantStatus  int
		wantContent string
	}{
		{name: "health", metrics: true, path: "/health", wantStatus: http.StatusOK, wantContent: "OK"},
		{name: "metrics enabled", metrics: true, path: "/metrics", wantStatus: http.StatusOK},
		{name: "metrics disabled", metrics: false, path: "/metrics", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := setupAppTest(t, func(s *config.Server) { s.Telemetry.Metrics = tc.metrics })
			rec := httptest.NewRecorder()
			a.opsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantContent)
		})
	}
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	apiPort, opsPort := freePort(t), freePort(t)
	a, logs := setupAppTest(t, func(s *config.Server) {
		s.Listen = fmt.Sprintf("127.0.0.1:%d", apiPort)
		s.OpsPort = opsPort
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	up := func(url string) func() bool {
		return func() bool {
			resp, err := http.Get(url)
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode == http.StatusOK
		}
	}
	require.Eventually(t, up(fmt.Sprintf("http://127.0.0.1:%d/health", opsPort)), 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, up(fmt.Sprintf("http://127.0.0.1:%d/api/catalog", apiPort)), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, logs.String(), "wfengine stopped.")
}
