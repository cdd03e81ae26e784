// Package testutil provides testing utilities for nebula-table
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/logger"
)

// TestLogger creates a test logger that writes to the test output and
// installs it as the global logger until the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	l := zaptest.NewLogger(t)
	prev := logger.Get()
	logger.Set(l)
	t.Cleanup(func() { logger.Set(prev) })
	return l
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// TestSettings installs default settings with TempDir pointing at a
// per-test directory, restoring the previous settings on cleanup.
func TestSettings(t *testing.T) *config.Settings {
	t.Helper()
	prev := config.Current()
	s := config.Default()
	s.TempDir = t.TempDir()
	s.HTTP.Timeout = 5 * time.Second
	config.SetCurrent(s)
	t.Cleanup(func() { config.SetCurrent(prev) })
	return s
}

// WriteFile creates a file under dir with content and returns its path
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// CountingServer serves a fixed body and counts requests
type CountingServer struct {
	*httptest.Server
	hits atomic.Int64
}

// NewCountingServer starts a server that answers every request with body
// and the given content type. It is closed when the test completes.
func NewCountingServer(t *testing.T, contentType string, body []byte) *CountingServer {
	t.Helper()
	cs := &CountingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(cs.Close)
	return cs
}

// Hits returns the number of requests served
func (cs *CountingServer) Hits() int64 {
	return cs.hits.Load()
}
