package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/config"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Addr:           "127.0.0.1:0",
		DBDriver:       "sqlite",
		DatabaseURL:    ":memory:",
		SessionSecret:  "secret",
		SessionTTL:     time.Hour,
		SessionBackend: "db",
		UploadDir:      filepath.Join(t.TempDir(), "images"),
		MaxUploadMB:    1,
		ESIndex:        "products",
	}
}

func TestBuild_DefaultBackends(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), logging.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.IsType(t, events.Noop{}, a.Publisher)

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "All products")
}

func TestBuild_RedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.SessionBackend = "redis"
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := Build(context.Background(), cfg, logging.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.NotNil(t, a.redis)
}

func TestBuild_UnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionBackend = "redis"
	cfg.RedisURL = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, logging.NewWithWriter(io.Discard, "error"))
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), logging.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
