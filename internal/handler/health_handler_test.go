package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/handler"
	"github.com/noah-isme/gema-training-api/internal/router"
)

func TestHealthCheck(t *testing.T) {
	app := setupApp(t, router.Dependencies{})

	status, payload := doJSON(t, app, http.MethodGet, "/api/v1/health", principal{}, nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, payload.Success)

	var health handler.HealthResponse
	decodeData(t, payload, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "Test", health.Service)
	require.Equal(t, "test", health.Environment)
	require.WithinDuration(t, time.Now().UTC(), health.Timestamp, 2*time.Second)
}

func TestHealthCheckReportsDependencies(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	app := setupApp(t, router.Dependencies{HealthChecks: []handler.DependencyCheck{
		{Name: "redis", Check: func(ctx context.Context) error { return client.Ping(ctx).Err() }},
		{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
	}})

	status, payload := doJSON(t, app, http.MethodGet, "/api/v1/health", principal{}, nil)
	require.Equal(t, http.StatusOK, status)
	var health handler.HealthResponse
	decodeData(t, payload, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, map[string]string{"redis": "up", "postgres": "up"}, health.Dependencies)

	mr.Close()
	status, payload = doJSON(t, app, http.MethodGet, "/api/v1/health", principal{}, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.False(t, payload.Success)
	require.Equal(t, "service_unavailable", payload.Code)
	decodeData(t, payload, &health)
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "up", health.Dependencies["postgres"])
	require.True(t, strings.HasPrefix(health.Dependencies["redis"], "down: "))
}
