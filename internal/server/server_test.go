package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rideshare-app/apiserver/config"
	"github.com/rideshare-app/apiserver/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	return config.Config{
		ServerPort:   0,
		JWTSecret:    "server-secret",
		StoreBackend: config.StoreMemory,
		MQBackend:    config.MQLog,
	}
}

func TestNewRequiresSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.JWTSecret = ""
	_, err := New(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "cassandra"
	_, err := New(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown store backend")

	cfg = memoryConfig()
	cfg.MQBackend = "kafka"
	_, err = New(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown mq backend")
}

func TestRoutes(t *testing.T) {
	srv, err := New(context.Background(), memoryConfig(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/auth/send-otp", `{"mobile":"9876543210"}`, http.StatusOK},
		{http.MethodGet, "/api/rides/available", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/ratings/booked", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestMetricsExposeHTTPCounters(t *testing.T) {
	srv, err := New(context.Background(), memoryConfig(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	srv.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `rideshare_http_requests_total{method="GET",route="/healthz",status="200"}`)
}
