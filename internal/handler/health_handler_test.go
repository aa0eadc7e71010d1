package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"sleep-better/internal/domain"
	"sleep-better/internal/testutil"
)

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	testutil.AssertStatusCode(t, w, http.StatusOK)
	testutil.AssertJSONContains(t, w, "status", "ok")
}

func TestReady(t *testing.T) {
	down := testutil.NewMockBackend()
	down.PingFunc = func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]domain.Pinger
		status int
		ready  string
	}{
		{
			name:   "no dependencies",
			checks: map[string]domain.Pinger{},
			status: http.StatusOK,
			ready:  "ready",
		},
		{
			name: "all up",
			checks: map[string]domain.Pinger{
				"backend": testutil.NewMockBackend(),
				"session": testutil.NewMockBackend(),
			},
			status: http.StatusOK,
			ready:  "ready",
		},
		{
			name: "one down",
			checks: map[string]domain.Pinger{
				"backend": down,
				"session": testutil.NewMockBackend(),
			},
			status: http.StatusServiceUnavailable,
			ready:  "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Ready(tt.checks)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			testutil.AssertStatusCode(t, w, tt.status)
			resp := testutil.DecodeJSON[ReadyResponse](t, w)
			assert.Equal(t, tt.ready, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
			if backend, ok := resp.Checks["backend"]; ok && tt.status != http.StatusOK {
				assert.Equal(t, "down", backend.Status)
				assert.Equal(t, "connection refused", backend.Error)
			}
		})
	}
}
