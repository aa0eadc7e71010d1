package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sleep-better/internal/domain"
)

// Health returns basic health check
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// ReadyResponse is the readiness report
type ReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// Ready returns readiness check with dependencies. Checks run in parallel.
func Ready(checks map[string]domain.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]HealthCheckResult, len(checks))
		)
		for name, p := range checks {
			wg.Add(1)
			go func(name string, p domain.Pinger) {
				defer wg.Done()
				res := check(ctx, p)
				mu.Lock()
				results[name] = res
				mu.Unlock()
			}(name, p)
		}
		wg.Wait()

		resp := ReadyResponse{
			Status:    "ready",
			Timestamp: time.Now().Format(time.RFC3339),
			Checks:    results,
		}
		status := http.StatusOK
		for _, res := range results {
			if res.Status != "up" {
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, status, resp)
	}
}

func check(ctx context.Context, p domain.Pinger) HealthCheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return HealthCheckResult{
			Status:    "down",
			LatencyMs: latency.Milliseconds(),
			Error:     err.Error(),
		}
	}
	return HealthCheckResult{
		Status:    "up",
		LatencyMs: latency.Milliseconds(),
	}
}
