// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheckResult is the outcome of one check.
type HealthCheckResult struct {
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration"`
	Critical bool                   `json:"critical"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CheckFunc evaluates one component.
type CheckFunc func(ctx context.Context) HealthCheckResult

type healthCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// SystemHealth is the aggregated health document served at /health.
type SystemHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version,omitempty"`
	Uptime    string                       `json:"uptime"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// HealthManager runs registered checks on demand.
type HealthManager struct {
	mu      sync.RWMutex
	checks  []healthCheck
	timeout time.Duration
	version string
	started time.Time
}

// NewHealthManager creates a manager. Each check gets at most timeout.
func NewHealthManager(version string, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{timeout: timeout, version: version, started: time.Now()}
}

// RegisterCheck adds a check. A critical check that fails makes the whole
// service unhealthy; any other failure only degrades it.
func (hm *HealthManager) RegisterCheck(name string, critical bool, fn CheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks = append(hm.checks, healthCheck{name: name, critical: critical, fn: fn})
}

// Check runs every check concurrently and aggregates the results.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := append([]healthCheck(nil), hm.checks...)
	hm.mu.RUnlock()

	results := make([]HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c healthCheck) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()

			start := time.Now()
			res := c.fn(checkCtx)
			res.Duration = time.Since(start)
			res.Critical = c.critical
			results[i] = res
		}(i, c)
	}
	wg.Wait()

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   hm.version,
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    make(map[string]HealthCheckResult, len(checks)),
	}
	for i, c := range checks {
		res := results[i]
		health.Checks[c.name] = res
		switch res.Status {
		case HealthStatusHealthy:
		case HealthStatusUnhealthy:
			if c.critical {
				health.Status = HealthStatusUnhealthy
			} else if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		default:
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}
	return health
}

// Names returns the registered check names, sorted.
func (hm *HealthManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, len(hm.checks))
	for i, c := range hm.checks {
		names[i] = c.name
	}
	sort.Strings(names)
	return names
}

// HealthHandler serves the aggregated document; unhealthy answers 503.
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// FeedFreshnessCheck inspects the summary file written at the end of each
// run. A missing or unreadable file is unhealthy; a file older than maxAge
// is degraded. now defaults to time.Now.
func FeedFreshnessCheck(summaryPath string, maxAge time.Duration, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) HealthCheckResult {
		data, err := os.ReadFile(summaryPath)
		if err != nil {
			return HealthCheckResult{
				Status:  HealthStatusUnhealthy,
				Message: "feed summary not readable",
				Error:   err.Error(),
			}
		}
		var summary struct {
			TotalItems int    `json:"total_items"`
			UpdatedAt  string `json:"updated_at"`
		}
		if err := json.Unmarshal(data, &summary); err != nil {
			return HealthCheckResult{
				Status:  HealthStatusUnhealthy,
				Message: "feed summary is not valid JSON",
				Error:   err.Error(),
			}
		}
		updated, err := time.Parse(time.RFC3339, summary.UpdatedAt)
		if err != nil {
			return HealthCheckResult{
				Status:  HealthStatusUnhealthy,
				Message: "feed summary has no valid updated_at",
				Error:   err.Error(),
			}
		}

		age := now().Sub(updated)
		metadata := map[string]interface{}{
			"total_items": summary.TotalItems,
			"updated_at":  summary.UpdatedAt,
			"age_seconds": int64(age.Seconds()),
		}
		if maxAge > 0 && age > maxAge {
			return HealthCheckResult{
				Status:   HealthStatusDegraded,
				Message:  fmt.Sprintf("feed is stale: last update %s ago", age.Round(time.Second)),
				Metadata: metadata,
			}
		}
		return HealthCheckResult{
			Status:   HealthStatusHealthy,
			Message:  "feed is fresh",
			Metadata: metadata,
		}
	}
}

// GoroutineHealthCheck degrades when the goroutine count exceeds max.
func GoroutineHealthCheck(maxGoroutines int) CheckFunc {
	return func(ctx context.Context) HealthCheckResult {
		count := runtime.NumGoroutine()
		metadata := map[string]interface{}{
			"goroutine_count": count,
			"max_allowed":     maxGoroutines,
		}
		if count > maxGoroutines {
			return HealthCheckResult{
				Status:   HealthStatusDegraded,
				Message:  fmt.Sprintf("High goroutine count: %d", count),
				Metadata: metadata,
			}
		}
		return HealthCheckResult{
			Status:   HealthStatusHealthy,
			Message:  fmt.Sprintf("Goroutine count normal: %d", count),
			Metadata: metadata,
		}
	}
}
