package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// HealthChecker probes one dependency.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// ErrDegraded marks a failed check that still leaves analysis usable,
// e.g. no AI credential: the rule-based half keeps working.
var ErrDegraded = errors.New("degraded")

// DatabaseHealthChecker pings a SQL result store.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler runs every checker in parallel. Any hard failure answers
// 503; degraded checks are reported but keep the 200.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := HealthStatus{
			Status:    statusHealthy,
			Timestamp: time.Now(),
			Checks:    make(map[string]CheckStatus, len(checkers)),
		}

		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for name, checker := range checkers {
			wg.Add(1)
			go func(name string, checker HealthChecker) {
				defer wg.Done()
				cs := checkStatus(checker.Check(ctx))

				mu.Lock()
				defer mu.Unlock()
				health.Checks[name] = cs
				switch {
				case cs.Status == statusUnhealthy:
					health.Status = statusUnhealthy
				case cs.Status == statusDegraded && health.Status == statusHealthy:
					health.Status = statusDegraded
				}
			}(name, checker)
		}
		wg.Wait()

		code := http.StatusOK
		if health.Status == statusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(health)
	}
}

func checkStatus(err error) CheckStatus {
	switch {
	case err == nil:
		return CheckStatus{Status: statusHealthy}
	case errors.Is(err, ErrDegraded):
		return CheckStatus{Status: statusDegraded, Message: err.Error()}
	default:
		return CheckStatus{Status: statusUnhealthy, Message: err.Error()}
	}
}

// ReadinessHandler answers 503 while probe returns an error, e.g. once the
// analysis service has started draining for shutdown.
func ReadinessHandler(probe func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ready", "timestamp": time.Now()}
		code := http.StatusOK
		if probe != nil {
			if err := probe(); err != nil {
				body["status"] = "not_ready"
				body["reason"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// LivenessHandler only proves the process serves HTTP.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
