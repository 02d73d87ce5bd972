package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	if got := New(0).timeout; got != DefaultTimeout {
		t.Errorf("New(0) timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := New(time.Second).timeout; got != time.Second {
		t.Errorf("New(1s) timeout = %v, want 1s", got)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]Check{
				"storage":   func(context.Context) error { return nil },
				"scheduler": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]Check{
				"storage":   func(context.Context) error { return errors.New("database is locked") },
				"scheduler": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"storage"},
		},
		{
			name: "timeout",
			checks: map[string]Check{
				"storage": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"storage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				checker.Register(name, check)
			}

			report := checker.Ready(context.Background())
			if report.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(report.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if report.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q = %+v, want unhealthy", name, report.Checks[name])
				}
			}
		})
	}
}

func TestNames(t *testing.T) {
	checker := New(time.Second)
	checker.Register("storage", func(context.Context) error { return nil })
	checker.Register("config", func(context.Context) error { return nil })
	checker.Register("storage", func(context.Context) error { return nil })

	names := checker.Names()
	if len(names) != 2 || names[0] != "config" || names[1] != "storage" {
		t.Errorf("Names() = %v, want [config storage]", names)
	}
}

func TestHandlers(t *testing.T) {
	checker := New(time.Second)
	healthy := true
	checker.Register("storage", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("unreachable")
	})

	mux := http.NewServeMux()
	checker.Mount(mux)

	tests := []struct {
		name     string
		method   string
		path     string
		healthy  bool
		wantCode int
	}{
		{name: "liveness", method: http.MethodGet, path: LivenessPath, healthy: false, wantCode: http.StatusOK},
		{name: "ready", method: http.MethodGet, path: ReadinessPath, healthy: true, wantCode: http.StatusOK},
		{name: "not ready", method: http.MethodGet, path: ReadinessPath, healthy: false, wantCode: http.StatusServiceUnavailable},
		{name: "head", method: http.MethodHead, path: ReadinessPath, healthy: true, wantCode: http.StatusOK},
		{name: "post rejected", method: http.MethodPost, path: LivenessPath, healthy: true, wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy = tt.healthy
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.method == http.MethodGet {
				var report Report
				if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD response should have no body")
			}
		})
	}
}
