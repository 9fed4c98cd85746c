package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	depHealthy       = "healthy"
	depConfigured    = "configured"
	depNotConfigured = "not configured"
)

// Checker probes one dependency; nil means the dependency is not configured.
type Checker func(ctx context.Context) error

type HealthHandler struct {
	Version      string
	StartTime    time.Time
	checks       map[string]Checker
	integrations map[string]bool
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		Version:      version,
		StartTime:    time.Now(),
		checks:       make(map[string]Checker),
		integrations: make(map[string]bool),
	}
}

func (h *HealthHandler) AddCheck(name string, check Checker) *HealthHandler {
	h.checks[name] = check
	return h
}

// AddIntegration reports an outbound API as configured or not; it is never probed.
func (h *HealthHandler) AddIntegration(name string, configured bool) *HealthHandler {
	h.integrations[name] = configured
	return h
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks)+len(h.integrations))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range h.checks {
		if check == nil {
			deps[name] = depNotConfigured
			continue
		}
		wg.Add(1)
		go func(name string, check Checker) {
			defer wg.Done()
			state := depHealthy
			if err := check(ctx); err != nil {
				state = fmt.Sprintf("unhealthy: %v", err)
			}
			mu.Lock()
			deps[name] = state
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	for name, configured := range h.integrations {
		if configured {
			deps[name] = depConfigured
		} else {
			deps[name] = depNotConfigured
		}
	}

	status := "healthy"
	for _, v := range deps {
		if v != depHealthy && v != depConfigured && v != depNotConfigured {
			status = "degraded"
			break
		}
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:       status,
		Version:      h.Version,
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
	})
}
