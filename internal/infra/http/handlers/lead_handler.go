package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/richdadretirement/leadrelay/internal/infra/http/middleware"
	"github.com/richdadretirement/leadrelay/internal/usecase"
)

type LeadHandler struct {
	UseCase     *usecase.CaptureLeadUseCase
	rateLimiter *RateLimiter
}

func NewLeadHandler(uc *usecase.CaptureLeadUseCase, limiter *RateLimiter) *LeadHandler {
	return &LeadHandler{
		UseCase:     uc,
		rateLimiter: limiter,
	}
}

type CaptureLeadResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if h.rateLimiter != nil && !h.rateLimiter.Allow(clientIP) {
		middleware.RecordLeadCaptured("rate_limited")
		writeJSON(w, http.StatusTooManyRequests, CaptureLeadResponse{
			Message: "Too many requests. Please try again later.",
		})
		return
	}

	var input usecase.CaptureLeadInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, CaptureLeadResponse{Message: "Invalid JSON"})
		return
	}
	input.IPAddress = clientIP
	input.UserAgent = r.UserAgent()

	out, err := h.UseCase.Execute(r.Context(), input)
	if err != nil {
		if usecase.IsDomainError(err) {
			middleware.RecordLeadCaptured("invalid")
			writeJSON(w, http.StatusBadRequest, CaptureLeadResponse{Message: err.Error()})
			return
		}
		middleware.RecordLeadCaptured("error")
		writeJSON(w, http.StatusInternalServerError, CaptureLeadResponse{
			Message: "Failed to save your details. We have been notified.",
		})
		return
	}

	if !out.Stored {
		middleware.RecordLeadCaptured("notified_only")
		writeJSON(w, http.StatusAccepted, CaptureLeadResponse{Success: true})
		return
	}

	middleware.RecordLeadCaptured("stored")
	writeJSON(w, http.StatusCreated, CaptureLeadResponse{Success: true, ID: out.ID})
}

// getClientIP keys the rate limiter. Clients can prepend any X-Forwarded-For
// hops, so only the last one, appended by our own proxy, is used; without the
// header the socket address is used.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimiter is a fixed-window counter per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	now := rl.now()

	if !exists {
		rl.visitors[ip] = &visitor{count: 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) > rl.window {
		v.count = 1
		v.lastReset = now
		return true
	}

	v.count++
	return v.count <= rl.limit
}

// Cleanup drops idle visitors every interval until stop is closed.
func (rl *RateLimiter) Cleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}
