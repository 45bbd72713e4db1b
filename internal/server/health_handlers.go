package server

import (
	"context"
	"net/http"
	"time"

	"github.com/dhruvspathak/Songify/internal/envutil"
	jsonwriter "github.com/dhruvspathak/Songify/internal/json"
	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/dhruvspathak/Songify/internal/storage"
)

// ServiceName is reported by the root and status endpoints.
const ServiceName = "Songify Backend API"

// HealthHandler serves the liveness, readiness and status endpoints.
type HealthHandler struct {
	version     string
	environment envutil.Environment
	usedCodes   storage.UsedCodeStore
	missing     []string
	started     time.Time
	now         func() time.Time
}

// NewHealthHandler creates a new health handler. missing lists unset required
// configuration and makes the readiness probe fail.
func NewHealthHandler(version string, env envutil.Environment, usedCodes storage.UsedCodeStore, missing []string) *HealthHandler {
	return &HealthHandler{
		version:     version,
		environment: env,
		usedCodes:   usedCodes,
		missing:     missing,
		started:     time.Now(),
		now:         time.Now,
	}
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health is the basic health check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, healthResponse{Status: "OK", Timestamp: h.timestamp()})
}

// Live is the liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, healthResponse{Status: "ALIVE", Timestamp: h.timestamp()})
}

type readyResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Reason    string   `json:"reason,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

// Ready is the readiness probe. It fails while provider credentials are
// missing.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if len(h.missing) > 0 {
		_ = jsonwriter.WriteResponse(w, http.StatusServiceUnavailable, readyResponse{
			Status:    "NOT_READY",
			Timestamp: h.timestamp(),
			Reason:    "Missing required configuration",
			Missing:   h.missing,
		})
		return
	}
	_ = jsonwriter.Write(w, readyResponse{Status: "READY", Timestamp: h.timestamp()})
}

type statusResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ReplayCodes   *int   `json:"replay_codes,omitempty"`
	Services      struct {
		Spotify struct {
			Configured bool `json:"configured"`
		} `json:"spotify"`
	} `json:"services"`
}

// Status reports uptime, configuration state and the number of blocked codes.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Success:       true,
		Status:        "OK",
		Timestamp:     h.timestamp(),
		Version:       h.version,
		Environment:   string(h.environment),
		UptimeSeconds: int64(h.now().Sub(h.started) / time.Second),
	}
	resp.Services.Spotify.Configured = len(h.missing) == 0

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if n, err := h.usedCodes.Count(ctx); err == nil {
		resp.ReplayCodes = &n
	} else {
		log.LogWarnWithFields("health", "Failed to count used codes", map[string]any{"error": err.Error()})
	}

	_ = jsonwriter.Write(w, resp)
}

type rootResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Endpoints map[string]string `json:"endpoints"`
}

// Root lists the service entry points.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, rootResponse{
		Success:   true,
		Message:   ServiceName,
		Version:   h.version,
		Timestamp: h.timestamp(),
		Endpoints: map[string]string{
			"auth":   "/auth",
			"health": "/health",
		},
	})
}
