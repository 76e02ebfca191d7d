package api

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Words         int               `json:"words"`
	SeedReloads   int64             `json:"seed_reloads"`
	Checks        map[string]string `json:"checks"`
}

// DBChecker reports snapshot database reachability.
type DBChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnChecker reports broker connectivity.
type ConnChecker interface {
	IsConnected() bool
}

// WatcherChecker reports the seed file watcher state and how many reloads
// it has applied.
type WatcherChecker interface {
	Status() string
	Reloads() int64
}

// HealthDeps are the optional components reported by the health endpoint.
// Nil fields are reported as "not_configured".
type HealthDeps struct {
	DB      DBChecker
	MQTT    ConnChecker
	Watcher WatcherChecker
}

type HealthHandler struct {
	store     TranscriptStore
	deps      HealthDeps
	version   string
	startTime time.Time
}

func NewHealthHandler(store TranscriptStore, deps HealthDeps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		store:     store,
		deps:      deps,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status := "healthy"

	// Snapshot database loss degrades durability only; the store keeps serving.
	if h.deps.DB != nil {
		if err := h.deps.DB.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.deps.MQTT != nil {
		if h.deps.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			status = "degraded"
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	var reloads int64
	if h.deps.Watcher != nil {
		checks["seed_watcher"] = h.deps.Watcher.Status()
		reloads = h.deps.Watcher.Reloads()
	} else {
		checks["seed_watcher"] = "not_configured"
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Words:         len(h.store.FetchAll()),
		SeedReloads:   reloads,
		Checks:        checks,
	})
}
