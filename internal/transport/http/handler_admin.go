package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"card-parlor/internal/config"
	"card-parlor/internal/liveroom"
	"card-parlor/internal/reconcile"
	"card-parlor/internal/store"
)

// Pinger reports durable store reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	db        Pinger
	scheduler *reconcile.Scheduler
	rooms     *liveroom.Store
}

func NewAdminHandlers(db Pinger, scheduler *reconcile.Scheduler, rooms *liveroom.Store) *AdminHandlers {
	return &AdminHandlers{db: db, scheduler: scheduler, rooms: rooms}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

// Status reports the scheduler state, current config, derived stats and any
// alert conditions currently firing.
func (h *AdminHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := h.scheduler.Config()
		snap := h.scheduler.Stats().Snapshot()
		alerts := reconcile.CheckAlertConditions(snap, reconcile.Thresholds{
			MaxFailureRate:       cfg.MaxFailureRate,
			MaxInconsistencyRate: cfg.MaxInconsistencyRate,
			MaxStaleConnections:  cfg.MaxStaleConnections,
		})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"is_running":   h.scheduler.IsRunning(),
			"config":       cfg,
			"stats":        snap,
			"alerts":       alerts,
			"active_rooms": len(h.rooms.ActiveRooms()),
		})
	}
}

// syncConfigPatch carries a partial config update; absent fields keep their
// current values.
type syncConfigPatch struct {
	HeartbeatIntervalMS      *int     `json:"heartbeat_interval_ms"`
	ConnectionTimeoutMS      *int     `json:"connection_timeout_ms"`
	ReconciliationIntervalMS *int     `json:"reconciliation_interval_ms"`
	CleanupIntervalMS        *int     `json:"cleanup_interval_ms"`
	MonitoringIntervalMS     *int     `json:"monitoring_interval_ms"`
	StaleConnectionMS        *int     `json:"stale_connection_ms"`
	MaxFailureRate           *float64 `json:"max_failure_rate"`
	MaxInconsistencyRate     *float64 `json:"max_inconsistency_rate"`
	MaxStaleConnections      *int64   `json:"max_stale_connections"`
	OrphanGraceSweeps        *int     `json:"orphan_grace_sweeps"`
}

func (h *AdminHandlers) UpdateConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch syncConfigPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		cfg := h.scheduler.Config()
		applyPatch(&cfg, patch)
		if !validSyncConfig(cfg) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_config")
			return
		}
		h.scheduler.UpdateConfig(cfg)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"is_running": h.scheduler.IsRunning(),
			"config":     h.scheduler.Config(),
		})
	}
}

func applyPatch(cfg *config.SyncConfig, p syncConfigPatch) {
	if p.HeartbeatIntervalMS != nil {
		cfg.HeartbeatIntervalMS = *p.HeartbeatIntervalMS
	}
	if p.ConnectionTimeoutMS != nil {
		cfg.ConnectionTimeoutMS = *p.ConnectionTimeoutMS
	}
	if p.ReconciliationIntervalMS != nil {
		cfg.ReconciliationIntervalMS = *p.ReconciliationIntervalMS
	}
	if p.CleanupIntervalMS != nil {
		cfg.CleanupIntervalMS = *p.CleanupIntervalMS
	}
	if p.MonitoringIntervalMS != nil {
		cfg.MonitoringIntervalMS = *p.MonitoringIntervalMS
	}
	if p.StaleConnectionMS != nil {
		cfg.StaleConnectionMS = *p.StaleConnectionMS
	}
	if p.MaxFailureRate != nil {
		cfg.MaxFailureRate = *p.MaxFailureRate
	}
	if p.MaxInconsistencyRate != nil {
		cfg.MaxInconsistencyRate = *p.MaxInconsistencyRate
	}
	if p.MaxStaleConnections != nil {
		cfg.MaxStaleConnections = *p.MaxStaleConnections
	}
	if p.OrphanGraceSweeps != nil {
		cfg.OrphanGraceSweeps = *p.OrphanGraceSweeps
	}
}

func validSyncConfig(cfg config.SyncConfig) bool {
	intervals := []int{
		cfg.HeartbeatIntervalMS,
		cfg.ConnectionTimeoutMS,
		cfg.ReconciliationIntervalMS,
		cfg.CleanupIntervalMS,
		cfg.MonitoringIntervalMS,
		cfg.StaleConnectionMS,
	}
	for _, v := range intervals {
		if v <= 0 {
			return false
		}
	}
	return cfg.MaxFailureRate >= 0 && cfg.MaxInconsistencyRate >= 0 &&
		cfg.MaxStaleConnections >= 0 && cfg.OrphanGraceSweeps >= 0
}

func (h *AdminHandlers) ResetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.scheduler.Stats().Reset()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) ForceReconcile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		version, inconsistencies, err := h.scheduler.ForceReconcile(r.Context(), roomID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		case errors.Is(err, reconcile.ErrRevisionConflict):
			WriteHTTPError(w, http.StatusConflict, "revision_conflict")
			return
		case err != nil:
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if inconsistencies == nil {
			inconsistencies = []reconcile.Inconsistency{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"room_id":         roomID,
			"version":         version,
			"inconsistencies": inconsistencies,
		})
	}
}
