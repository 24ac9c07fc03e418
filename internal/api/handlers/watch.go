package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jaekwon-dev/tapewatch/internal/monitor"
	"github.com/jaekwon-dev/tapewatch/internal/provider"
	"github.com/jaekwon-dev/tapewatch/internal/scheduler"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/internal/universe"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// WatchHandler serves the read-only consumer surface: the latest in-memory
// decision set, the snapshot history, and operational stats. Nothing here
// can mutate loop state.
type WatchHandler struct {
	state     *monitor.State
	snapshots snapshot.Repository
	universes universe.Repository
	chain     *provider.Chain
	scheduler *scheduler.Scheduler
	db        *database.DB
	logger    *logger.Logger
}

// NewWatchHandler creates the watch handler.
func NewWatchHandler(
	state *monitor.State,
	snapshots snapshot.Repository,
	universes universe.Repository,
	chain *provider.Chain,
	sched *scheduler.Scheduler,
	db *database.DB,
	log *logger.Logger,
) *WatchHandler {
	return &WatchHandler{
		state:     state,
		snapshots: snapshots,
		universes: universes,
		chain:     chain,
		scheduler: sched,
		db:        db,
		logger:    log,
	}
}

// GetLatest returns the current cycle's decisions.
// GET /api/v1/decisions/latest
func (h *WatchHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	view, ok := h.state.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, "No completed cycle this session")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GetSnapshots returns a session's persisted snapshot history.
// GET /api/v1/snapshots/{date}?limit=N
func (h *WatchHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := h.snapshots.History(r.Context(), date, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_date": date,
		"count":        len(history),
		"snapshots":    history,
	})
}

// GetUniverse returns the stored universe for a session date.
// GET /api/v1/universe/{date}
func (h *WatchHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	u, err := h.universes.ByDate(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load universe")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve universe")
		return
	}
	if u == nil {
		respondError(w, http.StatusNotFound, "No universe for that session date")
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// GetProviderStats returns cumulative per-tier answer counts.
// GET /api/v1/providers/stats
func (h *WatchHandler) GetProviderStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.chain.Stats())
}

// GetJobs returns scheduled-job execution stats.
// GET /api/v1/jobs
func (h *WatchHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.Stats())
}

// Health reports process and database health.
// GET /health
func (h *WatchHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"service": "tapewatch",
	}
	if h.db != nil {
		status["database"] = h.db.HealthCheck(r.Context())
	}
	respondJSON(w, http.StatusOK, status)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
