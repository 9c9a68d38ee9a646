package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/engine"
	"github.com/yegors/mp-director/internal/storage/sqlite"
	"github.com/yegors/mp-director/internal/websocket"
	"github.com/yegors/mp-director/pkg/logger"
)

const defaultQueryLimit = 100

// Handler holds the API handler dependencies
type Handler struct {
	engine    *engine.Engine
	storage   *sqlite.AdvisoryStorage
	wsServer  *websocket.Server
	config    *config.Config
	logger    *logger.Logger
	startedAt time.Time
}

// NewHandler creates a new API handler. Storage may be nil when
// persistence is disabled.
func NewHandler(eng *engine.Engine, storage *sqlite.AdvisoryStorage, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		engine:    eng,
		storage:   storage,
		wsServer:  wsServer,
		config:    cfg,
		logger:    log.Named("api-handler"),
		startedAt: time.Now().UTC(),
	}
}

// GetAllAircraft returns every tracked aircraft
func (h *Handler) GetAllAircraft(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"aircraft": h.engine.Tracker().States(),
	})
}

// GetAircraftByCallsign returns one aircraft's state and its latest
// plan
func (h *Handler) GetAircraftByCallsign(w http.ResponseWriter, r *http.Request) {
	callsign := chi.URLParam(r, "callsign")
	st, ok := h.engine.Tracker().Get(callsign)
	if !ok {
		h.respondError(w, http.StatusNotFound, "aircraft not found")
		return
	}

	resp := map[string]interface{}{"aircraft": st}
	if tick := h.engine.LastTick(); tick != nil {
		if plan, ok := tick.Plans[callsign]; ok {
			resp["plan"] = plan
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetSchedule returns the latest slot assignments
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	tick := h.engine.LastTick()
	if tick == nil {
		h.respondError(w, http.StatusServiceUnavailable, "no tick processed yet")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"time":  tick.Time,
		"slots": tick.Slots,
	})
}

// GetConflicts returns the conflicts predicted by the latest tick
func (h *Handler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	tick := h.engine.LastTick()
	if tick == nil {
		h.respondError(w, http.StatusServiceUnavailable, "no tick processed yet")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"time":      tick.Time,
		"conflicts": tick.Conflicts,
	})
}

// GetAdvisories returns persisted advisories, optionally filtered by
// callsign
func (h *Handler) GetAdvisories(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		h.respondError(w, http.StatusNotImplemented, "advisory persistence is disabled")
		return
	}

	limit := defaultQueryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var (
		records interface{}
		err     error
	)
	if callsign := r.URL.Query().Get("callsign"); callsign != "" {
		records, err = h.storage.GetAdvisoriesByCallsign(r.Context(), callsign, limit)
	} else {
		records, err = h.storage.GetRecentAdvisories(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("Failed to query advisories", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query advisories")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"advisories": records})
}

// GetSlotHistory returns persisted schedule slots, defaulting to the
// last hour when no range is given
func (h *Handler) GetSlotHistory(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		h.respondError(w, http.StatusNotImplemented, "slot persistence is disabled")
		return
	}

	to := time.Now().UTC()
	from := to.Add(-time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid from time, want RFC3339")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid to time, want RFC3339")
			return
		}
		to = t
	}

	records, err := h.storage.GetSlotsByTimeRange(r.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to query slot history", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query slot history")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"slots": records})
}

// mpDistance is one row of the merge point distance board
type mpDistance struct {
	Callsign       string  `json:"callsign"`
	DistanceToMPNM float64 `json:"distance_to_mp_nm"`
	ETAMin         float64 `json:"eta_min"`
	AssignedMin    float64 `json:"assigned_min,omitempty"`
}

// GetMPDistances returns every arrival's distance and timing to the
// merge point, ordered by distance
func (h *Handler) GetMPDistances(w http.ResponseWriter, r *http.Request) {
	tick := h.engine.LastTick()
	if tick == nil {
		h.respondError(w, http.StatusServiceUnavailable, "no tick processed yet")
		return
	}

	rows := make([]mpDistance, 0, len(tick.Slots))
	for _, slot := range tick.Slots {
		row := mpDistance{
			Callsign:    slot.Callsign,
			ETAMin:      slot.ETAMin,
			AssignedMin: slot.AssignedMin,
		}
		if st, ok := h.engine.Tracker().Get(slot.Callsign); ok {
			row.DistanceToMPNM = st.DistanceToMPNM
		}
		rows = append(rows, row)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"time":      tick.Time,
		"distances": rows,
	})
}

// GetHealth returns service health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
		"clients":    h.wsServer.ClientCount(),
	}
	if tick := h.engine.LastTick(); tick != nil {
		status["last_tick"] = tick.Time
	}
	h.respondJSON(w, http.StatusOK, status)
}

// GetConfig returns the active configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.config)
}

// HandleWebSocket upgrades the connection for telemetry and advisory
// streaming
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleWS(w, r)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
