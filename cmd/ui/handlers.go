package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"traderiser-client/internal/history"
	"traderiser-client/internal/models"
)

const defaultTradeLimit = 100

// HistoryStore is the read side of the trade history.
type HistoryStore interface {
	ListRecent(limit int) ([]models.TradeRecord, error)
	ListSession(sessionID string) ([]models.TradeRecord, error)
	GetSession(sessionID string) (*models.TradingSession, error)
	Statistics(since time.Time) (history.Stats, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	store HistoryStore
	now   func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store HistoryStore) *APIHandler {
	return &APIHandler{log: log, store: store, now: time.Now}
}

// Routes mounts the API endpoints.
func (h *APIHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", h.HealthHandler)
	r.Get("/api/trades", h.TradesHandler)
	r.Get("/api/statistics", h.StatisticsHandler)
	r.Get("/api/sessions/{sessionID}", h.SessionHandler)
	r.Get("/api/sessions/{sessionID}/trades", h.SessionTradesHandler)
	return r
}

// HealthHandler reports that the server is up.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TradesHandler returns recent trades, most recent first. The limit query
// parameter caps the result.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trades, err := h.store.ListRecent(limit)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, trades)
}

// SessionHandler returns one session summary.
func (h *APIHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.GetSession(chi.URLParam(r, "sessionID"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// SessionTradesHandler returns the trades of one session in execution order.
func (h *APIHandler) SessionTradesHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.ListSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.log.Error("Failed to get session trades", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, trades)
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h history.Stats `json:"since_24h"`
	AllTime  history.Stats `json:"all_time"`
}

// StatisticsHandler returns trading statistics for the last day and for all
// recorded history.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	since24h, err := h.store.Statistics(h.now().Add(-24 * time.Hour))
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}
	allTime, err := h.store.Statistics(time.Time{})
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, StatisticsResponse{Since24h: since24h, AllTime: allTime})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
