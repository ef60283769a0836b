package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/services"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	reference *services.ReferenceService
	calendar  *services.CalendarService
	branding  *services.BrandingService
	news      *services.NewsService
	log       zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(ref *services.ReferenceService, cal *services.CalendarService, brand *services.BrandingService, news *services.NewsService, log zerolog.Logger) *Handler {
	return &Handler{
		reference: ref,
		calendar:  cal,
		branding:  brand,
		news:      news,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// GetReference handles GET /reference/{symbols}. A single symbol
// responds with one record or 404; a comma-separated list responds with
// an array where unknown symbols are simply omitted.
func (h *Handler) GetReference(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["symbols"]
	symbols := splitSymbols(raw)

	if len(symbols) == 0 {
		respondJSON(w, http.StatusOK, []*models.ReferenceRecord{})
		return
	}

	if len(symbols) == 1 {
		record, err := h.reference.GetReference(r.Context(), symbols[0])
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, record)
		return
	}

	records, err := h.reference.GetReferenceMany(r.Context(), symbols)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]*models.ReferenceRecord, 0, len(records))
	for _, sym := range symbols {
		if rec, ok := records[strings.ToUpper(sym)]; ok {
			out = append(out, rec)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// InvalidateReference handles DELETE /reference/{symbol}/cache.
func (h *Handler) InvalidateReference(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if err := h.reference.InvalidateReference(r.Context(), symbol); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEarnings handles GET /earnings.
func (h *Handler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCalendarFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.calendar.GetEvents(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// GetPrimaryEarnings handles GET /earnings/primary.
func (h *Handler) GetPrimaryEarnings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCalendarFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.calendar.GetPrimaryEvents(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// GetSecondaryEarnings handles GET /earnings/secondary.
func (h *Handler) GetSecondaryEarnings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCalendarFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.calendar.GetSecondaryEvents(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// InvalidateEarnings handles DELETE /earnings/cache. The filter
// parameters select which cached query result to evict.
func (h *Handler) InvalidateEarnings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCalendarFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.calendar.InvalidateCalendar(r.Context(), filter); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBranding handles GET /branding/{symbol}.
func (h *Handler) GetBranding(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	record, err := h.branding.GetBranding(r.Context(), symbol)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// RefreshBranding handles POST /branding/{symbol}/refresh.
func (h *Handler) RefreshBranding(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	record, err := h.branding.RefreshBranding(r.Context(), symbol)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// InvalidateBranding handles DELETE /branding/{symbol}/cache.
func (h *Handler) InvalidateBranding(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if err := h.branding.InvalidateBranding(r.Context(), symbol); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNews handles GET /news.
func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	filter := models.NewsFilter{
		Symbol: r.URL.Query().Get("symbol"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	articles, err := h.news.GetNews(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, articles)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func parseCalendarFilter(r *http.Request) (models.CalendarFilter, error) {
	var f models.CalendarFilter
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		f.DateFrom = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		f.DateTo = &t
	}
	if raw := q.Get("tickers"); raw != "" {
		f.Tickers = splitSymbols(raw)
	}
	if raw := q.Get("min_importance"); raw != "" {
		imp, err := strconv.Atoi(raw)
		if err != nil || imp < 0 || imp > 5 {
			return f, errors.New("invalid min_importance, expected 0-5")
		}
		f.MinImportance = &imp
	}
	return f, nil
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
