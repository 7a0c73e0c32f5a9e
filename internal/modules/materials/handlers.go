package materials

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the material usage API
type Handlers struct {
	service *Service
	repo    *CompositionRepository
	log     zerolog.Logger
}

// NewHandlers creates a new material handlers instance
func NewHandlers(service *Service, repo *CompositionRepository, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		repo:    repo,
		log:     log.With().Str("handler", "materials").Logger(),
	}
}

// HandleGetBOM returns the material lines of a composition
// GET /api/materials/bom/{comp}
func (h *Handlers) HandleGetBOM(w http.ResponseWriter, r *http.Request) {
	comp := chi.URLParam(r, "comp")

	lines, err := h.repo.GetBOM(comp)
	if err != nil {
		h.log.Error().Err(err).Str("comp", comp).Msg("Failed to get BOM")
		http.Error(w, "Failed to get BOM", http.StatusInternalServerError)
		return
	}
	if len(lines) == 0 {
		http.Error(w, "Unknown comp", http.StatusNotFound)
		return
	}

	writeJSON(w, lines)
}

// HandleUsage returns the rolling window consumption of a stockcode
// GET /api/materials/{stockcode}/usage?weeks=2
func (h *Handlers) HandleUsage(w http.ResponseWriter, r *http.Request) {
	stockCode := chi.URLParam(r, "stockcode")

	weeks, ok := parseWeeks(w, r)
	if !ok {
		return
	}

	usage, err := h.service.UseByRollingWeeks(stockCode, weeks)
	if err != nil {
		h.log.Error().Err(err).Str("stock_code", stockCode).Msg("Failed to compute usage")
		http.Error(w, "Failed to compute usage", http.StatusInternalServerError)
		return
	}

	writeJSON(w, usage)
}

// HandleUsageStatistics returns usage summary statistics for every stockcode
// GET /api/materials/statistics?weeks=2
func (h *Handlers) HandleUsageStatistics(w http.ResponseWriter, r *http.Request) {
	weeks, ok := parseWeeks(w, r)
	if !ok {
		return
	}

	stats, err := h.service.UsageStatistics(weeks)
	if err != nil {
		h.log.Error().Err(err).Int("weeks", weeks).Msg("Failed to compute usage statistics")
		http.Error(w, "Failed to compute usage statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats)
}

func parseWeeks(w http.ResponseWriter, r *http.Request) (int, bool) {
	weeks := 2
	if v := r.URL.Query().Get("weeks"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "weeks must be a positive integer", http.StatusBadRequest)
			return 0, false
		}
		weeks = parsed
	}
	return weeks, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) // Ignore encode error - already committed response
}
