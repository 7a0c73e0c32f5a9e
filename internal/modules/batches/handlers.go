package batches

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the batch production API
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new batch handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "batches").Logger(),
	}
}

// HandleMadeByDate returns the daily production series for one comp
// GET /api/batches/{comp}/daily?start=2015-01-01&end=2015-12-31
func (h *Handlers) HandleMadeByDate(w http.ResponseWriter, r *http.Request) {
	comp := chi.URLParam(r, "comp")

	start, end, ok := parseDateRange(w, r)
	if !ok {
		return
	}

	series, err := h.service.MadeByDate(comp, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("comp", comp).Msg("Failed to build daily series")
		http.Error(w, "Failed to build daily series", http.StatusInternalServerError)
		return
	}

	writeJSON(w, series)
}

// HandleRollingWeeks returns rolling week production totals per comp
// GET /api/batches/rolling?weeks=2
func (h *Handlers) HandleRollingWeeks(w http.ResponseWriter, r *http.Request) {
	weeks := 1
	if v := r.URL.Query().Get("weeks"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "weeks must be a positive integer", http.StatusBadRequest)
			return
		}
		weeks = parsed
	}

	windows, err := h.service.ByRollingWeeks(weeks)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			http.Error(w, "No production snapshot available yet", http.StatusServiceUnavailable)
			return
		}
		h.log.Error().Err(err).Int("weeks", weeks).Msg("Failed to aggregate rolling weeks")
		http.Error(w, "Failed to aggregate rolling weeks", http.StatusInternalServerError)
		return
	}

	writeJSON(w, windows)
}

// HandleLaborAnalysis compares labor hours under the current and proposed
// preweigh procedures over recent production
// GET /api/batches/labor?days=90
func (h *Handlers) HandleLaborAnalysis(w http.ResponseWriter, r *http.Request) {
	days := 90
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	analysis, err := h.service.LaborByDay(days)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			http.Error(w, "No production snapshot available yet", http.StatusServiceUnavailable)
			return
		}
		h.log.Error().Err(err).Int("days", days).Msg("Failed to compute labor analysis")
		http.Error(w, "Failed to compute labor analysis", http.StatusInternalServerError)
		return
	}

	writeJSON(w, analysis)
}

// HandleCreateBatch records a produced batch
// POST /api/batches
func (h *Handlers) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comp    string `json:"comp"`
		BatchNo string `json:"batch_no"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Comp == "" || req.BatchNo == "" {
		http.Error(w, "comp and batch_no are required", http.StatusBadRequest)
		return
	}

	// Reject numbers that cannot be dated; they would be invisible to
	// every production series.
	if _, err := (Batch{Comp: req.Comp, BatchNo: req.BatchNo}).ProductionDate(); err != nil {
		http.Error(w, "batch_no must start with a YYMMDD date", http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.repo.Create(req.Comp, req.BatchNo); err != nil {
		h.log.Error().Err(err).Str("comp", req.Comp).Msg("Failed to create batch")
		http.Error(w, "Failed to create batch", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{
		"comp":     req.Comp,
		"batch_no": req.BatchNo,
	})
}

func parseDateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		http.Error(w, "start and end query parameters are required", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		http.Error(w, "start must be a YYYY-MM-DD date", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		http.Error(w, "end must be a YYYY-MM-DD date", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		http.Error(w, "end must not be before start", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) // Ignore encode error - already committed response
}
