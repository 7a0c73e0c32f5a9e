package lots

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the lot analysis API
type Handlers struct {
	service *Service
	repo    *LotRepository
	minYear int
	log     zerolog.Logger
}

// NewHandlers creates a new lot handlers instance
func NewHandlers(service *Service, repo *LotRepository, minYear int, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		repo:    repo,
		minYear: minYear,
		log:     log.With().Str("handler", "lots").Logger(),
	}
}

// HandleAnalyzeStockcode analyzes every lot of a stockcode
// GET /api/lots/{stockcode}?min_year=2006&percent=100&tolerance=100
func (h *Handlers) HandleAnalyzeStockcode(w http.ResponseWriter, r *http.Request) {
	stockCode := chi.URLParam(r, "stockcode")

	minYear := h.minYear
	if v := r.URL.Query().Get("min_year"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			minYear = parsed
		}
	}

	percent, tolerance, ok := parseThresholds(w, r)
	if !ok {
		return
	}

	report, err := h.service.AnalyzeStockcode(stockCode, minYear, percent, tolerance)
	if err != nil {
		h.log.Error().Err(err).Str("stock_code", stockCode).Msg("Failed to analyze stockcode")
		http.Error(w, "Failed to analyze stockcode", http.StatusInternalServerError)
		return
	}

	writeJSON(w, report)
}

// HandleAnalyzeLot analyzes a single lot
// GET /api/lots/{stockcode}/{lot}?percent=100&tolerance=100
func (h *Handlers) HandleAnalyzeLot(w http.ResponseWriter, r *http.Request) {
	stockCode := chi.URLParam(r, "stockcode")
	lot := chi.URLParam(r, "lot")

	percent, tolerance, ok := parseThresholds(w, r)
	if !ok {
		return
	}

	metrics, err := h.service.AnalyzeLot(stockCode, lot, percent, tolerance)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("stock_code", stockCode).Str("lot", lot).Msg("Failed to analyze lot")
		http.Error(w, "Failed to analyze lot", http.StatusInternalServerError)
		return
	}

	writeJSON(w, metrics)
}

// HandleUsageTrace returns the transactions and running-quantity trace for a lot
// GET /api/lots/{stockcode}/{lot}/usage
func (h *Handlers) HandleUsageTrace(w http.ResponseWriter, r *http.Request) {
	stockCode := chi.URLParam(r, "stockcode")
	lot := chi.URLParam(r, "lot")

	txns, trace, err := h.service.UsageTrace(stockCode, lot)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("stock_code", stockCode).Str("lot", lot).Msg("Failed to build usage trace")
		http.Error(w, "Failed to build usage trace", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"stock_code":   stockCode,
		"lot":          lot,
		"transactions": txns,
		"usage":        trace,
	})
}

// HandleCreateTransaction records a new ledger entry
// POST /api/lots/transactions
func (h *Handlers) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockCode string  `json:"stock_code"`
		Lot       string  `json:"lot"`
		Type      string  `json:"type"`
		Date      string  `json:"date"`
		Quantity  float64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.StockCode == "" || req.Lot == "" {
		http.Error(w, "stock_code and lot are required", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rec := TransactionRecord{
		Type:     TrnTypeFromCode(req.Type),
		Date:     date,
		Quantity: req.Quantity,
	}

	if err := h.repo.Create(req.StockCode, req.Lot, rec); err != nil {
		h.log.Error().Err(err).Msg("Failed to record transaction")
		http.Error(w, "Failed to record transaction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"status": "created"})
}

// parseThresholds reads the percent and tolerance query parameters with their
// defaults (100 each). Reports a 400 and returns ok=false on a bad value.
func parseThresholds(w http.ResponseWriter, r *http.Request) (percent float64, tolerance int, ok bool) {
	percent = 100
	tolerance = 100

	if v := r.URL.Query().Get("percent"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > 100 {
			http.Error(w, "percent must be in (0, 100]", http.StatusBadRequest)
			return 0, 0, false
		}
		percent = parsed
	}

	if v := r.URL.Query().Get("tolerance"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 100 {
			http.Error(w, "tolerance must be in [0, 100]", http.StatusBadRequest)
			return 0, 0, false
		}
		tolerance = parsed
	}

	return percent, tolerance, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) // Ignore encode error - already committed response
}
