package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/plantfloor/lottrack/internal/database"
	"github.com/plantfloor/lottrack/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   map[string]*database.DB
	scheduler   *scheduler.Scheduler
	history     *scheduler.HistoryRepository
	// Jobs (set after job registration in main.go)
	snapshotRebuildJob   scheduler.Job
	usageStatsJob        scheduler.Job
	dailyMaintenanceJob  scheduler.Job
	weeklyMaintenanceJob scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	history *scheduler.HistoryRepository,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		scheduler:   sched,
		history:     history,
	}
}

// SetJobs registers job references for manual triggering
// Called after jobs are registered in main.go
func (h *SystemHandlers) SetJobs(snapshotRebuild, usageStats, dailyMaintenance, weeklyMaintenance scheduler.Job) {
	h.snapshotRebuildJob = snapshotRebuild
	h.usageStatsJob = usageStats
	h.dailyMaintenanceJob = dailyMaintenance
	h.weeklyMaintenanceJob = weeklyMaintenance
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	UptimeHours      float64 `json:"uptime_hours"`
	CPUPercent       float64 `json:"cpu_percent"`
	RAMPercent       float64 `json:"ram_percent"`
	TransactionCount int     `json:"transaction_count"`
	BatchCount       int     `json:"batch_count"`
	LastTransaction  string  `json:"last_transaction,omitempty"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
}

// HandleHealth returns service health, pinging every database
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.databases))
	for name, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	h.writeJSON(w, map[string]interface{}{
		"status":    status,
		"databases": checks,
		"uptime_s":  int(time.Since(h.startupTime).Seconds()),
	})
}

// HandleSystemStatus returns system resource usage and record counts
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuAvg, ramPercent := h.getSystemStats()

	response := SystemStatusResponse{
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuAvg,
		RAMPercent:  ramPercent,
	}

	if ledger, ok := h.databases["ledger"]; ok {
		var count int
		var lastDate sql.NullString
		err := ledger.Conn().QueryRow(`
			SELECT COUNT(*), MAX(trn_date) FROM lot_transactions
		`).Scan(&count, &lastDate)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to query lot transactions")
		} else {
			response.TransactionCount = count
			if lastDate.Valid {
				response.LastTransaction = lastDate.String
			}
		}
	}

	if plant, ok := h.databases["plant"]; ok {
		if err := plant.Conn().QueryRow(`SELECT COUNT(*) FROM batches`).Scan(&response.BatchCount); err != nil {
			h.log.Error().Err(err).Msg("Failed to query batches")
		}
	}

	h.writeJSON(w, response)
}

// HandleDatabaseStats returns size statistics for every database
// GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	response := DatabaseStatsResponse{
		Databases:   make([]DBInfo, 0, len(h.databases)),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for name, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		response.Databases = append(response.Databases, DBInfo{
			Name:      name,
			Path:      db.Path(),
			SizeMB:    sizeMB,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
		})
		response.TotalSizeMB += sizeMB
	}

	h.writeJSON(w, response)
}

// HandleJobHistory returns recent runs of a scheduled job
// GET /api/jobs/history/{job}?limit=20
func (h *SystemHandlers) HandleJobHistory(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.history.RecentRuns(job, limit)
	if err != nil {
		h.log.Error().Err(err).Str("job", job).Msg("Failed to query job history")
		http.Error(w, "Failed to query job history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, runs)
}

// HandleTriggerSnapshotRebuild triggers the snapshot rebuild job immediately
// POST /api/jobs/snapshot-rebuild
func (h *SystemHandlers) HandleTriggerSnapshotRebuild(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.snapshotRebuildJob, "Snapshot rebuild")
}

// HandleTriggerUsageStats triggers the usage statistics job immediately
// POST /api/jobs/usage-stats
func (h *SystemHandlers) HandleTriggerUsageStats(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.usageStatsJob, "Usage statistics refresh")
}

// HandleTriggerDailyMaintenance triggers the daily maintenance job immediately
// POST /api/jobs/daily-maintenance
func (h *SystemHandlers) HandleTriggerDailyMaintenance(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.dailyMaintenanceJob, "Daily maintenance")
}

// HandleTriggerWeeklyMaintenance triggers the weekly maintenance job immediately
// POST /api/jobs/weekly-maintenance
func (h *SystemHandlers) HandleTriggerWeeklyMaintenance(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.weeklyMaintenanceJob, "Weekly maintenance")
}

func (h *SystemHandlers) triggerJob(w http.ResponseWriter, job scheduler.Job, label string) {
	if job == nil {
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": label + " job not registered",
		})
		return
	}

	h.log.Info().Str("job", job.Name()).Msg("Manual job trigger")

	if err := h.scheduler.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", job.Name()).Msg("Failed to trigger job")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": label + " triggered successfully",
	})
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
