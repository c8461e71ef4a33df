package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bszub/opgsync/internal/database"
)

// SystemHandlers serves health and system monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	historyDB   *database.DB
}

func NewSystemHandlers(log zerolog.Logger, historyDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		historyDB:   historyDB,
	}
}

// HandleHealth is the unauthenticated liveness probe.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if h.historyDB != nil {
		if err := h.historyDB.HealthCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("History database health check failed")
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"uptime": time.Since(h.startupTime).Round(time.Second).String(),
	}); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

type systemInfoResponse struct {
	CPUPercent float64       `json:"cpu_percent"`
	RAMPercent float64       `json:"ram_percent"`
	Uptime     string        `json:"uptime"`
	HistoryDB  *databaseInfo `json:"history_db,omitempty"`
}

type databaseInfo struct {
	SizeBytes    int64 `json:"size_bytes"`
	WALSizeBytes int64 `json:"wal_size_bytes"`
	PageCount    int64 `json:"page_count"`
}

// HandleSystemInfo reports process and database statistics.
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.getSystemStats()

	resp := systemInfoResponse{
		CPUPercent: cpuAvg,
		RAMPercent: ramPercent,
		Uptime:     time.Since(h.startupTime).Round(time.Second).String(),
	}

	if h.historyDB != nil {
		if stats, err := h.historyDB.GetStats(); err == nil {
			resp.HistoryDB = &databaseInfo{
				SizeBytes:    stats.SizeBytes,
				WALSizeBytes: stats.WALSizeBytes,
				PageCount:    stats.PageCount,
			}
		} else {
			h.log.Warn().Err(err).Msg("Failed to read database stats")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

// getSystemStats samples CPU over 100ms so the endpoint stays responsive.
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
