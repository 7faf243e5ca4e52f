package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"facebook-action/internal/core/services"
)

// Version is reported by the liveness endpoint
var Version = "dev"

var appStartTime = time.Now()

// SystemHandler serves liveness, host metrics and the intake switch
type SystemHandler struct {
	intake            *services.Intake
	viewers           func() int // connected event viewers
	watchdogThreshold float64
	diskPath          string
}

// NewSystemHandler creates a system handler; viewers may be nil
func NewSystemHandler(intake *services.Intake, viewers func() int, watchdogThreshold float64, diskPath string) *SystemHandler {
	if viewers == nil {
		viewers = func() int { return 0 }
	}
	return &SystemHandler{
		intake:            intake,
		viewers:           viewers,
		watchdogThreshold: watchdogThreshold,
		diskPath:          diskPath,
	}
}

// ============================================================================
// System Status
// ============================================================================

// SystemStatusResponse represents overall system status
type SystemStatusResponse struct {
	Online       bool   `json:"online"`
	Uptime       string `json:"uptime"`
	EventViewers int    `json:"event_viewers"`
	IntakePaused bool   `json:"intake_paused"`
	Version      string `json:"version"`
}

// GetStatus returns liveness information
// GET /
func (h *SystemHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeAPI(w, r, NewSuccessResponse(SystemStatusResponse{
		Online:       true,
		Uptime:       formatDuration(time.Since(appStartTime)),
		EventViewers: h.viewers(),
		IntakePaused: h.intake.IsPaused(),
		Version:      Version,
	}))
}

// ============================================================================
// System Health & Metrics
// ============================================================================

// SystemMetricsResponse represents system health data
type SystemMetricsResponse struct {
	CPUPercent        float64 `json:"cpu_percent"`
	RAMUsedGB         float64 `json:"ram_used_gb"`
	RAMTotalGB        float64 `json:"ram_total_gb"`
	RAMPercent        float64 `json:"ram_percent"`
	DiskUsedGB        float64 `json:"disk_used_gb"`
	DiskTotalGB       float64 `json:"disk_total_gb"`
	DiskPercent       float64 `json:"disk_percent"`
	GoroutinesCount   int     `json:"goroutines_count"`
	WatchdogActive    bool    `json:"watchdog_active"`
	WatchdogThreshold float64 `json:"watchdog_threshold"`
	DiskWarningLevel  string  `json:"disk_warning_level"` // "safe" | "warning" | "critical"
}

// GetSystemMetrics returns current host health metrics
// GET /api/system/metrics
func (h *SystemHandler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// CPU usage (average over 1 second)
	var cpuPercent float64
	if cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	var ramUsedGB, ramTotalGB, ramPercent float64
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		ramUsedGB = bytesToGB(memStat.Used)
		ramTotalGB = bytesToGB(memStat.Total)
		ramPercent = memStat.UsedPercent
	}

	var diskUsedGB, diskTotalGB, diskPercent float64
	if diskStat, err := disk.UsageWithContext(ctx, h.diskPath); err == nil {
		diskUsedGB = bytesToGB(diskStat.Used)
		diskTotalGB = bytesToGB(diskStat.Total)
		diskPercent = diskStat.UsedPercent
	}

	response := SystemMetricsResponse{
		CPUPercent:        roundTo2Decimals(cpuPercent),
		RAMUsedGB:         roundTo2Decimals(ramUsedGB),
		RAMTotalGB:        roundTo2Decimals(ramTotalGB),
		RAMPercent:        roundTo2Decimals(ramPercent),
		DiskUsedGB:        roundTo2Decimals(diskUsedGB),
		DiskTotalGB:       roundTo2Decimals(diskTotalGB),
		DiskPercent:       roundTo2Decimals(diskPercent),
		GoroutinesCount:   runtime.NumGoroutine(),
		WatchdogActive:    diskPercent >= h.watchdogThreshold,
		WatchdogThreshold: h.watchdogThreshold,
		DiskWarningLevel:  diskWarningLevel(diskPercent, h.watchdogThreshold),
	}

	slog.Debug("System metrics retrieved",
		"cpu", cpuPercent,
		"disk_percent", diskPercent,
		"watchdog_active", response.WatchdogActive,
	)

	writeAPI(w, r, NewSuccessResponse(response))
}

// ============================================================================
// Intake switch
// ============================================================================

type intakeRequest struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

// GetIntake returns the switch state
// GET /api/system/intake
func (h *SystemHandler) GetIntake(w http.ResponseWriter, r *http.Request) {
	writeAPI(w, r, NewSuccessResponse(h.intake.Status()))
}

// PauseIntake stops forwarding inbound messages to agents
// POST /api/system/intake/pause
func (h *SystemHandler) PauseIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPI(w, r, BadRequestResponse("invalid JSON body"))
		return
	}
	if req.By == "" {
		writeAPI(w, r, BadRequestResponse("by is required"))
		return
	}

	h.intake.Pause(req.Reason, req.By)
	writeAPI(w, r, NewSuccessResponse(h.intake.Status()))
}

// ResumeIntake re-enables forwarding
// POST /api/system/intake/resume
func (h *SystemHandler) ResumeIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	// Body is optional
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.By == "" {
		req.By = "unknown"
	}

	h.intake.Resume(req.By)
	writeAPI(w, r, NewSuccessResponse(h.intake.Status()))
}

// ============================================================================
// Helpers
// ============================================================================

func bytesToGB(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}

func roundTo2Decimals(val float64) float64 {
	return float64(int(val*100)) / 100
}

func diskWarningLevel(percent, threshold float64) string {
	switch {
	case percent < threshold:
		return "safe"
	case percent < threshold+10:
		return "warning"
	default:
		return "critical"
	}
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 24 {
		days := hours / 24
		hours = hours % 24
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}
