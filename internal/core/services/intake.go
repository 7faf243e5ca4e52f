package services

import (
	"log/slog"
	"sync"
	"time"
)

// Intake is the operator switch that stops forwarding inbound messages to the agent
// Webhooks are still acknowledged, audited and published while paused
type Intake struct {
	mu       sync.RWMutex
	paused   bool
	pausedBy string
	pausedAt time.Time
	reason   string
}

func NewIntake() *Intake {
	return &Intake{}
}

// IsPaused returns whether forwarding is currently stopped
func (i *Intake) IsPaused() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.paused
}

// Pause stops forwarding
func (i *Intake) Pause(reason, pausedBy string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.paused = true
	i.reason = reason
	i.pausedBy = pausedBy
	i.pausedAt = time.Now()

	slog.Warn("Intake paused",
		"reason", reason,
		"paused_by", pausedBy,
	)
}

// Resume re-enables forwarding
func (i *Intake) Resume(resumedBy string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.paused {
		return
	}
	duration := time.Since(i.pausedAt)
	i.paused = false

	slog.Info("Intake resumed",
		"resumed_by", resumedBy,
		"duration", duration,
	)
}

// Status returns the current switch state
func (i *Intake) Status() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()

	status := map[string]any{
		"paused": i.paused,
	}
	if i.paused {
		status["reason"] = i.reason
		status["paused_by"] = i.pausedBy
		status["paused_at"] = i.pausedAt
	}
	return status
}
