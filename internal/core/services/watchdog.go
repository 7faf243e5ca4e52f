package services

import (
	"context"
	"log/slog"
	"time"

	"facebook-action/internal/core/ports"
)

// purgeBatch bounds a single DELETE so the table is never locked for long
const purgeBatch = 1000

// DiskUsageFunc reports used disk space in percent
type DiskUsageFunc func(ctx context.Context) (float64, error)

// Watchdog purges old processed webhook logs when the disk fills up
// A purge only happens when disk usage is at or above Threshold
type Watchdog struct {
	Purger    ports.LogPurger
	DiskUsage DiskUsageFunc
	Interval  time.Duration
	Retention time.Duration
	Threshold float64
}

// Run checks on every tick until ctx is cancelled
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	slog.Info("Watchdog started",
		"interval", w.Interval,
		"retention", w.Retention,
		"threshold_percent", w.Threshold,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watchdog stopped")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one resource check and returns the number of purged rows
func (w *Watchdog) Check(ctx context.Context) int64 {
	usage, err := w.DiskUsage(ctx)
	if err != nil {
		slog.Error("Watchdog disk check failed", "error", err)
		return 0
	}

	if usage < w.Threshold {
		slog.Debug("Watchdog disk usage OK", "used_percent", usage)
		return 0
	}

	slog.Warn("Watchdog disk usage high, purging webhook logs",
		"used_percent", usage,
		"threshold_percent", w.Threshold,
	)

	cutoff := time.Now().Add(-w.Retention)
	rows, err := w.Purger.PurgeLogs(ctx, cutoff, purgeBatch)
	if err != nil {
		slog.Error("Watchdog purge failed", "error", err)
		return 0
	}

	slog.Info("Watchdog purged webhook logs", "rows", rows, "cutoff", cutoff)
	return rows
}
