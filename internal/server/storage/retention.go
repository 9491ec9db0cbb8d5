package storage

import (
	"context"
	"log/slog"
	"time"

	"mediavault/internal/server/access"
)

// DownloadPruner deletes download records created before a cutoff.
type DownloadPruner interface {
	PruneDownloads(ctx context.Context, before time.Time) (int64, error)
}

// RetentionService periodically removes download records older than the
// retention window. Records from the current UTC day are always kept
// since they count toward quotas.
type RetentionService struct {
	repo     DownloadPruner
	keep     time.Duration
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
}

// NewRetentionService creates a new retention service keeping keepDays
// days of download history.
func NewRetentionService(repo DownloadPruner, keepDays int, interval time.Duration) *RetentionService {
	return &RetentionService{
		repo:     repo,
		keep:     time.Duration(keepDays) * 24 * time.Hour,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the retention loop in a background goroutine.
func (rs *RetentionService) Start(ctx context.Context) {
	slog.Info("retention service started", "interval", rs.interval, "keep", rs.keep)

	go func() {
		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		rs.runPrune(ctx)

		for {
			select {
			case <-ticker.C:
				rs.runPrune(ctx)
			case <-ctx.Done():
				slog.Info("retention service stopping")
				close(rs.done)
				return
			}
		}
	}()
}

// Wait blocks until the retention service has fully stopped.
func (rs *RetentionService) Wait() {
	<-rs.done
}

// cutoff is the retention boundary, never later than today's UTC midnight.
func (rs *RetentionService) cutoff() time.Time {
	now := rs.now()
	today := access.DayStart(now)
	c := now.Add(-rs.keep)
	if c.After(today) {
		return today
	}
	return c
}

func (rs *RetentionService) runPrune(ctx context.Context) {
	before := rs.cutoff()

	n, err := rs.repo.PruneDownloads(ctx, before)
	if err != nil {
		slog.Error("failed to prune download records", "before", before, "error", err)
		return
	}

	slog.Info("retention cycle complete", "pruned", n, "before", before)
}
