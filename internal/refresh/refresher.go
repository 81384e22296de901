// Package refresh keeps recently active coach sessions warm: their
// view-model snapshots are periodically rebuilt and persisted so bot queries
// and offline fallbacks serve recent data.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/snapshot"
)

const refreshTimeout = 30 * time.Second

// Refresher is the background session refresher
type Refresher struct {
	sessions  *session.Manager
	snapshots *snapshot.DB
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a refresher over the session manager
func New(sessions *session.Manager, snapshots *snapshot.DB, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		sessions:  sessions,
		snapshots: snapshots,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs the refresh loop until the context is cancelled
func (r *Refresher) Start(ctx context.Context) error {
	metrics.RefresherActive.Set(1)
	defer metrics.RefresherActive.Set(0)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle refreshes every session that was active within the last few
// intervals. Sessions idle longer than that go cold until their coach comes
// back.
func (r *Refresher) runCycle(ctx context.Context) {
	cutoff := time.Now().Add(-3 * r.interval)
	active := r.sessions.ActiveSince(cutoff)

	if len(active) == 0 {
		metrics.RefresherCyclesTotal.WithLabelValues("idle").Inc()
		return
	}

	for _, sess := range active {
		refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		snap, err := sess.Refresh(refreshCtx)
		cancel()

		coachID := sess.Coach().ID
		if err != nil {
			r.logger.Warn("background refresh failed", "coach_id", coachID, "error", err)
			metrics.RefresherCyclesTotal.WithLabelValues(metrics.ResultFailure).Inc()
			continue
		}

		if r.snapshots != nil {
			if err := r.snapshots.Save(coachID, snap); err != nil {
				r.logger.Warn("failed to persist background snapshot", "coach_id", coachID, "error", err)
			}
		}
		metrics.RefresherCyclesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	}
}
