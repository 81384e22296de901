// Package resolver reconciles the two linkage schemas a coach's data may
// live under: a direct coach_id foreign key on clients/workouts, or the
// trainer_client join table left behind by the older schema. The direct path
// is authoritative whenever it returns rows; the join table is consulted
// only when the direct path is silent.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/store"
)

// WorkoutLimit caps how many workouts a single resolve returns. It is a hard
// cap, not a paging cursor: a coach with more qualifying workouts sees only
// the most recent ones.
const WorkoutLimit = 50

// Resolver produces the authoritative client and workout lists for a coach
type Resolver struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a resolver over a typed store
func New(st *store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: st, logger: logger}
}

// ResolveClients returns the coach's clients, newest first. Empty results
// are values at every step, never errors; only a transport or store failure
// aborts the chain.
func (r *Resolver) ResolveClients(ctx context.Context, coachID int64) ([]store.Client, error) {
	clients, err := r.store.ClientsByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("direct client query: %w", err)
	}
	if len(clients) > 0 {
		metrics.ResolutionsTotal.WithLabelValues(metrics.EntityClients, metrics.PathDirect).Inc()
		return clients, nil
	}

	relationships, err := r.store.RelationshipsByTrainer(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("relationship query: %w", err)
	}
	if len(relationships) == 0 {
		metrics.ResolutionsTotal.WithLabelValues(metrics.EntityClients, metrics.PathEmpty).Inc()
		return []store.Client{}, nil
	}

	clientIDs := make([]int64, len(relationships))
	for i, rel := range relationships {
		clientIDs[i] = rel.ClientID
	}

	clients, err = r.store.ClientsByIDs(ctx, clientIDs)
	if err != nil {
		return nil, fmt.Errorf("relationship client query: %w", err)
	}

	r.logger.Debug("clients resolved through trainer_client", "coach_id", coachID, "count", len(clients))
	metrics.ResolutionsTotal.WithLabelValues(metrics.EntityClients, metrics.PathRelationship).Inc()
	return clients, nil
}

// ResolveWorkouts returns the coach's most recent workouts, capped at
// WorkoutLimit. When no workout carries the coach's direct linkage, the
// client set is resolved first and workouts are fetched through it, keeping
// every returned workout inside the coach's own client set.
func (r *Resolver) ResolveWorkouts(ctx context.Context, coachID int64) ([]store.Workout, error) {
	workouts, err := r.store.WorkoutsByCoach(ctx, coachID, WorkoutLimit)
	if err != nil {
		return nil, fmt.Errorf("direct workout query: %w", err)
	}
	if len(workouts) > 0 {
		metrics.ResolutionsTotal.WithLabelValues(metrics.EntityWorkouts, metrics.PathDirect).Inc()
		return workouts, nil
	}

	clients, err := r.ResolveClients(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		metrics.ResolutionsTotal.WithLabelValues(metrics.EntityWorkouts, metrics.PathEmpty).Inc()
		return []store.Workout{}, nil
	}

	clientIDs := make([]int64, len(clients))
	for i, client := range clients {
		clientIDs[i] = client.ID
	}

	workouts, err = r.store.WorkoutsByClients(ctx, clientIDs, WorkoutLimit)
	if err != nil {
		return nil, fmt.Errorf("client workout query: %w", err)
	}

	metrics.ResolutionsTotal.WithLabelValues(metrics.EntityWorkouts, metrics.PathRelationship).Inc()
	return workouts, nil
}

// ResolveStats computes the dashboard aggregate from concurrently resolved
// client and workout lists. Stats must never block the rest of the view: any
// failure degrades to the zero-value tuple instead of propagating.
func (r *Resolver) ResolveStats(ctx context.Context, coachID int64) store.Stats {
	var clients []store.Client
	var workouts []store.Workout

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = r.ResolveClients(gctx, coachID)
		return err
	})
	g.Go(func() error {
		var err error
		workouts, err = r.ResolveWorkouts(gctx, coachID)
		return err
	})

	if err := g.Wait(); err != nil {
		r.logger.Warn("stats resolution degraded to zero values", "coach_id", coachID, "error", err)
		metrics.StatsFallbacksTotal.Inc()
		return store.Stats{}
	}

	return StatsFrom(clients, workouts)
}

// StatsFrom derives the aggregate from already-resolved lists. The completed
// count comes from the in-memory workout list rather than a separate filtered
// query, so the numbers always agree with what the view shows.
func StatsFrom(clients []store.Client, workouts []store.Workout) store.Stats {
	completed := 0
	for _, w := range workouts {
		if w.Status == store.StatusCompleted {
			completed++
		}
	}
	return store.Stats{
		ClientsCount:      len(clients),
		WorkoutsCount:     len(workouts),
		CompletedWorkouts: completed,
	}
}

// ResolveCoach looks a coach up by platform identity, creating the record on
// first sight. The check-then-act is not atomic: two first-time sessions for
// the same identity can race to insert.
func (r *Resolver) ResolveCoach(ctx context.Context, telegramID, name, username string) (*store.Coach, error) {
	coach, err := r.store.GetCoachByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if coach != nil {
		metrics.ResolutionsTotal.WithLabelValues(metrics.EntityCoach, metrics.PathDirect).Inc()
		return coach, nil
	}

	coach, err = r.store.CreateCoach(ctx, telegramID, name, username)
	if err != nil {
		return nil, err
	}

	r.logger.Info("new coach registered", "coach_id", coach.ID, "telegram_id", telegramID)
	metrics.ResolutionsTotal.WithLabelValues(metrics.EntityCoach, metrics.PathCreated).Inc()
	return coach, nil
}
