// Package session holds the per-coach application state: the last
// successfully resolved view-model snapshot and the machinery to rebuild it.
// There is no incremental patching: every mutation is followed by a full
// refresh, trading round trips for guaranteed consistency with the store's
// fallback linkage resolution.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/store"
)

// Snapshot is one consistent view-model tuple. It is replaced wholesale,
// never mutated in place.
type Snapshot struct {
	Coach    store.Coach     `json:"coach"`
	Clients  []store.Client  `json:"clients"`
	Workouts []store.Workout `json:"workouts"`
	Stats    store.Stats     `json:"stats"`
	LoadedAt time.Time       `json:"loaded_at"`
	Stale    bool            `json:"stale,omitempty"`
}

// Session is the explicit application-state object for one coach.
// Constructed at session start, its snapshot is replaced on each successful
// refresh and the whole session is torn down when the manager closes.
type Session struct {
	coach    store.Coach
	resolver *resolver.Resolver
	logger   *slog.Logger

	mu         sync.Mutex
	snapshot   *Snapshot
	refreshSeq uint64 // generation handed to each refresh
	appliedSeq uint64 // generation of the snapshot currently held
	lastActive time.Time
}

// Coach returns the coach this session belongs to
func (s *Session) Coach() store.Coach {
	return s.coach
}

// Snapshot returns the current snapshot, or nil before the first successful
// refresh
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// LastActive returns when the session was last refreshed or read
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session as recently used
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Refresh rebuilds the snapshot: clients and workouts resolve concurrently,
// stats derive from the results. The cached tuple is replaced only when
// everything succeeded; on failure the previous snapshot stays in place.
// Each refresh carries a generation number, and a slow refresh that finishes
// after a newer one has already been applied is discarded rather than
// allowed to roll the state back.
func (s *Session) Refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	s.refreshSeq++
	generation := s.refreshSeq
	s.lastActive = time.Now()
	s.mu.Unlock()

	start := time.Now()

	var clients []store.Client
	var workouts []store.Workout

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = s.resolver.ResolveClients(gctx, s.coach.ID)
		return err
	})
	g.Go(func() error {
		var err error
		workouts, err = s.resolver.ResolveWorkouts(gctx, s.coach.ID)
		return err
	})

	if err := g.Wait(); err != nil {
		metrics.RefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, err
	}

	snapshot := &Snapshot{
		Coach:    s.coach,
		Clients:  clients,
		Workouts: workouts,
		Stats:    resolver.StatsFrom(clients, workouts),
		LoadedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if generation < s.appliedSeq {
		// A newer refresh already landed while this one was in flight
		s.logger.Debug("discarding stale refresh", "coach_id", s.coach.ID, "generation", generation, "applied", s.appliedSeq)
		metrics.RefreshesTotal.WithLabelValues(metrics.ResultStale).Inc()
		return s.snapshot, nil
	}

	s.appliedSeq = generation
	s.snapshot = snapshot

	metrics.RefreshesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	return snapshot, nil
}

// Restore seeds the session with a previously persisted snapshot, marked
// stale. It never displaces a live snapshot.
func (s *Session) Restore(snapshot *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil {
		return
	}
	restored := *snapshot
	restored.Stale = true
	s.snapshot = &restored
}

// Manager owns the sessions, one per coach id
type Manager struct {
	resolver *resolver.Resolver
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager creates an empty session manager
func NewManager(res *resolver.Resolver, logger *slog.Logger) *Manager {
	return &Manager{
		resolver: res,
		logger:   logger,
		sessions: make(map[int64]*Session),
	}
}

// Session returns the session for a coach, creating it on first sight
func (m *Manager) Session(coach store.Coach) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[coach.ID]; ok {
		return s
	}

	s := &Session{
		coach:      coach,
		resolver:   m.resolver,
		logger:     m.logger,
		lastActive: time.Now(),
	}
	m.sessions[coach.ID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return s
}

// ActiveSince returns sessions used at or after the cutoff
func (m *Manager) ActiveSince(cutoff time.Time) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []*Session
	for _, s := range m.sessions {
		if !s.LastActive().Before(cutoff) {
			active = append(active, s)
		}
	}
	return active
}

// Close tears down all sessions
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[int64]*Session)
	metrics.ActiveSessions.Set(0)
}
