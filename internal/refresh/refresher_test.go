package refresh

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/snapshot"
	"github.com/bicepspshop/newcoach/internal/store"
	"github.com/bicepspshop/newcoach/internal/supabase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRefresher(t *testing.T, handler http.HandlerFunc, interval time.Duration) (*Refresher, *session.Manager) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	db, err := snapshot.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Failed to open snapshot database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := supabase.NewClient(server.URL, "test-key", testLogger())
	res := resolver.New(store.New(client, testLogger()), testLogger())
	sessions := session.NewManager(res, testLogger())
	t.Cleanup(sessions.Close)

	return New(sessions, db, interval, testLogger()), sessions
}

func TestRunCycleRefreshesActiveSessions(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/v1/clients" {
			w.Write([]byte(`[{"id": 2, "coach_id": 7, "name": "Anna"}]`))
			return
		}
		w.Write([]byte(`[{"id": 1, "coach_id": 7, "client_id": 2, "status": "planned"}]`))
	}

	refresher, sessions := newTestRefresher(t, handler, time.Minute)

	sess := sessions.Session(store.Coach{ID: 7})
	sess.Touch()

	refresher.runCycle(context.Background())

	snap := sess.Snapshot()
	if snap == nil {
		t.Fatal("Expected the cycle to install a snapshot")
	}
	if len(snap.Clients) != 1 || len(snap.Workouts) != 1 {
		t.Errorf("Unexpected snapshot contents: %+v", snap)
	}

	stored, err := refresher.snapshots.Load(7)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if stored == nil {
		t.Error("Expected the cycle to persist the snapshot")
	}
}

func TestRunCycleSkipsIdleSessions(t *testing.T) {
	var requests atomic.Int64
	handler := func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`[]`))
	}

	refresher, sessions := newTestRefresher(t, handler, time.Minute)
	sessions.Session(store.Coach{ID: 7})

	refresher.runCycle(context.Background())
	// The freshly created session counts as active; push the cutoff into the
	// future to make it idle
	refresher.interval = -time.Hour
	before := requests.Load()
	refresher.runCycle(context.Background())
	if got := requests.Load(); got != before {
		t.Errorf("Expected no store traffic for idle sessions, got %d extra requests", got-before)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}
	refresher, _ := newTestRefresher(t, handler, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- refresher.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Refresher did not stop on cancel")
	}
}
