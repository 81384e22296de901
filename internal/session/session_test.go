package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/store"
	"github.com/bicepspshop/newcoach/internal/supabase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(handler http.HandlerFunc) (*Manager, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := supabase.NewClient(server.URL, "test-key", testLogger())
	res := resolver.New(store.New(client, testLogger()), testLogger())
	return NewManager(res, testLogger()), server
}

func okStoreHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Query().Has("coach_id"):
		if r.URL.Path == "/rest/v1/clients" {
			w.Write([]byte(`[{"id": 2, "coach_id": 7, "name": "Anna"}]`))
			return
		}
		w.Write([]byte(`[{"id": 1, "coach_id": 7, "client_id": 2, "status": "completed"}]`))
	default:
		w.Write([]byte(`[]`))
	}
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	manager, server := newTestManager(okStoreHandler)
	defer server.Close()

	sess := manager.Session(store.Coach{ID: 7, Name: "Ivan"})
	snap, err := sess.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if snap.Coach.ID != 7 {
		t.Errorf("Expected coach 7, got %d", snap.Coach.ID)
	}
	if len(snap.Clients) != 1 || len(snap.Workouts) != 1 {
		t.Errorf("Unexpected snapshot contents: %+v", snap)
	}
	if snap.Stats.CompletedWorkouts != 1 {
		t.Errorf("Expected 1 completed workout, got %d", snap.Stats.CompletedWorkouts)
	}
	if snap.Stale {
		t.Error("Fresh snapshot must not be stale")
	}
	if snap.LoadedAt.IsZero() {
		t.Error("Expected LoadedAt to be set")
	}

	if sess.Snapshot() != snap {
		t.Error("Expected refresh to install the new snapshot")
	}
}

func TestRefreshFailureKeepsOldSnapshot(t *testing.T) {
	var failing bool
	manager, server := newTestManager(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		okStoreHandler(w, r)
	})
	defer server.Close()

	sess := manager.Session(store.Coach{ID: 7})
	good, err := sess.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	failing = true
	if _, err := sess.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh to fail")
	}

	if sess.Snapshot() != good {
		t.Error("Expected failed refresh to leave the old snapshot in place")
	}
}

func TestRefreshDiscardsStaleGeneration(t *testing.T) {
	manager, server := newTestManager(okStoreHandler)
	defer server.Close()

	sess := manager.Session(store.Coach{ID: 7})
	if _, err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	applied, err := sess.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Simulate a refresh that started before the applied one finished
	sess.mu.Lock()
	sess.refreshSeq = 0
	sess.mu.Unlock()

	snap, err := sess.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if snap != applied {
		t.Error("Expected the stale refresh result to be discarded")
	}
	if sess.Snapshot() != applied {
		t.Error("Expected the applied snapshot to stay in place")
	}
}

func TestRestoreDoesNotDisplaceLiveSnapshot(t *testing.T) {
	manager, server := newTestManager(okStoreHandler)
	defer server.Close()

	sess := manager.Session(store.Coach{ID: 7})
	live, err := sess.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	sess.Restore(&Snapshot{Coach: store.Coach{ID: 7}, LoadedAt: time.Now().Add(-time.Hour)})
	if sess.Snapshot() != live {
		t.Error("Expected restore to be ignored with a live snapshot present")
	}
}

func TestRestoreMarksSnapshotStale(t *testing.T) {
	manager, server := newTestManager(okStoreHandler)
	defer server.Close()

	sess := manager.Session(store.Coach{ID: 7})
	sess.Restore(&Snapshot{Coach: store.Coach{ID: 7}})

	snap := sess.Snapshot()
	if snap == nil {
		t.Fatal("Expected restored snapshot")
	}
	if !snap.Stale {
		t.Error("Expected restored snapshot to be marked stale")
	}
}

func TestManagerReusesSessions(t *testing.T) {
	manager, server := newTestManager(okStoreHandler)
	defer server.Close()

	first := manager.Session(store.Coach{ID: 7})
	second := manager.Session(store.Coach{ID: 7})
	if first != second {
		t.Error("Expected the same session for the same coach")
	}

	other := manager.Session(store.Coach{ID: 8})
	if other == first {
		t.Error("Expected a distinct session for another coach")
	}
}

func TestActiveSince(t *testing.T) {
	manager, server := newTestManager(okStoreHandler)
	defer server.Close()

	sess := manager.Session(store.Coach{ID: 7})
	sess.Touch()

	active := manager.ActiveSince(time.Now().Add(-time.Minute))
	if len(active) != 1 {
		t.Fatalf("Expected 1 active session, got %d", len(active))
	}

	active = manager.ActiveSince(time.Now().Add(time.Minute))
	if len(active) != 0 {
		t.Errorf("Expected no sessions active in the future, got %d", len(active))
	}
}
