package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bicepspshop/newcoach/internal/config"
	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/snapshot"
	"github.com/bicepspshop/newcoach/internal/store"
	"github.com/bicepspshop/newcoach/internal/supabase"
	"github.com/bicepspshop/newcoach/internal/telegram"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRest is an in-memory PostgREST stand-in with just enough of the filter
// grammar for the store's queries
type fakeRest struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	nextID      int64
	failReads   map[string]bool
}

func newFakeRest() *fakeRest {
	return &fakeRest{
		collections: make(map[string][]map[string]any),
		nextID:      100,
		failReads:   make(map[string]bool),
	}
}

func (f *fakeRest) seed(collection string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], rows...)
}

func matches(row map[string]any, query url.Values) bool {
	for field, vals := range query {
		if field == "order" || field == "limit" || field == "select" {
			continue
		}
		predicate := vals[0]
		got := fmt.Sprint(row[field])
		switch {
		case strings.HasPrefix(predicate, "eq."):
			if got != strings.TrimPrefix(predicate, "eq.") {
				return false
			}
		case strings.HasPrefix(predicate, "in.("):
			set := strings.TrimSuffix(strings.TrimPrefix(predicate, "in.("), ")")
			member := false
			for _, v := range strings.Split(set, ",") {
				if got == v {
					member = true
					break
				}
			}
			if !member {
				return false
			}
		}
	}
	return true
}

func (f *fakeRest) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		collection := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		query := r.URL.Query()

		switch r.Method {
		case http.MethodGet:
			if f.failReads[collection] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			result := []map[string]any{}
			for _, row := range f.collections[collection] {
				if matches(row, query) {
					result = append(result, row)
				}
			}
			json.NewEncoder(w).Encode(result)

		case http.MethodPost:
			var row map[string]any
			json.NewDecoder(r.Body).Decode(&row)
			if row["id"] == nil {
				f.nextID++
				row["id"] = float64(f.nextID)
			}
			f.collections[collection] = append(f.collections[collection], row)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode([]map[string]any{row})

		case http.MethodPatch:
			var fields map[string]any
			json.NewDecoder(r.Body).Decode(&fields)
			result := []map[string]any{}
			for _, row := range f.collections[collection] {
				if matches(row, query) {
					for k, v := range fields {
						row[k] = v
					}
					result = append(result, row)
				}
			}
			json.NewEncoder(w).Encode(result)

		case http.MethodDelete:
			kept := []map[string]any{}
			removed := []map[string]any{}
			for _, row := range f.collections[collection] {
				if matches(row, query) {
					removed = append(removed, row)
				} else {
					kept = append(kept, row)
				}
			}
			f.collections[collection] = kept
			json.NewEncoder(w).Encode(removed)
		}
	}
}

type testEnv struct {
	api  *API
	fake *fakeRest
	db   *snapshot.DB
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	fake := newFakeRest()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	db, err := snapshot.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Failed to open snapshot database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := supabase.NewClient(server.URL, "test-key", testLogger())
	st := store.New(client, testLogger())
	res := resolver.New(st, testLogger())
	sessions := session.NewManager(res, testLogger())
	t.Cleanup(sessions.Close)

	return &testEnv{
		api:  NewAPI(cfg, st, res, sessions, db, testLogger()),
		fake: fake,
		db:   db,
	}
}

func demoConfig() *config.Config {
	return &config.Config{DemoCoachTelegramID: "demo-1"}
}

// seedCoachData installs a coach with one client and one workout
func (env *testEnv) seedCoachData() {
	env.fake.seed("coaches", map[string]any{"id": float64(7), "telegram_id": "demo-1", "name": "Demo Coach"})
	env.fake.seed("clients", map[string]any{"id": float64(2), "coach_id": float64(7), "name": "Anna"})
	env.fake.seed("workouts", map[string]any{
		"id": float64(1), "coach_id": float64(7), "client_id": float64(2),
		"date": "2026-09-01", "status": "planned",
	})
}

func TestHandleStateDemoMode(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	w := httptest.NewRecorder()
	env.api.HandleState(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap session.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.Coach.ID != 7 {
		t.Errorf("Expected demo coach 7, got %d", snap.Coach.ID)
	}
	if len(snap.Clients) != 1 || len(snap.Workouts) != 1 {
		t.Errorf("Unexpected snapshot contents: %+v", snap)
	}
	if snap.Stale {
		t.Error("Live snapshot must not be stale")
	}
}

func TestHandleStateWithoutIdentity(t *testing.T) {
	env := newTestEnv(t, &config.Config{})

	w := httptest.NewRecorder()
	env.api.HandleState(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestHandleStateUsesInitDataIdentity(t *testing.T) {
	env := newTestEnv(t, &config.Config{})
	env.fake.seed("coaches", map[string]any{"id": float64(8), "telegram_id": "555", "name": "Ivan"})

	values := url.Values{}
	values.Set("user", `{"id": 555, "first_name": "Ivan"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set(InitDataHeader, values.Encode())

	w := httptest.NewRecorder()
	env.api.HandleState(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap session.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.Coach.ID != 8 {
		t.Errorf("Expected coach 8 from init data, got %d", snap.Coach.ID)
	}
}

func TestHandleStateRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, &config.Config{ValidateInitData: true, BotToken: "110201543:token"})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set(InitDataHeader, "user=%7B%22id%22%3A555%7D&hash=deadbeef")

	w := httptest.NewRecorder()
	env.api.HandleState(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad signature, got %d", w.Code)
	}
}

func TestHandleStateServesStoredSnapshotWhenStoreIsDown(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.fake.seed("coaches", map[string]any{"id": float64(7), "telegram_id": "demo-1", "name": "Demo Coach"})
	env.fake.failReads["clients"] = true
	env.fake.failReads["workouts"] = true

	stored := &session.Snapshot{
		Coach:   store.Coach{ID: 7, Name: "Demo Coach"},
		Clients: []store.Client{{ID: 2, Name: "Anna"}},
		Stats:   store.Stats{ClientsCount: 1},
	}
	if err := env.db.Save(7, stored); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	w := httptest.NewRecorder()
	env.api.HandleState(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from stored snapshot, got %d: %s", w.Code, w.Body.String())
	}

	var snap session.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if !snap.Stale {
		t.Error("Expected offline snapshot to be marked stale")
	}
	if len(snap.Clients) != 1 {
		t.Errorf("Unexpected snapshot contents: %+v", snap)
	}
}

func TestHandleStateFailsWithoutStoredSnapshot(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.fake.seed("coaches", map[string]any{"id": float64(7), "telegram_id": "demo-1", "name": "Demo Coach"})
	env.fake.failReads["clients"] = true
	env.fake.failReads["workouts"] = true

	w := httptest.NewRecorder()
	env.api.HandleState(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 without a stored snapshot, got %d", w.Code)
	}
}

func TestHandleCreateClient(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	body := strings.NewReader(`{"name": "Boris", "fitness_goal": "muscle_gain"}`)
	w := httptest.NewRecorder()
	env.api.HandleCreateClient(w, httptest.NewRequest(http.MethodPost, "/api/clients", body))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Snapshot session.Snapshot  `json:"snapshot"`
		Feedback telegram.Feedback `json:"feedback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Snapshot.Clients) != 2 {
		t.Errorf("Expected refreshed snapshot with 2 clients, got %d", len(resp.Snapshot.Clients))
	}
	if resp.Feedback.Haptic != telegram.HapticSuccess {
		t.Errorf("Expected success haptic, got %q", resp.Feedback.Haptic)
	}
}

func TestHandleCreateClientRequiresName(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	w := httptest.NewRecorder()
	env.api.HandleCreateClient(w, httptest.NewRequest(http.MethodPost, "/api/clients", strings.NewReader(`{}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing name, got %d", w.Code)
	}
}

func TestHandleDeleteClientRejectsForeignClient(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()
	env.fake.seed("clients", map[string]any{"id": float64(99), "coach_id": float64(42), "name": "Foreign"})

	req := httptest.NewRequest(http.MethodDelete, "/api/clients/99", nil)
	req.SetPathValue("id", "99")

	w := httptest.NewRecorder()
	env.api.HandleDeleteClient(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a foreign client, got %d", w.Code)
	}
}

func TestHandleDeleteClient(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	req := httptest.NewRequest(http.MethodDelete, "/api/clients/2", nil)
	req.SetPathValue("id", "2")

	w := httptest.NewRecorder()
	env.api.HandleDeleteClient(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Snapshot session.Snapshot `json:"snapshot"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Snapshot.Clients) != 0 {
		t.Errorf("Expected no clients after deletion, got %d", len(resp.Snapshot.Clients))
	}
}

func TestHandleCreateWorkoutValidates(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	w := httptest.NewRecorder()
	env.api.HandleCreateWorkout(w, httptest.NewRequest(http.MethodPost, "/api/workouts", strings.NewReader(`{"client_id": 2}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for incomplete workout, got %d", w.Code)
	}
}

func TestHandleCreateWorkoutRejectsForeignClient(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	body := strings.NewReader(`{"client_id": 99, "date": "2026-09-02", "workout_type": "leg_day"}`)
	w := httptest.NewRecorder()
	env.api.HandleCreateWorkout(w, httptest.NewRequest(http.MethodPost, "/api/workouts", body))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a foreign client, got %d", w.Code)
	}
}

func TestHandleCreateWorkout(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	body := strings.NewReader(`{"client_id": 2, "date": "2026-09-02", "workout_type": "leg_day", "exercises": [{"name": "Squat", "sets": [{"reps": 5, "weight": 100, "rest": 120}]}]}`)
	w := httptest.NewRecorder()
	env.api.HandleCreateWorkout(w, httptest.NewRequest(http.MethodPost, "/api/workouts", body))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Snapshot session.Snapshot `json:"snapshot"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Snapshot.Workouts) != 2 {
		t.Errorf("Expected 2 workouts after creation, got %d", len(resp.Snapshot.Workouts))
	}
}

func TestHandleCompleteWorkout(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	req := httptest.NewRequest(http.MethodPost, "/api/workouts/1/complete", nil)
	req.SetPathValue("id", "1")

	w := httptest.NewRecorder()
	env.api.HandleCompleteWorkout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Snapshot session.Snapshot `json:"snapshot"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Snapshot.Stats.CompletedWorkouts != 1 {
		t.Errorf("Expected 1 completed workout, got %d", resp.Snapshot.Stats.CompletedWorkouts)
	}
}

func TestHandleCancelCompletedWorkoutConflicts(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.fake.seed("coaches", map[string]any{"id": float64(7), "telegram_id": "demo-1", "name": "Demo Coach"})
	env.fake.seed("workouts", map[string]any{
		"id": float64(1), "coach_id": float64(7), "client_id": float64(2),
		"date": "2026-09-01", "status": "completed",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/workouts/1/cancel", nil)
	req.SetPathValue("id", "1")

	w := httptest.NewRecorder()
	env.api.HandleCancelWorkout(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a finished workout, got %d", w.Code)
	}
}

func TestHandleUpdateWorkoutUnknownID(t *testing.T) {
	env := newTestEnv(t, demoConfig())
	env.seedCoachData()

	req := httptest.NewRequest(http.MethodPatch, "/api/workouts/999", strings.NewReader(`{"notes": "x"}`))
	req.SetPathValue("id", "999")

	w := httptest.NewRecorder()
	env.api.HandleUpdateWorkout(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown workout, got %d", w.Code)
	}
}

func TestHandleThemeFallsBackToLight(t *testing.T) {
	env := newTestEnv(t, demoConfig())

	w := httptest.NewRecorder()
	env.api.HandleTheme(w, httptest.NewRequest(http.MethodGet, "/api/theme", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var theme telegram.Theme
	json.Unmarshal(w.Body.Bytes(), &theme)
	if theme.Dark {
		t.Error("Expected light fallback without host params")
	}
	if theme.BGColor != "#ffffff" {
		t.Errorf("Unexpected background: %s", theme.BGColor)
	}
}

func TestHandleThemeResolvesHostParams(t *testing.T) {
	env := newTestEnv(t, demoConfig())

	values := url.Values{}
	values.Set("theme_params", `{"bg_color": "#17212b", "text_color": "#ffffff"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/theme", nil)
	req.Header.Set(InitDataHeader, values.Encode())

	w := httptest.NewRecorder()
	env.api.HandleTheme(w, req)

	var theme telegram.Theme
	json.Unmarshal(w.Body.Bytes(), &theme)
	if !theme.Dark {
		t.Error("Expected dark host theme to resolve dark")
	}
	if theme.BGColor != "#17212b" {
		t.Errorf("Unexpected background: %s", theme.BGColor)
	}
}
