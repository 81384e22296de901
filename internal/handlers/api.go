package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bicepspshop/newcoach/internal/config"
	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/snapshot"
	"github.com/bicepspshop/newcoach/internal/store"
	"github.com/bicepspshop/newcoach/internal/telegram"
)

// InitDataHeader carries the Mini-App launch payload on every API call
const InitDataHeader = "X-Telegram-Init-Data"

// API serves the Mini App's JSON endpoints
type API struct {
	cfg       *config.Config
	store     *store.Store
	resolver  *resolver.Resolver
	sessions  *session.Manager
	snapshots *snapshot.DB
	logger    *slog.Logger
}

// NewAPI creates the API handler set
func NewAPI(cfg *config.Config, st *store.Store, res *resolver.Resolver, sessions *session.Manager, snapshots *snapshot.DB, logger *slog.Logger) *API {
	return &API{
		cfg:       cfg,
		store:     st,
		resolver:  res,
		sessions:  sessions,
		snapshots: snapshots,
		logger:    logger,
	}
}

// mutationResponse is the reply to every mutating call: the refreshed
// snapshot plus the UI directive for the host chrome
type mutationResponse struct {
	Snapshot *session.Snapshot `json:"snapshot"`
	Feedback telegram.Feedback `json:"feedback"`
}

type errorResponse struct {
	Error    string            `json:"error"`
	Feedback telegram.Feedback `json:"feedback"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:    message,
		Feedback: telegram.Feedback{Haptic: telegram.HapticError, Toast: message},
	})
}

// authenticate resolves the calling coach from initData. Without host chrome
// the configured demo coach id substitutes, mirroring the Mini App's
// standalone mode.
func (api *API) authenticate(r *http.Request) (*store.Coach, *telegram.InitData, error) {
	raw := r.Header.Get(InitDataHeader)
	if raw == "" {
		raw = r.URL.Query().Get("init_data")
	}

	if raw == "" {
		if api.cfg.DemoCoachTelegramID == "" {
			return nil, nil, errors.New("missing init data")
		}
		coach, err := api.resolver.ResolveCoach(r.Context(), api.cfg.DemoCoachTelegramID, "Demo Coach", "")
		if err != nil {
			return nil, nil, err
		}
		return coach, nil, nil
	}

	if api.cfg.ValidateInitData && api.cfg.BotToken != "" {
		if err := telegram.ValidateInitData(raw, api.cfg.BotToken); err != nil {
			return nil, nil, err
		}
	}

	data, err := telegram.ParseInitData(raw)
	if err != nil {
		return nil, nil, err
	}
	if data.User == nil {
		return nil, nil, errors.New("init data carries no user")
	}

	coach, err := api.resolver.ResolveCoach(r.Context(), data.User.TelegramID(), data.User.DisplayName(), data.User.Username)
	if err != nil {
		return nil, nil, err
	}
	return coach, data, nil
}

// HandleState returns a fresh view-model snapshot for the calling coach.
// When every live resolve path fails, the last persisted snapshot is served
// marked stale rather than failing the whole view.
func (api *API) HandleState(w http.ResponseWriter, r *http.Request) {
	coach, _, err := api.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	sess := api.sessions.Session(*coach)
	snap, err := sess.Refresh(r.Context())
	if err != nil {
		api.logger.Error("refresh failed", "coach_id", coach.ID, "error", err)

		stored, loadErr := api.snapshots.Load(coach.ID)
		if loadErr == nil && stored != nil {
			stored.Stale = true
			sess.Restore(stored)
			metrics.StaleServesTotal.Inc()
			writeJSON(w, http.StatusOK, stored)
			return
		}

		writeError(w, http.StatusBadGateway, "store unavailable")
		return
	}

	api.persist(coach.ID, snap)
	writeJSON(w, http.StatusOK, snap)
}

type createClientRequest struct {
	Name        string            `json:"name"`
	Phone       string            `json:"phone,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	FitnessGoal store.FitnessGoal `json:"fitness_goal,omitempty"`
}

// HandleCreateClient creates a client for the calling coach
func (api *API) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	coach, _, err := api.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "client name is required")
		return
	}

	created, err := api.store.CreateClient(r.Context(), store.Client{
		CoachID:     coach.ID,
		Name:        req.Name,
		Phone:       req.Phone,
		Notes:       req.Notes,
		FitnessGoal: req.FitnessGoal,
	})
	if err != nil {
		api.logger.Error("create client failed", "coach_id", coach.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create client")
		return
	}

	api.respondAfterMutation(w, r, coach, telegram.Feedback{
		Haptic: telegram.HapticSuccess,
		Toast:  "Client " + created.Name + " added",
	})
}

// HandleDeleteClient removes one of the calling coach's clients along with
// its relationship rows. Historical workouts stay in the store.
func (api *API) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	coach, _, err := api.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	clientID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	owned, err := api.ownsClient(r, coach.ID, clientID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "store unavailable")
		return
	}
	if !owned {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}

	if err := api.store.DeleteClient(r.Context(), clientID); err != nil {
		api.logger.Error("delete client failed", "coach_id", coach.ID, "client_id", clientID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to delete client")
		return
	}

	api.respondAfterMutation(w, r, coach, telegram.Feedback{
		Haptic: telegram.HapticWarning,
		Toast:  "Client deleted",
	})
}

type createWorkoutRequest struct {
	ClientID    int64                 `json:"client_id"`
	Date        string                `json:"date"`
	WorkoutType store.WorkoutType     `json:"workout_type"`
	Notes       string                `json:"notes,omitempty"`
	Exercises   []store.ExerciseEntry `json:"exercises,omitempty"`
}

// HandleCreateWorkout creates a planned workout for one of the coach's
// clients
func (api *API) HandleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	coach, _, err := api.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	var req createWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == 0 || req.Date == "" || req.WorkoutType == "" {
		writeError(w, http.StatusBadRequest, "client, date and workout type are required")
		return
	}

	owned, err := api.ownsClient(r, coach.ID, req.ClientID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "store unavailable")
		return
	}
	if !owned {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}

	_, err = api.store.CreateWorkout(r.Context(), store.Workout{
		CoachID:     coach.ID,
		ClientID:    req.ClientID,
		Date:        req.Date,
		WorkoutType: req.WorkoutType,
		Notes:       req.Notes,
		Exercises:   req.Exercises,
	})
	if err != nil {
		api.logger.Error("create workout failed", "coach_id", coach.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create workout")
		return
	}

	api.respondAfterMutation(w, r, coach, telegram.Feedback{
		Haptic: telegram.HapticSuccess,
		Toast:  "Workout created",
	})
}

type updateWorkoutRequest struct {
	ClientID    *int64                `json:"client_id,omitempty"`
	Date        *string               `json:"date,omitempty"`
	Status      *store.WorkoutStatus  `json:"status,omitempty"`
	WorkoutType *store.WorkoutType    `json:"workout_type,omitempty"`
	Notes       *string               `json:"notes,omitempty"`
	Exercises   []store.ExerciseEntry `json:"exercises,omitempty"`
}

// HandleUpdateWorkout applies a partial update to one of the coach's
// workouts
func (api *API) HandleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	coach, _, err := api.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	workoutID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workout id")
		return
	}

	var req updateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if ok := api.updateOwnedWorkout(w, r, coach, workoutID, store.WorkoutPatch{
		ClientID:    req.ClientID,
		Date:        req.Date,
		Status:      req.Status,
		WorkoutType: req.WorkoutType,
		Notes:       req.Notes,
		Exercises:   req.Exercises,
	}); !ok {
		return
	}

	api.respondAfterMutation(w, r, coach, telegram.Feedback{
		Haptic: telegram.HapticSuccess,
		Toast:  "Workout updated",
	})
}

// HandleCompleteWorkout transitions a planned workout to completed
func (api *API) HandleCompleteWorkout(w http.ResponseWriter, r *http.Request) {
	api.handleStatusChange(w, r, store.StatusCompleted, "Workout completed")
}

// HandleCancelWorkout transitions a workout to cancelled. This is also the
// Mini App's "delete": the record stays in the store.
func (api *API) HandleCancelWorkout(w http.ResponseWriter, r *http.Request) {
	api.handleStatusChange(w, r, store.StatusCancelled, "Workout cancelled")
}

func (api *API) handleStatusChange(w http.ResponseWriter, r *http.Request, status store.WorkoutStatus, toast string) {
	coach, _, err := api.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	workoutID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workout id")
		return
	}

	if ok := api.updateOwnedWorkout(w, r, coach, workoutID, store.WorkoutPatch{Status: &status}); !ok {
		return
	}

	api.respondAfterMutation(w, r, coach, telegram.Feedback{
		Haptic: telegram.HapticSuccess,
		Toast:  toast,
	})
}

// HandleTheme resolves the host theme params into a complete palette,
// falling back to the light palette when the host is absent
func (api *API) HandleTheme(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(InitDataHeader)
	if raw == "" {
		raw = r.URL.Query().Get("init_data")
	}

	var params *telegram.ThemeParams
	if raw != "" {
		if data, err := telegram.ParseInitData(raw); err == nil {
			params = data.Theme
		}
	}

	writeJSON(w, http.StatusOK, params.Resolve())
}

// updateOwnedWorkout verifies ownership and applies the patch. It writes the
// error response itself and reports whether the update went through.
func (api *API) updateOwnedWorkout(w http.ResponseWriter, r *http.Request, coach *store.Coach, workoutID int64, patch store.WorkoutPatch) bool {
	workout, err := api.store.WorkoutByID(r.Context(), workoutID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "store unavailable")
		return false
	}
	if workout == nil {
		writeError(w, http.StatusNotFound, "workout not found")
		return false
	}

	if workout.CoachID != coach.ID {
		owned, err := api.ownsClient(r, coach.ID, workout.ClientID)
		if err != nil {
			writeError(w, http.StatusBadGateway, "store unavailable")
			return false
		}
		if !owned {
			writeError(w, http.StatusNotFound, "workout not found")
			return false
		}
	}

	if patch.ClientID != nil && *patch.ClientID != workout.ClientID {
		owned, err := api.ownsClient(r, coach.ID, *patch.ClientID)
		if err != nil {
			writeError(w, http.StatusBadGateway, "store unavailable")
			return false
		}
		if !owned {
			writeError(w, http.StatusNotFound, "client not found")
			return false
		}
	}

	if _, err := api.store.UpdateWorkout(r.Context(), workoutID, patch); err != nil {
		if errors.Is(err, store.ErrTerminalStatus) {
			writeError(w, http.StatusConflict, "workout is already finished")
			return false
		}
		api.logger.Error("update workout failed", "coach_id", coach.ID, "workout_id", workoutID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to update workout")
		return false
	}
	return true
}

// ownsClient reports whether the client is in the coach's resolved client
// set, honoring both linkage schemas
func (api *API) ownsClient(r *http.Request, coachID, clientID int64) (bool, error) {
	clients, err := api.resolver.ResolveClients(r.Context(), coachID)
	if err != nil {
		return false, err
	}
	for _, c := range clients {
		if c.ID == clientID {
			return true, nil
		}
	}
	return false, nil
}

// respondAfterMutation re-runs the resolver chain and replies with the fresh
// snapshot. The cache is full-reload-on-write: the UI is not consistent
// until this refresh lands.
func (api *API) respondAfterMutation(w http.ResponseWriter, r *http.Request, coach *store.Coach, feedback telegram.Feedback) {
	sess := api.sessions.Session(*coach)
	snap, err := sess.Refresh(r.Context())
	if err != nil {
		api.logger.Error("post-mutation refresh failed", "coach_id", coach.ID, "error", err)
		writeError(w, http.StatusBadGateway, "saved, but refresh failed")
		return
	}

	api.persist(coach.ID, snap)
	writeJSON(w, http.StatusOK, mutationResponse{Snapshot: snap, Feedback: feedback})
}

// persist saves the snapshot for offline mode, best effort
func (api *API) persist(coachID int64, snap *session.Snapshot) {
	if api.snapshots == nil {
		return
	}
	if err := api.snapshots.Save(coachID, snap); err != nil {
		api.logger.Warn("failed to persist snapshot", "coach_id", coachID, "error", err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
