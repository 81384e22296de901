package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bicepspshop/newcoach/internal/supabase"
)

// ErrTerminalStatus is returned when a status change targets a workout that
// is already completed or cancelled
var ErrTerminalStatus = errors.New("workout is in a terminal status")

func workoutOrder(limit int) *supabase.FetchOptions {
	return &supabase.FetchOptions{OrderBy: "date", Descending: true, Limit: limit}
}

// WorkoutsByCoach retrieves directly coach-linked workouts, newest first,
// capped at limit
func (s *Store) WorkoutsByCoach(ctx context.Context, coachID int64, limit int) ([]Workout, error) {
	rows, err := s.client.Fetch(ctx, CollectionWorkouts, supabase.EqID("coach_id", coachID), workoutOrder(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workouts: %w", err)
	}
	return decodeRows[Workout](rows)
}

// WorkoutsByClients retrieves workouts for a client id set, newest first,
// capped at limit
func (s *Store) WorkoutsByClients(ctx context.Context, clientIDs []int64, limit int) ([]Workout, error) {
	rows, err := s.client.Fetch(ctx, CollectionWorkouts, supabase.InIDs("client_id", clientIDs), workoutOrder(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workouts by clients: %w", err)
	}
	return decodeRows[Workout](rows)
}

// WorkoutByID retrieves a single workout. Returns nil without error when it
// does not exist.
func (s *Store) WorkoutByID(ctx context.Context, id int64) (*Workout, error) {
	rows, err := s.client.Fetch(ctx, CollectionWorkouts, supabase.EqID("id", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workout: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	workouts, err := decodeRows[Workout](rows)
	if err != nil {
		return nil, err
	}
	return &workouts[0], nil
}

// CreateWorkout inserts a new workout. Status always starts as planned
// regardless of what the caller set.
func (s *Store) CreateWorkout(ctx context.Context, workout Workout) (*Workout, error) {
	now := nowTimestamp()
	workout.ID = 0
	workout.Status = StatusPlanned
	workout.CreatedAt = now
	workout.UpdatedAt = now
	if workout.Exercises == nil {
		workout.Exercises = []ExerciseEntry{}
	}

	rows, err := s.client.Insert(ctx, CollectionWorkouts, workout)
	if err != nil {
		return nil, fmt.Errorf("failed to create workout: %w", err)
	}

	created, err := decodeFirst[Workout](rows)
	if err != nil {
		return nil, fmt.Errorf("workout insert: %w", err)
	}
	return created, nil
}

// WorkoutPatch is a partial update. Nil fields are left untouched.
type WorkoutPatch struct {
	ClientID    *int64
	Date        *string
	Status      *WorkoutStatus
	WorkoutType *WorkoutType
	Notes       *string
	Exercises   []ExerciseEntry
}

func (p WorkoutPatch) payload() map[string]any {
	fields := map[string]any{"updated_at": nowTimestamp()}
	if p.ClientID != nil {
		fields["client_id"] = *p.ClientID
	}
	if p.Date != nil {
		fields["date"] = *p.Date
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.WorkoutType != nil {
		fields["workout_type"] = *p.WorkoutType
	}
	if p.Notes != nil {
		fields["notes"] = *p.Notes
	}
	if p.Exercises != nil {
		fields["exercises"] = p.Exercises
	}
	return fields
}

// UpdateWorkout applies a partial update and returns the affected record.
// Status changes on a workout already in a terminal state are refused with
// ErrTerminalStatus.
func (s *Store) UpdateWorkout(ctx context.Context, id int64, patch WorkoutPatch) (*Workout, error) {
	if patch.Status != nil {
		current, err := s.WorkoutByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("workout %d not found", id)
		}
		if current.Status.Terminal() && *patch.Status != current.Status {
			return nil, fmt.Errorf("workout %d: %w", id, ErrTerminalStatus)
		}
	}

	rows, err := s.client.Update(ctx, CollectionWorkouts, supabase.EqID("id", id), patch.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to update workout: %w", err)
	}

	updated, err := decodeFirst[Workout](rows)
	if err != nil {
		return nil, fmt.Errorf("workout update: %w", err)
	}
	return updated, nil
}

// CompleteWorkout transitions a planned workout to completed
func (s *Store) CompleteWorkout(ctx context.Context, id int64) (*Workout, error) {
	status := StatusCompleted
	return s.UpdateWorkout(ctx, id, WorkoutPatch{Status: &status})
}

// CancelWorkout transitions a workout to cancelled. The UI's "delete" is
// this transition, never a physical removal.
func (s *Store) CancelWorkout(ctx context.Context, id int64) (*Workout, error) {
	status := StatusCancelled
	return s.UpdateWorkout(ctx, id, WorkoutPatch{Status: &status})
}
