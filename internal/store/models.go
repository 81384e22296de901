package store

import "time"

// Collection names on the remote store
const (
	CollectionCoaches       = "coaches"
	CollectionClients       = "clients"
	CollectionWorkouts      = "workouts"
	CollectionTrainerClient = "trainer_client"
)

// WorkoutStatus is the lifecycle state of a workout. Planned is initial;
// completed and cancelled are terminal.
type WorkoutStatus string

const (
	StatusPlanned   WorkoutStatus = "planned"
	StatusCompleted WorkoutStatus = "completed"
	StatusCancelled WorkoutStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed
func (s WorkoutStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// FitnessGoal is an optional tag on a client, drawn from a fixed set
type FitnessGoal string

const (
	GoalWeightLoss          FitnessGoal = "weight_loss"
	GoalMuscleGain          FitnessGoal = "muscle_gain"
	GoalStrengthBuilding    FitnessGoal = "strength_building"
	GoalEnduranceTraining   FitnessGoal = "endurance_training"
	GoalMarathonPrep        FitnessGoal = "marathon_prep"
	GoalGeneralFitness      FitnessGoal = "general_fitness"
	GoalBodyRecomposition   FitnessGoal = "body_recomposition"
	GoalAthleticPerformance FitnessGoal = "athletic_performance"
	GoalInjuryRecovery      FitnessGoal = "injury_recovery"
	GoalMaintenance         FitnessGoal = "maintenance"
	GoalFlexibilityMobility FitnessGoal = "flexibility_mobility"
)

// WorkoutType tags a workout, drawn from a fixed set
type WorkoutType string

const (
	TypeCardio           WorkoutType = "cardio"
	TypeStrengthTraining WorkoutType = "strength_training"
	TypePowerlifting     WorkoutType = "powerlifting"
	TypeBodybuilding     WorkoutType = "bodybuilding"
	TypeLegDay           WorkoutType = "leg_day"
	TypeUpperBody        WorkoutType = "upper_body"
	TypePushDay          WorkoutType = "push_day"
	TypePullDay          WorkoutType = "pull_day"
	TypeFullBody         WorkoutType = "full_body"
	TypeCoreAbs          WorkoutType = "core_abs"
	TypeHIIT             WorkoutType = "hiit"
	TypeEndurance        WorkoutType = "endurance"
	TypeFlexibility      WorkoutType = "flexibility"
	TypeSportSpecific    WorkoutType = "sport_specific"
	TypeRecovery         WorkoutType = "recovery"
)

// Coach is the authenticated end-user, keyed by a stable Telegram id plus a
// store-assigned numeric id
type Coach struct {
	ID         int64  `json:"id,omitempty"`
	TelegramID string `json:"telegram_id"`
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// Client is a trainee owned by exactly one coach, linked either by coach_id
// or through a trainer_client relationship row
type Client struct {
	ID          int64       `json:"id,omitempty"`
	CoachID     int64       `json:"coach_id"`
	Name        string      `json:"name"`
	Phone       string      `json:"phone,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	FitnessGoal FitnessGoal `json:"fitness_goal,omitempty"`
	CreatedAt   string      `json:"created_at,omitempty"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
}

// Relationship is the secondary trainer/client join-table linkage
type Relationship struct {
	ID        int64  `json:"id,omitempty"`
	TrainerID int64  `json:"trainer_id"`
	ClientID  int64  `json:"client_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ExerciseSet is one set within an exercise entry
type ExerciseSet struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
	Rest   float64 `json:"rest"`
}

// ExerciseEntry is one exercise in a workout program
type ExerciseEntry struct {
	Name  string        `json:"name"`
	Notes string        `json:"notes,omitempty"`
	Sets  []ExerciseSet `json:"sets"`
}

// Workout is a scheduled training session for one client
type Workout struct {
	ID          int64           `json:"id,omitempty"`
	CoachID     int64           `json:"coach_id"`
	ClientID    int64           `json:"client_id"`
	Date        string          `json:"date"`
	Status      WorkoutStatus   `json:"status"`
	WorkoutType WorkoutType     `json:"workout_type,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Exercises   []ExerciseEntry `json:"exercises"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
}

// Stats is the derived aggregate shown on the dashboard. It is recomputed
// from the resolved client/workout lists on every load, never persisted.
type Stats struct {
	ClientsCount      int `json:"clients_count"`
	WorkoutsCount     int `json:"workouts_count"`
	CompletedWorkouts int `json:"completed_workouts"`
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
