package store

import (
	"context"
	"fmt"

	"github.com/bicepspshop/newcoach/internal/supabase"
)

var clientOrder = &supabase.FetchOptions{OrderBy: "created_at", Descending: true}

// ClientsByCoach retrieves directly-linked clients, newest first
func (s *Store) ClientsByCoach(ctx context.Context, coachID int64) ([]Client, error) {
	rows, err := s.client.Fetch(ctx, CollectionClients, supabase.EqID("coach_id", coachID), clientOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clients: %w", err)
	}
	return decodeRows[Client](rows)
}

// ClientsByIDs retrieves clients by id set, newest first
func (s *Store) ClientsByIDs(ctx context.Context, ids []int64) ([]Client, error) {
	rows, err := s.client.Fetch(ctx, CollectionClients, supabase.InIDs("id", ids), clientOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clients by ids: %w", err)
	}
	return decodeRows[Client](rows)
}

// RelationshipsByTrainer retrieves the trainer_client rows for a coach
func (s *Store) RelationshipsByTrainer(ctx context.Context, coachID int64) ([]Relationship, error) {
	rows, err := s.client.Fetch(ctx, CollectionTrainerClient, supabase.EqID("trainer_id", coachID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationships: %w", err)
	}
	return decodeRows[Relationship](rows)
}

// CreateClient inserts a new client and, best effort, its trainer_client
// relationship row. A relationship insert failure is logged and swallowed;
// the direct coach_id linkage already makes the client resolvable.
func (s *Store) CreateClient(ctx context.Context, client Client) (*Client, error) {
	now := nowTimestamp()
	client.ID = 0
	client.CreatedAt = now
	client.UpdatedAt = now

	rows, err := s.client.Insert(ctx, CollectionClients, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	created, err := decodeFirst[Client](rows)
	if err != nil {
		return nil, fmt.Errorf("client insert: %w", err)
	}

	relationship := Relationship{
		TrainerID: client.CoachID,
		ClientID:  created.ID,
		CreatedAt: now,
	}
	if _, err := s.client.Insert(ctx, CollectionTrainerClient, relationship); err != nil {
		s.logger.Warn("failed to create trainer_client relationship", "client_id", created.ID, "error", err)
	}

	return created, nil
}

// DeleteClient removes a client and its trainer_client rows. Workouts are
// left in place: historical sessions stay retrievable through their direct
// coach linkage.
func (s *Store) DeleteClient(ctx context.Context, clientID int64) error {
	if _, err := s.client.Delete(ctx, CollectionTrainerClient, supabase.EqID("client_id", clientID)); err != nil {
		s.logger.Warn("failed to delete trainer_client relationships", "client_id", clientID, "error", err)
	}

	if _, err := s.client.Delete(ctx, CollectionClients, supabase.EqID("id", clientID)); err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}
