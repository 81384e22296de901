package store

import (
	"context"
	"fmt"

	"github.com/bicepspshop/newcoach/internal/supabase"
)

// GetCoachByTelegramID retrieves a coach by platform identity.
// Returns nil without error when no coach exists yet.
func (s *Store) GetCoachByTelegramID(ctx context.Context, telegramID string) (*Coach, error) {
	rows, err := s.client.Fetch(ctx, CollectionCoaches, supabase.Eq("telegram_id", telegramID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get coach: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	coaches, err := decodeRows[Coach](rows)
	if err != nil {
		return nil, err
	}
	return &coaches[0], nil
}

// CreateCoach inserts a new coach and returns the stored record with its
// server-assigned id
func (s *Store) CreateCoach(ctx context.Context, telegramID, name, username string) (*Coach, error) {
	now := nowTimestamp()
	record := Coach{
		TelegramID: telegramID,
		Name:       name,
		Username:   username,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rows, err := s.client.Insert(ctx, CollectionCoaches, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create coach: %w", err)
	}

	coach, err := decodeFirst[Coach](rows)
	if err != nil {
		return nil, fmt.Errorf("coach insert: %w", err)
	}
	return coach, nil
}
