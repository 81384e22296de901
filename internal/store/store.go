package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bicepspshop/newcoach/internal/supabase"
)

// Store exposes typed operations over the remote collections
type Store struct {
	client *supabase.Client
	logger *slog.Logger
}

// New creates a typed store over a Supabase client
func New(client *supabase.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// decodeRows unmarshals raw store rows into typed records
func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	records := make([]T, 0, len(rows))
	for _, row := range rows {
		var record T
		if err := json.Unmarshal(row, &record); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// decodeFirst unmarshals the first returned row, erroring when the store
// returned none. Used after inserts, where a missing representation means the
// write cannot be linked to dependent records.
func decodeFirst[T any](rows []json.RawMessage) (*T, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("store returned no record")
	}
	var record T
	if err := json.Unmarshal(rows[0], &record); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return &record, nil
}
