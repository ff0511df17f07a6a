package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for the service. The pipeline itself is
// purely in-memory; the store only persists session preferences (the active
// address and display currency) between sessions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ErrNotFound is returned when no preferences exist for a session key.
var ErrNotFound = errors.New("not found")

// Preferences holds the persisted session state for one consumer.
type Preferences struct {
	SessionKey      string
	ActiveAddress   string
	DisplayCurrency string
	UpdatedAt       time.Time
}

// UpsertPreferencesParams contains the parameters for storing preferences.
type UpsertPreferencesParams struct {
	SessionKey      string
	ActiveAddress   string
	DisplayCurrency string
}

const schema = `
CREATE TABLE IF NOT EXISTS session_preferences (
    session_key      TEXT PRIMARY KEY,
    active_address   TEXT NOT NULL,
    display_currency TEXT NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the preferences table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetPreferences retrieves the preferences for a session key.
// Returns ErrNotFound when the session has no stored preferences.
func (s *Store) GetPreferences(ctx context.Context, sessionKey string) (*Preferences, error) {
	const query = `
SELECT session_key, active_address, display_currency, updated_at
FROM session_preferences
WHERE session_key = $1
`
	var prefs Preferences
	err := s.pool.QueryRow(ctx, query, sessionKey).Scan(
		&prefs.SessionKey,
		&prefs.ActiveAddress,
		&prefs.DisplayCurrency,
		&prefs.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &prefs, nil
}

// UpsertPreferences stores the preferences for a session key, replacing any
// existing row.
func (s *Store) UpsertPreferences(ctx context.Context, params UpsertPreferencesParams) (*Preferences, error) {
	const query = `
INSERT INTO session_preferences (session_key, active_address, display_currency, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_key) DO UPDATE
SET active_address = EXCLUDED.active_address,
    display_currency = EXCLUDED.display_currency,
    updated_at = now()
RETURNING session_key, active_address, display_currency, updated_at
`
	var prefs Preferences
	err := s.pool.QueryRow(ctx, query,
		params.SessionKey,
		params.ActiveAddress,
		params.DisplayCurrency,
	).Scan(
		&prefs.SessionKey,
		&prefs.ActiveAddress,
		&prefs.DisplayCurrency,
		&prefs.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return &prefs, nil
}

// DeletePreferences removes the preferences for a session key.
func (s *Store) DeletePreferences(ctx context.Context, sessionKey string) error {
	const query = `DELETE FROM session_preferences WHERE session_key = $1`
	tag, err := s.pool.Exec(ctx, query, sessionKey)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
