package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dreamscale-auth/internal/db"
)

// PostgresStore is the canonical profile store. Uniqueness of the
// user_profiles row is enforced by the primary key; the insert treats a
// key conflict as the normal "already exists" path, not an error.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, email, display_name, onboarding_completed, created_at, updated_at`

func (s *PostgresStore) Find(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE id = $1
	`, userID)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: find %s: %w", userID, err)
	}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO user_profiles (id, email, display_name, onboarding_completed)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+profileColumns+`
	`, p.ID, p.Email, p.DisplayName)

	created, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict: another invocation won the race. Re-fetch the row it made.
		return s.Find(ctx, p.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: create %s: %w", p.ID, err)
	}
	return created, nil
}

func (s *PostgresStore) SetOnboardingCompleted(ctx context.Context, userID string, completed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET onboarding_completed = $2, updated_at = NOW()
		WHERE id = $1
	`, userID, completed)
	if err != nil {
		return fmt.Errorf("profile: update %s: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profile: update %s: %w", userID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.OnboardingCompleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
