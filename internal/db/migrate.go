package db

import (
	"context"
)

const profileMigration = `
CREATE TABLE IF NOT EXISTS user_profiles (
    id text PRIMARY KEY,
    email text NOT NULL,
    display_name text,
    onboarding_completed boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS user_profiles_email_lower_idx
ON user_profiles (LOWER(email));
`

// RunProfileMigration creates the user_profiles table. The primary key on id
// is what makes insert-if-absent safe under concurrent first-time logins.
func RunProfileMigration(ctx context.Context, db *DB) error {
	_, err := db.ExecContext(ctx, profileMigration)
	return err
}
