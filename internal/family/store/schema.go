package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the four tables the family stores work against. Link rows
// carry their own uniqueness constraints so a read/write race surfaces as a
// constraint violation instead of a duplicate record.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL UNIQUE,
	phone_number TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS family_members (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL UNIQUE,
	phone_number TEXT NOT NULL UNIQUE,
	is_user      BOOLEAN NOT NULL DEFAULT FALSE,
	user_id      UUID,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS family_links (
	account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	member_id  UUID NOT NULL REFERENCES family_members(id) ON DELETE CASCADE,
	relation   TEXT NOT NULL,
	position   BIGSERIAL,
	PRIMARY KEY (account_id, member_id),
	UNIQUE (account_id, relation)
);

CREATE TABLE IF NOT EXISTS member_links (
	member_id  UUID NOT NULL REFERENCES family_members(id) ON DELETE CASCADE,
	account_id UUID NOT NULL,
	PRIMARY KEY (member_id, account_id)
);
`

// EnsureSchema applies the schema idempotently.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply family schema: %w", err)
	}
	return nil
}
