package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the bootstrap DDL. The UNIQUE (user_id, lecture_id) constraint and
// the capacity check on lectures are the storage-level backstops behind the
// admission transaction; they must hold regardless of application checks.
const schema = `
CREATE TABLE IF NOT EXISTS lectures (
	id                    TEXT PRIMARY KEY,
	title                 TEXT NOT NULL,
	instructor            TEXT NOT NULL,
	host_id               TEXT NOT NULL DEFAULT '',
	date                  TIMESTAMPTZ NOT NULL,
	capacity              INT NOT NULL CHECK (capacity > 0),
	current_registrations INT NOT NULL DEFAULT 0
	                      CHECK (current_registrations >= 0 AND current_registrations <= capacity),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS registrations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	lecture_id TEXT NOT NULL REFERENCES lectures (id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, lecture_id)
);

CREATE INDEX IF NOT EXISTS idx_lectures_date ON lectures (date);
CREATE INDEX IF NOT EXISTS idx_registrations_user ON registrations (user_id);
`

// Migrate applies the bootstrap schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
