// Package migrations creates the tracker schema. Every statement is
// idempotent, so Apply runs on each start.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id               TEXT PRIMARY KEY,
		user_id          TEXT         NOT NULL,
		company          VARCHAR(100) NOT NULL,
		position         VARCHAR(100) NOT NULL,
		location         VARCHAR(100) NOT NULL DEFAULT '',
		job_type         TEXT         NOT NULL DEFAULT 'internship',
		status           TEXT         NOT NULL DEFAULT 'applied',
		priority         TEXT         NOT NULL DEFAULT 'medium',
		source           TEXT         NOT NULL DEFAULT 'other',
		salary           JSONB,
		contact_person   JSONB,
		application_date TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		interview_date   TIMESTAMPTZ,
		deadline         TIMESTAMPTZ,
		job_url          TEXT         NOT NULL DEFAULT '',
		notes            VARCHAR(1000) NOT NULL DEFAULT '',
		tags             TEXT[]       NOT NULL DEFAULT '{}',
		attachments      JSONB        NOT NULL DEFAULT '[]',
		timeline         JSONB        NOT NULL DEFAULT '[]',
		created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS applications_user_status_idx ON applications (user_id, status)`,
	`CREATE INDEX IF NOT EXISTS applications_user_application_date_idx ON applications (user_id, application_date DESC)`,
	`CREATE INDEX IF NOT EXISTS applications_user_created_at_idx ON applications (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS applications_interview_date_idx ON applications (interview_date) WHERE interview_date IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS applications_deadline_idx ON applications (deadline) WHERE deadline IS NOT NULL`,
}

// Apply executes the schema statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
