package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

const leadsSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	created_at           timestamptz NOT NULL DEFAULT now(),
	first_name           text NOT NULL DEFAULT '',
	last_name            text NOT NULL DEFAULT '',
	email                text NOT NULL DEFAULT '',
	phone                text NOT NULL DEFAULT '',
	source               text NOT NULL DEFAULT '',
	ip_address           text,
	user_agent           text,
	status               text NOT NULL DEFAULT 'new'
		CHECK (status IN ('new', 'sent_to_augusta', 'contacted', 'qualified', 'unqualified', 'converted')),
	augusta_submitted_at timestamptz,
	notes                text
);
CREATE INDEX IF NOT EXISTS leads_email_created_at_idx ON leads (email, created_at DESC);
`

// EnsureSchema creates the leads table when it is missing. gen_random_uuid is
// built in from Postgres 13.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, leadsSchema); err != nil {
		return fmt.Errorf("ensure leads schema: %w", err)
	}
	log.Println("✅ Leads schema ready")
	return nil
}
