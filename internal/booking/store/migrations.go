package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the bookings table DDL. Applied by Migrate; integration tests use
// it to provision throwaway databases.
const Schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id              UUID PRIMARY KEY,
	redemption_code TEXT NOT NULL,
	client_ref      TEXT NOT NULL,
	agent_ref       TEXT NOT NULL,
	property_ref    TEXT NOT NULL,
	inspection_at   TIMESTAMPTZ NOT NULL,
	fee_amount      BIGINT NOT NULL,
	fee_currency    TEXT NOT NULL,
	fee_free        BOOLEAN NOT NULL DEFAULT FALSE,
	code_used       BOOLEAN NOT NULL DEFAULT FALSE,
	cancelled_by    TEXT NOT NULL DEFAULT '',
	fee_bucket      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS bookings_code_idx ON bookings (redemption_code);
CREATE INDEX IF NOT EXISTS bookings_agent_idx ON bookings (agent_ref);
CREATE INDEX IF NOT EXISTS bookings_client_property_idx ON bookings (client_ref, property_ref);
`

// Migrate applies the bookings schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate bookings schema: %w", err)
	}
	return nil
}
