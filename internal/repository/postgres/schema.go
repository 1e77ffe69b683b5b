package postgres

import (
	"context"
	"fmt"
	"slices"

	"edms/internal/domain/repositories"
)

// schemaStatements returns the DDL for every table, in creation order.
// All statements are idempotent.
func schemaStatements(t *TableNames) []string {
	p := t.Prefix
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'staff')),
			email_notifications BOOLEAN NOT NULL DEFAULT TRUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			date_joined TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login TIMESTAMPTZ
		)`, t.Users),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%susers_email ON %s (LOWER(email))`, p, t.Users),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			file_key TEXT NOT NULL DEFAULT '',
			owner_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'sent', 'signed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Documents, t.Users),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%sdocuments_owner ON %s (owner_id, created_at DESC)`, p, t.Documents),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			document_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			PRIMARY KEY (document_id, user_id)
		)`, t.Recipients, t.Documents, t.Users),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%srecipients_user ON %s (user_id)`, p, t.Recipients),

		// A signature cannot outlive its recipient relation
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			signed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (document_id, user_id),
			FOREIGN KEY (document_id, user_id) REFERENCES %s(document_id, user_id) ON DELETE CASCADE
		)`, t.Signatures, t.Recipients),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			document_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			type TEXT NOT NULL CHECK (type IN ('new_document', 'document_updated', 'new_comment')),
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Notifications, t.Users, t.Documents),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%snotifications_user ON %s (user_id, is_read, created_at DESC)`, p, t.Notifications),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			action TEXT NOT NULL CHECK (action IN ('create', 'edit', 'sign', 'comment')),
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			comment TEXT NOT NULL DEFAULT ''
		)`, t.DocumentLogs, t.Documents, t.Users),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%sdocument_logs_document ON %s (document_id, timestamp DESC)`, p, t.DocumentLogs),

		// Audit entries are append-only
		fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION %sreject_log_update() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'document log entries are append-only';
		END;
		$$ LANGUAGE plpgsql`, p),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %sdocument_logs_no_update ON %s`, p, t.DocumentLogs),
		fmt.Sprintf(`
		CREATE TRIGGER %sdocument_logs_no_update
			BEFORE UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION %sreject_log_update()`, p, t.DocumentLogs, p),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			token UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL
		)`, t.PasswordResets, t.Users),
	}
}

// RunSchema creates tables, indexes and triggers that do not exist yet
func RunSchema(ctx context.Context, db repositories.DBTX, tables *TableNames) error {
	for _, stmt := range schemaStatements(tables) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("run schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops all tables in reverse dependency order
func DropSchema(ctx context.Context, db repositories.DBTX, tables *TableNames) error {
	names := slices.Clone(tables.All())
	slices.Reverse(names)
	for _, table := range names {
		if _, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := db.Exec(ctx, fmt.Sprintf("DROP FUNCTION IF EXISTS %sreject_log_update()", tables.Prefix)); err != nil {
		return fmt.Errorf("drop trigger function: %w", err)
	}
	return nil
}

// ClearData removes every row and resets id sequences, keeping the schema
func ClearData(ctx context.Context, db repositories.DBTX, tables *TableNames) error {
	query := "TRUNCATE TABLE "
	for i, table := range tables.All() {
		if i > 0 {
			query += ", "
		}
		query += table
	}
	query += " RESTART IDENTITY CASCADE"

	if _, err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	return nil
}
