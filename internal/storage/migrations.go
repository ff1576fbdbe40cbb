package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is portable across SQLite and Postgres: TEXT ids, REAL scores,
// composite keys where the upsert contract needs them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		case_id     TEXT NOT NULL,
		filename    TEXT NOT NULL,
		role        TEXT NOT NULL,
		page_count  INTEGER NOT NULL DEFAULT 0,
		pdf_path    TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_case ON documents (case_id, role)`,

	`CREATE TABLE IF NOT EXISTS ocr_pages (
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		text        TEXT NOT NULL DEFAULT '',
		confidence  REAL NOT NULL DEFAULT 0,
		updated_at  TIMESTAMP NOT NULL,
		PRIMARY KEY (document_id, page_number)
	)`,

	`CREATE TABLE IF NOT EXISTS links (
		id            TEXT PRIMARY KEY,
		case_id       TEXT NOT NULL,
		ref_type      TEXT NOT NULL,
		ref_value     TEXT NOT NULL,
		source_doc_id TEXT NOT NULL,
		source_page   INTEGER NOT NULL,
		rect_x        REAL NOT NULL DEFAULT 0,
		rect_y        REAL NOT NULL DEFAULT 0,
		rect_w        REAL NOT NULL DEFAULT 0,
		rect_h        REAL NOT NULL DEFAULT 0,
		source_text   TEXT NOT NULL DEFAULT '',
		target_doc_id TEXT NOT NULL,
		target_page   INTEGER NOT NULL,
		target_text   TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'pending',
		confidence    REAL NOT NULL DEFAULT 0,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_case ON links (case_id, source_doc_id, source_page)`,
	`CREATE INDEX IF NOT EXISTS idx_links_value ON links (case_id, ref_type, ref_value)`,
}

// Migrate applies the schema. Statements are idempotent, so re-running a
// deployment is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
