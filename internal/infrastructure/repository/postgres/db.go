package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps the tables both processes need. Safe to run
// concurrently from api and worker startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026040902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	capacity INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	tag TEXT NOT NULL,
	owner_ref TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	owner_ref TEXT NOT NULL,
	tag TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	source_file TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_tsv ON document_chunks USING GIN(content_tsv);
CREATE INDEX IF NOT EXISTS idx_document_chunks_owner_tag ON document_chunks(owner_ref, tag, chunk_index);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	site_id TEXT NOT NULL,
	context_type TEXT NOT NULL DEFAULT 'general',
	title TEXT NOT NULL DEFAULT '',
	turn_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_conv ON conversation_turns(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	site_id TEXT NOT NULL,
	action TEXT NOT NULL,
	conversation_id TEXT,
	intent TEXT NOT NULL,
	agent TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	tools_called JSONB NOT NULL DEFAULT '[]'::jsonb,
	rag_chunks_used INTEGER NOT NULL DEFAULT 0,
	model TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_logs_site ON audit_logs(site_id, created_at DESC);

CREATE TABLE IF NOT EXISTS recipes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	base_servings INTEGER NOT NULL DEFAULT 1,
	cost_per_serving INTEGER NOT NULL DEFAULT 0,
	ingredients JSONB NOT NULL DEFAULT '[]'::jsonb,
	nutrition JSONB NOT NULL DEFAULT '{}'::jsonb,
	allergens JSONB NOT NULL DEFAULT '[]'::jsonb,
	instructions JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_plans (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	period_start DATE NOT NULL,
	period_end DATE NOT NULL,
	entries JSONB NOT NULL DEFAULT '[]'::jsonb,
	target_headcount INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'draft',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_menu_plans_site ON menu_plans(site_id, period_start DESC);

CREATE TABLE IF NOT EXISTS work_orders (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	recipe_id TEXT NOT NULL,
	planned_date DATE NOT NULL,
	planned_servings INTEGER NOT NULL,
	tasks JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS haccp_checklists (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	check_date DATE NOT NULL,
	checklist_type TEXT NOT NULL,
	items JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_haccp_checklists_site_date ON haccp_checklists(site_id, check_date);

CREATE TABLE IF NOT EXISTS inventory_items (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	name TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT 'kg',
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	minimum_quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	expiry_date DATE,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inventory_items_site ON inventory_items(site_id);

CREATE TABLE IF NOT EXISTS headcount_records (
	site_id TEXT NOT NULL,
	record_date DATE NOT NULL,
	meal_type TEXT NOT NULL,
	headcount INTEGER NOT NULL,
	PRIMARY KEY (site_id, record_date, meal_type)
);

CREATE TABLE IF NOT EXISTS boms (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	menu_plan_id TEXT NOT NULL,
	headcount INTEGER NOT NULL,
	lines JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS purchase_orders (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	bom_id TEXT NOT NULL,
	vendor_id TEXT NOT NULL DEFAULT '',
	delivery_date DATE NOT NULL,
	lines JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL DEFAULT 'draft',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
