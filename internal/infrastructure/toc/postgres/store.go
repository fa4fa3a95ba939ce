package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sitedocs/docqa/internal/core/domain"
)

// Store reads table-of-contents entries parsed at ingestion time.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

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

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS toc_entries (
	project_id TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	title TEXT NOT NULL,
	page_start INTEGER NOT NULL,
	page_end INTEGER NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 1,
	raw TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, doc_id, title, page_start, page_end)
);

CREATE INDEX IF NOT EXISTS idx_toc_entries_project ON toc_entries(project_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ListEntries returns the TOC entries for one project, optionally narrowed
// to a single document.
func (s *Store) ListEntries(ctx context.Context, projectID, docID string) ([]domain.TOCEntry, error) {
	const base = `
SELECT doc_id, title, page_start, page_end, confidence, COALESCE(raw, '')
FROM toc_entries
WHERE project_id = $1`

	var rows *sql.Rows
	var err error
	if docID != "" {
		rows, err = s.db.QueryContext(ctx, base+` AND doc_id = $2 ORDER BY doc_id, page_start`, projectID, docID)
	} else {
		rows, err = s.db.QueryContext(ctx, base+` ORDER BY doc_id, page_start`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("query toc entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TOCEntry
	for rows.Next() {
		var entry domain.TOCEntry
		if err := rows.Scan(&entry.DocID, &entry.Title, &entry.PageStart, &entry.PageEnd, &entry.Confidence, &entry.Raw); err != nil {
			return nil, fmt.Errorf("scan toc entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate toc entries: %w", err)
	}
	return entries, nil
}
