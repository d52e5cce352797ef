// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const historySchema = `
CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_session ON history(session, id);
`

// SQLiteHistory persists sessions in a single SQLite table so they
// survive gateway restarts.
type SQLiteHistory struct {
	db          *sql.DB
	maxMessages int
}

// OpenSQLiteHistory opens (or creates) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLiteHistory(path string, maxMessages int) (*SQLiteHistory, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite history: empty path")
	}
	if maxMessages <= 0 {
		maxMessages = DefaultHistoryTurns * 2
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("sqlite history: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite history: open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite history: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite history: schema: %w", err)
	}

	return &SQLiteHistory{db: db, maxMessages: maxMessages}, nil
}

// Recent implements HistoryStore.
func (h *SQLiteHistory) Recent(ctx context.Context, session string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = h.maxMessages
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM history
			WHERE session = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, session, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite history: query: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("sqlite history: scan: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Append implements HistoryStore. Inserting and trimming share one
// transaction.
func (h *SQLiteHistory) Append(ctx context.Context, session string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite history: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO history (session, role, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite history: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		if _, err := stmt.ExecContext(ctx, session, t.Role, t.Content); err != nil {
			return fmt.Errorf("sqlite history: insert: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE session = ? AND id NOT IN (
			SELECT id FROM history WHERE session = ? ORDER BY id DESC LIMIT ?
		)`, session, session, h.maxMessages); err != nil {
		return fmt.Errorf("sqlite history: trim: %w", err)
	}
	return tx.Commit()
}

// Clear implements HistoryStore.
func (h *SQLiteHistory) Clear(ctx context.Context, session string) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM history WHERE session = ?`, session); err != nil {
		return fmt.Errorf("sqlite history: clear: %w", err)
	}
	return nil
}

// Close implements HistoryStore.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}
