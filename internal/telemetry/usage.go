// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides local usage logging for ollamadesk.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SCHEMA
// =============================================================================

// Schema is the usage log database schema.
const Schema = `
-- Exchanges table: one row per completed chat exchange
CREATE TABLE IF NOT EXISTS exchanges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    model TEXT NOT NULL,
    prompt_chars INTEGER NOT NULL,
    reply_chars INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at INTEGER NOT NULL -- Unix timestamp
);

CREATE INDEX IF NOT EXISTS idx_exchanges_model ON exchanges(model);
CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

// =============================================================================
// ENTRY TYPES
// =============================================================================

// Exchange is one recorded chat round trip.
type Exchange struct {
	ID          int64
	Model       string
	PromptChars int
	ReplyChars  int
	Duration    time.Duration
	CreatedAt   time.Time
}

// ModelTotals aggregates recorded usage for one model.
type ModelTotals struct {
	Model       string
	Exchanges   int
	PromptChars int64
	ReplyChars  int64
}

// =============================================================================
// USAGE LOG
// =============================================================================

// UsageLog records chat exchanges in a local SQLite database.
type UsageLog struct {
	db *sql.DB
}

// Open opens (creating if needed) the usage log at the given path.
func Open(path string) (*UsageLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &UsageLog{db: db}, nil
}

// Close closes the underlying database.
func (l *UsageLog) Close() error {
	return l.db.Close()
}

// Record inserts one exchange. The caller decides what to do with a
// failure; chat handling should not.
func (l *UsageLog) Record(ctx context.Context, model string, promptChars, replyChars int, duration time.Duration) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO exchanges (model, prompt_chars, reply_chars, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		model, promptChars, replyChars, duration.Milliseconds(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Recent returns the most recent exchanges, newest first.
func (l *UsageLog) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, model, prompt_chars, reply_chars, duration_ms, created_at
		 FROM exchanges ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var durationMs, createdAt int64
		if err := rows.Scan(&e.ID, &e.Model, &e.PromptChars, &e.ReplyChars, &durationMs, &createdAt); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}

	return out, rows.Err()
}

// Totals aggregates recorded usage per model, heaviest first.
func (l *UsageLog) Totals(ctx context.Context) ([]ModelTotals, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT model, COUNT(*), SUM(prompt_chars), SUM(reply_chars)
		 FROM exchanges GROUP BY model ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModelTotals
	for rows.Next() {
		var t ModelTotals
		if err := rows.Scan(&t.Model, &t.Exchanges, &t.PromptChars, &t.ReplyChars); err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}
