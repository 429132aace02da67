package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record matches the query.
var ErrNotFound = errors.New("call record not found")

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id             TEXT PRIMARY KEY,
	call_sid       TEXT NOT NULL,
	stream_sid     TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	ended_at       TIMESTAMP NOT NULL,
	duration       REAL NOT NULL,
	frames_in      INTEGER NOT NULL DEFAULT 0,
	frames_out     INTEGER NOT NULL DEFAULT 0,
	bytes_in       INTEGER NOT NULL DEFAULT 0,
	bytes_out      INTEGER NOT NULL DEFAULT 0,
	decode_errors  INTEGER NOT NULL DEFAULT 0,
	errors         INTEGER NOT NULL DEFAULT 0,
	function_calls INTEGER NOT NULL DEFAULT 0,
	speech_frames  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_calls_stream_sid ON calls(stream_sid);
CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at);
`

// SQLite stores call records in a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the call database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open call database: %w", err)
	}
	// The driver is not safe for concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate call database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// SaveCallRecord inserts one finished call. A missing ID is filled in.
func (s *SQLite) SaveCallRecord(ctx context.Context, rec *CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (
			id, call_sid, stream_sid, started_at, ended_at, duration,
			frames_in, frames_out, bytes_in, bytes_out,
			decode_errors, errors, function_calls, speech_frames
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CallSID, rec.StreamSID, rec.StartedAt, rec.EndedAt, rec.Duration,
		rec.FramesIn, rec.FramesOut, rec.BytesIn, rec.BytesOut,
		rec.DecodeErrors, rec.Errors, rec.FunctionCalls, rec.SpeechFrames,
	)
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}

// ListRecentCalls returns up to limit calls, newest first.
func (s *SQLite) ListRecentCalls(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_sid, stream_sid, started_at, ended_at, duration,
		       frames_in, frames_out, bytes_in, bytes_out,
		       decode_errors, errors, function_calls, speech_frames
		FROM calls ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var records []*CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetCallRecord returns the most recent call for a stream.
func (s *SQLite) GetCallRecord(ctx context.Context, streamSID string) (*CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_sid, stream_sid, started_at, ended_at, duration,
		       frames_in, frames_out, bytes_in, bytes_out,
		       decode_errors, errors, function_calls, speech_frames
		FROM calls WHERE stream_sid = ? ORDER BY started_at DESC LIMIT 1`, streamSID)
	if err != nil {
		return nil, fmt.Errorf("failed to query call record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRecord(rows)
}

func scanRecord(rows *sql.Rows) (*CallRecord, error) {
	var rec CallRecord
	err := rows.Scan(
		&rec.ID, &rec.CallSID, &rec.StreamSID, &rec.StartedAt, &rec.EndedAt, &rec.Duration,
		&rec.FramesIn, &rec.FramesOut, &rec.BytesIn, &rec.BytesOut,
		&rec.DecodeErrors, &rec.Errors, &rec.FunctionCalls, &rec.SpeechFrames,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan call record: %w", err)
	}
	return &rec, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
