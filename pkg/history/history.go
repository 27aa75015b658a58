/*
 * Copyright 2025 the NannyAI Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package history persists one record per monitoring cycle: a row in a
// local SQLite database plus the screenshot PNG on disk. Appends from
// concurrent device loops are safe; ordering across devices is
// unspecified, ordering within a device follows capture time.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at   TEXT NOT NULL,
	device_id     TEXT NOT NULL,
	device_name   TEXT NOT NULL,
	scores        TEXT,
	error         TEXT NOT NULL DEFAULT '',
	alert_summary TEXT NOT NULL DEFAULT '',
	filename      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_captures_device ON captures(device_id, captured_at);
`

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Store is the history sink backed by SQLite and a screenshots directory.
type Store struct {
	db     *sql.DB
	dir    string
	logger logger.Logger
}

// Open creates (or reuses) the history database and screenshot directory
// under dataDir.
func Open(dataDir string, log logger.Logger) (*Store, error) {
	dir := filepath.Join(dataDir, "screenshots")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshots directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them; a
	// plain Exec would configure only the one connection that ran it,
	// leaving the rest without a busy timeout under concurrent appends.
	dsn := "file:" + filepath.Join(dataDir, "history.db") +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history db: %w", err)
	}

	return &Store{db: db, dir: dir, logger: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one cycle record. The screenshot write is best-effort:
// losing an image keeps the row, not the other way around.
func (s *Store) Append(ctx context.Context, record *models.CaptureRecord) error {
	filename := ""

	if len(record.Screenshot) > 0 {
		filename = s.screenshotFilename(record)

		if err := os.WriteFile(filepath.Join(s.dir, filename), record.Screenshot, 0o600); err != nil {
			s.logger.Error().Err(err).Str("filename", filename).Msg("Failed to write screenshot")
			filename = ""
		}
	}

	var scoresJSON []byte

	if record.Scores != nil {
		var err error

		scoresJSON, err = json.Marshal(record.Scores)
		if err != nil {
			return fmt.Errorf("failed to marshal scores: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures (captured_at, device_id, device_name, scores, error, alert_summary, filename)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.DeviceID,
		record.DeviceName,
		string(scoresJSON),
		record.Error,
		record.AlertSummary,
		filename,
	)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}

	return nil
}

func (s *Store) screenshotFilename(record *models.CaptureRecord) string {
	name := unsafeFilenameChars.ReplaceAllString(record.DeviceName, "_")

	return fmt.Sprintf("screenshot_%s_%s_%d.png",
		name, record.Timestamp.UTC().Format("20060102_150405"), record.Timestamp.UnixNano())
}

// Query returns records newest-first, optionally filtered by device.
// A zero limit means no limit.
func (s *Store) Query(ctx context.Context, deviceID string, limit, offset int) ([]models.CaptureRecord, error) {
	query := `SELECT captured_at, device_id, device_name, scores, error, alert_summary, filename
		FROM captures`

	var args []interface{}

	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}

	query += ` ORDER BY captured_at DESC, id DESC`

	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	return s.queryRecords(ctx, query, args...)
}

// QueryRange returns records for a device between since and until
// (inclusive), oldest first, for reporting.
func (s *Store) QueryRange(ctx context.Context, deviceID string, since, until time.Time) ([]models.CaptureRecord, error) {
	query := `SELECT captured_at, device_id, device_name, scores, error, alert_summary, filename
		FROM captures WHERE captured_at >= ? AND captured_at <= ?`

	args := []interface{}{
		since.UTC().Format(time.RFC3339Nano),
		until.UTC().Format(time.RFC3339Nano),
	}

	if deviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, deviceID)
	}

	query += ` ORDER BY captured_at ASC, id ASC`

	return s.queryRecords(ctx, query, args...)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.CaptureRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.CaptureRecord

	for rows.Next() {
		var (
			record     models.CaptureRecord
			capturedAt string
			scoresJSON sql.NullString
		)

		if err := rows.Scan(&capturedAt, &record.DeviceID, &record.DeviceName,
			&scoresJSON, &record.Error, &record.AlertSummary, &record.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		record.Timestamp, err = time.Parse(time.RFC3339Nano, capturedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp in history row: %w", err)
		}

		if scoresJSON.Valid && scoresJSON.String != "" {
			if err := json.Unmarshal([]byte(scoresJSON.String), &record.Scores); err != nil {
				return nil, fmt.Errorf("corrupt scores in history row: %w", err)
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	return records, nil
}

// Screenshot loads a stored screenshot by filename.
func (s *Store) Screenshot(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}

	return data, nil
}

// Delete removes a record and its screenshot file.
func (s *Store) Delete(ctx context.Context, filename string) error {
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(filename))); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("filename", filename).Msg("Failed to remove screenshot file")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM captures WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}

	return nil
}
