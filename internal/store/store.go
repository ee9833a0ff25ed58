package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
)

// Store persists capture sessions, image records and chat history in a
// SQLite database under dataDir. WAL journaling makes every write
// atomic from a reader's perspective, so a crash mid-write never leaves
// a half-written record on disk.
type Store struct {
	db *sql.DB
}

// Open initializes the database at dataDir/companion.db, runs
// migrations and applies the crash-recovery contract: any image still
// marked processing was interrupted, not completed, so it is reset to
// pending.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "companion.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.recoverInterrupted(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
	  id            TEXT PRIMARY KEY,
	  status        TEXT NOT NULL,
	  target_json   TEXT NOT NULL,
	  settings_json TEXT NOT NULL,
	  stats_json    TEXT NOT NULL,
	  push_attempted_at INTEGER,
	  created_at    INTEGER NOT NULL,
	  updated_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS images (
	  id              TEXT PRIMARY KEY,
	  session_id      TEXT NOT NULL,
	  status          TEXT NOT NULL,
	  attempts        INTEGER NOT NULL DEFAULT 0,
	  last_error      TEXT,
	  image_path      TEXT NOT NULL,
	  result_json     TEXT,
	  catalog_item_id TEXT,
	  created_at      INTEGER NOT NULL,
	  updated_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_images_session
	ON images(session_id, created_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
	  session_id    TEXT NOT NULL,
	  seq           INTEGER NOT NULL,
	  role          TEXT NOT NULL,
	  content       TEXT NOT NULL,
	  tool_calls_json TEXT,
	  tool_call_id  TEXT,
	  created_at    INTEGER NOT NULL,
	  PRIMARY KEY (session_id, seq)
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// recoverInterrupted resets images left in processing by a crash back
// to pending so the pipeline picks them up again.
func (s *Store) recoverInterrupted(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE images SET status = ?, updated_at = ? WHERE status = ?`,
		models.ImagePending, time.Now().Unix(), models.ImageProcessing)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted images: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("Reset interrupted images to pending", "count", n)
	}
	return nil
}

// SaveSession inserts or updates a session row in one atomic write.
func (s *Store) SaveSession(ctx context.Context, session *models.CaptureSession) error {
	target, err := json.Marshal(session.Target)
	if err != nil {
		return fmt.Errorf("failed to marshal target: %w", err)
	}
	settings, err := json.Marshal(session.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	stats, err := json.Marshal(session.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	var pushAt *int64
	if session.PushAttemptedAt != nil {
		ts := session.PushAttemptedAt.Unix()
		pushAt = &ts
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, target_json, settings_json, stats_json, push_attempted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  status = excluded.status,
		  target_json = excluded.target_json,
		  settings_json = excluded.settings_json,
		  stats_json = excluded.stats_json,
		  push_attempted_at = excluded.push_attempted_at,
		  updated_at = excluded.updated_at`,
		session.ID, session.Status, string(target), string(settings), string(stats),
		pushAt, session.CreatedAt.Unix(), session.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession loads one session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*models.CaptureSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, target_json, settings_json, stats_json, push_attempted_at, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions, newest first. A row that fails to
// parse is skipped with a warning; corruption of one record never takes
// down the rest.
func (s *Store) ListSessions(ctx context.Context) ([]*models.CaptureSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, target_json, settings_json, stats_json, push_attempted_at, created_at, updated_at
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.CaptureSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Warn("Skipping corrupted session record", "err", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.CaptureSession, error) {
	var (
		session                  models.CaptureSession
		targetJSON, settingsJSON string
		statsJSON                string
		pushAt                   *int64
		createdAt, updatedAt     int64
	)
	if err := row.Scan(&session.ID, &session.Status, &targetJSON, &settingsJSON,
		&statsJSON, &pushAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	// Corrupted JSON columns degrade to zero values with a warning
	// instead of failing the whole load.
	if err := json.Unmarshal([]byte(targetJSON), &session.Target); err != nil {
		slog.Warn("Corrupted target config, using defaults", "session_id", session.ID, "err", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &session.Settings); err != nil {
		slog.Warn("Corrupted settings, using defaults", "session_id", session.ID, "err", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &session.Stats); err != nil {
		slog.Warn("Corrupted stats, using defaults", "session_id", session.ID, "err", err)
	}

	if pushAt != nil {
		t := time.Unix(*pushAt, 0)
		session.PushAttemptedAt = &t
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}

// DeleteSession removes a session and its image records.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("session", id)
	}
	return tx.Commit()
}

// SaveImage inserts or updates an image record in one atomic write.
func (s *Store) SaveImage(ctx context.Context, rec *models.ImageRecord) error {
	var resultJSON *string
	if rec.Result != nil {
		b, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal extraction result: %w", err)
		}
		j := string(b)
		resultJSON = &j
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, session_id, status, attempts, last_error, image_path, result_json, catalog_item_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  status = excluded.status,
		  attempts = excluded.attempts,
		  last_error = excluded.last_error,
		  result_json = excluded.result_json,
		  catalog_item_id = excluded.catalog_item_id,
		  updated_at = excluded.updated_at`,
		rec.ID, rec.SessionID, rec.Status, rec.Attempts, rec.LastError,
		rec.ImagePath, resultJSON, rec.CatalogItemID,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// GetImage loads one image record by ID.
func (s *Store) GetImage(ctx context.Context, id string) (*models.ImageRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, status, attempts, last_error, image_path, result_json, catalog_item_id, created_at, updated_at
		FROM images WHERE id = ?`, id)

	rec, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("image", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return rec, nil
}

// ListImages returns a session's image records in insertion order.
func (s *Store) ListImages(ctx context.Context, sessionID string) ([]*models.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, status, attempts, last_error, image_path, result_json, catalog_item_id, created_at, updated_at
		FROM images WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var records []*models.ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			slog.Warn("Skipping corrupted image record", "session_id", sessionID, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanImage(row rowScanner) (*models.ImageRecord, error) {
	var (
		rec                  models.ImageRecord
		lastError            sql.NullString
		resultJSON           sql.NullString
		catalogItemID        sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.Status, &rec.Attempts,
		&lastError, &rec.ImagePath, &resultJSON, &catalogItemID,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec.LastError = lastError.String
	rec.CatalogItemID = catalogItemID.String
	if resultJSON.Valid && resultJSON.String != "" {
		var result models.ExtractionResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			// Treat a corrupted result as absent; the record itself survives.
			slog.Warn("Corrupted extraction result, treating as absent", "image_id", rec.ID, "err", err)
		} else {
			rec.Result = &result
		}
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}
