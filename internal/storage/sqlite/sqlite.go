package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS auto_elevate (
			device_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetAutoElevate returns the auto-elevate flag for a device. Devices that
// have never been toggled default to false.
func (s *SQLiteStorage) GetAutoElevate(ctx context.Context, deviceID string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx,
		"SELECT enabled FROM auto_elevate WHERE device_id = ?", deviceID,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get auto_elevate flag: %w", err)
	}
	return enabled, nil
}

// SetAutoElevate persists the auto-elevate flag for a device.
func (s *SQLiteStorage) SetAutoElevate(ctx context.Context, deviceID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_elevate (device_id, enabled, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at
	`, deviceID, enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save auto_elevate flag: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
