package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init opens the database and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Connection-level setting; the DSN parameter alone is not enough
	// for every pooled connection.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateReset inserts a new reset record.
func (s *SQLiteStore) CreateReset(ctx context.Context, record *ResetRecord) error {
	query := `
		INSERT INTO resets (id, environment, phase, status, state_paths, rebuild, started_at, completed_at, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Environment,
		record.Phase,
		record.Status,
		record.StatePaths,
		record.Rebuild,
		record.StartedAt,
		record.CompletedAt,
		record.Error,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reset record: %w", err)
	}
	return nil
}

// GetReset retrieves a reset record by ID.
func (s *SQLiteStore) GetReset(ctx context.Context, id string) (*ResetRecord, error) {
	query := `
		SELECT id, environment, phase, status, state_paths, rebuild, started_at, completed_at, error, created_at, updated_at
		FROM resets
		WHERE id = ?
	`

	record := &ResetRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.Environment,
		&record.Phase,
		&record.Status,
		&record.StatePaths,
		&record.Rebuild,
		&record.StartedAt,
		&record.CompletedAt,
		&record.Error,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reset not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset: %w", err)
	}
	return record, nil
}

// UpdateReset updates the phase and status of a reset. Terminal
// statuses also set completed_at.
func (s *SQLiteStore) UpdateReset(ctx context.Context, id string, phase string, status ResetStatus, errMsg *string) error {
	query := `
		UPDATE resets
		SET phase = ?, status = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	var completedAt *time.Time
	if status == ResetStatusCompleted || status == ResetStatusFailed {
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, phase, status, errMsg, completedAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to update reset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("reset not found: %s", id)
	}
	return nil
}

// ListResets lists reset records newest first. An empty environment
// matches all environments.
func (s *SQLiteStore) ListResets(ctx context.Context, environment string, limit, offset int) ([]*ResetRecord, error) {
	query := `
		SELECT id, environment, phase, status, state_paths, rebuild, started_at, completed_at, error, created_at, updated_at
		FROM resets
		WHERE (? = '' OR environment = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, environment, environment, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list resets: %w", err)
	}
	defer rows.Close()

	records := []*ResetRecord{}
	for rows.Next() {
		record := &ResetRecord{}
		err := rows.Scan(
			&record.ID,
			&record.Environment,
			&record.Phase,
			&record.Status,
			&record.StatePaths,
			&record.Rebuild,
			&record.StartedAt,
			&record.CompletedAt,
			&record.Error,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reset: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resets: %w", err)
	}
	return records, nil
}

// AppendEvent appends a phase transition event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *ResetEvent) error {
	query := `
		INSERT INTO reset_events (reset_id, phase, message, timestamp)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.ResetID,
		event.Phase,
		event.Message,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}
	event.ID = id
	return nil
}

// ListEvents lists the events of one reset in order.
func (s *SQLiteStore) ListEvents(ctx context.Context, resetID string) ([]*ResetEvent, error) {
	query := `
		SELECT id, reset_id, phase, message, timestamp
		FROM reset_events
		WHERE reset_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, resetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*ResetEvent{}
	for rows.Next() {
		event := &ResetEvent{}
		if err := rows.Scan(&event.ID, &event.ResetID, &event.Phase, &event.Message, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
