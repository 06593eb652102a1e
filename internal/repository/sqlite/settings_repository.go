package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"channel-archiver/internal/repository"
)

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const maxConcurrentDownloadsKey = "max_concurrent_downloads"

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) repository.SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSettingsTable); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

func (r *SettingsRepository) MaxConcurrentDownloads(ctx context.Context) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, maxConcurrentDownloadsKey)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return repository.DefaultMaxConcurrentDownloads, nil
		}
		return 0, fmt.Errorf("read max concurrent downloads: %w", err)
	}

	max, err := strconv.Atoi(value)
	if err != nil || max <= 0 {
		return repository.DefaultMaxConcurrentDownloads, nil
	}
	return max, nil
}

func (r *SettingsRepository) SetMaxConcurrentDownloads(ctx context.Context, max int) error {
	if max <= 0 {
		return fmt.Errorf("max concurrent downloads must be positive, got %d", max)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		maxConcurrentDownloadsKey,
		strconv.Itoa(max),
	)
	if err != nil {
		return fmt.Errorf("set max concurrent downloads: %w", err)
	}
	return nil
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)
