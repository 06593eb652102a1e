package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	finished_at DATETIME NOT NULL
);
`

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT OR REPLACE INTO history (id, title, author, source_url, status, error_message, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Title,
		entry.Author,
		entry.SourceURL,
		string(entry.Status),
		entry.ErrorMessage,
		entry.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, author, source_url, status, error_message, finished_at
FROM history
ORDER BY finished_at DESC
LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			entry      domain.HistoryEntry
			status     string
			finishedAt time.Time
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Title,
			&entry.Author,
			&entry.SourceURL,
			&status,
			&entry.ErrorMessage,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.Status = domain.HistoryStatus(status)
		entry.FinishedAt = finishedAt.Local()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ repository.HistoryRepository = (*HistoryRepository)(nil)
