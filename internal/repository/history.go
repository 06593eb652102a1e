package repository

import (
	"context"

	"channel-archiver/internal/domain"
)

// HistoryRepository records terminal download outcomes. Writes are
// best-effort at call sites; a failed append must never abort processing.
type HistoryRepository interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	List(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}
