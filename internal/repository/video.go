package repository

import (
	"context"

	"channel-archiver/internal/domain"
)

// VideoRepository is the persistent registry of completed downloads and
// collection membership.
type VideoRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, video *domain.Video) error
	FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Video, error)
	AddToCollection(ctx context.Context, collectionID, videoID string) error
	ListByCollection(ctx context.Context, collectionID string) ([]domain.Video, error)
}
