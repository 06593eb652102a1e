package storage

import (
	"context"
)

// UploadOptions conveys upload destination metadata. An empty Bucket falls
// back to the service's configured default.
type UploadOptions struct {
	Bucket           string
	KeyPrefix        string
	ProgressCallback func(done, total int64)
}

// Service archives completed downloads to remote object storage. DeletePrefix
// removes everything a task archived when its record is deleted.
type Service interface {
	UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}
