package repository

import "context"

// DefaultMaxConcurrentDownloads applies when no value has been stored.
const DefaultMaxConcurrentDownloads = 3

// SettingsRepository stores user-tunable settings as key/value pairs.
type SettingsRepository interface {
	Init(ctx context.Context) error
	MaxConcurrentDownloads(ctx context.Context) (int, error)
	SetMaxConcurrentDownloads(ctx context.Context, max int) error
}
