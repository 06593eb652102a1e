// Package enumerate turns a channel/playlist source into a flat list of
// video URLs, either all at once for bounded sources or in bounded batches
// for very large ones.
package enumerate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"channel-archiver/internal/domain"
)

// ErrNotFound is returned when a source cannot be resolved to anything
// enumerable.
var ErrNotFound = errors.New("source not found")

// Engine is one platform's enumeration backend. Pages are 1-based and of
// fixed size on the wire; the enumerator translates to 0-based indices.
type Engine interface {
	// VideoCount returns a cheap count hint for the source. 0 means the
	// count could not be resolved, never that the source is empty.
	VideoCount(ctx context.Context, source string) (int, error)
	// VideoPage returns up to size URLs for the given 1-based page.
	VideoPage(ctx context.Context, source string, page, size int) ([]string, error)
}

// FallbackLister is an optional secondary listing path, attempted only when
// the primary path yields zero results for the whole source.
type FallbackLister interface {
	FallbackPage(ctx context.Context, source string, page, size int) ([]string, error)
}

// CollectionResolver resolves sources that are not directly enumerable by
// author id into a canonical collection/series identifier.
type CollectionResolver interface {
	ResolveCollection(ctx context.Context, source string) (string, error)
}

// IncrementalCapable marks engines that can serve arbitrary offsets cheaply,
// making batched enumeration worthwhile for the source.
type IncrementalCapable interface {
	SupportsIncremental(source string) bool
}

const defaultPageSize = 100

// Enumerator dispatches to per-platform engines. Adding a platform means
// adding one table entry.
type Enumerator struct {
	engines  map[domain.Platform]Engine
	pageSize int
	logger   *logrus.Logger
}

func NewEnumerator(engines map[domain.Platform]Engine, logger *logrus.Logger) *Enumerator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Enumerator{
		engines:  engines,
		pageSize: defaultPageSize,
		logger:   logger,
	}
}

func (e *Enumerator) engine(platform domain.Platform) (Engine, error) {
	eng, ok := e.engines[platform]
	if !ok {
		return nil, fmt.Errorf("no enumeration engine for platform %q: %w", platform, ErrNotFound)
	}
	return eng, nil
}

// Incremental reports whether the source should be enumerated batch by batch
// instead of all at once.
func (e *Enumerator) Incremental(source string, platform domain.Platform) bool {
	eng, ok := e.engines[platform]
	if !ok {
		return false
	}
	inc, ok := eng.(IncrementalCapable)
	return ok && inc.SupportsIncremental(source)
}

// VideoCount returns a best-effort count for the source. A result of 0 means
// unresolved; callers must not treat it as an empty source.
func (e *Enumerator) VideoCount(ctx context.Context, source string, platform domain.Platform) (int, error) {
	eng, err := e.engine(platform)
	if err != nil {
		return 0, err
	}
	source, err = e.resolve(ctx, eng, source)
	if err != nil {
		return 0, err
	}
	count, err := eng.VideoCount(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("count videos for %s: %w", source, err)
	}
	return count, nil
}

// AllVideoURLs loads the entire enumeration into memory. Only acceptable for
// bounded sources.
func (e *Enumerator) AllVideoURLs(ctx context.Context, source string, platform domain.Platform) ([]string, error) {
	eng, err := e.engine(platform)
	if err != nil {
		return nil, err
	}
	source, err = e.resolve(ctx, eng, source)
	if err != nil {
		return nil, err
	}

	urls, err := e.drainPages(ctx, source, eng.VideoPage)
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		if fallback, ok := eng.(FallbackLister); ok {
			e.logger.WithField("source", source).Info("primary enumeration empty, trying fallback")
			urls, err = e.drainPages(ctx, source, fallback.FallbackPage)
			if err != nil {
				return nil, err
			}
		}
	}

	return urls, nil
}

// VideoURLsIncremental returns at most batchSize URLs starting at the
// 0-based startIndex. An empty result means the source is exhausted or
// unavailable at that offset.
func (e *Enumerator) VideoURLsIncremental(ctx context.Context, source string, platform domain.Platform, startIndex, batchSize int) ([]string, error) {
	if startIndex < 0 || batchSize <= 0 {
		return nil, fmt.Errorf("invalid enumeration window start=%d size=%d", startIndex, batchSize)
	}
	eng, err := e.engine(platform)
	if err != nil {
		return nil, err
	}
	source, err = e.resolve(ctx, eng, source)
	if err != nil {
		return nil, err
	}

	var urls []string
	page := startIndex/e.pageSize + 1
	skip := startIndex % e.pageSize

	for len(urls) < batchSize {
		items, err := eng.VideoPage(ctx, source, page, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d for %s: %w", page, source, err)
		}
		if len(items) == 0 {
			break
		}
		short := len(items) < e.pageSize
		if skip > 0 {
			if skip >= len(items) {
				items = nil
			} else {
				items = items[skip:]
			}
			skip = 0
		}
		urls = append(urls, items...)
		if short {
			break
		}
		page++
	}

	if len(urls) > batchSize {
		urls = urls[:batchSize]
	}
	return urls, nil
}

func (e *Enumerator) resolve(ctx context.Context, eng Engine, source string) (string, error) {
	resolver, ok := eng.(CollectionResolver)
	if !ok {
		return source, nil
	}
	resolved, err := resolver.ResolveCollection(ctx, source)
	if err != nil {
		return "", fmt.Errorf("resolve collection for %s: %v: %w", source, err, ErrNotFound)
	}
	return resolved, nil
}

func (e *Enumerator) drainPages(ctx context.Context, source string, fetch func(ctx context.Context, source string, page, size int) ([]string, error)) ([]string, error) {
	var urls []string
	for page := 1; ; page++ {
		items, err := fetch(ctx, source, page, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d for %s: %w", page, source, err)
		}
		urls = append(urls, items...)
		if len(items) < e.pageSize {
			break
		}
	}
	return urls, nil
}
