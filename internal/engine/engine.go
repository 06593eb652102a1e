// Package engine defines the download engine adapter boundary. One adapter
// per platform family performs the actual fetch for a single video URL.
package engine

import (
	"context"
	"fmt"
)

// Metadata is the canonical video metadata produced by a download.
type Metadata struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	FilePath string `json:"filePath"`
	Duration int    `json:"duration"`
}

// Result is what an adapter returns. Engines produce one of two shapes: a
// wrapper carrying a nested metadata record plus a success flag, or a bare
// metadata record. Both must be accepted.
type Result struct {
	Success   *bool     `json:"success,omitempty"`
	ErrorText string    `json:"error,omitempty"`
	VideoData *Metadata `json:"videoData,omitempty"`
	Metadata
}

// Normalize collapses the two result shapes into one canonical metadata
// record. Structured failures come back as a *DownloadError.
func (r *Result) Normalize(url string) (*Metadata, error) {
	if r == nil {
		return nil, &DownloadError{URL: url, Message: "engine returned no result"}
	}
	// an explicit failure flag wins regardless of whether metadata came along
	if r.Success != nil && !*r.Success {
		msg := r.ErrorText
		if msg == "" {
			msg = "engine reported failure"
		}
		return nil, &DownloadError{URL: url, Message: msg}
	}
	if r.VideoData != nil {
		return r.VideoData, nil
	}
	if r.ID != "" || r.Title != "" {
		meta := r.Metadata
		return &meta, nil
	}
	return nil, &DownloadError{URL: url, Message: "unrecognized engine result shape"}
}

// DownloadError marks a genuine single-video failure: the engine errored or
// reported a structured failure. The enclosing task keeps going.
type DownloadError struct {
	URL     string
	Message string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %s", e.URL, e.Message)
}

// Adapter downloads a single video. The downloadID identifies the in-flight
// entry in the shared active-downloads registry.
type Adapter interface {
	Download(ctx context.Context, url, downloadID string) (*Result, error)
}
