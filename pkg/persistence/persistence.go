// Package persistence provides the storage abstraction for draft blobs.
// Each draft is one JSON document stored under its draft id; backends are
// plain key-value blob stores with no cross-process locking, so
// concurrent writers to the same key race and the last writer wins.
package persistence

import (
	"context"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// StorageStats summarizes the blob store contents.
type StorageStats struct {
	DraftCount    int    `json:"draftCount"`
	AutoSaveCount int    `json:"autoSaveCount"`
	TotalBytes    int64  `json:"totalBytes"`
	LargestDraft  string `json:"largestDraft,omitempty"`
}

// Persistence is implemented by every draft store backend.
type Persistence interface {
	Drafts(ctx context.Context) ([]*models.DraftSummary, error)
	SaveDraft(ctx context.Context, draft *models.Draft) error
	DraftByID(ctx context.Context, id string) (*models.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	StorageStats(ctx context.Context) (*StorageStats, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
