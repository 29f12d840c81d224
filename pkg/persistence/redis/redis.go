// Package redis provides Redis-backed persistence for canvas drafts.
// Each draft is one JSON blob stored under a namespaced key.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
)

const keyPrefix = "patchbay:draft:"

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client goredis.UniversalClient
}

// NewPersistence connects to Redis using a redis:// URL.
func NewPersistence(ctx context.Context, url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

// NewPersistenceWithClient wraps an existing client, used by tests.
func NewPersistenceWithClient(client goredis.UniversalClient) *Persistence {
	return &Persistence{client: client}
}

func draftKey(id string) string {
	return keyPrefix + id
}

// Close releases the client connection pool.
func (rp *Persistence) Close(_ context.Context) error {
	return rp.client.Close()
}

// HealthCheck pings the server.
func (rp *Persistence) HealthCheck(ctx context.Context) error {
	err := rp.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// SaveDraft serializes and stores the draft blob. Serialization happens
// before the write, so a failed marshal never touches the stored value.
func (rp *Persistence) SaveDraft(ctx context.Context, draft *models.Draft) error {
	var data []byte

	var err error
	if draft.Metadata.Compressed {
		data, err = json.Marshal(draft)
	} else {
		data, err = json.MarshalIndent(draft, "", "  ")
	}

	if err != nil {
		return persistence.NewDraftError("Save", draft.ID, err)
	}

	err = rp.client.Set(ctx, draftKey(draft.ID), data, 0).Err()
	if err != nil {
		if strings.Contains(err.Error(), "OOM") {
			return persistence.NewDraftError("Save", draft.ID, persistence.ErrQuotaExceeded)
		}

		return fmt.Errorf("failed to store draft %s: %w", draft.ID, err)
	}

	return nil
}

// DraftByID loads and schema-validates a draft blob.
func (rp *Persistence) DraftByID(ctx context.Context, id string) (*models.Draft, error) {
	data, err := rp.client.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, persistence.NewDraftError("Load", id, persistence.ErrDraftNotFound)
		}

		return nil, fmt.Errorf("failed to fetch draft %s: %w", id, err)
	}

	if err := models.ValidateDraftDocument(data); err != nil {
		return nil, persistence.NewDraftError("Load", id, err)
	}

	var draft models.Draft

	err = json.Unmarshal(data, &draft)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft %s: %w", id, err)
	}

	return &draft, nil
}

// DeleteDraft removes the draft blob.
func (rp *Persistence) DeleteDraft(ctx context.Context, id string) error {
	removed, err := rp.client.Del(ctx, draftKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}

	if removed == 0 {
		return persistence.NewDraftError("Delete", id, persistence.ErrDraftNotFound)
	}

	return nil
}

// Drafts scans the draft keyspace and returns summaries sorted by
// updatedAt, newest first.
func (rp *Persistence) Drafts(ctx context.Context) ([]*models.DraftSummary, error) {
	var summaries []*models.DraftSummary

	iter := rp.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()

	for iter.Next(ctx) {
		key := iter.Val()
		id := strings.TrimPrefix(key, keyPrefix)

		data, err := rp.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == goredis.Nil {
				continue // deleted between scan and fetch
			}

			return nil, fmt.Errorf("failed to fetch draft %s: %w", id, err)
		}

		var draft models.Draft

		err = json.Unmarshal(data, &draft)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft %s: %w", id, err)
		}

		summaries = append(summaries, draft.Summary(int64(len(data))))
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan drafts: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	return summaries, nil
}

// StorageStats aggregates blob sizes across the draft keyspace.
func (rp *Persistence) StorageStats(ctx context.Context) (*persistence.StorageStats, error) {
	summaries, err := rp.Drafts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &persistence.StorageStats{DraftCount: len(summaries)}

	var largest int64

	for _, s := range summaries {
		stats.TotalBytes += s.SizeBytes

		if s.AutoSaved {
			stats.AutoSaveCount++
		}

		if s.SizeBytes > largest {
			largest = s.SizeBytes
			stats.LargestDraft = s.ID
		}
	}

	return stats, nil
}
