// Package file provides file-based persistence for canvas drafts. One
// JSON document per draft, stored under <root>/drafts/<id>.json.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
)

const draftsDir = "drafts"

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string
}

// NewPersistence creates a file-backed draft store rooted at the given
// directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. For file-based persistence there
// is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) draftPath(id string) string {
	return filepath.Clean(path.Join(fp.root, draftsDir, id+".json"))
}

// DraftByID loads and schema-validates a draft document.
func (fp *Persistence) DraftByID(_ context.Context, id string) (*models.Draft, error) {
	body, err := os.ReadFile(fp.draftPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewDraftError("Load", id, persistence.ErrDraftNotFound)
		}

		return nil, fmt.Errorf("failed to read draft %s: %w", id, err)
	}

	if err := models.ValidateDraftDocument(body); err != nil {
		return nil, persistence.NewDraftError("Load", id, err)
	}

	var draft models.Draft

	err = json.Unmarshal(body, &draft)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft %s: %w", id, err)
	}

	return &draft, nil
}

// SaveDraft writes the draft document. The write is atomic at the file
// level: serialization happens before the file is touched, so a failed
// save never corrupts the previous blob.
func (fp *Persistence) SaveDraft(_ context.Context, draft *models.Draft) error {
	err := os.MkdirAll(path.Join(fp.root, draftsDir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create drafts directory: %w", err)
	}

	var data []byte
	if draft.Metadata.Compressed {
		data, err = json.Marshal(draft)
	} else {
		data, err = json.MarshalIndent(draft, "", "  ")
	}

	if err != nil {
		return persistence.NewDraftError("Save", draft.ID, err)
	}

	tmp := fp.draftPath(draft.ID) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write draft %s: %w", draft.ID, err)
	}

	err = os.Rename(tmp, fp.draftPath(draft.ID))
	if err != nil {
		return fmt.Errorf("failed to commit draft %s: %w", draft.ID, err)
	}

	return nil
}

// DeleteDraft removes the draft document.
func (fp *Persistence) DeleteDraft(_ context.Context, id string) error {
	err := os.Remove(fp.draftPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewDraftError("Delete", id, persistence.ErrDraftNotFound)
		}

		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}

	return nil
}

// Drafts lists draft summaries sorted by updatedAt, newest first.
func (fp *Persistence) Drafts(ctx context.Context) ([]*models.DraftSummary, error) {
	root := os.DirFS(path.Join(fp.root, draftsDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list draft files: %w", err)
	}

	summaries := make([]*models.DraftSummary, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // strip .json

		draft, err := fp.DraftByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load draft %s: %w", id, err)
		}

		info, err := os.Stat(fp.draftPath(id))
		if err != nil {
			return nil, fmt.Errorf("failed to stat draft %s: %w", id, err)
		}

		summaries = append(summaries, draft.Summary(info.Size()))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	return summaries, nil
}

// StorageStats walks the drafts directory and aggregates blob sizes.
func (fp *Persistence) StorageStats(ctx context.Context) (*persistence.StorageStats, error) {
	summaries, err := fp.Drafts(ctx)
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
