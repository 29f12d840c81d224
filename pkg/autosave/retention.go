package autosave

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
)

// Sweeper periodically removes stale auto-save snapshots. Explicitly
// saved drafts are never touched.
type Sweeper struct {
	storage  persistence.Persistence
	logger   *slog.Logger
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a retention sweeper. schedule is a cron expression,
// maxAge is how old an auto-save may get before it is pruned.
func NewSweeper(storage persistence.Persistence, logger *slog.Logger, schedule string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		storage:  storage,
		logger:   logger.With("module", "retention"),
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes auto-save drafts older than maxAge. Returns how many
// drafts were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	summaries, err := s.storage.Drafts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "retention sweep failed to list drafts", "error", err)

		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, summary := range summaries {
		if !models.IsAutoSaveID(summary.ID) {
			continue
		}

		if summary.UpdatedAt.After(cutoff) {
			continue
		}

		err := s.storage.DeleteDraft(ctx, summary.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to prune auto-save", "draft_id", summary.ID, "error", err)

			continue
		}

		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "pruned stale auto-saves", "removed", removed)
	}

	return removed
}
