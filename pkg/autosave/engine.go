// Package autosave implements the draft persistence engine: checksummed
// change detection, adaptive debounced auto-saves, explicit versioned
// saves, and retention of old auto-save snapshots.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/patchbay-dev/patchbay/pkg/eventbus"
	"github.com/patchbay-dev/patchbay/pkg/events"
	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
	"github.com/patchbay-dev/patchbay/pkg/viewport"
)

// ErrSaveInFlight is returned when an explicit save is requested while
// another save is still running.
var ErrSaveInFlight = errors.New("a save is already in progress")

// SaveStatus labels the phases reported to status observers.
type SaveStatus string

const (
	SaveStarted   SaveStatus = "started"
	SaveCompleted SaveStatus = "completed"
	SaveFailed    SaveStatus = "failed"
)

// StatusUpdate is delivered to observers on every save phase change.
type StatusUpdate struct {
	Status   SaveStatus
	DraftID  string
	AutoSave bool
	Version  string
	Checksum uint32
	Err      error
}

// Options tunes the debounce and minification behavior. Zero values fall
// back to defaults.
type Options struct {
	// MinDelay is the debounce delay under a calm mutation rate.
	MinDelay time.Duration
	// MaxDelay caps the backed-off delay under rapid interaction.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay each time the mutation count
	// within the window exceeds MutationThreshold.
	BackoffFactor float64
	// MutationWindow is the sliding window over recent mutations.
	MutationWindow time.Duration
	// MutationThreshold is the mutation count above which the delay
	// starts backing off.
	MutationThreshold int
	// MinifyThreshold is the serialized size in bytes above which a
	// snapshot is stored compact and flagged compressed.
	MinifyThreshold int
}

func (o Options) withDefaults() Options {
	if o.MinDelay <= 0 {
		o.MinDelay = 1 * time.Second
	}

	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}

	if o.BackoffFactor <= 1 {
		o.BackoffFactor = 2.0
	}

	if o.MutationWindow <= 0 {
		o.MutationWindow = 2 * time.Second
	}

	if o.MutationThreshold <= 0 {
		o.MutationThreshold = 10
	}

	if o.MinifyThreshold <= 0 {
		o.MinifyThreshold = 100 * 1024
	}

	return o
}

// Engine watches a graph store and viewport and persists draft snapshots.
// Auto-saves are debounced and checksum-gated; explicit saves always
// write and bump the version.
type Engine struct {
	store     *graph.Store
	viewport  *viewport.Viewport
	storage   persistence.Persistence
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	opts      Options

	mu          sync.Mutex
	draftID     string
	draftName   string
	version     string
	createdAt   time.Time
	archMode    bool
	mutations   []time.Time
	timer       *time.Timer
	inFlight    bool
	lastSaved   uint32
	hasLast     bool
	unsubscribe func()
	nextSubID   int
	observers   map[int]func(StatusUpdate)
}

// NewEngine wires the persistence engine. publisher may be nil when no
// event bus is configured.
func NewEngine(store *graph.Store, vp *viewport.Viewport, storage persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		store:     store,
		viewport:  vp,
		storage:   storage,
		publisher: publisher,
		logger:    logger.With("module", "autosave"),
		opts:      opts.withDefaults(),
		draftID:   "draft",
		draftName: "Untitled",
		observers: make(map[int]func(StatusUpdate)),
	}
}

// Start subscribes the engine to store mutations. Every mutation except a
// full draft load schedules a debounced auto-save.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.unsubscribe != nil {
		return
	}

	e.unsubscribe = e.store.Subscribe(func(change graph.Change) {
		if change.Kind == graph.ChangeLoaded {
			return
		}

		e.RequestAutoSave(ctx)
	})
}

// Close cancels any pending debounce timer and detaches from the store.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Subscribe registers a status observer and returns an unsubscribe func.
func (e *Engine) Subscribe(fn func(StatusUpdate)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.observers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

func (e *Engine) notify(update StatusUpdate) {
	e.mu.Lock()
	observers := make([]func(StatusUpdate), 0, len(e.observers))

	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	for _, fn := range observers {
		fn(update)
	}
}

// RequestAutoSave records a mutation and (re)arms the debounce timer. A
// new request resets the pending timer rather than stacking another.
func (e *Engine) RequestAutoSave(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	e.mutations = append(e.mutations, now)
	e.pruneMutationsLocked(now)

	delay := e.delayLocked()

	if e.timer != nil {
		e.timer.Reset(delay)

		return
	}

	e.timer = time.AfterFunc(delay, func() {
		e.fireAutoSave(ctx)
	})
}

func (e *Engine) pruneMutationsLocked(now time.Time) {
	cutoff := now.Add(-e.opts.MutationWindow)
	kept := e.mutations[:0]

	for _, t := range e.mutations {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	e.mutations = kept
}

// delayLocked scales the base delay multiplicatively for every
// MutationThreshold mutations inside the sliding window, capped at
// MaxDelay.
func (e *Engine) delayLocked() time.Duration {
	delay := e.opts.MinDelay

	over := len(e.mutations) / e.opts.MutationThreshold
	for i := 0; i < over; i++ {
		delay = time.Duration(float64(delay) * e.opts.BackoffFactor)
		if delay >= e.opts.MaxDelay {
			return e.opts.MaxDelay
		}
	}

	return delay
}

func (e *Engine) fireAutoSave(ctx context.Context) {
	e.mu.Lock()
	e.timer = nil

	if e.inFlight {
		// Dropped on purpose. The dirty flag survives, so the next
		// mutation re-arms the timer and nothing is lost.
		e.mu.Unlock()

		return
	}

	e.inFlight = true
	id := models.AutoSavePrefix + e.draftID
	name := e.draftName
	e.mu.Unlock()

	draft := e.snapshot(id, name, e.versionNow())

	sum := Checksum(draft.Nodes, draft.Connections, draft.CanvasTransform, draft.DesignerMode)

	e.mu.Lock()
	unchanged := e.hasLast && sum == e.lastSaved
	e.mu.Unlock()

	if unchanged {
		e.store.ClearDirty()
		e.finishSave(nil, id, draft.Metadata.Version, sum, true, true)

		return
	}

	e.notify(StatusUpdate{Status: SaveStarted, DraftID: id, AutoSave: true})
	e.publish(ctx, events.DraftSaveStarted{DraftID: id, AutoSave: true, Timestamp: time.Now().UTC()})

	draft.Metadata.Checksum = sum
	e.applyMinification(draft)

	err := e.storage.SaveDraft(ctx, draft)
	if err != nil {
		e.logger.ErrorContext(ctx, "auto-save failed", "draft_id", id, "error", err)
		e.finishSave(err, id, draft.Metadata.Version, sum, true, false)
		e.publish(ctx, events.DraftSaveFailed{DraftID: id, Message: err.Error(), AutoSave: true, Timestamp: time.Now().UTC()})

		return
	}

	e.store.ClearDirty()
	e.finishSave(nil, id, draft.Metadata.Version, sum, true, false)
	e.publish(ctx, events.DraftSaveCompleted{DraftID: id, Version: draft.Metadata.Version, Checksum: sum, AutoSave: true, Timestamp: time.Now().UTC()})
}

// finishSave clears the in-flight flag and reports the outcome. skipped
// saves complete silently without touching observers.
func (e *Engine) finishSave(err error, id, version string, sum uint32, autoSave, skipped bool) {
	e.mu.Lock()
	e.inFlight = false

	if err == nil && !skipped {
		e.lastSaved = sum
		e.hasLast = true
	}
	e.mu.Unlock()

	if skipped {
		return
	}

	if err != nil {
		e.notify(StatusUpdate{Status: SaveFailed, DraftID: id, AutoSave: autoSave, Err: err})

		return
	}

	e.notify(StatusUpdate{Status: SaveCompleted, DraftID: id, AutoSave: autoSave, Version: version, Checksum: sum})
}

// SaveDraft performs an explicit save under the given id. The version is
// bumped and the write happens even when the checksum is unchanged.
func (e *Engine) SaveDraft(ctx context.Context, id, name string) error {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()

		return ErrSaveInFlight
	}

	e.inFlight = true

	if id != "" {
		e.draftID = id
	}

	if name != "" {
		e.draftName = name
	}

	id = e.draftID
	name = e.draftName
	// Committed only after the write succeeds, so a failed save does not
	// burn a version number.
	version := bumpVersion(e.version)
	e.mu.Unlock()

	e.notify(StatusUpdate{Status: SaveStarted, DraftID: id})
	e.publish(ctx, events.DraftSaveStarted{DraftID: id, Timestamp: time.Now().UTC()})

	draft := e.snapshot(id, name, version)
	sum := Checksum(draft.Nodes, draft.Connections, draft.CanvasTransform, draft.DesignerMode)
	draft.Metadata.Checksum = sum
	e.applyMinification(draft)

	err := e.storage.SaveDraft(ctx, draft)
	if err != nil {
		e.logger.ErrorContext(ctx, "explicit save failed", "draft_id", id, "error", err)
		e.finishSave(err, id, version, sum, false, false)
		e.publish(ctx, events.DraftSaveFailed{DraftID: id, Message: err.Error(), Timestamp: time.Now().UTC()})

		return fmt.Errorf("failed to save draft %s: %w", id, err)
	}

	e.mu.Lock()
	e.version = version
	e.mu.Unlock()

	e.store.ClearDirty()
	e.finishSave(nil, id, version, sum, false, false)
	e.publish(ctx, events.DraftSaveCompleted{DraftID: id, Version: version, Checksum: sum, Timestamp: time.Now().UTC()})

	return nil
}

// LoadDraft fetches a draft from storage and installs it into the store
// and viewport. The loaded state becomes the change-detection baseline.
func (e *Engine) LoadDraft(ctx context.Context, id string) (*models.Draft, error) {
	draft, err := e.storage.DraftByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e.store.Load(draft)
	e.viewport.Restore(draft.CanvasTransform)

	sum := Checksum(e.store.Nodes(), e.store.Connections(), e.viewport.Current(), e.store.Mode())

	e.mu.Lock()
	e.draftID = trimAutoSavePrefix(draft.ID)
	e.draftName = draft.Name
	e.version = draft.Metadata.Version
	e.createdAt = draft.Metadata.CreatedAt
	e.archMode = draft.ArchitectureMode
	e.lastSaved = sum
	e.hasLast = true
	e.mutations = nil
	e.mu.Unlock()

	return draft, nil
}

// Drafts lists stored draft summaries, newest first.
func (e *Engine) Drafts(ctx context.Context) ([]*models.DraftSummary, error) {
	return e.storage.Drafts(ctx)
}

// DeleteDraft removes a draft and broadcasts the deletion.
func (e *Engine) DeleteDraft(ctx context.Context, id string) error {
	err := e.storage.DeleteDraft(ctx, id)
	if err != nil {
		return err
	}

	e.publish(ctx, events.DraftDeleted{DraftID: id, Timestamp: time.Now().UTC()})

	return nil
}

// StorageStats reports aggregate storage usage.
func (e *Engine) StorageStats(ctx context.Context) (*persistence.StorageStats, error) {
	return e.storage.StorageStats(ctx)
}

func (e *Engine) versionNow() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.version
}

// snapshot reads the current store and viewport state. Called at fire
// time so a burst of mutations persists the latest state, never an
// intermediate one.
func (e *Engine) snapshot(id, name, version string) *models.Draft {
	now := time.Now().UTC()

	e.mu.Lock()
	createdAt := e.createdAt
	if createdAt.IsZero() {
		createdAt = now
		e.createdAt = createdAt
	}

	archMode := e.archMode
	e.mu.Unlock()

	return &models.Draft{
		ID:               id,
		Name:             name,
		Nodes:            e.store.Nodes(),
		Connections:      e.store.Connections(),
		CanvasTransform:  e.viewport.Current(),
		DesignerMode:     e.store.Mode(),
		ArchitectureMode: archMode,
		Metadata: models.DraftMetadata{
			CreatedAt: createdAt,
			UpdatedAt: now,
			Version:   version,
		},
	}
}

// applyMinification flags drafts above the size threshold so backends
// store them compact. Plain re-serialization stands in for real
// compression for now.
func (e *Engine) applyMinification(draft *models.Draft) {
	data, err := json.Marshal(draft)
	if err != nil {
		return
	}

	draft.Metadata.Compressed = len(data) > e.opts.MinifyThreshold
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, string(event.GetType()), event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// bumpVersion increments numeric versions. Non-numeric versions get a
// timestamp suffix instead of failing.
func bumpVersion(current string) string {
	if current == "" {
		return "1"
	}

	n, err := strconv.Atoi(current)
	if err != nil {
		return fmt.Sprintf("%s-%d", current, time.Now().Unix())
	}

	return strconv.Itoa(n + 1)
}

func trimAutoSavePrefix(id string) string {
	if models.IsAutoSaveID(id) {
		return id[len(models.AutoSavePrefix):]
	}

	return id
}
