package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/patchbay-dev/patchbay/pkg/autosave"
	"github.com/patchbay-dev/patchbay/pkg/eventbus"
	"github.com/patchbay-dev/patchbay/pkg/events"
	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/otelhelper"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
)

// ErrDraftNotFound is returned when a draft is not found.
var ErrDraftNotFound = persistence.ErrDraftNotFound

// Draft is the application service around the canvas: draft lifecycle,
// graph mutations, and validation passes.
type Draft struct {
	store       *graph.Store
	engine      *autosave.Engine
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
}

// NewDraft creates a new draft service. publisher may be nil.
func NewDraft(store *graph.Store, engine *autosave.Engine, p persistence.Persistence, publisher eventbus.EventPublisher) *Draft {
	return &Draft{
		store:       store,
		engine:      engine,
		persistence: p,
		publisher:   publisher,
		tracer:      noop.NewTracerProvider().Tracer("patchbay"),
	}
}

// WithTracer instruments save and load paths with the given tracer.
func (d *Draft) WithTracer(tracer trace.Tracer) *Draft {
	d.tracer = tracer

	return d
}

// HealthCheck checks the health of the persistence layer.
func (d *Draft) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListDrafts retrieves stored draft summaries, newest first.
func (d *Draft) ListDrafts(ctx context.Context) ([]*models.DraftSummary, error) {
	return d.engine.Drafts(ctx)
}

// FetchByID retrieves a stored draft without installing it.
func (d *Draft) FetchByID(ctx context.Context, id string) (*models.Draft, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrDraftIDRequired
	}

	return d.persistence.DraftByID(ctx, id)
}

// Save persists the current canvas state under id with a version bump.
func (d *Draft) Save(ctx context.Context, id, name string) error {
	if strings.TrimSpace(id) == "" {
		return ErrDraftIDRequired
	}

	if strings.TrimSpace(name) == "" {
		return ErrDraftNameRequired
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "draft.save",
		attribute.String(otelhelper.DraftIDKey, id),
		attribute.String(otelhelper.DraftNameKey, name),
		attribute.String(otelhelper.SaveKindKey, "explicit"),
	)
	defer span.End()

	err := d.engine.SaveDraft(ctx, id, name)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

// Load installs a stored draft into the canvas.
func (d *Draft) Load(ctx context.Context, id string) (*models.Draft, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrDraftIDRequired
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "draft.load",
		attribute.String(otelhelper.DraftIDKey, id),
	)
	defer span.End()

	draft, err := d.engine.LoadDraft(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return draft, err
}

// Delete removes a stored draft.
func (d *Draft) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrDraftIDRequired
	}

	return d.engine.DeleteDraft(ctx, id)
}

// StorageStats reports aggregate storage usage.
func (d *Draft) StorageStats(ctx context.Context) (*persistence.StorageStats, error) {
	return d.engine.StorageStats(ctx)
}

// AddNode places a new node of the given catalog type on the canvas.
func (d *Draft) AddNode(_ context.Context, nodeType string, x, y float64) (*models.Node, error) {
	if strings.TrimSpace(nodeType) == "" {
		return nil, ErrNodeTypeRequired
	}

	return d.store.AddNode(nodeType, x, y), nil
}

// MoveNode repositions a node.
func (d *Draft) MoveNode(_ context.Context, id string, x, y float64) error {
	if !d.store.MoveNode(id, x, y) {
		return ErrNodeNotFound
	}

	return nil
}

// UpdateNode applies a partial node update.
func (d *Draft) UpdateNode(_ context.Context, id string, patch graph.NodePatch) error {
	if !d.store.UpdateNode(id, patch) {
		return ErrNodeNotFound
	}

	return nil
}

// DeleteNode removes a node and cascades its connections.
func (d *Draft) DeleteNode(_ context.Context, id string) error {
	if !d.store.DeleteNode(id) {
		return ErrNodeNotFound
	}

	return nil
}

// Connect attempts to create a connection between two ports. Rejections
// come back as a failed Result, not an error.
func (d *Draft) Connect(_ context.Context, sourceNodeID, sourcePortID, targetNodeID, targetPortID string) graph.Result {
	return d.store.AddConnection(sourceNodeID, sourcePortID, targetNodeID, targetPortID)
}

// Disconnect removes a connection.
func (d *Draft) Disconnect(_ context.Context, id string) error {
	if !d.store.DeleteConnection(id) {
		return ErrConnectionNotFound
	}

	return nil
}

// ValidateGraph runs a full validation pass over the connection set and
// broadcasts the result. Returns how many connections were pruned.
func (d *Draft) ValidateGraph(ctx context.Context, draftID string) int {
	removed := d.store.ValidateConnections()

	if d.publisher != nil {
		event := events.GraphValidated{DraftID: draftID, Removed: removed, Timestamp: time.Now().UTC()}

		_ = d.publisher.Publish(ctx, string(event.GetType()), event)
	}

	return removed
}
