// Package wiring implements the drag-to-connect protocol: a state machine
// that drafts a connection from a start port, tracks the pointer preview,
// and completes or cancels against the graph store.
package wiring

import (
	"log/slog"
	"sync"

	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/models"
)

// State of the drafting machine. Completion and cancellation both return
// to Idle; there is no terminal state.
type State int

const (
	Idle State = iota
	Drafting
)

// Start describes the port a draft began from.
type Start struct {
	NodeID    string
	PortID    string
	Direction models.PortDirection
}

// Point is the latest pointer position used for guide-line rendering.
type Point struct {
	X float64
	Y float64
}

const reasonNotDrafting = "no connection draft in progress"

// Drafter governs one in-flight connection draft. At most one draft is
// ever active; all failure paths leave the graph unchanged.
type Drafter struct {
	mu sync.Mutex

	store   *graph.Store
	state   State
	start   Start
	preview Point
	hasPrev bool

	logger *slog.Logger
}

// NewDrafter creates an idle drafter bound to a graph store.
func NewDrafter(store *graph.Store, logger *slog.Logger) *Drafter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Drafter{
		store:  store,
		logger: logger.With("module", "wiring"),
	}
}

// Start begins a draft from the given port. Calling it while already
// drafting is a no-op: overlapping input gestures may deliver duplicate
// start events. Reports whether a new draft began.
func (d *Drafter) Start(nodeID, portID string, direction models.PortDirection) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Drafting {
		return false
	}

	d.state = Drafting
	d.start = Start{NodeID: nodeID, PortID: portID, Direction: direction}
	d.hasPrev = false

	return true
}

// UpdatePreview stores the latest pointer position. Ignored unless a
// draft is in flight; rate limiting is the caller's concern.
func (d *Drafter) UpdatePreview(x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Drafting {
		return
	}

	d.preview = Point{X: x, Y: y}
	d.hasPrev = true
}

// AttemptComplete tries to finish the draft on the given target port.
// Whatever the outcome, the machine returns to Idle. The source/target
// orientation follows the start direction: dragging out of an input port
// completes with the target acting as source.
func (d *Drafter) AttemptComplete(targetNodeID, targetPortID string) graph.Result {
	d.mu.Lock()

	if d.state != Drafting {
		d.mu.Unlock()

		return graph.Result{OK: false, Reason: reasonNotDrafting}
	}

	start := d.start
	d.state = Idle
	d.hasPrev = false
	d.mu.Unlock()

	if targetNodeID == start.NodeID {
		return graph.Result{OK: false, Reason: graph.ReasonSelfConnection}
	}

	var result graph.Result
	if start.Direction == models.PortDirectionInput {
		result = d.store.AddConnection(targetNodeID, targetPortID, start.NodeID, start.PortID)
	} else {
		result = d.store.AddConnection(start.NodeID, start.PortID, targetNodeID, targetPortID)
	}

	if !result.OK {
		d.logger.Debug("connection draft rejected", "reason", result.Reason)
	}

	return result
}

// Cancel abandons the draft with no side effects. Dropping on empty
// canvas cancels; it never spawns a node.
func (d *Drafter) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = Idle
	d.hasPrev = false
}

// IsDrafting reports whether a draft is in flight.
func (d *Drafter) IsDrafting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state == Drafting
}

// StartDescriptor returns the start port of the in-flight draft.
func (d *Drafter) StartDescriptor() (Start, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Drafting {
		return Start{}, false
	}

	return d.start, true
}

// Preview returns the latest pointer position, if one was recorded since
// the draft began.
func (d *Drafter) Preview() (Point, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Drafting || !d.hasPrev {
		return Point{}, false
	}

	return d.preview, true
}
