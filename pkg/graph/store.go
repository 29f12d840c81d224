// Package graph implements the canvas graph store: node and connection
// ownership, mutation operations, and connection validation.
package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// Connection rejection reasons surfaced to callers. Expected failures are
// results, not errors.
const (
	ReasonSourceNodeNotFound = "source node not found"
	ReasonSourcePortNotFound = "source port not found"
	ReasonTargetNodeNotFound = "target node not found"
	ReasonTargetPortNotFound = "target port not found"
	ReasonSelfConnection     = "cannot connect a node to itself"
	ReasonDirectionMismatch  = "an output port must connect to an input port"
	ReasonAlreadyExists      = "already exists"
	ReasonInputOccupied      = "input port already has an incoming connection"
)

// Result reports the outcome of a connection attempt.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func failure(reason string) Result {
	return Result{OK: false, Reason: reason}
}

// ChangeKind tags a change notification.
type ChangeKind string

const (
	ChangeNodeAdded            ChangeKind = "node_added"
	ChangeNodeUpdated          ChangeKind = "node_updated"
	ChangeNodeMoved            ChangeKind = "node_moved"
	ChangeNodeDeleted          ChangeKind = "node_deleted"
	ChangeConnectionAdded      ChangeKind = "connection_added"
	ChangeConnectionDeleted    ChangeKind = "connection_deleted"
	ChangeConnectionsReplaced  ChangeKind = "connections_replaced"
	ChangeConnectionsValidated ChangeKind = "connections_validated"
	ChangeModeChanged          ChangeKind = "mode_changed"
	ChangeLoaded               ChangeKind = "loaded"
)

// Change is delivered to subscribers after every mutation. Any rendering
// layer subscribes and redraws; the store has no UI-runtime dependency.
type Change struct {
	Kind         ChangeKind
	NodeID       string
	ConnectionID string
	Removed      int
}

// Store owns the nodes, ports, and connections of one canvas document.
// All mutations apply synchronously in call order and mark the store
// dirty, which the persistence engine observes.
type Store struct {
	mu sync.RWMutex

	mode        models.DesignerMode
	catalog     Catalog
	nodes       []*models.Node
	nodeByID    map[string]*models.Node
	connections []*models.Connection
	selection   map[string]struct{}
	dirty       bool

	subs    map[int]func(Change)
	nextSub int

	logger *slog.Logger
}

// NewStore creates an empty store in the given designer mode.
func NewStore(mode models.DesignerMode, catalog Catalog, logger *slog.Logger) *Store {
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		mode:      mode,
		catalog:   catalog,
		nodeByID:  make(map[string]*models.Node),
		selection: make(map[string]struct{}),
		subs:      make(map[int]func(Change)),
		logger:    logger.With("module", "graph"),
	}
}

// Subscribe registers a change observer and returns its unsubscribe
// function. Observers run synchronously after the mutation commits.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify must be called without the lock held.
func (s *Store) notify(change Change) {
	s.mu.RLock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(change)
	}
}

// Mode returns the current designer mode.
func (s *Store) Mode() models.DesignerMode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mode
}

// SetMode switches between strict and relaxed connection semantics.
func (s *Store) SetMode(mode models.DesignerMode) {
	s.mu.Lock()
	s.mode = mode
	s.dirty = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeModeChanged})
}

// AddNode places a new node of the given type at a canvas position. Ports
// are stamped from the catalog definition.
func (s *Store) AddNode(nodeType string, x, y float64) *models.Node {
	def := s.catalog.Definition(nodeType)

	bottomDirection := models.PortDirectionOmni

	node := &models.Node{
		ID:          uuid.New().String(),
		Type:        nodeType,
		Label:       def.Label,
		X:           x,
		Y:           y,
		Config:      map[string]any{},
		Inputs:      buildPorts(def.Inputs, models.PortDirectionInput),
		Outputs:     buildPorts(def.Outputs, models.PortDirectionOutput),
		BottomPorts: buildPorts(def.BottomPorts, bottomDirection),
		Status:      models.NodeStatusIdle,
	}

	s.mu.Lock()
	s.nodes = append(s.nodes, node)
	s.nodeByID[node.ID] = node
	s.dirty = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNodeAdded, NodeID: node.ID})

	return node
}

// NodePatch carries the partial update applied by UpdateNode. Nil fields
// are left untouched.
type NodePatch struct {
	Label    *string
	Status   *models.NodeStatus
	Config   map[string]any
	Metadata map[string]any
	X        *float64
	Y        *float64
}

// UpdateNode applies a partial update to a node in place.
func (s *Store) UpdateNode(id string, patch NodePatch) bool {
	s.mu.Lock()

	node, ok := s.nodeByID[id]
	if !ok {
		s.mu.Unlock()

		return false
	}

	if patch.Label != nil {
		node.Label = *patch.Label
	}

	if patch.Status != nil {
		node.Status = *patch.Status
	}

	if patch.Config != nil {
		node.Config = patch.Config
	}

	if patch.Metadata != nil {
		node.Metadata = patch.Metadata
	}

	if patch.X != nil {
		node.X = *patch.X
	}

	if patch.Y != nil {
		node.Y = *patch.Y
	}

	s.dirty = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNodeUpdated, NodeID: id})

	return true
}

// MoveNode repositions a node on the canvas.
func (s *Store) MoveNode(id string, x, y float64) bool {
	s.mu.Lock()

	node, ok := s.nodeByID[id]
	if !ok {
		s.mu.Unlock()

		return false
	}

	node.X = x
	node.Y = y
	s.dirty = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNodeMoved, NodeID: id})

	return true
}

// DeleteNode removes a node and cascades: every connection referencing it
// as source or target is removed in the same critical section, and any
// selection state referencing it is cleared.
func (s *Store) DeleteNode(id string) bool {
	s.mu.Lock()

	if _, ok := s.nodeByID[id]; !ok {
		s.mu.Unlock()

		return false
	}

	delete(s.nodeByID, id)
	delete(s.selection, id)

	for i, node := range s.nodes {
		if node.ID == id {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)

			break
		}
	}

	kept := s.connections[:0]
	removed := 0

	for _, conn := range s.connections {
		if conn.SourceNodeID == id || conn.TargetNodeID == id {
			removed++

			continue
		}

		kept = append(kept, conn)
	}

	s.connections = kept
	s.dirty = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNodeDeleted, NodeID: id, Removed: removed})

	return true
}

// AddConnection validates and creates a connection between two ports.
// Expected failures return a Result with a reason; the graph is left
// unchanged on every failure path.
func (s *Store) AddConnection(sourceNodeID, sourcePortID, targetNodeID, targetPortID string) Result {
	s.mu.Lock()

	result, conn := s.addConnectionLocked(sourceNodeID, sourcePortID, targetNodeID, targetPortID)
	s.mu.Unlock()

	if result.OK {
		s.notify(Change{Kind: ChangeConnectionAdded, ConnectionID: conn.ID})
	}

	return result
}

func (s *Store) addConnectionLocked(sourceNodeID, sourcePortID, targetNodeID, targetPortID string) (Result, *models.Connection) {
	if sourceNodeID == targetNodeID {
		return failure(ReasonSelfConnection), nil
	}

	sourceNode, ok := s.nodeByID[sourceNodeID]
	if !ok {
		return failure(ReasonSourceNodeNotFound), nil
	}

	targetNode, ok := s.nodeByID[targetNodeID]
	if !ok {
		return failure(ReasonTargetNodeNotFound), nil
	}

	sourcePort := sourceNode.OutputPort(sourcePortID)
	if sourcePort == nil {
		return failure(ReasonSourcePortNotFound), nil
	}

	targetPort := targetNode.InputPort(targetPortID)
	if targetPort == nil {
		return failure(ReasonTargetPortNotFound), nil
	}

	omni := sourcePort.IsOmni() || targetPort.IsOmni()

	if !omni {
		if sourcePort.Direction != models.PortDirectionOutput || targetPort.Direction != models.PortDirectionInput {
			return failure(ReasonDirectionMismatch), nil
		}
	}

	if !models.CompatibleDataTypes(sourcePort.DataType, targetPort.DataType) {
		reason := fmt.Sprintf("incompatible port types: %s cannot feed %s", sourcePort.DataType, targetPort.DataType)

		return failure(reason), nil
	}

	candidate := &models.Connection{
		SourceNodeID: sourceNodeID,
		SourcePortID: sourcePortID,
		TargetNodeID: targetNodeID,
		TargetPortID: targetPortID,
	}

	// Omni-port connections may legitimately duplicate: each represents a
	// distinct logical call.
	if !omni {
		for _, existing := range s.connections {
			if existing.SameEndpoints(candidate) {
				return failure(ReasonAlreadyExists), nil
			}
		}
	}

	if s.mode == models.DesignerModeStrict && !targetPort.IsOmni() {
		for _, existing := range s.connections {
			if existing.TargetNodeID == targetNodeID && existing.TargetPortID == targetPortID {
				return failure(ReasonInputOccupied), nil
			}
		}
	}

	candidate.ID = uuid.New().String()
	candidate.Validated = true

	s.connections = append(s.connections, candidate)
	s.dirty = true

	return Result{OK: true}, candidate
}

// DeleteConnection removes a connection by id.
func (s *Store) DeleteConnection(id string) bool {
	s.mu.Lock()

	found := false

	for i, conn := range s.connections {
		if conn.ID == id {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
			found = true

			break
		}
	}

	if found {
		s.dirty = true
	}

	s.mu.Unlock()

	if found {
		s.notify(Change{Kind: ChangeConnectionDeleted, ConnectionID: id})
	}

	return found
}

// SetConnections replaces the connection list wholesale and re-validates
// it, returning the number of entries pruned as invalid.
func (s *Store) SetConnections(list []*models.Connection) int {
	s.mu.Lock()
	s.connections = append([]*models.Connection(nil), list...)
	removed := s.validateLocked()
	s.dirty = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConnectionsReplaced, Removed: removed})

	return removed
}

// ValidateConnections prunes connections whose node or port references
// dangle and returns the removed count. Running it twice with no
// intervening mutation removes nothing on the second pass.
func (s *Store) ValidateConnections() int {
	s.mu.Lock()
	removed := s.validateLocked()

	if removed > 0 {
		s.dirty = true
	}

	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("pruned invalid connections", "removed", removed)
	}

	s.notify(Change{Kind: ChangeConnectionsValidated, Removed: removed})

	return removed
}

// portIndex is built once per validation pass so each connection is
// checked in O(1) instead of rescanning the node list.
type portIndex struct {
	inputs  map[string]bool
	outputs map[string]bool
	bottom  map[string]bool
}

func (s *Store) validateLocked() int {
	index := make(map[string]portIndex, len(s.nodes))

	for _, node := range s.nodes {
		entry := portIndex{
			inputs:  make(map[string]bool, len(node.Inputs)),
			outputs: make(map[string]bool, len(node.Outputs)),
			bottom:  make(map[string]bool, len(node.BottomPorts)),
		}

		for _, p := range node.Inputs {
			entry.inputs[p.ID] = true
		}

		for _, p := range node.Outputs {
			entry.outputs[p.ID] = true
		}

		for _, p := range node.BottomPorts {
			entry.bottom[p.ID] = true
		}

		index[node.ID] = entry
	}

	kept := s.connections[:0]
	removed := 0

	for _, conn := range s.connections {
		source, sourceOK := index[conn.SourceNodeID]
		target, targetOK := index[conn.TargetNodeID]

		valid := sourceOK && targetOK &&
			(source.outputs[conn.SourcePortID] || source.bottom[conn.SourcePortID]) &&
			(target.inputs[conn.TargetPortID] || target.bottom[conn.TargetPortID])

		if !valid {
			removed++

			continue
		}

		conn.Validated = true
		kept = append(kept, conn)
	}

	s.connections = kept

	return removed
}

// NodeByID returns the node with the given id.
func (s *Store) NodeByID(id string) (*models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodeByID[id]

	return node, ok
}

// Nodes returns a snapshot of the node list. The result is never nil, so
// an empty canvas serializes as an empty array rather than null.
func (s *Store) Nodes() []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*models.Node, len(s.nodes))
	copy(nodes, s.nodes)

	return nodes
}

// Connections returns a snapshot of the connection list. Never nil, for
// the same serialization reason as Nodes.
func (s *Store) Connections() []*models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connections := make([]*models.Connection, len(s.connections))
	copy(connections, s.connections)

	return connections
}

// ConnectionsForNode returns connections touching the node as source or
// target.
func (s *Store) ConnectionsForNode(nodeID string) []*models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Connection

	for _, conn := range s.connections {
		if conn.SourceNodeID == nodeID || conn.TargetNodeID == nodeID {
			result = append(result, conn)
		}
	}

	return result
}

// SelectNode adds a node to the selection set.
func (s *Store) SelectNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodeByID[id]; !ok {
		return false
	}

	s.selection[id] = struct{}{}

	return true
}

// ClearSelection empties the selection set.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = make(map[string]struct{})
}

// Selection returns the selected node ids in stable order.
func (s *Store) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Dirty reports whether unsaved mutations exist.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dirty
}

// ClearDirty resets the dirty flag after a successful save.
func (s *Store) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = false
}

// Load replaces the graph contents from a persisted draft. Dangling
// connections in the blob are pruned. The store is left clean: the loaded
// state matches what is persisted.
func (s *Store) Load(draft *models.Draft) int {
	s.mu.Lock()

	s.nodes = append([]*models.Node(nil), draft.Nodes...)
	s.nodeByID = make(map[string]*models.Node, len(s.nodes))

	for _, node := range s.nodes {
		s.nodeByID[node.ID] = node
	}

	s.connections = append([]*models.Connection(nil), draft.Connections...)

	if draft.DesignerMode != "" {
		s.mode = draft.DesignerMode
	}

	removed := s.validateLocked()
	s.selection = make(map[string]struct{})
	s.dirty = false
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded, Removed: removed})

	return removed
}
