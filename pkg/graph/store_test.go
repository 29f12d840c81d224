package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

func newTestStore(t *testing.T, mode models.DesignerMode) *Store {
	t.Helper()

	return NewStore(mode, DefaultCatalog(), nil)
}

func TestAddNodeStampsPortsFromCatalog(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	node := store.AddNode("http", 100, 50)

	require.NotEmpty(t, node.ID)
	assert.Equal(t, "http", node.Type)
	assert.Equal(t, 100.0, node.X)
	assert.Equal(t, models.NodeStatusIdle, node.Status)
	require.Len(t, node.Inputs, 1)
	require.Len(t, node.Outputs, 1)
	assert.Equal(t, models.PortDirectionInput, node.Inputs[0].Direction)
	assert.Equal(t, models.PortDirectionOutput, node.Outputs[0].Direction)
	assert.True(t, store.Dirty())
}

func TestAddNodeUnknownTypeGetsGenericPorts(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	node := store.AddNode("does-not-exist", 0, 0)

	require.Len(t, node.Inputs, 1)
	require.Len(t, node.Outputs, 1)
	assert.Equal(t, models.DataTypeAny, node.Inputs[0].DataType)
}

func TestAddConnectionAndDuplicate(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("transform", 0, 0)
	b := store.AddNode("transform", 300, 0)

	result := store.AddConnection(a.ID, "out", b.ID, "in")
	require.True(t, result.OK)
	assert.Len(t, store.Connections(), 1)

	// The identical call is rejected without mutating the graph.
	result = store.AddConnection(a.ID, "out", b.ID, "in")
	require.False(t, result.OK)
	assert.Equal(t, ReasonAlreadyExists, result.Reason)
	assert.Len(t, store.Connections(), 1)
}

func TestAddConnectionRejectsSelfLoop(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("transform", 0, 0)

	result := store.AddConnection(a.ID, "out", a.ID, "in")
	require.False(t, result.OK)
	assert.Equal(t, ReasonSelfConnection, result.Reason)
	assert.Empty(t, store.Connections())
}

func TestAddConnectionRejectsTypeMismatch(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("custom-string", 0, 0)
	b := store.AddNode("custom-number", 300, 0)

	a.Outputs[0].DataType = models.DataTypeString
	b.Inputs[0].DataType = models.DataTypeNumber

	result := store.AddConnection(a.ID, "out", b.ID, "in")
	require.False(t, result.OK)
	assert.Contains(t, result.Reason, "string")
	assert.Contains(t, result.Reason, "number")
}

func TestAddConnectionRejectsUnknownEndpoints(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("transform", 0, 0)
	b := store.AddNode("transform", 300, 0)

	assert.Equal(t, ReasonSourceNodeNotFound, store.AddConnection("ghost", "out", b.ID, "in").Reason)
	assert.Equal(t, ReasonTargetNodeNotFound, store.AddConnection(a.ID, "out", "ghost", "in").Reason)
	assert.Equal(t, ReasonSourcePortNotFound, store.AddConnection(a.ID, "nope", b.ID, "in").Reason)
	assert.Equal(t, ReasonTargetPortNotFound, store.AddConnection(a.ID, "out", b.ID, "nope").Reason)
}

func TestStrictModeInputCapacity(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("transform", 0, 0)
	b := store.AddNode("transform", 300, 0)
	c := store.AddNode("transform", 0, 300)

	require.True(t, store.AddConnection(a.ID, "out", b.ID, "in").OK)

	result := store.AddConnection(c.ID, "out", b.ID, "in")
	require.False(t, result.OK)
	assert.Equal(t, ReasonInputOccupied, result.Reason)
}

func TestRelaxedModeAllowsFanIn(t *testing.T) {
	store := newTestStore(t, models.DesignerModeRelaxed)

	a := store.AddNode("transform", 0, 0)
	b := store.AddNode("transform", 300, 0)
	c := store.AddNode("transform", 0, 300)

	require.True(t, store.AddConnection(a.ID, "out", b.ID, "in").OK)
	require.True(t, store.AddConnection(c.ID, "out", b.ID, "in").OK)
	assert.Len(t, store.Connections(), 2)
}

func TestOmniPortsAllowDuplicates(t *testing.T) {
	store := newTestStore(t, models.DesignerModeRelaxed)

	a := store.AddNode("service", 0, 0)
	b := store.AddNode("service", 300, 0)

	// Each bottom-port call is a distinct logical call, so the identical
	// tuple is allowed twice.
	require.True(t, store.AddConnection(a.ID, "call", b.ID, "call").OK)
	require.True(t, store.AddConnection(a.ID, "call", b.ID, "call").OK)
	assert.Len(t, store.Connections(), 2)
}

func TestDeleteNodeCascades(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("transform", 0, 0)
	b := store.AddNode("transform", 300, 0)
	c := store.AddNode("transform", 600, 0)

	require.True(t, store.AddConnection(a.ID, "out", b.ID, "in").OK)
	require.True(t, store.AddConnection(b.ID, "out", c.ID, "in").OK)
	require.True(t, store.SelectNode(b.ID))

	require.True(t, store.DeleteNode(b.ID))

	for _, conn := range store.Connections() {
		assert.NotEqual(t, b.ID, conn.SourceNodeID)
		assert.NotEqual(t, b.ID, conn.TargetNodeID)
	}

	assert.Empty(t, store.Connections())
	assert.Empty(t, store.Selection())
	assert.Empty(t, store.ConnectionsForNode(b.ID))
}

func TestValidateConnectionsPrunesDangling(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	a := store.AddNode("transform", 0, 0)
	b := store.AddNode("transform", 300, 0)

	removed := store.SetConnections([]*models.Connection{
		{ID: "ok", SourceNodeID: a.ID, SourcePortID: "out", TargetNodeID: b.ID, TargetPortID: "in"},
		{ID: "bad-node", SourceNodeID: "ghost", SourcePortID: "out", TargetNodeID: b.ID, TargetPortID: "in"},
		{ID: "bad-port", SourceNodeID: a.ID, SourcePortID: "ghost", TargetNodeID: b.ID, TargetPortID: "in"},
	})

	assert.Equal(t, 2, removed)
	require.Len(t, store.Connections(), 1)
	assert.True(t, store.Connections()[0].Validated)

	// Idempotence: a second pass with no intervening mutation removes
	// nothing.
	assert.Equal(t, 0, store.ValidateConnections())
}

func TestUpdateAndMoveNode(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	node := store.AddNode("log", 0, 0)

	label := "Audit Log"
	status := models.NodeStatusRunning
	require.True(t, store.UpdateNode(node.ID, NodePatch{
		Label:  &label,
		Status: &status,
		Config: map[string]any{"level": "info"},
	}))

	got, ok := store.NodeByID(node.ID)
	require.True(t, ok)
	assert.Equal(t, "Audit Log", got.Label)
	assert.Equal(t, models.NodeStatusRunning, got.Status)
	assert.Equal(t, "info", got.Config["level"])

	require.True(t, store.MoveNode(node.ID, 42, 24))
	assert.Equal(t, 42.0, got.X)
	assert.Equal(t, 24.0, got.Y)

	assert.False(t, store.UpdateNode("ghost", NodePatch{}))
	assert.False(t, store.MoveNode("ghost", 0, 0))
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)

	var changes []Change

	unsubscribe := store.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	node := store.AddNode("log", 0, 0)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeNodeAdded, changes[0].Kind)
	assert.Equal(t, node.ID, changes[0].NodeID)

	unsubscribe()
	store.AddNode("log", 10, 10)
	assert.Len(t, changes, 1)
}

func TestLoadReplacesStateAndStaysClean(t *testing.T) {
	store := newTestStore(t, models.DesignerModeStrict)
	store.AddNode("log", 0, 0)

	draft := &models.Draft{
		ID:   "d1",
		Name: "Loaded",
		Nodes: []*models.Node{
			{
				ID:      "n1",
				Type:    "transform",
				Outputs: []*models.Port{{ID: "out", Direction: models.PortDirectionOutput, DataType: models.DataTypeAny}},
			},
			{
				ID:     "n2",
				Type:   "transform",
				Inputs: []*models.Port{{ID: "in", Direction: models.PortDirectionInput, DataType: models.DataTypeAny}},
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNodeID: "n1", SourcePortID: "out", TargetNodeID: "n2", TargetPortID: "in"},
			{ID: "c2", SourceNodeID: "gone", SourcePortID: "out", TargetNodeID: "n2", TargetPortID: "in"},
		},
		DesignerMode: models.DesignerModeRelaxed,
	}

	removed := store.Load(draft)

	assert.Equal(t, 1, removed)
	assert.Len(t, store.Nodes(), 2)
	assert.Len(t, store.Connections(), 1)
	assert.Equal(t, models.DesignerModeRelaxed, store.Mode())
	assert.False(t, store.Dirty())
}
