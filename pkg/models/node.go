// Package models defines the core domain models for the node-and-wire canvas.
package models

// NodeStatus defines the visual execution state of a node on the canvas.
type NodeStatus string

const (
	NodeStatusIdle      NodeStatus = "idle"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
	NodeStatusWarning   NodeStatus = "warning"
)

// Default node extents used for viewport fitting and hit testing.
// The rendering layer may draw nodes at a different size; these bounds
// only need to be stable, not pixel-exact.
const (
	NodeWidth  = 200.0
	NodeHeight = 96.0
)

// Node is a typed unit placed on the canvas with positioned, typed ports.
type Node struct {
	ID          string         `json:"id"                    validate:"required"`
	Type        string         `json:"type"                  validate:"required"`
	Label       string         `json:"label"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Config      map[string]any `json:"config,omitempty"`
	Inputs      []*Port        `json:"inputs"`
	Outputs     []*Port        `json:"outputs"`
	BottomPorts []*Port        `json:"bottomPorts,omitempty"`
	Status      NodeStatus     `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InputPort returns the input port with the given id, searching bottom
// ports as well since those accept either direction.
func (n *Node) InputPort(portID string) *Port {
	for _, p := range n.Inputs {
		if p.ID == portID {
			return p
		}
	}

	return n.BottomPort(portID)
}

// OutputPort returns the output port with the given id, searching bottom
// ports as well.
func (n *Node) OutputPort(portID string) *Port {
	for _, p := range n.Outputs {
		if p.ID == portID {
			return p
		}
	}

	return n.BottomPort(portID)
}

// BottomPort returns the omni-directional bottom port with the given id.
func (n *Node) BottomPort(portID string) *Port {
	for _, p := range n.BottomPorts {
		if p.ID == portID {
			return p
		}
	}

	return nil
}
