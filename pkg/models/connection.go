package models

// Connection is a directed edge from an output (or bottom) port to an
// input (or bottom) port.
type Connection struct {
	ID           string `json:"id"           validate:"required"`
	SourceNodeID string `json:"sourceNodeId" validate:"required"`
	SourcePortID string `json:"sourcePortId" validate:"required"`
	TargetNodeID string `json:"targetNodeId" validate:"required"`
	TargetPortID string `json:"targetPortId" validate:"required"`
	Validated    bool   `json:"validated"`
}

// SameEndpoints reports whether two connections join the identical
// (source node, source port, target node, target port) tuple.
func (c *Connection) SameEndpoints(other *Connection) bool {
	return c.SourceNodeID == other.SourceNodeID &&
		c.SourcePortID == other.SourcePortID &&
		c.TargetNodeID == other.TargetNodeID &&
		c.TargetPortID == other.TargetPortID
}
