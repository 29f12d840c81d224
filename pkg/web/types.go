// Package web provides HTTP request and response types for the canvas API.
package web

import "github.com/patchbay-dev/patchbay/pkg/graph"

// SaveDraftRequest represents the request body for an explicit save.
type SaveDraftRequest struct {
	ID   string `json:"id"   validate:"required,min=1"`
	Name string `json:"name" validate:"required,min=1"`
}

// AddNodeRequest represents the request body for placing a node.
type AddNodeRequest struct {
	Type string  `json:"type" validate:"required,min=1"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// MoveNodeRequest represents the request body for repositioning a node.
type MoveNodeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UpdateNodeRequest represents a partial node update. Absent fields keep
// their current values.
type UpdateNodeRequest struct {
	Label  *string        `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// ConnectRequest represents the request body for a connection attempt.
type ConnectRequest struct {
	SourceNodeID string `json:"sourceNodeId" validate:"required"`
	SourcePortID string `json:"sourcePortId" validate:"required"`
	TargetNodeID string `json:"targetNodeId" validate:"required"`
	TargetPortID string `json:"targetPortId" validate:"required"`
}

// ConnectResponse mirrors the store's result: success, or a reason the
// attempt was rejected.
type ConnectResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// ValidateResponse reports the outcome of a full validation pass.
type ValidateResponse struct {
	Removed int `json:"removed"`
}

func transformConnectResponse(result graph.Result) ConnectResponse {
	return ConnectResponse{Success: result.OK, Reason: result.Reason}
}
