package models

import (
	"strings"
	"time"
)

// DesignerMode alters connection cardinality rules: strict mode allows a
// single incoming connection per input port, relaxed mode allows many and
// enables omni-directional bottom ports.
type DesignerMode string

const (
	DesignerModeStrict  DesignerMode = "strict"
	DesignerModeRelaxed DesignerMode = "relaxed"
)

// AutoSavePrefix distinguishes silently auto-saved drafts from explicitly
// named drafts by id convention.
const AutoSavePrefix = "autosave-"

// IsAutoSaveID reports whether the draft id belongs to an auto-saved draft.
func IsAutoSaveID(id string) bool {
	return strings.HasPrefix(id, AutoSavePrefix)
}

// CanvasTransform is the pan/zoom affine mapping between screen and world
// coordinates: screen = world*k + (x, y).
type CanvasTransform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// DraftMetadata carries bookkeeping attached to a persisted draft.
type DraftMetadata struct {
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Version    string    `json:"version"`
	Checksum   uint32    `json:"checksum"`
	Compressed bool      `json:"compressed"`
}

// Draft is the unit of durable storage: a named, versioned snapshot of the
// graph and viewport state. The JSON shape is the persisted blob contract,
// one document per draft key.
type Draft struct {
	ID               string          `json:"id"   validate:"required"`
	Name             string          `json:"name" validate:"required,min=1"`
	Nodes            []*Node         `json:"nodes"`
	Connections      []*Connection   `json:"connections"`
	CanvasTransform  CanvasTransform `json:"canvasTransform"`
	DesignerMode     DesignerMode    `json:"designerMode"`
	ArchitectureMode bool            `json:"architectureMode"`
	Metadata         DraftMetadata   `json:"metadata"`
}

// DraftSummary is the listing projection of a draft, without node and
// connection payloads.
type DraftSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	AutoSaved bool      `json:"autoSaved"`
	SizeBytes int64     `json:"sizeBytes"`
}

// Summary builds the listing projection for the draft.
func (d *Draft) Summary(sizeBytes int64) *DraftSummary {
	return &DraftSummary{
		ID:        d.ID,
		Name:      d.Name,
		Version:   d.Metadata.Version,
		UpdatedAt: d.Metadata.UpdatedAt,
		AutoSaved: IsAutoSaveID(d.ID),
		SizeBytes: sizeBytes,
	}
}
