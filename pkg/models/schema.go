package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDraftDocument indicates a persisted blob does not match the
// draft document schema.
var ErrInvalidDraftDocument = errors.New("invalid draft document")

// draftSchema is the JSON Schema every persisted draft blob must satisfy.
// Adapters validate blobs against it on load so a corrupt or foreign
// document never reaches the graph store.
const draftSchema = `{
	"type": "object",
	"required": ["id", "name", "nodes", "connections", "canvasTransform", "metadata"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"x": {"type": "number"},
					"y": {"type": "number"}
				}
			}
		},
		"connections": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "sourceNodeId", "sourcePortId", "targetNodeId", "targetPortId"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"sourceNodeId": {"type": "string", "minLength": 1},
					"sourcePortId": {"type": "string", "minLength": 1},
					"targetNodeId": {"type": "string", "minLength": 1},
					"targetPortId": {"type": "string", "minLength": 1}
				}
			}
		},
		"canvasTransform": {
			"type": "object",
			"required": ["x", "y", "k"],
			"properties": {
				"x": {"type": "number"},
				"y": {"type": "number"},
				"k": {"type": "number"}
			}
		},
		"designerMode": {"type": "string", "enum": ["strict", "relaxed", ""]},
		"metadata": {
			"type": "object",
			"properties": {
				"version": {"type": "string"},
				"checksum": {"type": "integer"},
				"compressed": {"type": "boolean"}
			}
		}
	}
}`

var draftSchemaLoader = gojsonschema.NewStringLoader(draftSchema)

// ValidateDraftDocument checks a raw persisted blob against the draft
// document schema before it is unmarshaled.
func ValidateDraftDocument(data []byte) error {
	result, err := gojsonschema.Validate(draftSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDraftDocument, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDraftDocument, strings.Join(details, "; "))
}
