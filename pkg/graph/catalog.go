package graph

import "github.com/patchbay-dev/patchbay/pkg/models"

// PortSpec describes a port template inside a node definition.
type PortSpec struct {
	ID       string
	Label    string
	DataType models.DataType
}

// NodeDefinition is the palette entry a node is stamped from.
type NodeDefinition struct {
	Type        string
	Label       string
	Inputs      []PortSpec
	Outputs     []PortSpec
	BottomPorts []PortSpec
}

// Catalog maps node types to their definitions. Unknown types fall back to
// a generic single-in single-out shape so loaded drafts referencing
// retired types keep working.
type Catalog map[string]NodeDefinition

// DefaultCatalog returns the built-in palette.
func DefaultCatalog() Catalog {
	defs := []NodeDefinition{
		{
			Type:    "trigger",
			Label:   "Trigger",
			Outputs: []PortSpec{{ID: "out", Label: "Fired", DataType: models.DataTypeTrigger}},
		},
		{
			Type:    "http",
			Label:   "HTTP Request",
			Inputs:  []PortSpec{{ID: "in", Label: "Request", DataType: models.DataTypeObject}},
			Outputs: []PortSpec{{ID: "out", Label: "Response", DataType: models.DataTypeObject}},
		},
		{
			Type:    "transform",
			Label:   "Transform",
			Inputs:  []PortSpec{{ID: "in", Label: "Input", DataType: models.DataTypeAny}},
			Outputs: []PortSpec{{ID: "out", Label: "Output", DataType: models.DataTypeAny}},
		},
		{
			Type:    "log",
			Label:   "Log",
			Inputs:  []PortSpec{{ID: "in", Label: "Message", DataType: models.DataTypeAny}},
		},
		{
			Type:    "service",
			Label:   "Service",
			Inputs:  []PortSpec{{ID: "in", Label: "Request", DataType: models.DataTypeObject}},
			Outputs: []PortSpec{{ID: "out", Label: "Response", DataType: models.DataTypeObject}},
			BottomPorts: []PortSpec{
				{ID: "call", Label: "Call", DataType: models.DataTypeAny},
			},
		},
	}

	catalog := make(Catalog, len(defs))
	for _, def := range defs {
		catalog[def.Type] = def
	}

	return catalog
}

// generic is the fallback definition for unknown node types.
var generic = NodeDefinition{
	Label:   "Node",
	Inputs:  []PortSpec{{ID: "in", Label: "Input", DataType: models.DataTypeAny}},
	Outputs: []PortSpec{{ID: "out", Label: "Output", DataType: models.DataTypeAny}},
}

// Definition resolves a node type, falling back to the generic shape.
func (c Catalog) Definition(nodeType string) NodeDefinition {
	if def, ok := c[nodeType]; ok {
		return def
	}

	def := generic
	def.Type = nodeType

	return def
}

func buildPorts(specs []PortSpec, direction models.PortDirection) []*models.Port {
	ports := make([]*models.Port, 0, len(specs))
	for _, spec := range specs {
		dataType := spec.DataType
		if dataType == "" {
			dataType = models.DataTypeAny
		}

		ports = append(ports, &models.Port{
			ID:        spec.ID,
			Direction: direction,
			DataType:  dataType,
			Label:     spec.Label,
		})
	}

	return ports
}
