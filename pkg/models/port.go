// Package models defines port models and the closed data-type union used
// for connection compatibility checks.
package models

// PortDirection represents the direction of data flow for a port.
type PortDirection string

const (
	PortDirectionInput  PortDirection = "input"
	PortDirectionOutput PortDirection = "output"
	// PortDirectionOmni marks bottom ports that may act as either end of a
	// connection in relaxed mode.
	PortDirectionOmni PortDirection = "omni"
)

// DataType is a closed union of known port value kinds plus an explicit
// "any" variant. Unknown tags are rejected at validation time rather than
// compared ad hoc.
type DataType string

const (
	DataTypeAny     DataType = "any"
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
	DataTypeTrigger DataType = "trigger"
)

// knownDataTypes is the allowlist behind KnownDataType.
var knownDataTypes = map[DataType]bool{
	DataTypeAny:     true,
	DataTypeString:  true,
	DataTypeNumber:  true,
	DataTypeBoolean: true,
	DataTypeObject:  true,
	DataTypeArray:   true,
	DataTypeTrigger: true,
}

// KnownDataType reports whether the tag is part of the closed union.
func KnownDataType(dt DataType) bool {
	return knownDataTypes[dt]
}

// compatibleWith is an explicit lookup table of permitted pairings per
// source type. "any" on either side is handled in CompatibleDataTypes.
var compatibleWith = map[DataType][]DataType{
	DataTypeString:  {DataTypeString},
	DataTypeNumber:  {DataTypeNumber},
	DataTypeBoolean: {DataTypeBoolean},
	DataTypeObject:  {DataTypeObject},
	DataTypeArray:   {DataTypeArray},
	DataTypeTrigger: {DataTypeTrigger},
}

// CompatibleDataTypes reports whether a value of type src may feed a port
// of type dst.
func CompatibleDataTypes(src, dst DataType) bool {
	if src == DataTypeAny || dst == DataTypeAny {
		return true
	}

	for _, ok := range compatibleWith[src] {
		if ok == dst {
			return true
		}
	}

	return false
}

// Port represents a typed connection point on a node.
type Port struct {
	ID        string        `json:"id"        validate:"required"`
	Direction PortDirection `json:"direction" validate:"required"`
	DataType  DataType      `json:"dataType"`
	Label     string        `json:"label"`
}

// IsOmni reports whether the port connects in either direction.
func (p *Port) IsOmni() bool {
	return p.Direction == PortDirectionOmni
}
