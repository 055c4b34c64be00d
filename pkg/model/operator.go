// Package model defines the core domain models for the workflow canvas graph.
package model

import (
	"strings"

	"github.com/google/uuid"
)

// Port represents a connection point on an operator.
type Port struct {
	PortID      string `json:"portID"                validate:"required"`
	DisplayName string `json:"displayName,omitempty"`

	// Optional execution metadata forwarded to the engine untouched.
	PartitionRequirement string   `json:"partitionRequirement,omitempty"`
	Dependencies         []string `json:"dependencies,omitempty"`
}

// Operator represents a single processing step on the canvas.
//
// The OperatorID is immutable once the operator is created. Mutations issue a
// new value keyed by the same ID; Operator is treated as a value type
// throughout the graph layer.
type Operator struct {
	OperatorID        string         `json:"operatorID"      validate:"required"`
	OperatorType      string         `json:"operatorType"    validate:"required"`
	OperatorVersion   string         `json:"operatorVersion"`
	Properties        map[string]any `json:"operatorProperties"`
	InputPorts        []Port         `json:"inputPorts"`
	OutputPorts       []Port         `json:"outputPorts"`
	IsDisabled        bool           `json:"isDisabled"`
	ViewResult        bool           `json:"viewResult"`
	MarkedForReuse    bool           `json:"markedForReuse"`
	CustomDisplayName string         `json:"customDisplayName,omitempty"`
}

// NewOperatorID generates a fresh operator ID for the given operator type.
func NewOperatorID(operatorType string) string {
	return operatorType + "-operator-" + uuid.New().String()
}

// IsSink reports whether the operator is a sink by type-name convention.
// Sink operators terminate the pipeline and cannot be marked for reuse.
func (o Operator) IsSink() bool {
	return strings.Contains(strings.ToLower(o.OperatorType), "sink")
}

// InputPort returns the input port with the given ID.
func (o Operator) InputPort(portID string) (Port, bool) {
	for _, p := range o.InputPorts {
		if p.PortID == portID {
			return p, true
		}
	}

	return Port{}, false
}

// OutputPort returns the output port with the given ID.
func (o Operator) OutputPort(portID string) (Port, bool) {
	for _, p := range o.OutputPorts {
		if p.PortID == portID {
			return p, true
		}
	}

	return Port{}, false
}

// InputPortOrdinal returns the zero-based position of an input port.
// The engine addresses ports by ordinal, not by ID.
func (o Operator) InputPortOrdinal(portID string) (int, bool) {
	for i, p := range o.InputPorts {
		if p.PortID == portID {
			return i, true
		}
	}

	return 0, false
}

// OutputPortOrdinal returns the zero-based position of an output port.
func (o Operator) OutputPortOrdinal(portID string) (int, bool) {
	for i, p := range o.OutputPorts {
		if p.PortID == portID {
			return i, true
		}
	}

	return 0, false
}

// DisplayName returns the custom display name when set, the operator type
// otherwise.
func (o Operator) DisplayName() string {
	if o.CustomDisplayName != "" {
		return o.CustomDisplayName
	}

	return o.OperatorType
}

// Clone returns a deep copy of the operator. Properties and ports are copied
// so the clone can be mutated without aliasing the original.
func (o Operator) Clone() Operator {
	clone := o
	clone.Properties = cloneProperties(o.Properties)
	clone.InputPorts = clonePorts(o.InputPorts)
	clone.OutputPorts = clonePorts(o.OutputPorts)

	return clone
}

func clonePorts(ports []Port) []Port {
	if ports == nil {
		return nil
	}

	out := make([]Port, len(ports))
	copy(out, ports)

	for i := range out {
		if out[i].Dependencies != nil {
			deps := make([]string, len(out[i].Dependencies))
			copy(deps, out[i].Dependencies)
			out[i].Dependencies = deps
		}
	}

	return out
}

func cloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}

	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneProperties(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return v
	}
}
