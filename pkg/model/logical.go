package model

import (
	"encoding/json"
	"fmt"
)

// LogicalOperator is the submission shape of an operator: ID, type, and the
// operator properties flattened into the top-level JSON object, which is how
// the engine expects them.
type LogicalOperator struct {
	OperatorID   string
	OperatorType string
	Properties   map[string]any
}

// MarshalJSON flattens Properties alongside operatorID and operatorType.
func (o LogicalOperator) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(o.Properties)+2)
	for k, v := range o.Properties {
		flat[k] = v
	}

	flat["operatorID"] = o.OperatorID
	flat["operatorType"] = o.OperatorType

	return json.Marshal(flat)
}

// UnmarshalJSON splits the flattened object back into ID, type and properties.
func (o *LogicalOperator) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	id, ok := flat["operatorID"].(string)
	if !ok {
		return fmt.Errorf("logical operator without operatorID")
	}

	opType, ok := flat["operatorType"].(string)
	if !ok {
		return fmt.Errorf("logical operator without operatorType")
	}

	delete(flat, "operatorID")
	delete(flat, "operatorType")

	o.OperatorID = id
	o.OperatorType = opType
	o.Properties = flat

	return nil
}

// LogicalPort addresses an operator port by ordinal position, the engine-side
// port addressing scheme.
type LogicalPort struct {
	OperatorID  string `json:"operatorID"`
	PortOrdinal int    `json:"portOrdinal"`
}

// LogicalLink is the submission shape of a link.
type LogicalLink struct {
	Origin      LogicalPort `json:"origin"`
	Destination LogicalPort `json:"destination"`
}

// BreakpointInfo pairs a breakpoint with the link it is attached to for
// submission and runtime registration.
type BreakpointInfo struct {
	LinkID     string     `json:"linkID"`
	Breakpoint Breakpoint `json:"breakpoint"`
}

// ToLogicalOperator converts an operator to its submission shape.
func ToLogicalOperator(op Operator) LogicalOperator {
	return LogicalOperator{
		OperatorID:   op.OperatorID,
		OperatorType: op.OperatorType,
		Properties:   cloneProperties(op.Properties),
	}
}

// ToLogicalLink converts a link to its ordinal-addressed submission shape.
// The source and target operators are needed to resolve port ordinals.
func ToLogicalLink(link Link, source, target Operator) (LogicalLink, error) {
	origin, ok := source.OutputPortOrdinal(link.Source.PortID)
	if !ok {
		return LogicalLink{}, fmt.Errorf("link %s: unknown output port %s on operator %s",
			link.LinkID, link.Source.PortID, link.Source.OperatorID)
	}

	destination, ok := target.InputPortOrdinal(link.Target.PortID)
	if !ok {
		return LogicalLink{}, fmt.Errorf("link %s: unknown input port %s on operator %s",
			link.LinkID, link.Target.PortID, link.Target.OperatorID)
	}

	return LogicalLink{
		Origin:      LogicalPort{OperatorID: link.Source.OperatorID, PortOrdinal: origin},
		Destination: LogicalPort{OperatorID: link.Target.OperatorID, PortOrdinal: destination},
	}, nil
}
