// Package validation checks operator properties against per-type JSON
// schemas before a plan is submitted for execution.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

var ErrUnknownOperatorType = errors.New("no schema registered for operator type")

// SchemaError reports one operator's failed validation with the individual
// schema violations.
type SchemaError struct {
	OperatorID   string
	OperatorType string
	Violations   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("operator %s (%s) failed validation: %s",
		e.OperatorID, e.OperatorType, strings.Join(e.Violations, "; "))
}

// Validator holds compiled property schemas keyed by operator type.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*gojsonschema.Schema)}
}

// Register compiles and stores the property schema for an operator type.
// Re-registering a type replaces its schema.
func (v *Validator) Register(operatorType string, schema map[string]any) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", operatorType, err)
	}

	v.schemas[operatorType] = compiled

	return nil
}

// HasSchema reports whether a schema is registered for the type.
func (v *Validator) HasSchema(operatorType string) bool {
	_, found := v.schemas[operatorType]

	return found
}

// ValidateOperator checks one operator's properties against its schema.
func (v *Validator) ValidateOperator(op model.Operator) error {
	schema, found := v.schemas[op.OperatorType]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownOperatorType, op.OperatorType)
	}

	properties := op.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(properties))
	if err != nil {
		return fmt.Errorf("failed to validate operator %s: %w", op.OperatorID, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}

	return &SchemaError{
		OperatorID:   op.OperatorID,
		OperatorType: op.OperatorType,
		Violations:   violations,
	}
}

// ValidatePlan validates every operator that has a registered schema.
// Operators of unregistered types are skipped, not failed; custom or
// experimental operators carry no schema.
func (v *Validator) ValidatePlan(operators []model.Operator) map[string]error {
	failures := make(map[string]error)

	for _, op := range operators {
		if !v.HasSchema(op.OperatorType) {
			continue
		}

		if err := v.ValidateOperator(op); err != nil {
			failures[op.OperatorID] = err
		}
	}

	return failures
}
