package model

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
)

// ErrInvalidBreakpoint indicates a breakpoint that is neither a count
// threshold nor a condition predicate, or carries an uncompilable expression.
var ErrInvalidBreakpoint = errors.New("invalid breakpoint")

// Breakpoint is a runtime pause condition attached to a link. Exactly one of
// Count or Condition is expected to be set; an empty breakpoint stands for
// "no breakpoint" and is treated as a removal by the graph layer.
type Breakpoint struct {
	// Count pauses the run after the given number of tuples crossed the link.
	Count *uint64 `json:"count,omitempty"`

	// Condition pauses the run when the predicate holds for a tuple.
	Condition *ConditionPredicate `json:"condition,omitempty"`
}

// ConditionPredicate is a column-scoped predicate expression evaluated by the
// engine against each tuple crossing the link.
type ConditionPredicate struct {
	Column string `json:"column"     validate:"required"`
	// Expression is an expr-lang predicate over the bound column value,
	// e.g. `value > 100` or `value matches "^error"`.
	Expression string `json:"expression" validate:"required"`
}

// IsEmpty reports whether the breakpoint carries no pause condition.
func (b Breakpoint) IsEmpty() bool {
	return b.Count == nil && b.Condition == nil
}

// Validate checks the breakpoint shape and compiles the condition expression
// so malformed predicates are rejected before they reach the engine.
func (b Breakpoint) Validate() error {
	if b.Count != nil && b.Condition != nil {
		return fmt.Errorf("%w: both count and condition set", ErrInvalidBreakpoint)
	}

	if b.Condition != nil {
		if b.Condition.Column == "" {
			return fmt.Errorf("%w: condition without a column", ErrInvalidBreakpoint)
		}

		env := map[string]any{"value": any(nil)}

		_, err := expr.Compile(b.Condition.Expression, expr.Env(env), expr.AllowUndefinedVariables())
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidBreakpoint, err.Error())
		}
	}

	return nil
}

// EvaluateCondition runs the condition predicate against a column value.
// Count breakpoints always return false here; counting is engine-side.
func (b Breakpoint) EvaluateCondition(value any) (bool, error) {
	if b.Condition == nil {
		return false, nil
	}

	result, err := expr.Eval(b.Condition.Expression, map[string]any{"value": value})
	if err != nil {
		return false, fmt.Errorf("evaluate breakpoint condition: %w", err)
	}

	hit, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: condition is not a predicate", ErrInvalidBreakpoint)
	}

	return hit, nil
}
