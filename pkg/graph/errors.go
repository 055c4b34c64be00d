package graph

import (
	"errors"
	"fmt"
)

// Standard graph error types. Mutations fail fast with one of these; callers
// are expected to pre-validate with the query accessors.
var (
	// ErrDuplicateOperator indicates an operator ID is already present.
	ErrDuplicateOperator = errors.New("operator already exists")

	// ErrOperatorNotFound indicates no operator exists for the given ID.
	ErrOperatorNotFound = errors.New("operator not found")

	// ErrDuplicateLink indicates a link ID or (source, target) pair is
	// already present.
	ErrDuplicateLink = errors.New("link already exists")

	// ErrLinkNotFound indicates no link exists for the given ID or pair.
	ErrLinkNotFound = errors.New("link not found")

	// ErrInvalidEndpoint indicates a link endpoint does not reference an
	// existing operator or an existing port on that operator.
	ErrInvalidEndpoint = errors.New("invalid link endpoint")

	// ErrCommentBoxNotFound indicates no comment box exists for the given ID.
	ErrCommentBoxNotFound = errors.New("comment box not found")

	// ErrCommentNotFound indicates a comment index is out of range.
	ErrCommentNotFound = errors.New("comment not found")
)

// Error wraps graph invariant violations with the failing operation and the
// element identifier involved.
type Error struct {
	Op  string // Operation being performed (e.g. "AddOperator")
	ID  string // Element ID if applicable
	Err error  // Underlying sentinel error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.ID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error comparison against the sentinel errors.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newError(op, id string, err error) *Error {
	return &Error{Op: op, ID: id, Err: err}
}
