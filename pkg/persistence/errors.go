package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDocumentNotFound indicates no workflow document exists for the given identifier.
	ErrDocumentNotFound = errors.New("workflow document not found")

	// ErrDocumentAlreadyExists indicates a workflow document with the same identifier already exists.
	ErrDocumentAlreadyExists = errors.New("workflow document already exists")

	// ErrInvalidDocument indicates the document failed validation before storage.
	ErrInvalidDocument = errors.New("invalid workflow document")
)

// DocumentError wraps document-related errors with additional context.
type DocumentError struct {
	Op      string // Operation being performed (e.g., "DocumentByID", "Save", "Delete")
	WID     uint64 // Workflow document ID if applicable
	Err     error  // Underlying error
	Message string // Additional context message
}

func (e *DocumentError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for document %d: %s (%v)", e.Op, e.WID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for document %d: %v", e.Op, e.WID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for document errors.
func (e *DocumentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDocumentError creates a new document error with context.
func NewDocumentError(op string, wid uint64, err error) *DocumentError {
	return &DocumentError{
		Op:  op,
		WID: wid,
		Err: err,
	}
}

// IsDocumentNotFound checks if an error indicates a document was not found.
func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
