package graph

import "github.com/flowcanvas/flowcanvas/pkg/model"

// Graph change events. IsLocal is true for changes made through this
// process's document API and false for changes replayed from remote editors;
// consumers should not otherwise distinguish the two.

type OperatorAddedEvent struct {
	Operator model.Operator
	IsLocal  bool
}

type OperatorDeletedEvent struct {
	OperatorID string
	IsLocal    bool
}

type LinkAddedEvent struct {
	Link    model.Link
	IsLocal bool
}

type LinkDeletedEvent struct {
	Link    model.Link
	IsLocal bool
}

// PropertyChangedEvent carries the full old and new operator snapshots.
type PropertyChangedEvent struct {
	OldOperator model.Operator
	NewOperator model.Operator
}

type DisplayNameChangedEvent struct {
	OperatorID     string
	NewDisplayName string
}

type DisabledChangedEvent struct {
	Operator model.Operator
}

type CachedChangedEvent struct {
	Operator model.Operator
}

// BreakpointChangedEvent carries a nil Breakpoint on removal.
type BreakpointChangedEvent struct {
	LinkID     string
	Breakpoint *model.Breakpoint
}

type CommentBoxAddedEvent struct {
	CommentBox model.CommentBox
	IsLocal    bool
}

type CommentBoxDeletedEvent struct {
	CommentBoxID string
	IsLocal      bool
}

type CommentBoxChangedEvent struct {
	CommentBox model.CommentBox
}

// stream is a synchronous fan-out of one event type. Handlers run inline on
// the mutating goroutine, so emission order always equals mutation order.
type stream[T any] struct {
	handlers []func(T)
}

func (s *stream[T]) subscribe(handler func(T)) {
	s.handlers = append(s.handlers, handler)
}

func (s *stream[T]) emit(event T) {
	for _, handler := range s.handlers {
		handler(event)
	}
}
