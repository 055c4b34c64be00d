package scene

import "github.com/flowcanvas/flowcanvas/pkg/model"

type CellAddedEvent struct {
	Cell Cell
}

type CellDeletedEvent struct {
	CellID string
	Kind   CellKind
}

// PositionChangedEvent retains the prior position so a "drag back" undo can
// be offered without a full history.
type PositionChangedEvent struct {
	CellID      string
	OldPosition model.Point
	NewPosition model.Point
}

type LayerChangedEvent struct {
	CellID string
	Layer  int
}

// HighlightEvent reports one element of one kind entering or leaving the
// highlight set.
type HighlightEvent struct {
	CellID      string
	Kind        CellKind
	Highlighted bool
}

type ZoomChangedEvent struct {
	Ratio float64
}

// RestoreViewEvent asks observers to reset panning and zoom to defaults.
type RestoreViewEvent struct{}

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
