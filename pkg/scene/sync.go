package scene

import (
	"log/slog"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

// Sync keeps the view's cells mirroring the workflow graph. Every graph
// mutation produces the matching cell change, and locally initiated adds
// are auto-highlighted so the editor can immediately act on them. Remote
// adds are never highlighted.
type Sync struct {
	view   *View
	graph  *graph.WorkflowGraph
	shared *shared.SharedGraph
	logger *slog.Logger

	batching bool
	pending  []pendingAdd
}

type pendingAdd struct {
	id       string
	kind     CellKind
	position model.Point
	source   string
	target   string
	isLocal  bool
}

// NewSync subscribes to the graph and starts mirroring. The shared graph is
// optional; without it operator positions default to the origin and remote
// position updates are not applied.
func NewSync(view *View, g *graph.WorkflowGraph, sg *shared.SharedGraph) *Sync {
	s := &Sync{
		view:   view,
		graph:  g,
		shared: sg,
		logger: log.WithModule("scene-sync"),
	}

	g.OnOperatorAdded(s.operatorAdded)
	g.OnOperatorDeleted(s.operatorDeleted)
	g.OnLinkAdded(s.linkAdded)
	g.OnLinkDeleted(s.linkDeleted)
	g.OnCommentBoxAdded(s.commentBoxAdded)
	g.OnCommentBoxDeleted(s.commentBoxDeleted)
	g.OnCommentBoxChanged(s.commentBoxChanged)

	if sg != nil {
		sg.OnPositionChanged(s.positionChanged)
	}

	return s
}

// SetBatching toggles deferred cell creation. While batching, adds queue up
// until Flush; deletions and moves still apply immediately.
func (s *Sync) SetBatching(enabled bool) {
	s.batching = enabled
	if !enabled {
		s.Flush()
	}
}

// Flush materializes queued adds in arrival order.
func (s *Sync) Flush() {
	pending := s.pending
	s.pending = nil

	for _, add := range pending {
		s.materialize(add)
	}
}

func (s *Sync) enqueue(add pendingAdd) {
	if s.batching {
		s.pending = append(s.pending, add)

		return
	}

	s.materialize(add)
}

func (s *Sync) materialize(add pendingAdd) {
	var err error
	if add.kind == CellKindLink {
		err = s.view.AddLinkCell(add.id, add.source, add.target)
	} else {
		err = s.view.AddCell(add.id, add.kind, add.position)
	}

	if err != nil {
		s.logger.Warn("Skipping cell add", "cell_id", add.id, "error", err)

		return
	}

	if add.isLocal {
		if err := s.view.Highlight(add.id); err != nil {
			s.logger.Warn("Failed to highlight new cell", "cell_id", add.id, "error", err)
		}
	}
}

func (s *Sync) operatorAdded(ev graph.OperatorAddedEvent) {
	position := model.Point{}
	if s.shared != nil {
		if p, ok := s.shared.OperatorPosition(ev.Operator.OperatorID); ok {
			position = p
		}
	}

	s.enqueue(pendingAdd{
		id:       ev.Operator.OperatorID,
		kind:     CellKindOperator,
		position: position,
		isLocal:  ev.IsLocal,
	})
}

func (s *Sync) operatorDeleted(ev graph.OperatorDeletedEvent) {
	s.dropPending(ev.OperatorID)

	if s.view.HasCell(ev.OperatorID) {
		if err := s.view.DeleteCell(ev.OperatorID); err != nil {
			s.logger.Warn("Failed to delete operator cell", "operator_id", ev.OperatorID, "error", err)
		}
	}
}

func (s *Sync) linkAdded(ev graph.LinkAddedEvent) {
	s.enqueue(pendingAdd{
		id:      ev.Link.LinkID,
		kind:    CellKindLink,
		source:  ev.Link.Source.OperatorID,
		target:  ev.Link.Target.OperatorID,
		isLocal: ev.IsLocal,
	})
}

func (s *Sync) linkDeleted(ev graph.LinkDeletedEvent) {
	s.dropPending(ev.Link.LinkID)

	if s.view.HasCell(ev.Link.LinkID) {
		if err := s.view.DeleteCell(ev.Link.LinkID); err != nil {
			s.logger.Warn("Failed to delete link cell", "link_id", ev.Link.LinkID, "error", err)
		}
	}
}

func (s *Sync) commentBoxAdded(ev graph.CommentBoxAddedEvent) {
	s.enqueue(pendingAdd{
		id:       ev.CommentBox.CommentBoxID,
		kind:     CellKindCommentBox,
		position: ev.CommentBox.Position,
		isLocal:  ev.IsLocal,
	})
}

func (s *Sync) commentBoxDeleted(ev graph.CommentBoxDeletedEvent) {
	s.dropPending(ev.CommentBoxID)

	if s.view.HasCell(ev.CommentBoxID) {
		if err := s.view.DeleteCell(ev.CommentBoxID); err != nil {
			s.logger.Warn("Failed to delete comment box cell", "comment_box_id", ev.CommentBoxID, "error", err)
		}
	}
}

func (s *Sync) commentBoxChanged(ev graph.CommentBoxChangedEvent) {
	if !s.view.HasCell(ev.CommentBox.CommentBoxID) {
		return
	}

	if err := s.view.SetCellPosition(ev.CommentBox.CommentBoxID, ev.CommentBox.Position); err != nil {
		s.logger.Warn("Failed to move comment box cell", "comment_box_id", ev.CommentBox.CommentBoxID, "error", err)
	}
}

func (s *Sync) positionChanged(ev shared.PositionChangedEvent) {
	if ev.IsLocal {
		return
	}

	for i := range s.pending {
		if s.pending[i].id == ev.OperatorID {
			s.pending[i].position = ev.Position

			return
		}
	}

	if !s.view.HasCell(ev.OperatorID) {
		return
	}

	if err := s.view.SetCellPosition(ev.OperatorID, ev.Position); err != nil {
		s.logger.Warn("Failed to apply remote position", "operator_id", ev.OperatorID, "error", err)
	}
}

// MoveOperator moves an operator cell and replicates the new position.
func (s *Sync) MoveOperator(operatorID string, position model.Point) error {
	if err := s.view.SetCellPosition(operatorID, position); err != nil {
		return err
	}

	if s.shared != nil {
		return s.shared.SetOperatorPosition(operatorID, position)
	}

	return nil
}

func (s *Sync) dropPending(id string) {
	for i := range s.pending {
		if s.pending[i].id == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)

			return
		}
	}
}
