package shared

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// Update is the serializable batch of deltas exchanged between editors.
type Update struct {
	Operators    []Delta[model.Operator]   `json:"operators,omitempty"`
	Positions    []Delta[model.Point]      `json:"positions,omitempty"`
	Links        []Delta[model.Link]       `json:"links,omitempty"`
	Breakpoints  []Delta[model.Breakpoint] `json:"breakpoints,omitempty"`
	CommentBoxes []Delta[model.CommentBox] `json:"commentBoxes,omitempty"`
}

// IsEmpty reports whether the update carries no deltas.
func (u Update) IsEmpty() bool {
	return len(u.Operators) == 0 && len(u.Positions) == 0 && len(u.Links) == 0 &&
		len(u.Breakpoints) == 0 && len(u.CommentBoxes) == 0
}

// PositionChangedEvent reports a replicated element position change.
type PositionChangedEvent struct {
	OperatorID string
	Position   model.Point
	IsLocal    bool
}

// SharedGraph mirrors a WorkflowGraph into replicated maps, one per entity
// kind, so concurrent edits from multiple editors converge. Local mutations
// go through the embedded graph's own API; the adapter intercepts the change
// events and turns them into broadcastable deltas. Remote deltas are replayed
// through the same graph API, so downstream consumers see one event stream
// regardless of origin.
type SharedGraph struct {
	siteID string
	graph  *graph.WorkflowGraph
	logger *slog.Logger

	operators    *ReplicatedMap[model.Operator]
	positions    *ReplicatedMap[model.Point]
	links        *ReplicatedMap[model.Link]
	breakpoints  *ReplicatedMap[model.Breakpoint]
	commentBoxes *ReplicatedMap[model.CommentBox]

	// suppressEcho is raised, scoped via defer, while remote deltas are being
	// replayed so the interceptors below do not re-replicate them.
	suppressEcho bool

	broadcastHandlers []func(Update)
	positionHandlers  []func(PositionChangedEvent)
}

// NewSharedGraph wraps a workflow graph for collaborative editing. The site
// ID must be unique per editor; it breaks timestamp ties deterministically.
func NewSharedGraph(siteID string, g *graph.WorkflowGraph) *SharedGraph {
	s := &SharedGraph{
		siteID:       siteID,
		graph:        g,
		logger:       log.WithModule("shared-graph").With("site", siteID),
		operators:    NewReplicatedMap[model.Operator](siteID),
		positions:    NewReplicatedMap[model.Point](siteID),
		links:        NewReplicatedMap[model.Link](siteID),
		breakpoints:  NewReplicatedMap[model.Breakpoint](siteID),
		commentBoxes: NewReplicatedMap[model.CommentBox](siteID),
	}

	s.intercept()

	return s
}

// Graph returns the underlying workflow graph.
func (s *SharedGraph) Graph() *graph.WorkflowGraph {
	return s.graph
}

// SiteID returns this editor's replication site ID.
func (s *SharedGraph) SiteID() string {
	return s.siteID
}

// OnBroadcast registers a handler for outbound delta batches.
func (s *SharedGraph) OnBroadcast(handler func(Update)) {
	s.broadcastHandlers = append(s.broadcastHandlers, handler)
}

// OnPositionChanged registers a handler for element position changes,
// local and remote.
func (s *SharedGraph) OnPositionChanged(handler func(PositionChangedEvent)) {
	s.positionHandlers = append(s.positionHandlers, handler)
}

func (s *SharedGraph) broadcast(update Update) {
	if update.IsEmpty() {
		return
	}

	for _, handler := range s.broadcastHandlers {
		handler(update)
	}
}

func (s *SharedGraph) emitPosition(event PositionChangedEvent) {
	for _, handler := range s.positionHandlers {
		handler(event)
	}
}

// withEchoSuppressed runs fn with replication interception disabled. The flag
// is restored on every exit path; it must never leak across calls.
func (s *SharedGraph) withEchoSuppressed(fn func()) {
	s.suppressEcho = true
	defer func() { s.suppressEcho = false }()

	s.graph.WithRemoteOrigin(fn)
}

// intercept wires the graph's change events into the replicated maps. Only
// local-origin changes are replicated; remote replays are already there.
func (s *SharedGraph) intercept() {
	s.graph.OnOperatorAdded(func(e graph.OperatorAddedEvent) {
		if !e.IsLocal || s.suppressEcho {
			return
		}

		update := Update{Operators: []Delta[model.Operator]{s.operators.Put(e.Operator.OperatorID, e.Operator)}}

		// Every operator key must have a matching position key.
		if !s.positions.Has(e.Operator.OperatorID) {
			update.Positions = []Delta[model.Point]{s.positions.Put(e.Operator.OperatorID, model.Point{})}
		}

		s.broadcast(update)
	})

	s.graph.OnOperatorDeleted(func(e graph.OperatorDeletedEvent) {
		if !e.IsLocal || s.suppressEcho {
			return
		}

		s.broadcast(Update{
			Operators: []Delta[model.Operator]{s.operators.Delete(e.OperatorID)},
			Positions: []Delta[model.Point]{s.positions.Delete(e.OperatorID)},
		})
	})

	s.graph.OnLinkAdded(func(e graph.LinkAddedEvent) {
		if !e.IsLocal || s.suppressEcho {
			return
		}

		s.broadcast(Update{Links: []Delta[model.Link]{s.links.Put(e.Link.LinkID, e.Link)}})
	})

	s.graph.OnLinkDeleted(func(e graph.LinkDeletedEvent) {
		if !e.IsLocal || s.suppressEcho {
			return
		}

		s.broadcast(Update{Links: []Delta[model.Link]{s.links.Delete(e.Link.LinkID)}})
	})

	reputOperator := func(op model.Operator) {
		if s.suppressEcho {
			return
		}

		s.broadcast(Update{Operators: []Delta[model.Operator]{s.operators.Put(op.OperatorID, op)}})
	}

	s.graph.OnPropertyChanged(func(e graph.PropertyChangedEvent) { reputOperator(e.NewOperator) })
	s.graph.OnDisabledChanged(func(e graph.DisabledChangedEvent) { reputOperator(e.Operator) })
	s.graph.OnCachedChanged(func(e graph.CachedChangedEvent) { reputOperator(e.Operator) })
	s.graph.OnDisplayNameChanged(func(e graph.DisplayNameChangedEvent) {
		if s.suppressEcho {
			return
		}

		op, err := s.graph.Operator(e.OperatorID)
		if err != nil {
			return
		}

		reputOperator(op)
	})

	s.graph.OnBreakpointChanged(func(e graph.BreakpointChangedEvent) {
		if s.suppressEcho {
			return
		}

		if e.Breakpoint == nil {
			s.broadcast(Update{Breakpoints: []Delta[model.Breakpoint]{s.breakpoints.Delete(e.LinkID)}})

			return
		}

		s.broadcast(Update{Breakpoints: []Delta[model.Breakpoint]{s.breakpoints.Put(e.LinkID, *e.Breakpoint)}})
	})

	s.graph.OnCommentBoxAdded(func(e graph.CommentBoxAddedEvent) {
		if !e.IsLocal || s.suppressEcho {
			return
		}

		s.broadcast(Update{CommentBoxes: []Delta[model.CommentBox]{s.commentBoxes.Put(e.CommentBox.CommentBoxID, e.CommentBox)}})
	})

	s.graph.OnCommentBoxDeleted(func(e graph.CommentBoxDeletedEvent) {
		if !e.IsLocal || s.suppressEcho {
			return
		}

		s.broadcast(Update{CommentBoxes: []Delta[model.CommentBox]{s.commentBoxes.Delete(e.CommentBoxID)}})
	})

	s.graph.OnCommentBoxChanged(func(e graph.CommentBoxChangedEvent) {
		if s.suppressEcho {
			return
		}

		s.broadcast(Update{CommentBoxes: []Delta[model.CommentBox]{s.commentBoxes.Put(e.CommentBox.CommentBoxID, e.CommentBox)}})
	})
}

// SetOperatorPosition moves an element on the replicated position map.
func (s *SharedGraph) SetOperatorPosition(operatorID string, position model.Point) error {
	if !s.graph.HasOperator(operatorID) {
		return fmt.Errorf("cannot position unknown operator %s", operatorID)
	}

	delta := s.positions.Put(operatorID, position)
	s.broadcast(Update{Positions: []Delta[model.Point]{delta}})
	s.emitPosition(PositionChangedEvent{OperatorID: operatorID, Position: position, IsLocal: true})

	return nil
}

// OperatorPosition returns the replicated position of an element.
func (s *SharedGraph) OperatorPosition(operatorID string) (model.Point, bool) {
	return s.positions.Get(operatorID)
}

// Positions snapshots the live position map, keyed by operator ID.
func (s *SharedGraph) Positions() map[string]model.Point {
	keys := s.positions.Keys()
	snapshot := make(map[string]model.Point, len(keys))

	for _, key := range keys {
		if position, ok := s.positions.Get(key); ok {
			snapshot[key] = position
		}
	}

	return snapshot
}

// StateUpdate exports the full replicated state for a newly joining editor.
func (s *SharedGraph) StateUpdate() Update {
	return Update{
		Operators:    s.operators.State(),
		Positions:    s.positions.State(),
		Links:        s.links.State(),
		Breakpoints:  s.breakpoints.State(),
		CommentBoxes: s.commentBoxes.State(),
	}
}

// ApplyUpdate merges a batch of remote deltas. Application is idempotent and
// order-independent per key. The replayed graph mutations emit the same
// events local edits do, flagged as remote origin.
//
// A replicated state that leaves an operator without a position diverges from
// the document invariants and is unrecoverable: ApplyUpdate panics.
func (s *SharedGraph) ApplyUpdate(update Update) {
	for _, delta := range update.Operators {
		if s.operators.Apply(delta) {
			s.replayOperator(delta)
		}
	}

	for _, delta := range update.Positions {
		if s.positions.Apply(delta) && !delta.Deleted {
			s.emitPosition(PositionChangedEvent{OperatorID: delta.Key, Position: delta.Value, IsLocal: false})
		}
	}

	for _, delta := range update.Links {
		if s.links.Apply(delta) {
			s.replayLink(delta)
		}
	}

	for _, delta := range update.Breakpoints {
		if s.breakpoints.Apply(delta) {
			s.replayBreakpoint(delta)
		}
	}

	for _, delta := range update.CommentBoxes {
		if s.commentBoxes.Apply(delta) {
			s.replayCommentBox(delta)
		}
	}

	s.checkConsistency()
}

func (s *SharedGraph) replayOperator(delta Delta[model.Operator]) {
	s.withEchoSuppressed(func() {
		if delta.Deleted {
			if s.graph.HasOperator(delta.Key) {
				if err := s.graph.DeleteOperator(delta.Key); err != nil {
					s.logger.Error("Failed to replay remote operator delete", "operator", delta.Key, "error", err)
				}
			}

			return
		}

		if !s.graph.HasOperator(delta.Key) {
			if err := s.graph.AddOperator(delta.Value); err != nil {
				s.logger.Error("Failed to replay remote operator add", "operator", delta.Key, "error", err)
			}

			return
		}

		s.reconcileOperator(delta.Value)
	})
}

// reconcileOperator applies a remote operator snapshot onto the live
// operator through the regular mutators, so the usual fine-grained events
// still fire.
func (s *SharedGraph) reconcileOperator(remote model.Operator) {
	current, err := s.graph.Operator(remote.OperatorID)
	if err != nil {
		return
	}

	if !reflect.DeepEqual(current.Properties, remote.Properties) {
		_ = s.graph.SetOperatorProperties(remote.OperatorID, remote.Properties)
	}

	if current.CustomDisplayName != remote.CustomDisplayName {
		_ = s.graph.SetDisplayName(remote.OperatorID, remote.CustomDisplayName)
	}

	if current.IsDisabled != remote.IsDisabled {
		if remote.IsDisabled {
			_ = s.graph.DisableOperator(remote.OperatorID)
		} else {
			_ = s.graph.EnableOperator(remote.OperatorID)
		}
	}

	if current.MarkedForReuse != remote.MarkedForReuse {
		if remote.MarkedForReuse {
			_ = s.graph.CacheOperator(remote.OperatorID)
		} else {
			_ = s.graph.UnCacheOperator(remote.OperatorID)
		}
	}
}

func (s *SharedGraph) replayLink(delta Delta[model.Link]) {
	s.withEchoSuppressed(func() {
		if delta.Deleted {
			if s.graph.HasLinkWithID(delta.Key) {
				if err := s.graph.DeleteLinkWithID(delta.Key); err != nil {
					s.logger.Error("Failed to replay remote link delete", "link", delta.Key, "error", err)
				}
			}

			return
		}

		if s.graph.HasLinkWithID(delta.Key) {
			return
		}

		// A concurrent operator delete may have won against this link add;
		// the link is pruned rather than resurrecting the operator.
		if err := s.graph.AddLink(delta.Value); err != nil {
			s.logger.Warn("Dropping remote link with missing endpoint", "link", delta.Key, "error", err)
			s.links.entries[delta.Key] = entry[model.Link]{stamp: delta.Stamp, deleted: true}
		}
	})
}

func (s *SharedGraph) replayBreakpoint(delta Delta[model.Breakpoint]) {
	// Breakpoint deltas are only honored while the owning link exists;
	// a delete racing the link's own removal must not resurrect anything.
	if !s.graph.HasLinkWithID(delta.Key) {
		return
	}

	s.withEchoSuppressed(func() {
		if delta.Deleted {
			_ = s.graph.SetLinkBreakpoint(delta.Key, nil)

			return
		}

		breakpoint := delta.Value
		_ = s.graph.SetLinkBreakpoint(delta.Key, &breakpoint)
	})
}

func (s *SharedGraph) replayCommentBox(delta Delta[model.CommentBox]) {
	s.withEchoSuppressed(func() {
		if delta.Deleted {
			if s.graph.HasCommentBox(delta.Key) {
				_ = s.graph.DeleteCommentBox(delta.Key)
			}

			return
		}

		if !s.graph.HasCommentBox(delta.Key) {
			if err := s.graph.AddCommentBox(delta.Value); err != nil {
				s.logger.Error("Failed to replay remote comment box add", "commentBox", delta.Key, "error", err)
			}

			return
		}

		_ = s.graph.ReplaceCommentBox(delta.Value)
	})
}

// checkConsistency verifies the replicated state still satisfies the
// document invariants. Divergence here means the merge logic itself is
// broken; there is no way to recover.
func (s *SharedGraph) checkConsistency() {
	for _, operatorID := range s.operators.Keys() {
		if !s.positions.Has(operatorID) {
			panic(fmt.Sprintf("shared graph diverged: operator %s has no position entry", operatorID))
		}
	}
}
