// Package graph implements the authoritative in-memory workflow graph
// document: operators, links, breakpoints and comment boxes keyed by stable
// string IDs, with constraint-checked mutations and synchronous change
// events.
package graph

import (
	"reflect"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

type endpointPair struct {
	source model.LinkEndpoint
	target model.LinkEndpoint
}

// WorkflowGraph is the single source of truth for the logical workflow
// structure. All operations are synchronous and must be called from one
// goroutine; replication and presentation layers are built on top of its
// event streams.
type WorkflowGraph struct {
	operators    map[string]model.Operator
	links        map[string]model.Link
	linkIDByPair map[endpointPair]string
	breakpoints  map[string]model.Breakpoint
	commentBoxes map[string]model.CommentBox

	remoteDepth int

	operatorAdded      stream[OperatorAddedEvent]
	operatorDeleted    stream[OperatorDeletedEvent]
	linkAdded          stream[LinkAddedEvent]
	linkDeleted        stream[LinkDeletedEvent]
	propertyChanged    stream[PropertyChangedEvent]
	displayNameChanged stream[DisplayNameChangedEvent]
	disabledChanged    stream[DisabledChangedEvent]
	cachedChanged      stream[CachedChangedEvent]
	breakpointChanged  stream[BreakpointChangedEvent]
	commentBoxAdded    stream[CommentBoxAddedEvent]
	commentBoxDeleted  stream[CommentBoxDeletedEvent]
	commentBoxChanged  stream[CommentBoxChangedEvent]
}

// NewWorkflowGraph creates an empty workflow graph.
func NewWorkflowGraph() *WorkflowGraph {
	return &WorkflowGraph{
		operators:    make(map[string]model.Operator),
		links:        make(map[string]model.Link),
		linkIDByPair: make(map[endpointPair]string),
		breakpoints:  make(map[string]model.Breakpoint),
		commentBoxes: make(map[string]model.CommentBox),
	}
}

// WithRemoteOrigin runs fn with events marked as remote-origin. It is the
// scoped replacement for ambient sync-suppression flags: the marker is
// restored on every exit path, nested calls included.
func (g *WorkflowGraph) WithRemoteOrigin(fn func()) {
	g.remoteDepth++
	defer func() { g.remoteDepth-- }()

	fn()
}

func (g *WorkflowGraph) isLocal() bool {
	return g.remoteDepth == 0
}

// AddOperator inserts a new operator.
func (g *WorkflowGraph) AddOperator(op model.Operator) error {
	if _, exists := g.operators[op.OperatorID]; exists {
		return newError("AddOperator", op.OperatorID, ErrDuplicateOperator)
	}

	g.operators[op.OperatorID] = op.Clone()
	g.operatorAdded.emit(OperatorAddedEvent{Operator: op.Clone(), IsLocal: g.isLocal()})

	return nil
}

// DeleteOperator removes an operator. Incident links, and any breakpoints
// attached to them, are cascade-deleted first so no dangling edge survives.
func (g *WorkflowGraph) DeleteOperator(operatorID string) error {
	if _, exists := g.operators[operatorID]; !exists {
		return newError("DeleteOperator", operatorID, ErrOperatorNotFound)
	}

	for _, link := range g.Links() {
		if link.Touches(operatorID) {
			g.removeLink(link)
		}
	}

	delete(g.operators, operatorID)
	g.operatorDeleted.emit(OperatorDeletedEvent{OperatorID: operatorID, IsLocal: g.isLocal()})

	return nil
}

// AddLink inserts a new link after checking both endpoints reference an
// existing operator and port, the link ID is unused, and no link with the
// same (source, target) pair exists. Nothing is mutated on failure.
func (g *WorkflowGraph) AddLink(link model.Link) error {
	if _, exists := g.links[link.LinkID]; exists {
		return newError("AddLink", link.LinkID, ErrDuplicateLink)
	}

	pair := endpointPair{source: link.Source, target: link.Target}
	if _, exists := g.linkIDByPair[pair]; exists {
		return newError("AddLink", link.LinkID, ErrDuplicateLink)
	}

	source, exists := g.operators[link.Source.OperatorID]
	if !exists {
		return newError("AddLink", link.LinkID, ErrInvalidEndpoint)
	}

	if _, ok := source.OutputPort(link.Source.PortID); !ok {
		return newError("AddLink", link.LinkID, ErrInvalidEndpoint)
	}

	target, exists := g.operators[link.Target.OperatorID]
	if !exists {
		return newError("AddLink", link.LinkID, ErrInvalidEndpoint)
	}

	if _, ok := target.InputPort(link.Target.PortID); !ok {
		return newError("AddLink", link.LinkID, ErrInvalidEndpoint)
	}

	g.links[link.LinkID] = link
	g.linkIDByPair[pair] = link.LinkID
	g.linkAdded.emit(LinkAddedEvent{Link: link, IsLocal: g.isLocal()})

	return nil
}

// DeleteLinkWithID removes a link and any breakpoint attached to it.
func (g *WorkflowGraph) DeleteLinkWithID(linkID string) error {
	link, exists := g.links[linkID]
	if !exists {
		return newError("DeleteLinkWithID", linkID, ErrLinkNotFound)
	}

	g.removeLink(link)

	return nil
}

// DeleteLink removes the link between the given endpoints.
func (g *WorkflowGraph) DeleteLink(source, target model.LinkEndpoint) error {
	linkID, exists := g.linkIDByPair[endpointPair{source: source, target: target}]
	if !exists {
		return newError("DeleteLink", source.OperatorID+"->"+target.OperatorID, ErrLinkNotFound)
	}

	g.removeLink(g.links[linkID])

	return nil
}

func (g *WorkflowGraph) removeLink(link model.Link) {
	if _, hasBreakpoint := g.breakpoints[link.LinkID]; hasBreakpoint {
		delete(g.breakpoints, link.LinkID)
		g.breakpointChanged.emit(BreakpointChangedEvent{LinkID: link.LinkID, Breakpoint: nil})
	}

	delete(g.links, link.LinkID)
	delete(g.linkIDByPair, endpointPair{source: link.Source, target: link.Target})
	g.linkDeleted.emit(LinkDeletedEvent{Link: link, IsLocal: g.isLocal()})
}

// SetOperatorProperties replaces the operator's property map wholesale and
// emits an event carrying both the old and the new operator snapshots.
func (g *WorkflowGraph) SetOperatorProperties(operatorID string, properties map[string]any) error {
	op, exists := g.operators[operatorID]
	if !exists {
		return newError("SetOperatorProperties", operatorID, ErrOperatorNotFound)
	}

	old := op.Clone()
	updated := op.Clone()
	updated.Properties = properties

	g.operators[operatorID] = updated.Clone()
	g.propertyChanged.emit(PropertyChangedEvent{OldOperator: old, NewOperator: updated})

	return nil
}

// SetLinkBreakpoint attaches a breakpoint to a link. A nil or empty
// breakpoint removes the existing one.
func (g *WorkflowGraph) SetLinkBreakpoint(linkID string, breakpoint *model.Breakpoint) error {
	if _, exists := g.links[linkID]; !exists {
		return newError("SetLinkBreakpoint", linkID, ErrLinkNotFound)
	}

	if breakpoint == nil || breakpoint.IsEmpty() {
		if _, had := g.breakpoints[linkID]; !had {
			return nil
		}

		delete(g.breakpoints, linkID)
		g.breakpointChanged.emit(BreakpointChangedEvent{LinkID: linkID, Breakpoint: nil})

		return nil
	}

	if existing, had := g.breakpoints[linkID]; had && reflect.DeepEqual(existing, *breakpoint) {
		return nil
	}

	g.breakpoints[linkID] = *breakpoint
	bp := *breakpoint
	g.breakpointChanged.emit(BreakpointChangedEvent{LinkID: linkID, Breakpoint: &bp})

	return nil
}

// DisableOperator marks an operator disabled. Already-disabled operators are
// left untouched and no event fires.
func (g *WorkflowGraph) DisableOperator(operatorID string) error {
	return g.setDisabled(operatorID, true)
}

// EnableOperator clears the disabled flag.
func (g *WorkflowGraph) EnableOperator(operatorID string) error {
	return g.setDisabled(operatorID, false)
}

func (g *WorkflowGraph) setDisabled(operatorID string, disabled bool) error {
	op, exists := g.operators[operatorID]
	if !exists {
		return newError("SetDisabled", operatorID, ErrOperatorNotFound)
	}

	if op.IsDisabled == disabled {
		return nil
	}

	op.IsDisabled = disabled
	g.operators[operatorID] = op
	g.disabledChanged.emit(DisabledChangedEvent{Operator: op.Clone()})

	return nil
}

// CacheOperator marks an operator's result for reuse across runs. Sink
// operators have no reusable result, so caching them is a no-op.
func (g *WorkflowGraph) CacheOperator(operatorID string) error {
	return g.setCached(operatorID, true)
}

// UnCacheOperator clears the reuse flag.
func (g *WorkflowGraph) UnCacheOperator(operatorID string) error {
	return g.setCached(operatorID, false)
}

func (g *WorkflowGraph) setCached(operatorID string, cached bool) error {
	op, exists := g.operators[operatorID]
	if !exists {
		return newError("SetCached", operatorID, ErrOperatorNotFound)
	}

	if op.IsSink() || op.MarkedForReuse == cached {
		return nil
	}

	op.MarkedForReuse = cached
	g.operators[operatorID] = op
	g.cachedChanged.emit(CachedChangedEvent{Operator: op.Clone()})

	return nil
}

// SetDisplayName sets the operator's custom display name. Setting the
// current name again emits nothing.
func (g *WorkflowGraph) SetDisplayName(operatorID, displayName string) error {
	op, exists := g.operators[operatorID]
	if !exists {
		return newError("SetDisplayName", operatorID, ErrOperatorNotFound)
	}

	if op.CustomDisplayName == displayName {
		return nil
	}

	op.CustomDisplayName = displayName
	g.operators[operatorID] = op
	g.displayNameChanged.emit(DisplayNameChangedEvent{OperatorID: operatorID, NewDisplayName: displayName})

	return nil
}

// AddCommentBox inserts a canvas annotation.
func (g *WorkflowGraph) AddCommentBox(box model.CommentBox) error {
	if _, exists := g.commentBoxes[box.CommentBoxID]; exists {
		return newError("AddCommentBox", box.CommentBoxID, ErrDuplicateOperator)
	}

	g.commentBoxes[box.CommentBoxID] = box.Clone()
	g.commentBoxAdded.emit(CommentBoxAddedEvent{CommentBox: box.Clone(), IsLocal: g.isLocal()})

	return nil
}

// DeleteCommentBox removes a canvas annotation.
func (g *WorkflowGraph) DeleteCommentBox(commentBoxID string) error {
	if _, exists := g.commentBoxes[commentBoxID]; !exists {
		return newError("DeleteCommentBox", commentBoxID, ErrCommentBoxNotFound)
	}

	delete(g.commentBoxes, commentBoxID)
	g.commentBoxDeleted.emit(CommentBoxDeletedEvent{CommentBoxID: commentBoxID, IsLocal: g.isLocal()})

	return nil
}

// AddComment appends a comment to a box's thread.
func (g *WorkflowGraph) AddComment(commentBoxID string, comment model.Comment) error {
	box, exists := g.commentBoxes[commentBoxID]
	if !exists {
		return newError("AddComment", commentBoxID, ErrCommentBoxNotFound)
	}

	box.Comments = append(box.Comments, comment)
	g.commentBoxes[commentBoxID] = box
	g.commentBoxChanged.emit(CommentBoxChangedEvent{CommentBox: box.Clone()})

	return nil
}

// EditComment replaces the comment at the given index.
func (g *WorkflowGraph) EditComment(commentBoxID string, index int, comment model.Comment) error {
	box, exists := g.commentBoxes[commentBoxID]
	if !exists {
		return newError("EditComment", commentBoxID, ErrCommentBoxNotFound)
	}

	if index < 0 || index >= len(box.Comments) {
		return newError("EditComment", commentBoxID, ErrCommentNotFound)
	}

	box = box.Clone()
	box.Comments[index] = comment
	g.commentBoxes[commentBoxID] = box
	g.commentBoxChanged.emit(CommentBoxChangedEvent{CommentBox: box.Clone()})

	return nil
}

// DeleteComment removes the comment at the given index.
func (g *WorkflowGraph) DeleteComment(commentBoxID string, index int) error {
	box, exists := g.commentBoxes[commentBoxID]
	if !exists {
		return newError("DeleteComment", commentBoxID, ErrCommentBoxNotFound)
	}

	if index < 0 || index >= len(box.Comments) {
		return newError("DeleteComment", commentBoxID, ErrCommentNotFound)
	}

	box = box.Clone()
	box.Comments = append(box.Comments[:index], box.Comments[index+1:]...)
	g.commentBoxes[commentBoxID] = box
	g.commentBoxChanged.emit(CommentBoxChangedEvent{CommentBox: box.Clone()})

	return nil
}

// ReplaceCommentBox overwrites a comment box wholesale, emitting a single
// changed event. Used when reconciling a remote snapshot of the box.
func (g *WorkflowGraph) ReplaceCommentBox(box model.CommentBox) error {
	existing, exists := g.commentBoxes[box.CommentBoxID]
	if !exists {
		return newError("ReplaceCommentBox", box.CommentBoxID, ErrCommentBoxNotFound)
	}

	if reflect.DeepEqual(existing, box) {
		return nil
	}

	g.commentBoxes[box.CommentBoxID] = box.Clone()
	g.commentBoxChanged.emit(CommentBoxChangedEvent{CommentBox: box.Clone()})

	return nil
}

// SetCommentBoxPosition moves a comment box.
func (g *WorkflowGraph) SetCommentBoxPosition(commentBoxID string, position model.Point) error {
	box, exists := g.commentBoxes[commentBoxID]
	if !exists {
		return newError("SetCommentBoxPosition", commentBoxID, ErrCommentBoxNotFound)
	}

	if box.Position == position {
		return nil
	}

	box.Position = position
	g.commentBoxes[commentBoxID] = box
	g.commentBoxChanged.emit(CommentBoxChangedEvent{CommentBox: box.Clone()})

	return nil
}
