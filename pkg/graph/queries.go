package graph

import (
	"sort"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// HasOperator reports whether an operator with the given ID exists.
func (g *WorkflowGraph) HasOperator(operatorID string) bool {
	_, exists := g.operators[operatorID]

	return exists
}

// Operator returns the operator with the given ID.
func (g *WorkflowGraph) Operator(operatorID string) (model.Operator, error) {
	op, exists := g.operators[operatorID]
	if !exists {
		return model.Operator{}, newError("Operator", operatorID, ErrOperatorNotFound)
	}

	return op.Clone(), nil
}

// Operators returns all operators, ordered by ID for determinism.
func (g *WorkflowGraph) Operators() []model.Operator {
	out := make([]model.Operator, 0, len(g.operators))
	for _, op := range g.operators {
		out = append(out, op.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OperatorID < out[j].OperatorID })

	return out
}

// EnabledOperators returns operators that are not disabled.
func (g *WorkflowGraph) EnabledOperators() []model.Operator {
	out := make([]model.Operator, 0, len(g.operators))
	for _, op := range g.operators {
		if !op.IsDisabled {
			out = append(out, op.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OperatorID < out[j].OperatorID })

	return out
}

// HasLinkWithID reports whether a link with the given ID exists.
func (g *WorkflowGraph) HasLinkWithID(linkID string) bool {
	_, exists := g.links[linkID]

	return exists
}

// HasLink reports whether a link between the given endpoints exists.
func (g *WorkflowGraph) HasLink(source, target model.LinkEndpoint) bool {
	_, exists := g.linkIDByPair[endpointPair{source: source, target: target}]

	return exists
}

// LinkWithID returns the link with the given ID.
func (g *WorkflowGraph) LinkWithID(linkID string) (model.Link, error) {
	link, exists := g.links[linkID]
	if !exists {
		return model.Link{}, newError("LinkWithID", linkID, ErrLinkNotFound)
	}

	return link, nil
}

// Link returns the link between the given endpoints.
func (g *WorkflowGraph) Link(source, target model.LinkEndpoint) (model.Link, error) {
	linkID, exists := g.linkIDByPair[endpointPair{source: source, target: target}]
	if !exists {
		return model.Link{}, newError("Link", source.OperatorID+"->"+target.OperatorID, ErrLinkNotFound)
	}

	return g.links[linkID], nil
}

// Links returns all links, ordered by ID for determinism.
func (g *WorkflowGraph) Links() []model.Link {
	out := make([]model.Link, 0, len(g.links))
	for _, link := range g.links {
		out = append(out, link)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LinkID < out[j].LinkID })

	return out
}

// EnabledLinks returns links whose endpoint operators are both enabled.
func (g *WorkflowGraph) EnabledLinks() []model.Link {
	out := make([]model.Link, 0, len(g.links))

	for _, link := range g.links {
		source, target := g.operators[link.Source.OperatorID], g.operators[link.Target.OperatorID]
		if !source.IsDisabled && !target.IsDisabled {
			out = append(out, link)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LinkID < out[j].LinkID })

	return out
}

// InputLinks returns the links terminating at the given operator.
func (g *WorkflowGraph) InputLinks(operatorID string) []model.Link {
	out := make([]model.Link, 0)

	for _, link := range g.Links() {
		if link.Target.OperatorID == operatorID {
			out = append(out, link)
		}
	}

	return out
}

// OutputLinks returns the links originating at the given operator.
func (g *WorkflowGraph) OutputLinks(operatorID string) []model.Link {
	out := make([]model.Link, 0)

	for _, link := range g.Links() {
		if link.Source.OperatorID == operatorID {
			out = append(out, link)
		}
	}

	return out
}

// Breakpoint returns the breakpoint attached to the given link, if any.
func (g *WorkflowGraph) Breakpoint(linkID string) (model.Breakpoint, bool) {
	bp, exists := g.breakpoints[linkID]

	return bp, exists
}

// Breakpoints returns all attached breakpoints keyed by link ID.
func (g *WorkflowGraph) Breakpoints() map[string]model.Breakpoint {
	out := make(map[string]model.Breakpoint, len(g.breakpoints))
	for linkID, bp := range g.breakpoints {
		out[linkID] = bp
	}

	return out
}

// HasCommentBox reports whether a comment box with the given ID exists.
func (g *WorkflowGraph) HasCommentBox(commentBoxID string) bool {
	_, exists := g.commentBoxes[commentBoxID]

	return exists
}

// CommentBox returns the comment box with the given ID.
func (g *WorkflowGraph) CommentBox(commentBoxID string) (model.CommentBox, error) {
	box, exists := g.commentBoxes[commentBoxID]
	if !exists {
		return model.CommentBox{}, newError("CommentBox", commentBoxID, ErrCommentBoxNotFound)
	}

	return box.Clone(), nil
}

// CommentBoxes returns all comment boxes, ordered by ID.
func (g *WorkflowGraph) CommentBoxes() []model.CommentBox {
	out := make([]model.CommentBox, 0, len(g.commentBoxes))
	for _, box := range g.commentBoxes {
		out = append(out, box.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CommentBoxID < out[j].CommentBoxID })

	return out
}

// Subscription registration. Handlers run synchronously on the mutating
// goroutine in subscription order.

func (g *WorkflowGraph) OnOperatorAdded(h func(OperatorAddedEvent))     { g.operatorAdded.subscribe(h) }
func (g *WorkflowGraph) OnOperatorDeleted(h func(OperatorDeletedEvent)) { g.operatorDeleted.subscribe(h) }
func (g *WorkflowGraph) OnLinkAdded(h func(LinkAddedEvent))             { g.linkAdded.subscribe(h) }
func (g *WorkflowGraph) OnLinkDeleted(h func(LinkDeletedEvent))         { g.linkDeleted.subscribe(h) }
func (g *WorkflowGraph) OnPropertyChanged(h func(PropertyChangedEvent)) {
	g.propertyChanged.subscribe(h)
}

func (g *WorkflowGraph) OnDisplayNameChanged(h func(DisplayNameChangedEvent)) {
	g.displayNameChanged.subscribe(h)
}

func (g *WorkflowGraph) OnDisabledChanged(h func(DisabledChangedEvent)) {
	g.disabledChanged.subscribe(h)
}

func (g *WorkflowGraph) OnCachedChanged(h func(CachedChangedEvent)) {
	g.cachedChanged.subscribe(h)
}

func (g *WorkflowGraph) OnBreakpointChanged(h func(BreakpointChangedEvent)) {
	g.breakpointChanged.subscribe(h)
}

func (g *WorkflowGraph) OnCommentBoxAdded(h func(CommentBoxAddedEvent)) {
	g.commentBoxAdded.subscribe(h)
}

func (g *WorkflowGraph) OnCommentBoxDeleted(h func(CommentBoxDeletedEvent)) {
	g.commentBoxDeleted.subscribe(h)
}

func (g *WorkflowGraph) OnCommentBoxChanged(h func(CommentBoxChangedEvent)) {
	g.commentBoxChanged.subscribe(h)
}
