package graph

import (
	"fmt"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// Content snapshots the graph plus the given element positions into the
// persisted document shape.
func (g *WorkflowGraph) Content(positions map[string]model.Point, settings model.WorkflowSettings) *model.WorkflowContent {
	copied := make(map[string]model.Point, len(positions))
	for id, p := range positions {
		copied[id] = p
	}

	return &model.WorkflowContent{
		Operators:         g.Operators(),
		OperatorPositions: copied,
		Links:             g.Links(),
		CommentBoxes:      g.CommentBoxes(),
		Breakpoints:       g.Breakpoints(),
		Settings:          settings,
	}
}

// FromContent rebuilds a workflow graph from a persisted content payload.
// Element ordering in the payload is not significant; the reconstructed
// graph carries the same operator, link and breakpoint sets.
func FromContent(content *model.WorkflowContent) (*WorkflowGraph, error) {
	g := NewWorkflowGraph()

	for _, op := range content.Operators {
		if err := g.AddOperator(op); err != nil {
			return nil, fmt.Errorf("failed to restore operator %s: %w", op.OperatorID, err)
		}
	}

	for _, link := range content.Links {
		if err := g.AddLink(link); err != nil {
			return nil, fmt.Errorf("failed to restore link %s: %w", link.LinkID, err)
		}
	}

	for linkID, bp := range content.Breakpoints {
		breakpoint := bp
		if err := g.SetLinkBreakpoint(linkID, &breakpoint); err != nil {
			return nil, fmt.Errorf("failed to restore breakpoint on %s: %w", linkID, err)
		}
	}

	for _, box := range content.CommentBoxes {
		if err := g.AddCommentBox(box); err != nil {
			return nil, fmt.Errorf("failed to restore comment box %s: %w", box.CommentBoxID, err)
		}
	}

	return g, nil
}

// LogicalPlan exports the enabled part of the graph in its submission shape:
// disabled operators, links touching them, and breakpoints on excluded links
// are left out.
func (g *WorkflowGraph) LogicalPlan() ([]model.LogicalOperator, []model.LogicalLink, []model.BreakpointInfo, error) {
	operators := g.EnabledOperators()

	logicalOperators := make([]model.LogicalOperator, 0, len(operators))
	for _, op := range operators {
		logicalOperators = append(logicalOperators, model.ToLogicalOperator(op))
	}

	links := g.EnabledLinks()

	logicalLinks := make([]model.LogicalLink, 0, len(links))
	breakpoints := make([]model.BreakpointInfo, 0)

	for _, link := range links {
		source := g.operators[link.Source.OperatorID]
		target := g.operators[link.Target.OperatorID]

		logical, err := model.ToLogicalLink(link, source, target)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to export logical plan: %w", err)
		}

		logicalLinks = append(logicalLinks, logical)

		if bp, ok := g.breakpoints[link.LinkID]; ok {
			breakpoints = append(breakpoints, model.BreakpointInfo{LinkID: link.LinkID, Breakpoint: bp})
		}
	}

	return logicalOperators, logicalLinks, breakpoints, nil
}
