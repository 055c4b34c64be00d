package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

func sourceOperator(id string) model.Operator {
	return model.Operator{
		OperatorID:   id,
		OperatorType: "CSVFileScan",
		OutputPorts:  []model.Port{{PortID: "output-0"}},
	}
}

func sinkOperator(id string) model.Operator {
	return model.Operator{
		OperatorID:   id,
		OperatorType: "SimpleSink",
		InputPorts:   []model.Port{{PortID: "input-0"}},
	}
}

func middleOperator(id string) model.Operator {
	return model.Operator{
		OperatorID:   id,
		OperatorType: "Filter",
		InputPorts:   []model.Port{{PortID: "input-0"}},
		OutputPorts:  []model.Port{{PortID: "output-0"}},
	}
}

func linkBetween(id, sourceOp, targetOp string) model.Link {
	return model.Link{
		LinkID: id,
		Source: model.LinkEndpoint{OperatorID: sourceOp, PortID: "output-0"},
		Target: model.LinkEndpoint{OperatorID: targetOp, PortID: "input-0"},
	}
}

func TestWorkflowGraph_AddOperator(t *testing.T) {
	g := NewWorkflowGraph()

	op := sourceOperator("scan-1")
	require.NoError(t, g.AddOperator(op))

	assert.True(t, g.HasOperator("scan-1"))

	got, err := g.Operator("scan-1")
	require.NoError(t, err)
	assert.Equal(t, op, got)

	err = g.AddOperator(op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateOperator)
}

func TestWorkflowGraph_DeleteOperator_CascadesLinksAndBreakpoints(t *testing.T) {
	g := NewWorkflowGraph()

	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "b")))

	count := uint64(100)
	require.NoError(t, g.SetLinkBreakpoint("l1", &model.Breakpoint{Count: &count}))

	var deletedLinks []string

	g.OnLinkDeleted(func(e LinkDeletedEvent) {
		deletedLinks = append(deletedLinks, e.Link.LinkID)
	})

	require.NoError(t, g.DeleteOperator("a"))

	assert.False(t, g.HasOperator("a"))
	assert.False(t, g.HasLinkWithID("l1"))
	assert.Equal(t, []string{"l1"}, deletedLinks)

	_, hasBreakpoint := g.Breakpoint("l1")
	assert.False(t, hasBreakpoint)

	_, err := g.Link(
		model.LinkEndpoint{OperatorID: "a", PortID: "output-0"},
		model.LinkEndpoint{OperatorID: "b", PortID: "input-0"},
	)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	err = g.DeleteOperator("a")
	assert.ErrorIs(t, err, ErrOperatorNotFound)
}

func TestWorkflowGraph_AddLink_Validation(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))

	link := linkBetween("l1", "a", "b")
	require.NoError(t, g.AddLink(link))

	got, err := g.LinkWithID("l1")
	require.NoError(t, err)
	assert.Equal(t, link, got)

	tests := []struct {
		name string
		link model.Link
		want error
	}{
		{
			name: "duplicate link ID",
			link: model.Link{
				LinkID: "l1",
				Source: model.LinkEndpoint{OperatorID: "b", PortID: "output-0"},
				Target: model.LinkEndpoint{OperatorID: "a", PortID: "input-0"},
			},
			want: ErrDuplicateLink,
		},
		{
			name: "duplicate source/target pair",
			link: linkBetween("l2", "a", "b"),
			want: ErrDuplicateLink,
		},
		{
			name: "missing source operator",
			link: linkBetween("l3", "ghost", "b"),
			want: ErrInvalidEndpoint,
		},
		{
			name: "missing target operator",
			link: linkBetween("l4", "a", "ghost"),
			want: ErrInvalidEndpoint,
		},
		{
			name: "unknown source port",
			link: model.Link{
				LinkID: "l5",
				Source: model.LinkEndpoint{OperatorID: "a", PortID: "output-9"},
				Target: model.LinkEndpoint{OperatorID: "b", PortID: "input-0"},
			},
			want: ErrInvalidEndpoint,
		},
		{
			name: "unknown target port",
			link: model.Link{
				LinkID: "l6",
				Source: model.LinkEndpoint{OperatorID: "a", PortID: "output-0"},
				Target: model.LinkEndpoint{OperatorID: "b", PortID: "input-9"},
			},
			want: ErrInvalidEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddLink(tt.link)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// A failed insert must not leave partial state behind.
	assert.Len(t, g.Links(), 1)
}

func TestWorkflowGraph_SetOperatorProperties(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(middleOperator("f")))

	var events []PropertyChangedEvent

	g.OnPropertyChanged(func(e PropertyChangedEvent) { events = append(events, e) })

	props := map[string]any{"predicate": "age > 18"}
	require.NoError(t, g.SetOperatorProperties("f", props))

	op, err := g.Operator("f")
	require.NoError(t, err)
	assert.Equal(t, props, op.Properties)

	require.Len(t, events, 1)
	assert.Nil(t, events[0].OldOperator.Properties)
	assert.Equal(t, props, events[0].NewOperator.Properties)

	err = g.SetOperatorProperties("ghost", props)
	assert.ErrorIs(t, err, ErrOperatorNotFound)
}

func TestWorkflowGraph_Breakpoints(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "b")))

	count := uint64(100)
	require.NoError(t, g.SetLinkBreakpoint("l1", &model.Breakpoint{Count: &count}))

	bp, ok := g.Breakpoint("l1")
	require.True(t, ok)
	require.NotNil(t, bp.Count)
	assert.Equal(t, uint64(100), *bp.Count)

	// nil removes.
	require.NoError(t, g.SetLinkBreakpoint("l1", nil))

	_, ok = g.Breakpoint("l1")
	assert.False(t, ok)

	// An empty predicate also removes, and removing twice emits nothing.
	var changes int

	g.OnBreakpointChanged(func(BreakpointChangedEvent) { changes++ })

	require.NoError(t, g.SetLinkBreakpoint("l1", &model.Breakpoint{}))
	assert.Zero(t, changes)

	err := g.SetLinkBreakpoint("ghost", &model.Breakpoint{Count: &count})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestWorkflowGraph_IdempotentFlagChanges(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(middleOperator("f")))
	require.NoError(t, g.AddOperator(sinkOperator("sink")))

	var disabledEvents, cachedEvents, renameEvents int

	g.OnDisabledChanged(func(DisabledChangedEvent) { disabledEvents++ })
	g.OnCachedChanged(func(CachedChangedEvent) { cachedEvents++ })
	g.OnDisplayNameChanged(func(DisplayNameChangedEvent) { renameEvents++ })

	require.NoError(t, g.DisableOperator("f"))
	require.NoError(t, g.DisableOperator("f"))
	assert.Equal(t, 1, disabledEvents)

	require.NoError(t, g.EnableOperator("f"))
	assert.Equal(t, 2, disabledEvents)

	require.NoError(t, g.CacheOperator("f"))
	require.NoError(t, g.CacheOperator("f"))
	assert.Equal(t, 1, cachedEvents)

	// Caching a sink is a no-op.
	require.NoError(t, g.CacheOperator("sink"))
	assert.Equal(t, 1, cachedEvents)

	sink, err := g.Operator("sink")
	require.NoError(t, err)
	assert.False(t, sink.MarkedForReuse)

	require.NoError(t, g.SetDisplayName("f", "My Filter"))
	require.NoError(t, g.SetDisplayName("f", "My Filter"))
	assert.Equal(t, 1, renameEvents)
}

func TestWorkflowGraph_EnabledProjections(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(middleOperator("f")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "f")))
	require.NoError(t, g.AddLink(linkBetween("l2", "f", "b")))

	require.NoError(t, g.DisableOperator("f"))

	enabledOps := g.EnabledOperators()
	assert.Len(t, enabledOps, 2)

	// A link is enabled iff neither endpoint operator is disabled.
	assert.Empty(t, g.EnabledLinks())

	require.NoError(t, g.EnableOperator("f"))
	assert.Len(t, g.EnabledLinks(), 2)
}

func TestWorkflowGraph_InputOutputLinks(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(middleOperator("f")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "f")))
	require.NoError(t, g.AddLink(linkBetween("l2", "f", "b")))

	inputs := g.InputLinks("f")
	require.Len(t, inputs, 1)
	assert.Equal(t, "l1", inputs[0].LinkID)

	outputs := g.OutputLinks("f")
	require.Len(t, outputs, 1)
	assert.Equal(t, "l2", outputs[0].LinkID)
}

func TestWorkflowGraph_CommentBoxes(t *testing.T) {
	g := NewWorkflowGraph()

	box := model.CommentBox{CommentBoxID: "cb-1", Position: model.Point{X: 10, Y: 20}}
	require.NoError(t, g.AddCommentBox(box))

	require.NoError(t, g.AddComment("cb-1", model.Comment{Content: "first", CreatorName: "alice"}))
	require.NoError(t, g.AddComment("cb-1", model.Comment{Content: "second", CreatorName: "bob"}))
	require.NoError(t, g.EditComment("cb-1", 1, model.Comment{Content: "edited", CreatorName: "bob"}))
	require.NoError(t, g.DeleteComment("cb-1", 0))

	got, err := g.CommentBox("cb-1")
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "edited", got.Comments[0].Content)

	err = g.EditComment("cb-1", 5, model.Comment{})
	assert.ErrorIs(t, err, ErrCommentNotFound)

	require.NoError(t, g.DeleteCommentBox("cb-1"))
	assert.ErrorIs(t, g.DeleteCommentBox("cb-1"), ErrCommentBoxNotFound)
}

func TestWorkflowGraph_ContentRoundTrip(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(middleOperator("f")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "f")))
	require.NoError(t, g.AddLink(linkBetween("l2", "f", "b")))

	count := uint64(42)
	require.NoError(t, g.SetLinkBreakpoint("l1", &model.Breakpoint{Count: &count}))
	require.NoError(t, g.AddCommentBox(model.CommentBox{CommentBoxID: "cb-1"}))

	positions := map[string]model.Point{
		"a": {X: 0, Y: 0},
		"f": {X: 100, Y: 0},
		"b": {X: 200, Y: 0},
	}

	content := g.Content(positions, model.DefaultWorkflowSettings())

	doc := &model.WorkflowDocument{Name: "round trip"}
	require.NoError(t, doc.SetContent(content))
	require.NoError(t, doc.Validate())

	decoded, err := doc.DecodeContent()
	require.NoError(t, err)

	restored, err := FromContent(decoded)
	require.NoError(t, err)

	assert.Equal(t, g.Operators(), restored.Operators())
	assert.Equal(t, g.Links(), restored.Links())
	assert.Equal(t, g.Breakpoints(), restored.Breakpoints())
	assert.Equal(t, g.CommentBoxes(), restored.CommentBoxes())
	assert.Equal(t, positions, decoded.OperatorPositions)
}

func TestWorkflowGraph_LogicalPlan_ExcludesDisabled(t *testing.T) {
	g := NewWorkflowGraph()
	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(middleOperator("f")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "f")))
	require.NoError(t, g.AddLink(linkBetween("l2", "f", "b")))
	require.NoError(t, g.DisableOperator("f"))

	operators, links, breakpoints, err := g.LogicalPlan()
	require.NoError(t, err)

	assert.Len(t, operators, 2)
	assert.Empty(t, links)
	assert.Empty(t, breakpoints)
}

func TestWorkflowGraph_EventOrderMatchesMutationOrder(t *testing.T) {
	g := NewWorkflowGraph()

	var order []string

	g.OnOperatorAdded(func(e OperatorAddedEvent) { order = append(order, "op:"+e.Operator.OperatorID) })
	g.OnLinkAdded(func(e LinkAddedEvent) { order = append(order, "link:"+e.Link.LinkID) })

	require.NoError(t, g.AddOperator(sourceOperator("a")))
	require.NoError(t, g.AddOperator(sinkOperator("b")))
	require.NoError(t, g.AddLink(linkBetween("l1", "a", "b")))

	assert.Equal(t, []string{"op:a", "op:b", "link:l1"}, order)
}

func TestWorkflowGraph_WithRemoteOrigin(t *testing.T) {
	g := NewWorkflowGraph()

	var locals []bool

	g.OnOperatorAdded(func(e OperatorAddedEvent) { locals = append(locals, e.IsLocal) })

	require.NoError(t, g.AddOperator(sourceOperator("local-op")))

	g.WithRemoteOrigin(func() {
		require.NoError(t, g.AddOperator(sourceOperator("remote-op")))
	})

	// The marker must be restored after the scope exits.
	require.NoError(t, g.AddOperator(sourceOperator("local-op-2")))

	assert.Equal(t, []bool{true, false, true}, locals)
}
