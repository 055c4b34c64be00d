package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

func syncFixture(t *testing.T) (*Sync, *View, *graph.WorkflowGraph, *shared.SharedGraph) {
	t.Helper()

	g := graph.NewWorkflowGraph()
	sg := shared.NewSharedGraph("site-a", g)
	view := NewView(NewMemoryRenderer())

	return NewSync(view, g, sg), view, g, sg
}

func scanOperator(id string) model.Operator {
	return model.Operator{
		OperatorID:   id,
		OperatorType: "table-scan",
		OutputPorts:  []model.Port{{PortID: "out"}},
		InputPorts:   []model.Port{{PortID: "in"}},
	}
}

func TestSync_LocalAddIsHighlighted(t *testing.T) {
	_, view, g, _ := syncFixture(t)

	require.NoError(t, g.AddOperator(scanOperator("op-1")))

	assert.True(t, view.HasCell("op-1"))
	assert.True(t, view.IsHighlighted("op-1"))
}

func TestSync_RemoteAddIsNotHighlighted(t *testing.T) {
	_, view, g, _ := syncFixture(t)

	g.WithRemoteOrigin(func() {
		require.NoError(t, g.AddOperator(scanOperator("op-1")))
	})

	assert.True(t, view.HasCell("op-1"))
	assert.False(t, view.IsHighlighted("op-1"))
}

func TestSync_LinkCellFollowsGraph(t *testing.T) {
	_, view, g, _ := syncFixture(t)

	require.NoError(t, g.AddOperator(scanOperator("op-1")))
	require.NoError(t, g.AddOperator(scanOperator("op-2")))
	require.NoError(t, g.AddLink(model.Link{
		LinkID: "link-1",
		Source: model.LinkEndpoint{OperatorID: "op-1", PortID: "out"},
		Target: model.LinkEndpoint{OperatorID: "op-2", PortID: "in"},
	}))

	source, target, err := view.LinkEnds("link-1")
	require.NoError(t, err)
	assert.Equal(t, "op-1", source)
	assert.Equal(t, "op-2", target)

	// Deleting the operator cascades the link out of the view too.
	require.NoError(t, g.DeleteOperator("op-1"))
	assert.False(t, view.HasCell("op-1"))
	assert.False(t, view.HasCell("link-1"))
}

func TestSync_RemotePositionMovesCell(t *testing.T) {
	_, view, g, sg := syncFixture(t)

	require.NoError(t, g.AddOperator(scanOperator("op-1")))

	remote := graph.NewWorkflowGraph()
	remoteShared := shared.NewSharedGraph("site-b", remote)
	remoteShared.OnBroadcast(func(update shared.Update) {
		sg.ApplyUpdate(update)
	})

	require.NoError(t, remote.AddOperator(scanOperator("op-1")))
	require.NoError(t, remoteShared.SetOperatorPosition("op-1", model.Point{X: 42, Y: 7}))

	position, err := view.CellPosition("op-1")
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 42, Y: 7}, position)
}

func TestSync_MoveOperatorBroadcasts(t *testing.T) {
	s, view, g, sg := syncFixture(t)

	require.NoError(t, g.AddOperator(scanOperator("op-1")))

	var updates []shared.Update
	sg.OnBroadcast(func(update shared.Update) { updates = append(updates, update) })

	require.NoError(t, s.MoveOperator("op-1", model.Point{X: 3, Y: 4}))

	position, err := view.CellPosition("op-1")
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 3, Y: 4}, position)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	require.Len(t, last.Positions, 1)
	assert.Equal(t, "op-1", last.Positions[0].Key)
}

func TestSync_BatchingDefersAdds(t *testing.T) {
	s, view, g, _ := syncFixture(t)

	s.SetBatching(true)
	require.NoError(t, g.AddOperator(scanOperator("op-1")))
	require.NoError(t, g.AddOperator(scanOperator("op-2")))
	assert.False(t, view.HasCell("op-1"))

	// A delete while batching cancels the queued add.
	require.NoError(t, g.DeleteOperator("op-2"))

	s.Flush()
	assert.True(t, view.HasCell("op-1"))
	assert.False(t, view.HasCell("op-2"))
}
