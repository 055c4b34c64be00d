package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

func newTestView(t *testing.T) (*View, *MemoryRenderer) {
	t.Helper()

	renderer := NewMemoryRenderer()

	return NewView(renderer), renderer
}

func TestView_AddAndDeleteCell(t *testing.T) {
	view, renderer := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{X: 10, Y: 20}))

	err := view.AddCell("op-1", CellKindOperator, model.Point{})
	require.ErrorIs(t, err, ErrDuplicateCell)

	cell, ok := renderer.Cell("op-1")
	require.True(t, ok)
	assert.Equal(t, model.Point{X: 10, Y: 20}, cell.Position)
	assert.True(t, cell.Visible)

	require.NoError(t, view.DeleteCell("op-1"))
	assert.False(t, view.HasCell("op-1"))

	err = view.DeleteCell("op-1")
	require.ErrorIs(t, err, ErrCellNotFound)
}

func TestView_LayersStack(t *testing.T) {
	view, _ := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{}))
	require.NoError(t, view.AddCell("op-2", CellKindOperator, model.Point{}))

	first, err := view.CellLayer("op-1")
	require.NoError(t, err)
	second, err := view.CellLayer("op-2")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	require.NoError(t, view.SetCellLayer("op-1", second+5))
	moved, err := view.CellLayer("op-1")
	require.NoError(t, err)
	assert.Equal(t, second+5, moved)
}

func TestView_PositionHistory(t *testing.T) {
	view, _ := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{X: 1, Y: 1}))
	require.NoError(t, view.SetCellPosition("op-1", model.Point{X: 5, Y: 5}))

	previous, err := view.PreviousCellPosition("op-1")
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 1, Y: 1}, previous)

	require.NoError(t, view.RestorePreviousPosition("op-1"))

	current, err := view.CellPosition("op-1")
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 1, Y: 1}, current)
}

func TestView_HighlightExclusivity(t *testing.T) {
	view, renderer := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{}))
	require.NoError(t, view.AddCell("op-2", CellKindOperator, model.Point{}))
	require.NoError(t, view.AddLinkCell("link-1", "op-1", "op-2"))

	require.NoError(t, view.Highlight("op-1"))
	assert.True(t, view.IsHighlighted("op-1"))

	// Without multi-select a new highlight replaces the selection.
	require.NoError(t, view.Highlight("op-2"))
	assert.False(t, view.IsHighlighted("op-1"))
	assert.True(t, view.IsHighlighted("op-2"))

	view.SetMultiSelectMode(true)
	require.NoError(t, view.Highlight("op-1"))
	assert.Equal(t, []string{"op-1", "op-2"}, view.Highlighted(CellKindOperator))

	// Highlighting a link evicts all highlighted operators even in
	// multi-select mode.
	require.NoError(t, view.Highlight("link-1"))
	assert.Empty(t, view.Highlighted(CellKindOperator))
	assert.Equal(t, []string{"link-1"}, view.Highlighted(CellKindLink))
	assert.False(t, renderer.IsHighlighted("op-1"))

	// And the other way around.
	require.NoError(t, view.Highlight("op-1"))
	assert.Empty(t, view.Highlighted(CellKindLink))
}

func TestView_UnhighlightUnknownCell(t *testing.T) {
	view, _ := newTestView(t)

	err := view.Highlight("ghost")
	require.ErrorIs(t, err, ErrCellNotFound)

	err = view.Unhighlight("ghost")
	require.ErrorIs(t, err, ErrCellNotFound)
}

func TestView_DeleteUnhighlightsFirst(t *testing.T) {
	view, _ := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{}))
	require.NoError(t, view.Highlight("op-1"))

	var events []HighlightEvent
	view.OnHighlightChanged(func(ev HighlightEvent) { events = append(events, ev) })

	var deleted []CellDeletedEvent
	view.OnCellDeleted(func(ev CellDeletedEvent) { deleted = append(deleted, ev) })

	require.NoError(t, view.DeleteCell("op-1"))

	require.Len(t, events, 1)
	assert.False(t, events[0].Highlighted)
	require.Len(t, deleted, 1)
	assert.Empty(t, view.Highlighted(CellKindOperator))
}

func TestView_ZoomClamped(t *testing.T) {
	view, _ := newTestView(t)

	var ratios []float64
	view.OnZoomChanged(func(ev ZoomChangedEvent) { ratios = append(ratios, ev.Ratio) })

	view.SetZoomRatio(10.0)
	assert.Equal(t, ZoomMaximum, view.ZoomRatio())

	view.SetZoomRatio(0.01)
	assert.Equal(t, ZoomMinimum, view.ZoomRatio())

	// Clamped repeats do not re-emit.
	view.SetZoomRatio(0.0)
	assert.Equal(t, []float64{ZoomMaximum, ZoomMinimum}, ratios)
}

func TestView_RestoreDefaultView(t *testing.T) {
	view, _ := newTestView(t)

	restored := 0
	view.OnRestoreView(func(RestoreViewEvent) { restored++ })

	view.SetZoomRatio(1.5)
	view.RestoreDefaultView()

	assert.Equal(t, ZoomDefault, view.ZoomRatio())
	assert.Equal(t, 1, restored)
}

func TestView_HideAndShow(t *testing.T) {
	view, renderer := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{}))
	require.NoError(t, view.HideCell("op-1"))

	cell, _ := renderer.Cell("op-1")
	assert.False(t, cell.Visible)

	visible, err := view.IsCellVisible("op-1")
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, view.ShowCell("op-1"))
	visible, err = view.IsCellVisible("op-1")
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestView_RerouteLink(t *testing.T) {
	view, _ := newTestView(t)

	require.NoError(t, view.AddCell("op-1", CellKindOperator, model.Point{}))
	require.NoError(t, view.AddCell("op-2", CellKindOperator, model.Point{}))
	require.NoError(t, view.AddLinkCell("link-1", "op-1", "op-2"))

	require.NoError(t, view.RerouteLink("link-1", "group-1", "op-2"))

	source, target, err := view.LinkEnds("link-1")
	require.NoError(t, err)
	assert.Equal(t, "group-1", source)
	assert.Equal(t, "op-2", target)

	err = view.RerouteLink("op-1", "a", "b")
	require.ErrorIs(t, err, ErrCellNotFound)
}

func TestView_UpsertGroupCell(t *testing.T) {
	view, renderer := newTestView(t)

	view.UpsertGroupCell("group-1", model.Point{X: 5, Y: 5}, 100, 60)

	cell, ok := renderer.Cell("group-1")
	require.True(t, ok)
	assert.Equal(t, CellKindGroup, cell.Kind)
	assert.Equal(t, 100.0, cell.Width)

	view.UpsertGroupCell("group-1", model.Point{X: 0, Y: 0}, 120, 80)
	cell, _ = renderer.Cell("group-1")
	assert.Equal(t, model.Point{X: 0, Y: 0}, cell.Position)
	assert.Equal(t, 120.0, cell.Width)

	view.RemoveGroupCell("group-1")
	assert.False(t, view.HasCell("group-1"))

	// Removing an absent group cell is a no-op.
	view.RemoveGroupCell("group-1")
}
