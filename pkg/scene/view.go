package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// Zoom bounds and default. The ratio is clamped, never rejected.
const (
	ZoomMinimum = 0.25
	ZoomMaximum = 2.0
	ZoomDefault = 1.0
)

var (
	// ErrCellNotFound indicates an operation referenced a cell that is not
	// on the canvas. Callers are expected to check the graph document first;
	// hitting this is a programming error, not a user mistake.
	ErrCellNotFound = errors.New("cell not found")

	// ErrDuplicateCell indicates a cell ID is already on the canvas.
	ErrDuplicateCell = errors.New("cell already exists")
)

type cellState struct {
	kind             CellKind
	position         model.Point
	previousPosition model.Point
	layer            int
	width            float64
	height           float64
	visible          bool
	source           string
	target           string
}

// View is the authoritative holder of presentation state. It mirrors every
// change onto the Renderer but can answer all queries without one, which
// keeps the layer headless-testable.
type View struct {
	renderer Renderer
	cells    map[string]*cellState

	highlighted map[CellKind]map[string]bool
	multiSelect bool
	zoom        float64
	nextLayer   int

	cellAdded       stream[CellAddedEvent]
	cellDeleted     stream[CellDeletedEvent]
	positionChanged stream[PositionChangedEvent]
	layerChanged    stream[LayerChangedEvent]
	highlight       stream[HighlightEvent]
	zoomChanged     stream[ZoomChangedEvent]
	restoreView     stream[RestoreViewEvent]
}

// NewView creates an empty view over the given renderer.
func NewView(renderer Renderer) *View {
	return &View{
		renderer: renderer,
		cells:    make(map[string]*cellState),
		highlighted: map[CellKind]map[string]bool{
			CellKindOperator:   {},
			CellKindLink:       {},
			CellKindCommentBox: {},
			CellKindGroup:      {},
		},
		zoom: ZoomDefault,
	}
}

func (v *View) OnCellAdded(h func(CellAddedEvent))             { v.cellAdded.subscribe(h) }
func (v *View) OnCellDeleted(h func(CellDeletedEvent))         { v.cellDeleted.subscribe(h) }
func (v *View) OnPositionChanged(h func(PositionChangedEvent)) { v.positionChanged.subscribe(h) }
func (v *View) OnLayerChanged(h func(LayerChangedEvent))       { v.layerChanged.subscribe(h) }
func (v *View) OnHighlightChanged(h func(HighlightEvent))      { v.highlight.subscribe(h) }
func (v *View) OnZoomChanged(h func(ZoomChangedEvent))         { v.zoomChanged.subscribe(h) }
func (v *View) OnRestoreView(h func(RestoreViewEvent))         { v.restoreView.subscribe(h) }

// AddCell places a new cell on the canvas on the topmost layer.
func (v *View) AddCell(id string, kind CellKind, position model.Point) error {
	return v.addCell(id, kind, position, "", "")
}

// AddLinkCell places a link cell drawn between two existing cells.
func (v *View) AddLinkCell(id, source, target string) error {
	return v.addCell(id, CellKindLink, model.Point{}, source, target)
}

func (v *View) addCell(id string, kind CellKind, position model.Point, source, target string) error {
	if _, exists := v.cells[id]; exists {
		return fmt.Errorf("AddCell: %w: %s", ErrDuplicateCell, id)
	}

	v.nextLayer++
	state := &cellState{
		kind:             kind,
		position:         position,
		previousPosition: position,
		layer:            v.nextLayer,
		visible:          true,
		source:           source,
		target:           target,
	}
	v.cells[id] = state

	cell := v.toCell(id, state)
	v.renderer.AddCell(cell)
	v.cellAdded.emit(CellAddedEvent{Cell: cell})

	return nil
}

func (v *View) toCell(id string, state *cellState) Cell {
	return Cell{
		ID:       id,
		Kind:     state.kind,
		Position: state.position,
		Layer:    state.layer,
		Width:    state.width,
		Height:   state.height,
		Visible:  state.visible,
		Source:   state.source,
		Target:   state.target,
	}
}

// DeleteCell removes a cell. A highlighted cell is unhighlighted first, so
// no observer ever sees a highlight referencing a deleted ID.
func (v *View) DeleteCell(id string) error {
	state, exists := v.cells[id]
	if !exists {
		return fmt.Errorf("DeleteCell: %w: %s", ErrCellNotFound, id)
	}

	if v.highlighted[state.kind][id] {
		v.unhighlightOne(id, state.kind)
	}

	delete(v.cells, id)
	v.renderer.RemoveCell(id)
	v.cellDeleted.emit(CellDeletedEvent{CellID: id, Kind: state.kind})

	return nil
}

// HasCell reports whether the cell is on the canvas.
func (v *View) HasCell(id string) bool {
	_, exists := v.cells[id]

	return exists
}

// CellPosition returns a cell's current position.
func (v *View) CellPosition(id string) (model.Point, error) {
	state, exists := v.cells[id]
	if !exists {
		return model.Point{}, fmt.Errorf("CellPosition: %w: %s", ErrCellNotFound, id)
	}

	return state.position, nil
}

// PreviousCellPosition returns the position before the most recent move.
func (v *View) PreviousCellPosition(id string) (model.Point, error) {
	state, exists := v.cells[id]
	if !exists {
		return model.Point{}, fmt.Errorf("PreviousCellPosition: %w: %s", ErrCellNotFound, id)
	}

	return state.previousPosition, nil
}

// SetCellPosition moves a cell, retaining the prior position.
func (v *View) SetCellPosition(id string, position model.Point) error {
	state, exists := v.cells[id]
	if !exists {
		return fmt.Errorf("SetCellPosition: %w: %s", ErrCellNotFound, id)
	}

	if state.position == position {
		return nil
	}

	old := state.position
	state.previousPosition = old
	state.position = position

	v.renderer.SetCellPosition(id, position)
	v.positionChanged.emit(PositionChangedEvent{CellID: id, OldPosition: old, NewPosition: position})

	return nil
}

// RestorePreviousPosition undoes the most recent move of a cell.
func (v *View) RestorePreviousPosition(id string) error {
	state, exists := v.cells[id]
	if !exists {
		return fmt.Errorf("RestorePreviousPosition: %w: %s", ErrCellNotFound, id)
	}

	return v.SetCellPosition(id, state.previousPosition)
}

// CellLayer returns a cell's z-order layer.
func (v *View) CellLayer(id string) (int, error) {
	state, exists := v.cells[id]
	if !exists {
		return 0, fmt.Errorf("CellLayer: %w: %s", ErrCellNotFound, id)
	}

	return state.layer, nil
}

// SetCellLayer moves a cell in the z-order.
func (v *View) SetCellLayer(id string, layer int) error {
	state, exists := v.cells[id]
	if !exists {
		return fmt.Errorf("SetCellLayer: %w: %s", ErrCellNotFound, id)
	}

	if state.layer == layer {
		return nil
	}

	state.layer = layer
	if layer > v.nextLayer {
		v.nextLayer = layer
	}

	v.renderer.SetCellLayer(id, layer)
	v.layerChanged.emit(LayerChangedEvent{CellID: id, Layer: layer})

	return nil
}

// SetCellSize resizes a cell.
func (v *View) SetCellSize(id string, width, height float64) error {
	state, exists := v.cells[id]
	if !exists {
		return fmt.Errorf("SetCellSize: %w: %s", ErrCellNotFound, id)
	}

	state.width = width
	state.height = height
	v.renderer.SetCellSize(id, width, height)

	return nil
}

// HideCell removes a cell from display without forgetting it.
func (v *View) HideCell(id string) error {
	return v.setVisible(id, false)
}

// ShowCell re-displays a hidden cell.
func (v *View) ShowCell(id string) error {
	return v.setVisible(id, true)
}

func (v *View) setVisible(id string, visible bool) error {
	state, exists := v.cells[id]
	if !exists {
		return fmt.Errorf("SetCellVisible: %w: %s", ErrCellNotFound, id)
	}

	if state.visible == visible {
		return nil
	}

	state.visible = visible
	v.renderer.SetCellVisible(id, visible)

	return nil
}

// IsCellVisible reports display state.
func (v *View) IsCellVisible(id string) (bool, error) {
	state, exists := v.cells[id]
	if !exists {
		return false, fmt.Errorf("IsCellVisible: %w: %s", ErrCellNotFound, id)
	}

	return state.visible, nil
}

// RerouteLink redraws a link cell between different endpoint cells. Used by
// group collapse to terminate boundary links at the group placeholder.
func (v *View) RerouteLink(id, source, target string) error {
	state, exists := v.cells[id]
	if !exists || state.kind != CellKindLink {
		return fmt.Errorf("RerouteLink: %w: %s", ErrCellNotFound, id)
	}

	state.source = source
	state.target = target
	v.renderer.SetLinkEnds(id, source, target)

	return nil
}

// LinkEnds returns the cell IDs a link cell is currently drawn between.
func (v *View) LinkEnds(id string) (string, string, error) {
	state, exists := v.cells[id]
	if !exists || state.kind != CellKindLink {
		return "", "", fmt.Errorf("LinkEnds: %w: %s", ErrCellNotFound, id)
	}

	return state.source, state.target, nil
}

// UpsertGroupCell creates or refits the placeholder cell of a group.
func (v *View) UpsertGroupCell(groupID string, topLeft model.Point, width, height float64) {
	if _, exists := v.cells[groupID]; !exists {
		_ = v.AddCell(groupID, CellKindGroup, topLeft)
	} else {
		_ = v.SetCellPosition(groupID, topLeft)
	}

	_ = v.SetCellSize(groupID, width, height)
}

// RemoveGroupCell drops a group's placeholder cell if present.
func (v *View) RemoveGroupCell(groupID string) {
	if v.HasCell(groupID) {
		_ = v.DeleteCell(groupID)
	}
}

// SetMultiSelectMode toggles accumulating selection.
func (v *View) SetMultiSelectMode(enabled bool) {
	v.multiSelect = enabled
}

// MultiSelectMode reports whether selections accumulate.
func (v *View) MultiSelectMode() bool {
	return v.multiSelect
}

// Highlight adds cells to the highlight set. Selection is exclusive by
// default: highlighting clears every other selection unless multi-select is
// active. Operators and links are never highlighted simultaneously, so a
// link highlight always evicts highlighted operators and vice versa.
func (v *View) Highlight(ids ...string) error {
	for _, id := range ids {
		state, exists := v.cells[id]
		if !exists {
			return fmt.Errorf("Highlight: %w: %s", ErrCellNotFound, id)
		}

		if !v.multiSelect {
			v.ClearHighlights()
		} else if state.kind == CellKindLink {
			v.clearKind(CellKindOperator)
		} else if state.kind == CellKindOperator {
			v.clearKind(CellKindLink)
		}

		if v.highlighted[state.kind][id] {
			continue
		}

		v.highlighted[state.kind][id] = true
		v.renderer.Highlight(id)
		v.highlight.emit(HighlightEvent{CellID: id, Kind: state.kind, Highlighted: true})
	}

	return nil
}

// Unhighlight removes cells from the highlight set.
func (v *View) Unhighlight(ids ...string) error {
	for _, id := range ids {
		state, exists := v.cells[id]
		if !exists {
			return fmt.Errorf("Unhighlight: %w: %s", ErrCellNotFound, id)
		}

		if v.highlighted[state.kind][id] {
			v.unhighlightOne(id, state.kind)
		}
	}

	return nil
}

func (v *View) unhighlightOne(id string, kind CellKind) {
	delete(v.highlighted[kind], id)
	v.renderer.Unhighlight(id)
	v.highlight.emit(HighlightEvent{CellID: id, Kind: kind, Highlighted: false})
}

func (v *View) clearKind(kind CellKind) {
	for id := range v.highlighted[kind] {
		v.unhighlightOne(id, kind)
	}
}

// ClearHighlights empties every highlight set.
func (v *View) ClearHighlights() {
	for kind := range v.highlighted {
		v.clearKind(kind)
	}
}

// Highlighted returns the highlighted IDs of one kind, sorted.
func (v *View) Highlighted(kind CellKind) []string {
	out := make([]string, 0, len(v.highlighted[kind]))
	for id := range v.highlighted[kind] {
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

// IsHighlighted reports whether a cell is in the highlight set.
func (v *View) IsHighlighted(id string) bool {
	state, exists := v.cells[id]
	if !exists {
		return false
	}

	return v.highlighted[state.kind][id]
}

// ZoomRatio returns the current zoom ratio.
func (v *View) ZoomRatio() float64 {
	return v.zoom
}

// SetZoomRatio clamps and applies a zoom ratio.
func (v *View) SetZoomRatio(ratio float64) {
	if ratio < ZoomMinimum {
		ratio = ZoomMinimum
	}

	if ratio > ZoomMaximum {
		ratio = ZoomMaximum
	}

	if ratio == v.zoom {
		return
	}

	v.zoom = ratio
	v.zoomChanged.emit(ZoomChangedEvent{Ratio: ratio})
}

// RestoreDefaultView resets zoom and asks observers to reset panning.
func (v *View) RestoreDefaultView() {
	v.SetZoomRatio(ZoomDefault)
	v.restoreView.emit(RestoreViewEvent{})
}
