// Package scene keeps a visual scene graph consistent with the workflow
// document and owns the ephemeral UI-only state: positions, z-order,
// highlight sets, zoom.
package scene

import "github.com/flowcanvas/flowcanvas/pkg/model"

// CellKind distinguishes the element kinds present on the canvas.
type CellKind string

const (
	CellKindOperator   CellKind = "operator"
	CellKindLink       CellKind = "link"
	CellKindCommentBox CellKind = "commentBox"
	CellKindGroup      CellKind = "group"
)

// Cell is the renderer-facing description of one canvas element.
type Cell struct {
	ID       string
	Kind     CellKind
	Position model.Point
	Layer    int
	Width    float64
	Height   float64
	Visible  bool

	// Link cells only: the cell IDs the edge is drawn between.
	Source string
	Target string
}

// Renderer is the capability surface the view drives. The core never
// references a concrete rendering library; an in-memory renderer makes the
// whole layer testable headlessly.
type Renderer interface {
	AddCell(cell Cell)
	RemoveCell(id string)
	SetCellPosition(id string, position model.Point)
	SetCellLayer(id string, layer int)
	SetCellSize(id string, width, height float64)
	SetCellVisible(id string, visible bool)
	SetLinkEnds(id, source, target string)
	Highlight(id string)
	Unhighlight(id string)
}

// MemoryRenderer is a headless Renderer retaining the last state of each
// cell. It backs tests and server-side rendering of canvas thumbnails.
type MemoryRenderer struct {
	cells       map[string]Cell
	highlighted map[string]bool
}

// NewMemoryRenderer creates an empty in-memory renderer.
func NewMemoryRenderer() *MemoryRenderer {
	return &MemoryRenderer{
		cells:       make(map[string]Cell),
		highlighted: make(map[string]bool),
	}
}

func (r *MemoryRenderer) AddCell(cell Cell) {
	r.cells[cell.ID] = cell
}

func (r *MemoryRenderer) RemoveCell(id string) {
	delete(r.cells, id)
	delete(r.highlighted, id)
}

func (r *MemoryRenderer) SetCellPosition(id string, position model.Point) {
	if cell, ok := r.cells[id]; ok {
		cell.Position = position
		r.cells[id] = cell
	}
}

func (r *MemoryRenderer) SetCellLayer(id string, layer int) {
	if cell, ok := r.cells[id]; ok {
		cell.Layer = layer
		r.cells[id] = cell
	}
}

func (r *MemoryRenderer) SetCellSize(id string, width, height float64) {
	if cell, ok := r.cells[id]; ok {
		cell.Width = width
		cell.Height = height
		r.cells[id] = cell
	}
}

func (r *MemoryRenderer) SetCellVisible(id string, visible bool) {
	if cell, ok := r.cells[id]; ok {
		cell.Visible = visible
		r.cells[id] = cell
	}
}

func (r *MemoryRenderer) SetLinkEnds(id, source, target string) {
	if cell, ok := r.cells[id]; ok {
		cell.Source = source
		cell.Target = target
		r.cells[id] = cell
	}
}

func (r *MemoryRenderer) Highlight(id string) {
	r.highlighted[id] = true
}

func (r *MemoryRenderer) Unhighlight(id string) {
	delete(r.highlighted, id)
}

// Cell returns the rendered state of a cell.
func (r *MemoryRenderer) Cell(id string) (Cell, bool) {
	cell, ok := r.cells[id]

	return cell, ok
}

// IsHighlighted reports the rendered highlight state of a cell.
func (r *MemoryRenderer) IsHighlighted(id string) bool {
	return r.highlighted[id]
}
