package group

import (
	"fmt"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// boundsMargin is the padding between a group's bounding box and its
// outermost member cells.
const boundsMargin = 30.0

// Canvas is the slice of the presentation layer the grouping model needs:
// live positions and layers, cell visibility, and the group placeholder
// cell. The scene view satisfies it; tests use a fake.
type Canvas interface {
	CellPosition(id string) (model.Point, error)
	CellLayer(id string) (int, error)
	HideCell(id string) error
	ShowCell(id string) error
	UpsertGroupCell(groupID string, topLeft model.Point, width, height float64)
	RemoveGroupCell(groupID string)
	RerouteLink(linkID, sourceCellID, targetCellID string) error
}

// Events emitted by the manager.

type GroupAddedEvent struct{ GroupID string }

type GroupDeletedEvent struct{ GroupID string }

type GroupCollapsedEvent struct{ GroupID string }

type GroupExpandedEvent struct{ GroupID string }

// Manager maintains the strict partition of operators and links into groups
// and drives collapse/expand against the canvas.
type Manager struct {
	graph  *graph.WorkflowGraph
	canvas Canvas

	groups          map[string]*Group
	operatorToGroup map[string]string
	linkToGroup     map[string]string

	addedHandlers     []func(GroupAddedEvent)
	deletedHandlers   []func(GroupDeletedEvent)
	collapsedHandlers []func(GroupCollapsedEvent)
	expandedHandlers  []func(GroupExpandedEvent)
}

// NewManager creates a grouping manager over a graph and canvas. It prunes
// group membership automatically as operators and links are deleted.
func NewManager(g *graph.WorkflowGraph, canvas Canvas) *Manager {
	m := &Manager{
		graph:           g,
		canvas:          canvas,
		groups:          make(map[string]*Group),
		operatorToGroup: make(map[string]string),
		linkToGroup:     make(map[string]string),
	}

	g.OnOperatorDeleted(func(e graph.OperatorDeletedEvent) { m.pruneOperator(e.OperatorID) })
	g.OnLinkDeleted(func(e graph.LinkDeletedEvent) { m.pruneLink(e.Link.LinkID) })

	return m
}

func (m *Manager) OnGroupAdded(h func(GroupAddedEvent))         { m.addedHandlers = append(m.addedHandlers, h) }
func (m *Manager) OnGroupDeleted(h func(GroupDeletedEvent))     { m.deletedHandlers = append(m.deletedHandlers, h) }
func (m *Manager) OnGroupCollapsed(h func(GroupCollapsedEvent)) { m.collapsedHandlers = append(m.collapsedHandlers, h) }
func (m *Manager) OnGroupExpanded(h func(GroupExpandedEvent))   { m.expandedHandlers = append(m.expandedHandlers, h) }

// NewGroup computes a group over the given operators: member links have both
// endpoints inside, in-links only their target, out-links only their source.
// All operators must exist, be ungrouped, and number at least two.
func (m *Manager) NewGroup(operatorIDs []string) (*Group, error) {
	if len(operatorIDs) < 2 {
		return nil, fmt.Errorf("NewGroup: %w: need at least 2 operators, got %d", ErrNotGroupable, len(operatorIDs))
	}

	g := &Group{
		GroupID:   NewGroupID(),
		Operators: make(map[string]*OperatorInfo, len(operatorIDs)),
		Links:     make(map[string]model.Link),
		InLinks:   make(map[string]model.Link),
		OutLinks:  make(map[string]model.Link),
	}

	for _, id := range operatorIDs {
		if !m.graph.HasOperator(id) {
			return nil, fmt.Errorf("NewGroup: %w: unknown operator %s", ErrNotGroupable, id)
		}

		if owner, grouped := m.operatorToGroup[id]; grouped {
			return nil, fmt.Errorf("NewGroup: %w: operator %s is in group %s", ErrNotGroupable, id, owner)
		}

		if _, duplicate := g.Operators[id]; duplicate {
			return nil, fmt.Errorf("NewGroup: %w: operator %s listed twice", ErrNotGroupable, id)
		}

		g.Operators[id] = &OperatorInfo{}
	}

	for _, link := range m.graph.Links() {
		switch g.classify(link) {
		case classMember:
			g.Links[link.LinkID] = link
		case classIn:
			g.InLinks[link.LinkID] = link
		case classOut:
			g.OutLinks[link.LinkID] = link
		case classNone:
		}
	}

	return g, nil
}

// AddGroup registers a group. Every member operator and link must be free:
// membership is a strict partition and violations fail fast.
func (m *Manager) AddGroup(g *Group) error {
	if _, exists := m.groups[g.GroupID]; exists {
		return fmt.Errorf("AddGroup: %w: %s", ErrDuplicateGroup, g.GroupID)
	}

	if len(g.Operators) < 2 {
		return fmt.Errorf("AddGroup: %w: group %s has fewer than 2 operators", ErrNotGroupable, g.GroupID)
	}

	for id := range g.Operators {
		if owner, grouped := m.operatorToGroup[id]; grouped {
			return fmt.Errorf("AddGroup: %w: operator %s is in group %s", ErrAlreadyGrouped, id, owner)
		}
	}

	for id := range g.Links {
		if owner, grouped := m.linkToGroup[id]; grouped {
			return fmt.Errorf("AddGroup: %w: link %s is in group %s", ErrAlreadyGrouped, id, owner)
		}
	}

	m.groups[g.GroupID] = g

	for id := range g.Operators {
		m.operatorToGroup[id] = g.GroupID
	}

	for id := range g.Links {
		m.linkToGroup[id] = g.GroupID
	}

	for _, h := range m.addedHandlers {
		h(GroupAddedEvent{GroupID: g.GroupID})
	}

	return nil
}

// DeleteGroup unregisters a group, expanding it first if collapsed.
func (m *Manager) DeleteGroup(groupID string) error {
	g, exists := m.groups[groupID]
	if !exists {
		return fmt.Errorf("DeleteGroup: %w: %s", ErrGroupNotFound, groupID)
	}

	if g.Collapsed {
		if err := m.ExpandGroup(groupID); err != nil {
			return err
		}
	}

	for id := range g.Operators {
		delete(m.operatorToGroup, id)
	}

	for id := range g.Links {
		delete(m.linkToGroup, id)
	}

	m.canvas.RemoveGroupCell(groupID)
	delete(m.groups, groupID)

	for _, h := range m.deletedHandlers {
		h(GroupDeletedEvent{GroupID: groupID})
	}

	return nil
}

// Group returns the group with the given ID.
func (m *Manager) Group(groupID string) (*Group, error) {
	g, exists := m.groups[groupID]
	if !exists {
		return nil, fmt.Errorf("Group: %w: %s", ErrGroupNotFound, groupID)
	}

	return g, nil
}

// GroupOf returns the group owning the given operator, if any.
func (m *Manager) GroupOf(operatorID string) (*Group, bool) {
	groupID, grouped := m.operatorToGroup[operatorID]
	if !grouped {
		return nil, false
	}

	return m.groups[groupID], true
}

// CollapseGroup hides the group's member cells, captures their positions and
// layers for later restore, and reroutes boundary links to the group's
// placeholder cell.
func (m *Manager) CollapseGroup(groupID string) error {
	g, exists := m.groups[groupID]
	if !exists {
		return fmt.Errorf("CollapseGroup: %w: %s", ErrGroupNotFound, groupID)
	}

	if g.Collapsed {
		return fmt.Errorf("CollapseGroup: %w: %s", ErrAlreadyCollapsed, groupID)
	}

	if err := m.RepositionGroup(groupID); err != nil {
		return err
	}

	for id, info := range g.Operators {
		position, err := m.canvas.CellPosition(id)
		if err != nil {
			return fmt.Errorf("CollapseGroup: %w", err)
		}

		layer, err := m.canvas.CellLayer(id)
		if err != nil {
			return fmt.Errorf("CollapseGroup: %w", err)
		}

		info.Position = position
		info.Layer = layer

		if err := m.canvas.HideCell(id); err != nil {
			return fmt.Errorf("CollapseGroup: %w", err)
		}
	}

	for id := range g.Links {
		if err := m.canvas.HideCell(id); err != nil {
			return fmt.Errorf("CollapseGroup: %w", err)
		}
	}

	for id, link := range g.InLinks {
		if err := m.canvas.RerouteLink(id, link.Source.OperatorID, groupID); err != nil {
			return fmt.Errorf("CollapseGroup: %w", err)
		}
	}

	for id, link := range g.OutLinks {
		if err := m.canvas.RerouteLink(id, groupID, link.Target.OperatorID); err != nil {
			return fmt.Errorf("CollapseGroup: %w", err)
		}
	}

	g.Collapsed = true

	for _, h := range m.collapsedHandlers {
		h(GroupCollapsedEvent{GroupID: groupID})
	}

	return nil
}

// ExpandGroup restores member cells and boundary link routing, then refits
// the group's bounding box to its members.
func (m *Manager) ExpandGroup(groupID string) error {
	g, exists := m.groups[groupID]
	if !exists {
		return fmt.Errorf("ExpandGroup: %w: %s", ErrGroupNotFound, groupID)
	}

	if !g.Collapsed {
		return fmt.Errorf("ExpandGroup: %w: %s", ErrAlreadyExpanded, groupID)
	}

	for id := range g.Operators {
		if err := m.canvas.ShowCell(id); err != nil {
			return fmt.Errorf("ExpandGroup: %w", err)
		}
	}

	for id := range g.Links {
		if err := m.canvas.ShowCell(id); err != nil {
			return fmt.Errorf("ExpandGroup: %w", err)
		}
	}

	for id, link := range g.InLinks {
		if err := m.canvas.RerouteLink(id, link.Source.OperatorID, link.Target.OperatorID); err != nil {
			return fmt.Errorf("ExpandGroup: %w", err)
		}
	}

	for id, link := range g.OutLinks {
		if err := m.canvas.RerouteLink(id, link.Source.OperatorID, link.Target.OperatorID); err != nil {
			return fmt.Errorf("ExpandGroup: %w", err)
		}
	}

	g.Collapsed = false

	if err := m.RepositionGroup(groupID); err != nil {
		return err
	}

	for _, h := range m.expandedHandlers {
		h(GroupExpandedEvent{GroupID: groupID})
	}

	return nil
}

// AddOperatorToGroup grows a group by one ungrouped operator. Existing in-
// and out-links whose far end is the new member become full member links;
// other links incident to it are reclassified from scratch.
func (m *Manager) AddOperatorToGroup(groupID, operatorID string) error {
	g, exists := m.groups[groupID]
	if !exists {
		return fmt.Errorf("AddOperatorToGroup: %w: %s", ErrGroupNotFound, groupID)
	}

	if !m.graph.HasOperator(operatorID) {
		return fmt.Errorf("AddOperatorToGroup: %w: unknown operator %s", ErrNotGroupable, operatorID)
	}

	if owner, grouped := m.operatorToGroup[operatorID]; grouped {
		return fmt.Errorf("AddOperatorToGroup: %w: operator %s is in group %s", ErrAlreadyGrouped, operatorID, owner)
	}

	g.Operators[operatorID] = &OperatorInfo{}
	m.operatorToGroup[operatorID] = groupID

	m.reclassifyBoundary(g)

	for _, link := range m.graph.Links() {
		if !link.Touches(operatorID) {
			continue
		}

		if _, tracked := g.Links[link.LinkID]; tracked {
			continue
		}

		switch g.classify(link) {
		case classMember:
			if owner, grouped := m.linkToGroup[link.LinkID]; grouped && owner != groupID {
				continue
			}

			g.Links[link.LinkID] = link
			m.linkToGroup[link.LinkID] = groupID
			delete(g.InLinks, link.LinkID)
			delete(g.OutLinks, link.LinkID)
		case classIn:
			g.InLinks[link.LinkID] = link
		case classOut:
			g.OutLinks[link.LinkID] = link
		case classNone:
		}
	}

	return nil
}

// reclassifyBoundary promotes in/out-links whose both endpoints ended up
// inside the group to full members.
func (m *Manager) reclassifyBoundary(g *Group) {
	for id, link := range g.InLinks {
		if g.classify(link) == classMember {
			delete(g.InLinks, id)
			g.Links[id] = link
			m.linkToGroup[id] = g.GroupID
		}
	}

	for id, link := range g.OutLinks {
		if g.classify(link) == classMember {
			delete(g.OutLinks, id)
			g.Links[id] = link
			m.linkToGroup[id] = g.GroupID
		}
	}
}

// AddLinkToGroup registers a link whose both endpoints are members.
func (m *Manager) AddLinkToGroup(groupID, linkID string) error {
	g, link, err := m.groupAndLink("AddLinkToGroup", groupID, linkID)
	if err != nil {
		return err
	}

	if owner, grouped := m.linkToGroup[linkID]; grouped {
		return fmt.Errorf("AddLinkToGroup: %w: link %s is in group %s", ErrAlreadyGrouped, linkID, owner)
	}

	if class := g.classify(link); class != classMember {
		return qualificationError("AddLinkToGroup", linkID, classMember, class)
	}

	g.Links[linkID] = link
	m.linkToGroup[linkID] = groupID

	return nil
}

// AddInLinkToGroup registers a link entering the group: its target, and only
// its target, must be a member.
func (m *Manager) AddInLinkToGroup(groupID, linkID string) error {
	g, link, err := m.groupAndLink("AddInLinkToGroup", groupID, linkID)
	if err != nil {
		return err
	}

	if class := g.classify(link); class != classIn {
		return qualificationError("AddInLinkToGroup", linkID, classIn, class)
	}

	g.InLinks[linkID] = link

	return nil
}

// AddOutLinkToGroup registers a link leaving the group: its source, and only
// its source, must be a member.
func (m *Manager) AddOutLinkToGroup(groupID, linkID string) error {
	g, link, err := m.groupAndLink("AddOutLinkToGroup", groupID, linkID)
	if err != nil {
		return err
	}

	if class := g.classify(link); class != classOut {
		return qualificationError("AddOutLinkToGroup", linkID, classOut, class)
	}

	g.OutLinks[linkID] = link

	return nil
}

func (m *Manager) groupAndLink(op, groupID, linkID string) (*Group, model.Link, error) {
	g, exists := m.groups[groupID]
	if !exists {
		return nil, model.Link{}, fmt.Errorf("%s: %w: %s", op, ErrGroupNotFound, groupID)
	}

	link, err := m.graph.LinkWithID(linkID)
	if err != nil {
		return nil, model.Link{}, fmt.Errorf("%s: %w", op, err)
	}

	return g, link, nil
}

// RepositionGroup recomputes the group's bounding rectangle from current
// member positions plus a fixed margin and refits the placeholder cell.
func (m *Manager) RepositionGroup(groupID string) error {
	g, exists := m.groups[groupID]
	if !exists {
		return fmt.Errorf("RepositionGroup: %w: %s", ErrGroupNotFound, groupID)
	}

	first := true

	var minX, minY, maxX, maxY float64

	for id, info := range g.Operators {
		position := info.Position

		if !g.Collapsed {
			live, err := m.canvas.CellPosition(id)
			if err != nil {
				return fmt.Errorf("RepositionGroup: %w", err)
			}

			position = live
		}

		if first {
			minX, maxX = position.X, position.X
			minY, maxY = position.Y, position.Y
			first = false

			continue
		}

		minX = min(minX, position.X)
		maxX = max(maxX, position.X)
		minY = min(minY, position.Y)
		maxY = max(maxY, position.Y)
	}

	topLeft := model.Point{X: minX - boundsMargin, Y: minY - boundsMargin}
	width := maxX - minX + 2*boundsMargin
	height := maxY - minY + 2*boundsMargin

	m.canvas.UpsertGroupCell(groupID, topLeft, width, height)

	return nil
}

// OperatorPositionByGroup returns the live canvas position when the
// operator's group is expanded (or it has no group), and the position
// captured at collapse time otherwise.
func (m *Manager) OperatorPositionByGroup(operatorID string) (model.Point, error) {
	if g, grouped := m.GroupOf(operatorID); grouped && g.Collapsed {
		return g.Operators[operatorID].Position, nil
	}

	return m.canvas.CellPosition(operatorID)
}

// OperatorLayerByGroup is OperatorPositionByGroup for z-order layers.
func (m *Manager) OperatorLayerByGroup(operatorID string) (int, error) {
	if g, grouped := m.GroupOf(operatorID); grouped && g.Collapsed {
		return g.Operators[operatorID].Layer, nil
	}

	return m.canvas.CellLayer(operatorID)
}

// pruneOperator drops a deleted operator from its group and reclassifies the
// group's boundary. Groups shrinking below two members are dissolved.
func (m *Manager) pruneOperator(operatorID string) {
	groupID, grouped := m.operatorToGroup[operatorID]
	if grouped {
		g := m.groups[groupID]
		delete(g.Operators, operatorID)
		delete(m.operatorToGroup, operatorID)

		if len(g.Operators) < 2 {
			_ = m.DeleteGroup(groupID)

			return
		}
	}

	// The deleted operator may be the far end of another group's in/out
	// links; those are pruned automatically.
	for _, g := range m.groups {
		for id, link := range g.InLinks {
			if link.Source.OperatorID == operatorID {
				delete(g.InLinks, id)
			}
		}

		for id, link := range g.OutLinks {
			if link.Target.OperatorID == operatorID {
				delete(g.OutLinks, id)
			}
		}
	}
}

// pruneLink drops a deleted link from any membership map.
func (m *Manager) pruneLink(linkID string) {
	if groupID, grouped := m.linkToGroup[linkID]; grouped {
		delete(m.groups[groupID].Links, linkID)
		delete(m.linkToGroup, linkID)

		return
	}

	for _, g := range m.groups {
		delete(g.InLinks, linkID)
		delete(g.OutLinks, linkID)
	}
}
