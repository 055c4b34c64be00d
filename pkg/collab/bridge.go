// Package collab fans replicated-document deltas out to other editors of
// the same workflow through the event bus.
package collab

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/flowcanvas/flowcanvas/pkg/eventbus"
	"github.com/flowcanvas/flowcanvas/pkg/events"
	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

// Bridge connects one editing site's shared graph to the bus: local deltas
// are published, remote deltas applied. A joining site requests the full
// replicated state from its peers.
type Bridge struct {
	bus        eventbus.EventBus
	shared     *shared.SharedGraph
	workflowID uint64
	siteID     string
	logger     *slog.Logger
	ctx        context.Context
}

func NewBridge(bus eventbus.EventBus, sg *shared.SharedGraph, workflowID uint64, siteID string) *Bridge {
	return &Bridge{
		bus:        bus,
		shared:     sg,
		workflowID: workflowID,
		siteID:     siteID,
		logger:     log.WithModule("collab").With("site_id", siteID),
	}
}

// Start wires both directions and announces this editor to its peers.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx

	b.shared.OnBroadcast(func(update shared.Update) {
		b.publishUpdate(update)
	})

	if err := b.bus.Handle(events.CollaborationUpdateEvent, b.handleUpdate); err != nil {
		return err
	}

	if err := b.bus.Handle(events.CollaborationRequestEvent, b.handleRequest); err != nil {
		return err
	}

	if err := b.bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to collaboration topics: %w", err)
	}

	if err := b.bus.Publish(ctx, b.key(), events.EditorJoined{
		BaseEvent: events.NewBaseEvent(events.EditorJoinedEvent, b.workflowID, b.siteID),
	}); err != nil {
		return err
	}

	// Bootstrap from whoever answers with their full state.
	return b.bus.Publish(ctx, b.key(), events.CollaborationRequest{
		BaseEvent: events.NewBaseEvent(events.CollaborationRequestEvent, b.workflowID, b.siteID),
	})
}

// Stop announces departure. The bus itself is owned by the caller.
func (b *Bridge) Stop(ctx context.Context) error {
	return b.bus.Publish(ctx, b.key(), events.EditorLeft{
		BaseEvent: events.NewBaseEvent(events.EditorLeftEvent, b.workflowID, b.siteID),
	})
}

func (b *Bridge) key() string {
	return strconv.FormatUint(b.workflowID, 10)
}

func (b *Bridge) publishUpdate(update shared.Update) {
	event := events.CollaborationUpdate{
		BaseEvent: events.NewBaseEvent(events.CollaborationUpdateEvent, b.workflowID, b.siteID),
		Update:    update,
	}

	if err := b.bus.Publish(b.ctx, b.key(), event); err != nil {
		b.logger.Warn("Failed to publish collaboration update", "error", err)
	}
}

func (b *Bridge) handleUpdate(_ context.Context, event any) error {
	update, ok := event.(*events.CollaborationUpdate)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	// Own updates come back from the bus; applying them is a no-op but
	// skipping avoids the decode work.
	if update.SiteID == b.siteID || update.WorkflowID != b.workflowID {
		return nil
	}

	b.shared.ApplyUpdate(update.Update)

	return nil
}

// handleRequest answers a joining peer with this site's full state.
func (b *Bridge) handleRequest(ctx context.Context, event any) error {
	request, ok := event.(*events.CollaborationRequest)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if request.SiteID == b.siteID || request.WorkflowID != b.workflowID {
		return nil
	}

	state := b.shared.StateUpdate()
	if state.IsEmpty() {
		return nil
	}

	return b.bus.Publish(ctx, b.key(), events.CollaborationUpdate{
		BaseEvent: events.NewBaseEvent(events.CollaborationUpdateEvent, b.workflowID, b.siteID),
		Update:    state,
	})
}
