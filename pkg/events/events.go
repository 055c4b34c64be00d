// Package events defines event types for workflow authoring and execution
// lifecycle notifications shared between collaborating services.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/execution"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

type EventType string

// Kafka topics.
const Topic = "flowcanvas.events"                                 // Document and execution lifecycle events
const CollaborationTopic = "flowcanvas.collaboration.updates"     // Replicated-map deltas between editors

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Document lifecycle events.
	DocumentSavedEvent   EventType = "document.saved"
	DocumentDeletedEvent EventType = "document.deleted"

	// Collaboration events.
	EditorJoinedEvent         EventType = "collaboration.editor.joined"
	EditorLeftEvent           EventType = "collaboration.editor.left"
	CollaborationUpdateEvent  EventType = "collaboration.update"
	CollaborationRequestEvent EventType = "collaboration.state.requested"

	// Execution lifecycle events.
	ExecutionSubmittedEvent    EventType = "execution.submitted"
	ExecutionStateChangedEvent EventType = "execution.state.changed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID uint64         `json:"workflow_id"`
	SiteID     string         `json:"site_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent fills the common fields of an outgoing event.
func NewBaseEvent(eventType EventType, workflowID uint64, siteID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		SiteID:     siteID,
	}
}

type DocumentSaved struct {
	BaseEvent

	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
}

func (d DocumentSaved) GetType() EventType {
	return DocumentSavedEvent
}

type DocumentDeleted struct {
	BaseEvent
}

func (d DocumentDeleted) GetType() EventType {
	return DocumentDeletedEvent
}

type EditorJoined struct {
	BaseEvent

	EditorName string `json:"editor_name,omitempty"`
}

func (e EditorJoined) GetType() EventType {
	return EditorJoinedEvent
}

type EditorLeft struct {
	BaseEvent
}

func (e EditorLeft) GetType() EventType {
	return EditorLeftEvent
}

// CollaborationUpdate carries one batch of replicated-map deltas from one
// editing site.
type CollaborationUpdate struct {
	BaseEvent

	Update shared.Update `json:"update"`
}

func (c CollaborationUpdate) GetType() EventType {
	return CollaborationUpdateEvent
}

// CollaborationRequest asks peers for their full replicated state, sent by
// a joining editor to bootstrap.
type CollaborationRequest struct {
	BaseEvent
}

func (c CollaborationRequest) GetType() EventType {
	return CollaborationRequestEvent
}

type ExecutionSubmitted struct {
	BaseEvent

	OperatorCount int `json:"operator_count"`
	LinkCount     int `json:"link_count"`
}

func (e ExecutionSubmitted) GetType() EventType {
	return ExecutionSubmittedEvent
}

type ExecutionStateChanged struct {
	BaseEvent

	From execution.StateKind `json:"from"`
	To   execution.StateKind `json:"to"`
}

func (e ExecutionStateChanged) GetType() EventType {
	return ExecutionStateChangedEvent
}
