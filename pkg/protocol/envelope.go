package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownRequestType = errors.New("unknown request type")
	ErrUnknownEventType   = errors.New("unknown event type")
)

// envelope is the wire frame: a discriminant plus the raw payload.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeRequest frames a request for the wire.
func EncodeRequest(request Request) ([]byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	data, err := json.Marshal(envelope{Type: string(request.GetRequestType()), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request envelope: %w", err)
	}

	return data, nil
}

// EncodeEvent frames an event for the wire.
func EncodeEvent(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	data, err := json.Marshal(envelope{Type: string(event.GetEventType()), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	return data, nil
}

// DecodeRequest parses a framed request. Every member of the union is
// handled; an unlisted discriminant is an error, never a silent skip.
func DecodeRequest(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request envelope: %w", err)
	}

	var request Request

	switch RequestType(env.Type) {
	case ExecuteWorkflowRequestType:
		request = &ExecuteWorkflowRequest{}
	case PauseWorkflowRequestType:
		request = &PauseWorkflowRequest{}
	case ResumeWorkflowRequestType:
		request = &ResumeWorkflowRequest{}
	case KillWorkflowRequestType:
		request = &KillWorkflowRequest{}
	case ModifyLogicRequestType:
		request = &ModifyLogicRequest{}
	case SkipTupleRequestType:
		request = &SkipTupleRequest{}
	case AddBreakpointRequestType:
		request = &AddBreakpointRequest{}
	case ResultPaginationRequestType:
		request = &ResultPaginationRequest{}
	case HeartBeatRequestType:
		request = &HeartBeatRequest{}
	case HelloWorldRequestType:
		request = &HelloWorldRequest{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequestType, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, request); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
	}

	return deref(request), nil
}

// DecodeEvent parses a framed event.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	var event Event

	switch EventType(env.Type) {
	case WorkflowStartedEventType:
		event = &WorkflowStartedEvent{}
	case WorkflowCompletedEventType:
		event = &WorkflowCompletedEvent{}
	case WorkflowPausedEventType:
		event = &WorkflowPausedEvent{}
	case WorkflowResumedEventType:
		event = &WorkflowResumedEvent{}
	case RecoveryStartedEventType:
		event = &RecoveryStartedEvent{}
	case OperatorCurrentTuplesUpdateEventType:
		event = &OperatorCurrentTuplesUpdateEvent{}
	case BreakpointTriggeredEventType:
		event = &BreakpointTriggeredEvent{}
	case WorkflowErrorEventType:
		event = &WorkflowErrorEvent{}
	case WorkflowExecutionErrorEventType:
		event = &WorkflowExecutionErrorEvent{}
	case WorkflowStatusUpdateEventType:
		event = &WorkflowStatusUpdateEvent{}
	case PaginatedResultEventType:
		event = &PaginatedResultEvent{}
	case WebResultUpdateEventType:
		event = &WebResultUpdateEvent{}
	case WorkflowAvailableResultEventType:
		event = &WorkflowAvailableResultEvent{}
	case CacheStatusUpdateEventType:
		event = &CacheStatusUpdateEvent{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
	}

	return derefEvent(event), nil
}

// deref returns the value the decoded pointer wraps so callers can type
// switch on value types, matching how senders construct messages.
func deref(request Request) Request {
	switch r := request.(type) {
	case *ExecuteWorkflowRequest:
		return *r
	case *PauseWorkflowRequest:
		return *r
	case *ResumeWorkflowRequest:
		return *r
	case *KillWorkflowRequest:
		return *r
	case *ModifyLogicRequest:
		return *r
	case *SkipTupleRequest:
		return *r
	case *AddBreakpointRequest:
		return *r
	case *ResultPaginationRequest:
		return *r
	case *HeartBeatRequest:
		return *r
	case *HelloWorldRequest:
		return *r
	default:
		return request
	}
}

func derefEvent(event Event) Event {
	switch e := event.(type) {
	case *WorkflowStartedEvent:
		return *e
	case *WorkflowCompletedEvent:
		return *e
	case *WorkflowPausedEvent:
		return *e
	case *WorkflowResumedEvent:
		return *e
	case *RecoveryStartedEvent:
		return *e
	case *OperatorCurrentTuplesUpdateEvent:
		return *e
	case *BreakpointTriggeredEvent:
		return *e
	case *WorkflowErrorEvent:
		return *e
	case *WorkflowExecutionErrorEvent:
		return *e
	case *WorkflowStatusUpdateEvent:
		return *e
	case *PaginatedResultEvent:
		return *e
	case *WebResultUpdateEvent:
		return *e
	case *WorkflowAvailableResultEvent:
		return *e
	case *CacheStatusUpdateEvent:
		return *e
	default:
		return event
	}
}
