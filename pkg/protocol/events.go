package protocol

type EventType string

const (
	WorkflowStartedEventType             EventType = "WorkflowStartedEvent"
	WorkflowCompletedEventType           EventType = "WorkflowCompletedEvent"
	WorkflowPausedEventType              EventType = "WorkflowPausedEvent"
	WorkflowResumedEventType             EventType = "WorkflowResumedEvent"
	RecoveryStartedEventType             EventType = "RecoveryStartedEvent"
	OperatorCurrentTuplesUpdateEventType EventType = "OperatorCurrentTuplesUpdateEvent"
	BreakpointTriggeredEventType         EventType = "BreakpointTriggeredEvent"
	WorkflowErrorEventType               EventType = "WorkflowErrorEvent"
	WorkflowExecutionErrorEventType      EventType = "WorkflowExecutionErrorEvent"
	WorkflowStatusUpdateEventType        EventType = "WorkflowStatusUpdateEvent"
	PaginatedResultEventType             EventType = "PaginatedResultEvent"
	WebResultUpdateEventType             EventType = "WebResultUpdateEvent"
	WorkflowAvailableResultEventType     EventType = "WorkflowAvailableResultEvent"
	CacheStatusUpdateEventType           EventType = "CacheStatusUpdateEvent"
)

// Event is the closed set of engine-to-client messages.
type Event interface {
	GetEventType() EventType
	isEvent()
}

type WorkflowStartedEvent struct{}

func (WorkflowStartedEvent) GetEventType() EventType { return WorkflowStartedEventType }

// WorkflowCompletedEvent carries every sink operator's final result table.
type WorkflowCompletedEvent struct {
	Result map[string][]map[string]any `json:"result"`
}

func (WorkflowCompletedEvent) GetEventType() EventType { return WorkflowCompletedEventType }

type WorkflowPausedEvent struct{}

func (WorkflowPausedEvent) GetEventType() EventType { return WorkflowPausedEventType }

type WorkflowResumedEvent struct{}

func (WorkflowResumedEvent) GetEventType() EventType { return WorkflowResumedEventType }

type RecoveryStartedEvent struct{}

func (RecoveryStartedEvent) GetEventType() EventType { return RecoveryStartedEventType }

// OperatorCurrentTuplesUpdateEvent reports the tuples sitting at one paused
// operator.
type OperatorCurrentTuplesUpdateEvent struct {
	OperatorID string  `json:"operatorID"`
	Tuples     []Tuple `json:"tuples"`
}

func (OperatorCurrentTuplesUpdateEvent) GetEventType() EventType {
	return OperatorCurrentTuplesUpdateEventType
}

// BreakpointTriggeredEvent reports the faults collected when a breakpoint
// condition was met.
type BreakpointTriggeredEvent struct {
	Report     []BreakpointFault `json:"report"`
	OperatorID string            `json:"operatorID"`
}

func (BreakpointTriggeredEvent) GetEventType() EventType { return BreakpointTriggeredEventType }

// WorkflowErrorEvent reports compile-time failures keyed by operator, plus
// errors not attributable to a single operator.
type WorkflowErrorEvent struct {
	OperatorErrors map[string]string `json:"operatorErrors"`
	GeneralErrors  map[string]string `json:"generalErrors"`
}

func (WorkflowErrorEvent) GetEventType() EventType { return WorkflowErrorEventType }

// WorkflowExecutionErrorEvent reports runtime failures.
type WorkflowExecutionErrorEvent struct {
	ErrorMap map[string]string `json:"errorMap"`
}

func (WorkflowExecutionErrorEvent) GetEventType() EventType { return WorkflowExecutionErrorEventType }

type WorkflowStatusUpdateEvent struct {
	OperatorStatistics map[string]OperatorStatistics `json:"operatorStatistics"`
}

func (WorkflowStatusUpdateEvent) GetEventType() EventType { return WorkflowStatusUpdateEventType }

// PaginatedResultEvent answers one ResultPaginationRequest, correlated by
// request ID.
type PaginatedResultEvent struct {
	RequestID  string           `json:"requestID"`
	OperatorID string           `json:"operatorID"`
	PageIndex  int              `json:"pageIndex"`
	Table      []map[string]any `json:"table"`
}

func (PaginatedResultEvent) GetEventType() EventType { return PaginatedResultEventType }

// WebResultUpdateEvent ships per-operator result deltas.
type WebResultUpdateEvent struct {
	Updates map[string]WebResultUpdate `json:"updates"`
}

func (WebResultUpdateEvent) GetEventType() EventType { return WebResultUpdateEventType }

// WorkflowAvailableResultEvent reports which operators still have a valid
// cached result.
type WorkflowAvailableResultEvent struct {
	AvailableOperators map[string]OperatorAvailableResult `json:"availableOperators"`
}

func (WorkflowAvailableResultEvent) GetEventType() EventType { return WorkflowAvailableResultEventType }

// CacheStatusUpdateEvent reports per-operator cache states.
type CacheStatusUpdateEvent struct {
	CacheStatusMap map[string]string `json:"cacheStatusMap"`
}

func (CacheStatusUpdateEvent) GetEventType() EventType { return CacheStatusUpdateEventType }

func (WorkflowStartedEvent) isEvent()             {}
func (WorkflowCompletedEvent) isEvent()           {}
func (WorkflowPausedEvent) isEvent()              {}
func (WorkflowResumedEvent) isEvent()             {}
func (RecoveryStartedEvent) isEvent()             {}
func (OperatorCurrentTuplesUpdateEvent) isEvent() {}
func (BreakpointTriggeredEvent) isEvent()         {}
func (WorkflowErrorEvent) isEvent()               {}
func (WorkflowExecutionErrorEvent) isEvent()      {}
func (WorkflowStatusUpdateEvent) isEvent()        {}
func (PaginatedResultEvent) isEvent()             {}
func (WebResultUpdateEvent) isEvent()             {}
func (WorkflowAvailableResultEvent) isEvent()     {}
func (CacheStatusUpdateEvent) isEvent()           {}
