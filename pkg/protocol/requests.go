package protocol

import "github.com/flowcanvas/flowcanvas/pkg/model"

type RequestType string

const (
	ExecuteWorkflowRequestType  RequestType = "ExecuteWorkflowRequest"
	PauseWorkflowRequestType    RequestType = "PauseWorkflowRequest"
	ResumeWorkflowRequestType   RequestType = "ResumeWorkflowRequest"
	KillWorkflowRequestType     RequestType = "KillWorkflowRequest"
	ModifyLogicRequestType      RequestType = "ModifyLogicRequest"
	SkipTupleRequestType        RequestType = "SkipTupleRequest"
	AddBreakpointRequestType    RequestType = "AddBreakpointRequest"
	ResultPaginationRequestType RequestType = "ResultPaginationRequest"
	HeartBeatRequestType        RequestType = "HeartBeatRequest"
	HelloWorldRequestType       RequestType = "HelloWorldRequest"
)

// Request is the closed set of client-to-engine messages. The unexported
// method keeps the union sealed to this package's types.
type Request interface {
	GetRequestType() RequestType
	isRequest()
}

// ExecuteWorkflowRequest submits a logical plan for execution. Operators
// carry flattened properties and links reference ports by ordinal.
type ExecuteWorkflowRequest struct {
	Operators   []model.LogicalOperator `json:"operators"`
	Links       []model.LogicalLink     `json:"links"`
	Breakpoints []model.BreakpointInfo  `json:"breakpoints"`
}

func (ExecuteWorkflowRequest) GetRequestType() RequestType { return ExecuteWorkflowRequestType }

type PauseWorkflowRequest struct{}

func (PauseWorkflowRequest) GetRequestType() RequestType { return PauseWorkflowRequestType }

type ResumeWorkflowRequest struct{}

func (ResumeWorkflowRequest) GetRequestType() RequestType { return ResumeWorkflowRequestType }

type KillWorkflowRequest struct{}

func (KillWorkflowRequest) GetRequestType() RequestType { return KillWorkflowRequestType }

// ModifyLogicRequest replaces one operator's properties mid-run.
type ModifyLogicRequest struct {
	Operator model.LogicalOperator `json:"operator"`
}

func (ModifyLogicRequest) GetRequestType() RequestType { return ModifyLogicRequestType }

// SkipTupleRequest discards a faulted tuple so a paused run can continue.
type SkipTupleRequest struct {
	FaultedTuple FaultedTuple `json:"faultedTuple"`
	ActorPath    string       `json:"actorPath"`
}

func (SkipTupleRequest) GetRequestType() RequestType { return SkipTupleRequestType }

// AddBreakpointRequest installs a breakpoint on a running workflow.
type AddBreakpointRequest struct {
	LinkID     string           `json:"linkID"`
	Breakpoint model.Breakpoint `json:"breakpoint"`
}

func (AddBreakpointRequest) GetRequestType() RequestType { return AddBreakpointRequestType }

// ResultPaginationRequest asks for one page of an operator's result.
type ResultPaginationRequest struct {
	RequestID  string `json:"requestID"`
	OperatorID string `json:"operatorID"`
	PageIndex  int    `json:"pageIndex"`
	PageSize   int    `json:"pageSize"`
}

func (ResultPaginationRequest) GetRequestType() RequestType { return ResultPaginationRequestType }

type HeartBeatRequest struct{}

func (HeartBeatRequest) GetRequestType() RequestType { return HeartBeatRequestType }

// HelloWorldRequest is sent once per connection as a liveness handshake.
type HelloWorldRequest struct {
	Message string `json:"message"`
}

func (HelloWorldRequest) GetRequestType() RequestType { return HelloWorldRequestType }

func (ExecuteWorkflowRequest) isRequest()  {}
func (PauseWorkflowRequest) isRequest()    {}
func (ResumeWorkflowRequest) isRequest()   {}
func (KillWorkflowRequest) isRequest()     {}
func (ModifyLogicRequest) isRequest()      {}
func (SkipTupleRequest) isRequest()        {}
func (AddBreakpointRequest) isRequest()    {}
func (ResultPaginationRequest) isRequest() {}
func (HeartBeatRequest) isRequest()        {}
func (HelloWorldRequest) isRequest()       {}
