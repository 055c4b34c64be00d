// Package protocol defines the message vocabulary exchanged with the
// execution engine over the duplex channel. Requests and events are closed
// tagged unions: every concrete type carries its discriminant and the
// envelope codec refuses anything outside the set.
package protocol

// Tuple is a single row of data flowing between operators.
type Tuple map[string]any

// FaultedTuple is a tuple that triggered a fault, with its direction
// relative to the faulting operator.
type FaultedTuple struct {
	Tuple   Tuple `json:"tuple"`
	IsInput bool  `json:"isInput"`
}

// BreakpointFault describes one fault captured at a triggered breakpoint.
type BreakpointFault struct {
	ActorPath    string       `json:"actorPath"`
	FaultedTuple FaultedTuple `json:"faultedTuple"`
	Messages     []string     `json:"messages"`
}

// OperatorStatistics is a per-operator progress snapshot.
type OperatorStatistics struct {
	OperatorState string `json:"operatorState"`
	InputCount    int64  `json:"aggregatedInputRowCount"`
	OutputCount   int64  `json:"aggregatedOutputRowCount"`
}

// Result update modes. Snapshot replaces the operator's full result set,
// pagination invalidates cached pages instead of shipping rows.
const (
	ResultModeSnapshot   = "snapshot"
	ResultModePagination = "pagination"
)

// WebResultUpdate is one operator's result delta.
type WebResultUpdate struct {
	Mode           string           `json:"mode"`
	Table          []map[string]any `json:"table,omitempty"`
	TotalNumTuples int              `json:"totalNumTuples"`
}

// OperatorAvailableResult signals whether an operator's cached result is
// still valid after the last execution.
type OperatorAvailableResult struct {
	CacheValid bool `json:"cacheValid"`
}
