// Package execution tracks the lifecycle of a workflow run as a single
// tagged state value driven by local commands and inbound engine events.
package execution

import (
	"fmt"

	"github.com/flowcanvas/flowcanvas/pkg/protocol"
)

type StateKind string

const (
	StateUninitialized       StateKind = "uninitialized"
	StateInitializing        StateKind = "initializing"
	StateRunning             StateKind = "running"
	StatePausing             StateKind = "pausing"
	StatePaused              StateKind = "paused"
	StateResuming            StateKind = "resuming"
	StateRecovering          StateKind = "recovering"
	StateBreakpointTriggered StateKind = "breakpoint-triggered"
	StateCompleted           StateKind = "completed"
	StateFailed              StateKind = "failed"
)

// Error message categories used as keys in a Failed state's message map.
const (
	ErrorKeyNetwork  = "network error"
	ErrorKeyWorkflow = "workflow error"
	ErrorKeyServer   = "server error"
	ErrorKeyTimeout  = "timeout"
)

// State is a tagged union: Kind selects which payload fields are meaningful.
// Exactly one state is current at any time.
type State struct {
	Kind StateKind

	// Paused: per-operator tuples sitting at the pause point.
	CurrentTuples map[string][]protocol.Tuple

	// BreakpointTriggered: the fault report and the operator that hit it.
	Report            []protocol.BreakpointFault
	TriggeredOperator string

	// Completed: per-sink result tables.
	Result map[string][]map[string]any

	// Failed: messages keyed by operator ID or error category.
	ErrorMessages map[string]string
}

func Uninitialized() State { return State{Kind: StateUninitialized} }

func Running() State { return State{Kind: StateRunning} }

func Paused(tuples map[string][]protocol.Tuple) State {
	return State{Kind: StatePaused, CurrentTuples: tuples}
}

func BreakpointTriggered(report []protocol.BreakpointFault, operatorID string) State {
	return State{Kind: StateBreakpointTriggered, Report: report, TriggeredOperator: operatorID}
}

func Completed(result map[string][]map[string]any) State {
	return State{Kind: StateCompleted, Result: result}
}

func Failed(messages map[string]string) State {
	return State{Kind: StateFailed, ErrorMessages: messages}
}

// IsTerminal reports whether no further engine events are expected.
func (s State) IsTerminal() bool {
	return s.Kind == StateUninitialized || s.Kind == StateCompleted || s.Kind == StateFailed
}

// LocksEditing reports whether document mutation must be disabled while in
// this state.
func (s State) LocksEditing() bool {
	return !s.IsTerminal()
}

// IllegalStateError is returned when a command is issued from a state that
// does not permit it.
type IllegalStateError struct {
	Command string
	Current StateKind
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s while execution is %s", e.Command, e.Current)
}

func illegalState(command string, current StateKind) error {
	return &IllegalStateError{Command: command, Current: current}
}
