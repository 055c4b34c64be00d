package execution

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/otelhelper"
	"github.com/flowcanvas/flowcanvas/pkg/protocol"
)

// DefaultSubmitTimeout bounds how long a submitted run may go unacknowledged
// before it is force-failed.
const DefaultSubmitTimeout = 60 * time.Second

// Sender is the slice of the channel the service needs.
type Sender interface {
	Send(request protocol.Request) error
}

type StateChangedEvent struct {
	Old State
	New State
}

// Service is the execution state machine. Commands validate against the
// current state before sending anything; engine events map deterministically
// to the next state. All methods are safe for concurrent use since engine
// events arrive on the channel's read goroutine.
type Service struct {
	sender Sender
	graph  *graph.WorkflowGraph
	logger *slog.Logger
	tracer trace.Tracer

	submitTimeout time.Duration

	mu            sync.Mutex
	state         State
	statistics    map[string]protocol.OperatorStatistics
	timer         *time.Timer
	timerGen      int
	clearsTimeout map[StateKind]bool

	stateHandlers []func(StateChangedEvent)
	lockHandlers  []func(locked bool)
}

type Option func(*Service)

func WithSubmitTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.submitTimeout = timeout }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

func NewService(sender Sender, g *graph.WorkflowGraph, opts ...Option) *Service {
	s := &Service{
		sender:        sender,
		graph:         g,
		logger:        log.WithModule("execution"),
		tracer:        noop.NewTracerProvider().Tracer("execution"),
		submitTimeout: DefaultSubmitTimeout,
		state:         Uninitialized(),
		statistics:    make(map[string]protocol.OperatorStatistics),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnStateChanged registers a transition observer. Handlers run while the
// transition is being applied, so they observe states in order.
func (s *Service) OnStateChanged(handler func(StateChangedEvent)) {
	s.stateHandlers = append(s.stateHandlers, handler)
}

// OnEditingLockChanged registers an observer of the document editing lock.
func (s *Service) OnEditingLockChanged(handler func(locked bool)) {
	s.lockHandlers = append(s.lockHandlers, handler)
}

// State returns the current execution state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// ErrorMessages returns the current Failed state's messages, or nil.
func (s *Service) ErrorMessages() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Kind != StateFailed {
		return nil
	}

	messages := make(map[string]string, len(s.state.ErrorMessages))
	for key, message := range s.state.ErrorMessages {
		messages[key] = message
	}

	return messages
}

// Statistics returns the latest per-operator progress snapshot.
func (s *Service) Statistics() map[string]protocol.OperatorStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]protocol.OperatorStatistics, len(s.statistics))
	for id, stat := range s.statistics {
		stats[id] = stat
	}

	return stats
}

// SubmitWorkflow exports the enabled logical plan and submits it. Valid only
// from a terminal state. A timeout timer is armed; any of the clearsTimeout
// kinds cancels it, and expiry force-fails the run.
func (s *Service) SubmitWorkflow(ctx context.Context, clearsTimeout ...StateKind) error {
	s.mu.Lock()

	if !s.state.IsTerminal() {
		current := s.state.Kind
		s.mu.Unlock()

		return illegalState("submit workflow", current)
	}

	s.mu.Unlock()

	operators, links, breakpoints, err := s.graph.LogicalPlan()
	if err != nil {
		return err
	}

	_, span := otelhelper.StartSpan(ctx, s.tracer, "execution.submit",
		attribute.Int(otelhelper.OperatorCountKey, len(operators)),
		attribute.Int(otelhelper.LinkCountKey, len(links)),
	)
	defer span.End()

	if err := s.sender.Send(protocol.ExecuteWorkflowRequest{
		Operators:   operators,
		Links:       links,
		Breakpoints: breakpoints,
	}); err != nil {
		otelhelper.RecordError(span, err)

		return err
	}

	if len(clearsTimeout) == 0 {
		clearsTimeout = []StateKind{StateRunning, StateCompleted, StateFailed}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.armTimeoutLocked(clearsTimeout)
	s.transitionLocked(State{Kind: StateInitializing})

	return nil
}

// PauseWorkflow requests a pause. Valid only from Running.
func (s *Service) PauseWorkflow() error {
	return s.command("pause workflow", protocol.PauseWorkflowRequest{},
		map[StateKind]StateKind{StateRunning: StatePausing})
}

// ResumeWorkflow requests a resume from a paused or breakpoint state.
func (s *Service) ResumeWorkflow() error {
	return s.command("resume workflow", protocol.ResumeWorkflowRequest{},
		map[StateKind]StateKind{
			StatePaused:              StateResuming,
			StateBreakpointTriggered: StateResuming,
		})
}

// KillWorkflow aborts the run. Valid from any non-terminal state; the state
// moves when the engine confirms.
func (s *Service) KillWorkflow() error {
	s.mu.Lock()
	if s.state.IsTerminal() {
		current := s.state.Kind
		s.mu.Unlock()

		return illegalState("kill workflow", current)
	}
	s.mu.Unlock()

	return s.sender.Send(protocol.KillWorkflowRequest{})
}

// AddBreakpoint installs a breakpoint on the running workflow.
func (s *Service) AddBreakpoint(linkID string, breakpoint model.Breakpoint) error {
	if err := breakpoint.Validate(); err != nil {
		return err
	}

	return s.command("add breakpoint", protocol.AddBreakpointRequest{LinkID: linkID, Breakpoint: breakpoint},
		map[StateKind]StateKind{
			StateRunning:             StateRunning,
			StatePaused:              StatePaused,
			StateBreakpointTriggered: StateBreakpointTriggered,
		})
}

// SkipTuples discards faulted tuples so a triggered run can continue.
func (s *Service) SkipTuples(faults []protocol.BreakpointFault) error {
	s.mu.Lock()
	kind := s.state.Kind
	s.mu.Unlock()

	if kind != StateBreakpointTriggered && kind != StatePaused {
		return illegalState("skip tuples", kind)
	}

	for _, fault := range faults {
		if err := s.sender.Send(protocol.SkipTupleRequest{
			FaultedTuple: fault.FaultedTuple,
			ActorPath:    fault.ActorPath,
		}); err != nil {
			return err
		}
	}

	return nil
}

// ModifyOperatorLogic replaces one operator's properties mid-run.
func (s *Service) ModifyOperatorLogic(operator model.Operator) error {
	s.mu.Lock()
	kind := s.state.Kind
	s.mu.Unlock()

	if kind != StatePaused && kind != StateBreakpointTriggered {
		return illegalState("modify operator logic", kind)
	}

	return s.sender.Send(protocol.ModifyLogicRequest{Operator: model.ToLogicalOperator(operator)})
}

// command sends a request when the current state is in the valid set, then
// transitions to the mapped next state.
func (s *Service) command(name string, request protocol.Request, transitions map[StateKind]StateKind) error {
	s.mu.Lock()
	next, valid := transitions[s.state.Kind]

	if !valid {
		current := s.state.Kind
		s.mu.Unlock()

		return illegalState(name, current)
	}
	s.mu.Unlock()

	if err := s.sender.Send(request); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if next != s.state.Kind {
		s.transitionLocked(State{Kind: next})
	}

	return nil
}

// HandleEvent maps one engine event onto the state machine. Unhandled event
// kinds (results, cache status) are ignored here; their consumers subscribe
// to the channel directly.
func (s *Service) HandleEvent(event protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case protocol.WorkflowStartedEvent:
		s.transitionLocked(Running())
	case protocol.WorkflowCompletedEvent:
		s.transitionLocked(Completed(e.Result))
	case protocol.WorkflowPausedEvent:
		// A stale pause must not clobber richer breakpoint or tuple state.
		if s.state.Kind == StatePaused || s.state.Kind == StateBreakpointTriggered {
			return
		}

		s.transitionLocked(Paused(nil))
	case protocol.WorkflowResumedEvent:
		s.transitionLocked(Running())
	case protocol.RecoveryStartedEvent:
		s.transitionLocked(State{Kind: StateRecovering})
	case protocol.OperatorCurrentTuplesUpdateEvent:
		s.mergeCurrentTuplesLocked(e)
	case protocol.BreakpointTriggeredEvent:
		s.transitionLocked(BreakpointTriggered(e.Report, e.OperatorID))
	case protocol.WorkflowErrorEvent:
		s.transitionLocked(Failed(compileErrorMessages(e)))
	case protocol.WorkflowExecutionErrorEvent:
		s.transitionLocked(Failed(executionErrorMessages(e)))
	case protocol.WorkflowStatusUpdateEvent:
		for id, stat := range e.OperatorStatistics {
			s.statistics[id] = stat
		}
	}
}

// HandleChannelStatus force-fails an in-flight run when the connection drops.
func (s *Service) HandleChannelStatus(connected bool) {
	if connected {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return
	}

	s.transitionLocked(Failed(map[string]string{
		ErrorKeyNetwork: "lost connection to the execution engine",
	}))
}

// mergeCurrentTuplesLocked folds a tuple update into the Paused state. The
// update is dropped while BreakpointTriggered, merged per operator while
// Paused, and otherwise starts a fresh Paused state.
func (s *Service) mergeCurrentTuplesLocked(e protocol.OperatorCurrentTuplesUpdateEvent) {
	if s.state.Kind == StateBreakpointTriggered {
		return
	}

	tuples := make(map[string][]protocol.Tuple, len(s.state.CurrentTuples)+1)

	if s.state.Kind == StatePaused {
		for id, rows := range s.state.CurrentTuples {
			tuples[id] = rows
		}
	}

	tuples[e.OperatorID] = e.Tuples
	s.transitionLocked(Paused(tuples))
}

func compileErrorMessages(e protocol.WorkflowErrorEvent) map[string]string {
	messages := make(map[string]string, len(e.OperatorErrors)+len(e.GeneralErrors)+1)
	for id, message := range e.OperatorErrors {
		messages[id] = message
	}

	for key, message := range e.GeneralErrors {
		messages[key] = message
	}

	messages[ErrorKeyWorkflow] = "workflow failed to compile"

	return messages
}

func executionErrorMessages(e protocol.WorkflowExecutionErrorEvent) map[string]string {
	messages := make(map[string]string, len(e.ErrorMap)+1)
	for key, message := range e.ErrorMap {
		messages[key] = message
	}

	messages[ErrorKeyServer] = "workflow failed during execution"

	return messages
}

// transitionLocked applies the computed next state. Re-entering a deep-equal
// state is a no-op: no change event fires.
func (s *Service) transitionLocked(next State) {
	if reflect.DeepEqual(s.state, next) {
		return
	}

	if s.clearsTimeout[next.Kind] {
		s.cancelTimeoutLocked()
	}

	old := s.state
	s.state = next

	s.logger.Debug("Execution state changed", "from", old.Kind, "to", next.Kind)

	for _, handler := range s.stateHandlers {
		handler(StateChangedEvent{Old: old, New: next})
	}

	if old.LocksEditing() != next.LocksEditing() {
		for _, handler := range s.lockHandlers {
			handler(next.LocksEditing())
		}
	}
}

// armTimeoutLocked starts the submit timer. Only one timer is ever live:
// arming replaces any pending one, and a stale expiry is discarded by
// generation check.
func (s *Service) armTimeoutLocked(clears []StateKind) {
	s.cancelTimeoutLocked()

	s.clearsTimeout = make(map[StateKind]bool, len(clears))
	for _, kind := range clears {
		s.clearsTimeout[kind] = true
	}

	s.timerGen++
	generation := s.timerGen

	s.timer = time.AfterFunc(s.submitTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if generation != s.timerGen || s.timer == nil {
			return
		}

		s.timer = nil
		s.transitionLocked(Failed(map[string]string{
			ErrorKeyTimeout: "no response from the execution engine within the timeout window",
		}))
	})
}

func (s *Service) cancelTimeoutLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.clearsTimeout = nil
}
