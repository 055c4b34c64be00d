// Package autosave persists the edited workflow document on a schedule so a
// crashed or abandoned session never loses more than one interval of work.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

// DefaultSchedule writes every 30 seconds. The extra leading field is the
// seconds column enabled by cron.WithSeconds.
const DefaultSchedule = "*/30 * * * * *"

var ErrAlreadyStarted = errors.New("autosave service already started")

// Service snapshots the shared graph into the workflow document and writes
// it through the repository whenever edits happened since the last save.
type Service struct {
	repo     persistence.Repository
	shared   *shared.SharedGraph
	settings model.WorkflowSettings
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	onSaved  func(document model.WorkflowDocument)

	mu       sync.Mutex
	document model.WorkflowDocument
	dirty    bool
	started  bool
	ctx      context.Context
}

type Option func(*Service)

// WithSchedule overrides the save cadence with a six-field cron expression.
func WithSchedule(spec string) Option {
	return func(s *Service) {
		s.schedule = spec
	}
}

// WithOnSaved registers a hook invoked after each successful save.
func WithOnSaved(hook func(document model.WorkflowDocument)) Option {
	return func(s *Service) {
		s.onSaved = hook
	}
}

func NewService(repo persistence.Repository, sg *shared.SharedGraph, document model.WorkflowDocument, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		shared:   sg,
		settings: model.DefaultWorkflowSettings(),
		schedule: DefaultSchedule,
		document: document,
		logger:   log.WithModule("autosave").With("wid", document.WID),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start validates the schedule, begins watching for local edits and runs the
// save loop until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	s.cron = cron.New(cron.WithSeconds())

	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("invalid autosave schedule %q: %w", s.schedule, err)
	}

	// Each site persists its own edits; remote deltas are saved by their
	// author, so only broadcasts mark the document dirty.
	s.shared.OnBroadcast(func(update shared.Update) {
		if update.IsEmpty() {
			return
		}

		s.markDirty()
	})

	s.ctx = ctx
	s.started = true
	s.cron.Start()
	s.logger.Info("Autosave started", "schedule", s.schedule)

	return nil
}

// Stop halts the schedule and flushes any pending edits.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()
		return nil
	}

	s.started = false
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	<-stopCtx.Done()

	return s.SaveNow(ctx)
}

// SetDocumentName renames the document on the next save.
func (s *Service) SetDocumentName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.document.Name == name {
		return
	}

	s.document.Name = name
	s.dirty = true
}

// Dirty reports whether edits are waiting to be persisted.
func (s *Service) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirty
}

// SaveNow persists the current snapshot regardless of the schedule. A save
// that races with new edits leaves the document dirty for the next tick.
func (s *Service) SaveNow(ctx context.Context) error {
	s.mu.Lock()

	if !s.dirty {
		s.mu.Unlock()
		return nil
	}

	document := s.document
	s.dirty = false
	s.mu.Unlock()

	content := s.shared.Graph().Content(s.shared.Positions(), s.settings)

	if err := document.SetContent(content); err != nil {
		s.markDirty()

		return err
	}

	if err := s.repo.SaveDocument(ctx, &document); err != nil {
		s.markDirty()

		return fmt.Errorf("failed to autosave document %d: %w", document.WID, err)
	}

	s.mu.Lock()
	s.document.Content = document.Content
	s.mu.Unlock()

	if s.onSaved != nil {
		s.onSaved(document)
	}

	return nil
}

func (s *Service) markDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = true
}

func (s *Service) tick() {
	if err := s.SaveNow(s.ctx); err != nil {
		s.logger.Error("Autosave failed", "error", err)
	}
}
