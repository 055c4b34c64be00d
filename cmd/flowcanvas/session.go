package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/flowcanvas/flowcanvas/pkg/autosave"
	"github.com/flowcanvas/flowcanvas/pkg/channel"
	"github.com/flowcanvas/flowcanvas/pkg/cmd"
	"github.com/flowcanvas/flowcanvas/pkg/collab"
	"github.com/flowcanvas/flowcanvas/pkg/eventbus"
	"github.com/flowcanvas/flowcanvas/pkg/events"
	"github.com/flowcanvas/flowcanvas/pkg/execution"
	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/group"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
	"github.com/flowcanvas/flowcanvas/pkg/results"
	"github.com/flowcanvas/flowcanvas/pkg/scene"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

// SessionConfig collects everything an editing session needs, resolved from
// CLI flags and environment.
type SessionConfig struct {
	WorkflowID   uint64
	DocumentName string
	SiteID       string
	DatabaseURL  string
	EngineURL    string
	EventBus     string
	ResultsCache string
	Autosave     string
}

// Session owns one open workflow: the document, its replicated graph, the
// engine channel and the services around them.
type Session struct {
	config   SessionConfig
	logger   *slog.Logger
	repo     persistence.Repository
	document model.WorkflowDocument

	graph  *graph.WorkflowGraph
	shared *shared.SharedGraph
	view   *scene.View
	sync   *scene.Sync
	groups *group.Manager

	client    *channel.Client
	execution *execution.Service
	results   *results.Service

	bus      eventbus.EventBus
	bridge   *collab.Bridge
	autosave *autosave.Service
}

func NewSession(config SessionConfig, logger *slog.Logger) *Session {
	return &Session{config: config, logger: logger}
}

// Open loads the document (creating it on first edit), rebuilds the graph
// and wires the editing surfaces together.
func (s *Session) Open(ctx context.Context) error {
	repo, err := persistence.NewRepository(ctx, s.logger, s.config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	s.repo = repo

	if err := s.loadDocument(ctx); err != nil {
		return err
	}

	s.shared = shared.NewSharedGraph(s.config.SiteID, s.graph)
	s.view = scene.NewView(scene.NewMemoryRenderer())
	s.sync = scene.NewSync(s.view, s.graph, s.shared)
	s.groups = group.NewManager(s.graph, s.view)

	s.client = channel.NewClient(channel.Config{URL: s.config.EngineURL})
	s.execution = execution.NewService(s.client, s.graph)
	s.results = results.NewService(s.client, s.resultStore(ctx))

	s.wireChannel()

	if err := s.startCollaboration(ctx); err != nil {
		return err
	}

	autosaveOpts := []autosave.Option{autosave.WithSchedule(s.config.Autosave)}
	if s.bus != nil {
		autosaveOpts = append(autosaveOpts, autosave.WithOnSaved(func(document model.WorkflowDocument) {
			s.publishLifecycle(ctx, events.DocumentSaved{
				BaseEvent: events.NewBaseEvent(events.DocumentSavedEvent, document.WID, s.config.SiteID),
				Name:      document.Name,
				IsPublic:  document.IsPublic,
			})
		}))
	}

	s.autosave = autosave.NewService(s.repo, s.shared, s.document, autosaveOpts...)

	if err := s.autosave.Start(ctx); err != nil {
		return err
	}

	return s.client.Connect(ctx)
}

// Run blocks until the session is interrupted, then tears everything down.
func (s *Session) Run(ctx context.Context) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "Shutting down session")

	return s.Close(ctx)
}

func (s *Session) Close(ctx context.Context) error {
	if s.autosave != nil {
		if err := s.autosave.Stop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to flush autosave", "error", err)
		}
	}

	if s.bridge != nil {
		if err := s.bridge.Stop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to announce departure", "error", err)
		}
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close engine channel", "error", err)
		}
	}

	if s.results != nil {
		if err := s.results.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close result cache", "error", err)
		}
	}

	return s.repo.Close(ctx)
}

func (s *Session) loadDocument(ctx context.Context) error {
	document, err := s.repo.DocumentByID(ctx, s.config.WorkflowID)

	switch {
	case err == nil:
		content, decodeErr := document.DecodeContent()
		if decodeErr != nil {
			return decodeErr
		}

		restored, restoreErr := graph.FromContent(content)
		if restoreErr != nil {
			return restoreErr
		}

		s.document = *document
		s.graph = restored

	case persistence.IsDocumentNotFound(err):
		s.logger.InfoContext(ctx, "Document not found, starting empty",
			"wid", s.config.WorkflowID)

		s.document = model.WorkflowDocument{
			WID:  s.config.WorkflowID,
			Name: s.config.DocumentName,
		}
		s.graph = graph.NewWorkflowGraph()

	default:
		return err
	}

	return nil
}

func (s *Session) resultStore(ctx context.Context) results.Store {
	if s.config.ResultsCache == "" {
		return results.NewMemoryStore()
	}

	store, err := results.NewRedisStore(ctx, s.config.ResultsCache, "flowcanvas:results")
	if err != nil {
		s.logger.WarnContext(ctx, "Result cache unavailable, falling back to memory",
			"error", err)

		return results.NewMemoryStore()
	}

	return store
}

func (s *Session) wireChannel() {
	s.client.OnEvent(s.execution.HandleEvent)
	s.client.OnEvent(s.results.HandleEvent)
	s.client.OnStatus(func(status channel.Status) {
		s.execution.HandleChannelStatus(status == channel.StatusConnected)
	})

	s.execution.OnEditingLockChanged(func(locked bool) {
		s.logger.Info("Editing lock changed", "locked", locked)
	})
}

func (s *Session) startCollaboration(ctx context.Context) error {
	bus, err := cmd.NewEventBus(s.config.EventBus, s.logger)
	if err != nil {
		return err
	}

	if bus == nil {
		return nil
	}

	s.bus = bus
	s.bridge = collab.NewBridge(bus, s.shared, s.config.WorkflowID, s.config.SiteID)

	s.execution.OnStateChanged(func(change execution.StateChangedEvent) {
		if change.New.Kind == execution.StateInitializing {
			operators, links, _, err := s.graph.LogicalPlan()
			if err == nil {
				s.publishLifecycle(ctx, events.ExecutionSubmitted{
					BaseEvent:     events.NewBaseEvent(events.ExecutionSubmittedEvent, s.config.WorkflowID, s.config.SiteID),
					OperatorCount: len(operators),
					LinkCount:     len(links),
				})
			}
		}

		s.publishLifecycle(ctx, events.ExecutionStateChanged{
			BaseEvent: events.NewBaseEvent(events.ExecutionStateChangedEvent, s.config.WorkflowID, s.config.SiteID),
			From:      change.Old.Kind,
			To:        change.New.Kind,
		})
	})

	return s.bridge.Start(ctx)
}

func (s *Session) publishLifecycle(ctx context.Context, event eventbus.Event) {
	key := strconv.FormatUint(s.config.WorkflowID, 10)

	if err := s.bus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "error", err)
	}
}
