package results

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/protocol"
)

// DefaultPageSize matches the engine's result pagination window.
const DefaultPageSize = 10

// Sender is the slice of the channel the service needs.
type Sender interface {
	Send(request protocol.Request) error
}

// Page is one delivered result page.
type Page struct {
	OperatorID string
	PageIndex  int
	Table      []Row
	FromCache  bool
}

type pendingRequest struct {
	operatorID string
	pageIndex  int
	deliver    func(Page)
}

// Service serves result pages cache-first and keeps per-operator snapshot
// results. Inbound result events both resolve in-flight requests and
// invalidate stale cache entries.
type Service struct {
	sender Sender
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	pending   map[string]pendingRequest
	snapshots map[string][]Row
	counts    map[string]int
}

func NewService(sender Sender, store Store) *Service {
	return &Service{
		sender:    sender,
		store:     store,
		logger:    log.WithModule("results"),
		pending:   make(map[string]pendingRequest),
		snapshots: make(map[string][]Row),
		counts:    make(map[string]int),
	}
}

// RequestPage delivers a result page, from cache when possible and via a
// pagination request otherwise. The callback runs synchronously on a cache
// hit and on the channel's read goroutine otherwise.
func (s *Service) RequestPage(ctx context.Context, operatorID string, pageIndex, pageSize int, deliver func(Page)) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	table, found, err := s.store.GetPage(ctx, operatorID, pageIndex)
	if err != nil {
		return err
	}

	if found {
		deliver(Page{OperatorID: operatorID, PageIndex: pageIndex, Table: table, FromCache: true})

		return nil
	}

	requestID := uuid.New().String()

	s.mu.Lock()
	s.pending[requestID] = pendingRequest{operatorID: operatorID, pageIndex: pageIndex, deliver: deliver}
	s.mu.Unlock()

	if err := s.sender.Send(protocol.ResultPaginationRequest{
		RequestID:  requestID,
		OperatorID: operatorID,
		PageIndex:  pageIndex,
		PageSize:   pageSize,
	}); err != nil {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()

		return err
	}

	return nil
}

// Snapshot returns an operator's snapshot-mode result, if any.
func (s *Service) Snapshot(operatorID string) ([]Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, found := s.snapshots[operatorID]

	return table, found
}

// Close releases the backing page store.
func (s *Service) Close() error {
	return s.store.Close()
}

// TotalTuples returns the engine-reported result size for an operator.
func (s *Service) TotalTuples(operatorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[operatorID]
}

// HandleEvent consumes the result-bearing protocol events. Everything else
// is ignored.
func (s *Service) HandleEvent(event protocol.Event) {
	ctx := context.Background()

	switch e := event.(type) {
	case protocol.PaginatedResultEvent:
		s.resolvePage(ctx, e)
	case protocol.WebResultUpdateEvent:
		s.applyUpdates(ctx, e)
	case protocol.WorkflowAvailableResultEvent:
		s.applyAvailability(ctx, e)
	}
}

func (s *Service) resolvePage(ctx context.Context, e protocol.PaginatedResultEvent) {
	s.mu.Lock()
	request, found := s.pending[e.RequestID]
	delete(s.pending, e.RequestID)
	s.mu.Unlock()

	// A response for a request we no longer track is simply ignored.
	if !found {
		s.logger.Debug("Dropping unsolicited result page", "request_id", e.RequestID)

		return
	}

	if err := s.store.PutPage(ctx, e.OperatorID, e.PageIndex, e.Table); err != nil {
		s.logger.Warn("Failed to cache result page", "operator_id", e.OperatorID, "error", err)
	}

	request.deliver(Page{OperatorID: e.OperatorID, PageIndex: e.PageIndex, Table: e.Table})
}

// applyUpdates stores snapshot-mode tables and invalidates cached pages of
// pagination-mode operators, whose contents just changed server-side.
func (s *Service) applyUpdates(ctx context.Context, e protocol.WebResultUpdateEvent) {
	for operatorID, update := range e.Updates {
		s.mu.Lock()
		s.counts[operatorID] = update.TotalNumTuples
		s.mu.Unlock()

		switch update.Mode {
		case protocol.ResultModeSnapshot:
			s.mu.Lock()
			s.snapshots[operatorID] = update.Table
			s.mu.Unlock()
		case protocol.ResultModePagination:
			if err := s.store.InvalidateOperator(ctx, operatorID); err != nil {
				s.logger.Warn("Failed to invalidate result pages", "operator_id", operatorID, "error", err)
			}
		}
	}
}

func (s *Service) applyAvailability(ctx context.Context, e protocol.WorkflowAvailableResultEvent) {
	for operatorID, available := range e.AvailableOperators {
		if available.CacheValid {
			continue
		}

		s.mu.Lock()
		delete(s.snapshots, operatorID)
		delete(s.counts, operatorID)
		s.mu.Unlock()

		if err := s.store.InvalidateOperator(ctx, operatorID); err != nil {
			s.logger.Warn("Failed to invalidate result pages", "operator_id", operatorID, "error", err)
		}
	}
}
