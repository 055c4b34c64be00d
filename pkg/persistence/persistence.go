// Package persistence provides the storage abstraction for workflow
// documents.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// Repository stores workflow documents. Content travels as the stringified
// graph payload; callers (de)serialize through model.WorkflowContent.
type Repository interface {
	Documents(ctx context.Context) ([]*model.WorkflowDocument, error)
	SaveDocument(ctx context.Context, document *model.WorkflowDocument) error
	DocumentByID(ctx context.Context, wid uint64) (*model.WorkflowDocument, error)
	DeleteDocument(ctx context.Context, wid uint64) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Factory resolves a repository implementation from a URL scheme:
// file://<path>, postgres://..., or http(s)://... for the REST collaborator.
type Factory func(ctx context.Context, logger *slog.Logger, url string) (Repository, error)

var factories = map[string]Factory{}

// RegisterFactory installs the constructor for a URL scheme. Implementations
// register themselves from their package init.
func RegisterFactory(scheme string, factory Factory) {
	factories[scheme] = factory
}

// NewRepository builds the repository matching the URL's scheme.
func NewRepository(ctx context.Context, logger *slog.Logger, url string) (Repository, error) {
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		return nil, fmt.Errorf("repository url %q has no scheme", url)
	}

	factory, supported := factories[scheme]
	if !supported {
		return nil, fmt.Errorf("unsupported repository scheme %q", scheme)
	}

	return factory(ctx, logger, url)
}
