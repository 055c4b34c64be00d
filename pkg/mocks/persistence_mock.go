package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowcanvas/flowcanvas/pkg/model"
)

// MockRepository is a mock implementation of persistence.Repository interface.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Documents(ctx context.Context) ([]*model.WorkflowDocument, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.WorkflowDocument), args.Error(1)
}

func (m *MockRepository) SaveDocument(ctx context.Context, document *model.WorkflowDocument) error {
	args := m.Called(ctx, document)

	return args.Error(0)
}

func (m *MockRepository) DocumentByID(ctx context.Context, wid uint64) (*model.WorkflowDocument, error) {
	args := m.Called(ctx, wid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.WorkflowDocument), args.Error(1)
}

func (m *MockRepository) DeleteDocument(ctx context.Context, wid uint64) error {
	args := m.Called(ctx, wid)

	return args.Error(0)
}

func (m *MockRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockRepository) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
