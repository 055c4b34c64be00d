package autosave

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/mocks"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
	_ "github.com/flowcanvas/flowcanvas/pkg/persistence/file"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

type fixture struct {
	repo    persistence.Repository
	graph   *graph.WorkflowGraph
	shared  *shared.SharedGraph
	service *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ctx := context.Background()

	repo, err := persistence.NewRepository(ctx, slog.Default(), "file://"+t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(ctx) })

	g := graph.NewWorkflowGraph()
	sg := shared.NewSharedGraph("site-a", g)

	document := model.WorkflowDocument{WID: 7, Name: "Untitled workflow"}

	return &fixture{
		repo:    repo,
		graph:   g,
		shared:  sg,
		service: NewService(repo, sg, document, opts...),
	}
}

func (f *fixture) addOperator(t *testing.T, id string) {
	t.Helper()

	require.NoError(t, f.graph.AddOperator(model.Operator{
		OperatorID:   id,
		OperatorType: "table-scan",
		OutputPorts:  []model.Port{{PortID: "out"}},
	}))
	require.NoError(t, f.shared.SetOperatorPosition(id, model.Point{X: 10, Y: 20}))
}

func TestService_SaveNowWithoutEditsIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	require.NoError(t, f.service.SaveNow(ctx))

	_, err := f.repo.DocumentByID(ctx, 7)
	assert.ErrorIs(t, err, persistence.ErrDocumentNotFound)
}

func TestService_SaveNowPersistsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	f.addOperator(t, "scan-1")

	require.True(t, f.service.Dirty())
	require.NoError(t, f.service.SaveNow(ctx))
	assert.False(t, f.service.Dirty())

	saved, err := f.repo.DocumentByID(ctx, 7)
	require.NoError(t, err)

	content, err := saved.DecodeContent()
	require.NoError(t, err)
	require.Len(t, content.Operators, 1)
	assert.Equal(t, "scan-1", content.Operators[0].OperatorID)
	assert.Equal(t, model.Point{X: 10, Y: 20}, content.OperatorPositions["scan-1"])
}

func TestService_ScheduledSave(t *testing.T) {
	f := newFixture(t, WithSchedule("* * * * * *"))
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	t.Cleanup(func() { _ = f.service.Stop(ctx) })

	f.addOperator(t, "scan-1")

	require.Eventually(t, func() bool {
		_, err := f.repo.DocumentByID(ctx, 7)

		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
}

func TestService_StopFlushesPendingEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	f.addOperator(t, "scan-1")

	require.NoError(t, f.service.Stop(ctx))

	_, err := f.repo.DocumentByID(ctx, 7)
	assert.NoError(t, err)
}

func TestService_RenameMarksDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	f.service.SetDocumentName("My workflow")

	require.NoError(t, f.service.SaveNow(ctx))

	saved, err := f.repo.DocumentByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "My workflow", saved.Name)
}

func TestService_OnSavedHookObservesWrites(t *testing.T) {
	var saved []uint64

	f := newFixture(t, WithOnSaved(func(document model.WorkflowDocument) {
		saved = append(saved, document.WID)
	}))
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	f.addOperator(t, "scan-1")

	require.NoError(t, f.service.SaveNow(ctx))
	assert.Equal(t, []uint64{7}, saved)
}

func TestService_FailedSaveStaysDirty(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.MockRepository{}
	repo.On("SaveDocument", ctx, mock.Anything).Return(assert.AnError)

	g := graph.NewWorkflowGraph()
	sg := shared.NewSharedGraph("site-a", g)
	service := NewService(repo, sg, model.WorkflowDocument{WID: 7, Name: "Untitled workflow"})

	require.NoError(t, service.Start(ctx))
	require.NoError(t, g.AddOperator(model.Operator{
		OperatorID:   "scan-1",
		OperatorType: "table-scan",
		OutputPorts:  []model.Port{{PortID: "out"}},
	}))

	require.ErrorIs(t, service.SaveNow(ctx), assert.AnError)
	assert.True(t, service.Dirty())
	repo.AssertExpectations(t)
}

func TestService_StartTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	assert.ErrorIs(t, f.service.Start(ctx), ErrAlreadyStarted)
}

func TestService_InvalidScheduleRejected(t *testing.T) {
	f := newFixture(t, WithSchedule("not a cron expression"))

	assert.Error(t, f.service.Start(context.Background()))
}
