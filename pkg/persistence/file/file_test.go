package file

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(slog.Default(), t.TempDir())
	require.NoError(t, err)

	return repo
}

func document(wid uint64, name string) *model.WorkflowDocument {
	doc := &model.WorkflowDocument{WID: wid, Name: name}
	_ = doc.SetContent(&model.WorkflowContent{
		Operators: []model.Operator{{OperatorID: "scan-1", OperatorType: "table-scan"}},
		OperatorPositions: map[string]model.Point{
			"scan-1": {X: 10, Y: 20},
		},
		Settings: model.DefaultWorkflowSettings(),
	})

	return doc
}

func TestRepository_SaveAndLoad(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveDocument(ctx, document(1, "fraud detection")))

	loaded, err := repo.DocumentByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fraud detection", loaded.Name)

	content, err := loaded.DecodeContent()
	require.NoError(t, err)
	assert.Len(t, content.Operators, 1)
	assert.Equal(t, model.Point{X: 10, Y: 20}, content.OperatorPositions["scan-1"])
}

func TestRepository_DocumentByIDNotFound(t *testing.T) {
	repo := newRepository(t)

	_, err := repo.DocumentByID(context.Background(), 404)
	require.ErrorIs(t, err, persistence.ErrDocumentNotFound)
	assert.True(t, persistence.IsDocumentNotFound(err))
}

func TestRepository_SaveRejectsInvalidDocument(t *testing.T) {
	repo := newRepository(t)

	err := repo.SaveDocument(context.Background(), &model.WorkflowDocument{WID: 1})
	require.ErrorIs(t, err, persistence.ErrInvalidDocument)
}

func TestRepository_DocumentsSorted(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveDocument(ctx, document(3, "third")))
	require.NoError(t, repo.SaveDocument(ctx, document(1, "first")))

	documents, err := repo.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, documents, 2)
	assert.Equal(t, uint64(1), documents[0].WID)
	assert.Equal(t, uint64(3), documents[1].WID)
}

func TestRepository_Delete(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveDocument(ctx, document(1, "doomed")))
	require.NoError(t, repo.DeleteDocument(ctx, 1))

	err := repo.DeleteDocument(ctx, 1)
	require.ErrorIs(t, err, persistence.ErrDocumentNotFound)
}

func TestRepository_HealthCheck(t *testing.T) {
	repo := newRepository(t)

	require.NoError(t, repo.HealthCheck(context.Background()))
}
