package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moogar0880/problems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
)

func fixtureDocument() *model.WorkflowDocument {
	doc := &model.WorkflowDocument{WID: 7, Name: "sentiment analysis"}
	_ = doc.SetContent(&model.WorkflowContent{Settings: model.DefaultWorkflowSettings()})

	return doc
}

func TestClient_DocumentByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workflows/7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(fixtureDocument())
	}))
	t.Cleanup(server.Close)

	client := NewClient(slog.Default(), server.URL)

	document, err := client.DocumentByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "sentiment analysis", document.Name)
}

func TestClient_SaveDocumentPuts(t *testing.T) {
	var received model.WorkflowDocument

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/workflows/7", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := NewClient(slog.Default(), server.URL)

	require.NoError(t, client.SaveDocument(context.Background(), fixtureDocument()))
	assert.Equal(t, uint64(7), received.WID)
}

func TestClient_NotFoundMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := NewClient(slog.Default(), server.URL)

	_, err := client.DocumentByID(context.Background(), 404)
	require.ErrorIs(t, err, persistence.ErrDocumentNotFound)
}

func TestClient_ProblemDetailSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem := problems.NewStatusProblem(409).
			WithType("conflict").
			WithDetail("document is locked by another editor")
		w.Header().Set("Content-Type", problems.ProblemMediaType)
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(problem)
	}))
	t.Cleanup(server.Close)

	client := NewClient(slog.Default(), server.URL)

	err := client.SaveDocument(context.Background(), fixtureDocument())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another editor")
}

func TestClient_SaveRejectsInvalidDocument(t *testing.T) {
	client := NewClient(slog.Default(), "http://127.0.0.1:0")

	err := client.SaveDocument(context.Background(), &model.WorkflowDocument{WID: 1})
	require.ErrorIs(t, err, persistence.ErrInvalidDocument)
}
