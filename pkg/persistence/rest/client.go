// Package rest implements the document repository against the platform's
// workflow HTTP API. Error responses follow RFC 7807.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/moogar0880/problems"

	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
)

const defaultTimeout = 30 * time.Second

func init() {
	factory := func(_ context.Context, logger *slog.Logger, url string) (persistence.Repository, error) {
		return NewClient(logger, url), nil
	}

	persistence.RegisterFactory("http", factory)
	persistence.RegisterFactory("https", factory)
}

// Client talks to the workflow document API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger, baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func (c *Client) documentURL(wid uint64) string {
	return c.baseURL + "/workflows/" + strconv.FormatUint(wid, 10)
}

func (c *Client) Documents(ctx context.Context) ([]*model.WorkflowDocument, error) {
	var documents []*model.WorkflowDocument
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/workflows", nil, &documents); err != nil {
		return nil, err
	}

	return documents, nil
}

func (c *Client) SaveDocument(ctx context.Context, document *model.WorkflowDocument) error {
	if err := document.Validate(); err != nil {
		return &persistence.DocumentError{
			Op:      "Save",
			WID:     document.WID,
			Err:     persistence.ErrInvalidDocument,
			Message: err.Error(),
		}
	}

	body, err := json.Marshal(document)
	if err != nil {
		return persistence.NewDocumentError("Save", document.WID, err)
	}

	if err := c.do(ctx, http.MethodPut, c.documentURL(document.WID), body, nil); err != nil {
		return persistence.NewDocumentError("Save", document.WID, err)
	}

	return nil
}

func (c *Client) DocumentByID(ctx context.Context, wid uint64) (*model.WorkflowDocument, error) {
	var document model.WorkflowDocument

	err := c.do(ctx, http.MethodGet, c.documentURL(wid), nil, &document)
	if err != nil {
		return nil, persistence.NewDocumentError("DocumentByID", wid, err)
	}

	return &document, nil
}

func (c *Client) DeleteDocument(ctx context.Context, wid uint64) error {
	if err := c.do(ctx, http.MethodDelete, c.documentURL(wid), nil, nil); err != nil {
		return persistence.NewDocumentError("Delete", wid, err)
	}

	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil, nil)
}

func (c *Client) Close(_ context.Context) error {
	c.httpClient.CloseIdleConnections()

	return nil
}

// do performs one API call, decoding a JSON response into out when given.
// Non-2xx responses carrying a problem document are surfaced with its
// detail; a 404 maps to ErrDocumentNotFound.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= 400 {
		return c.apiError(response)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) apiError(response *http.Response) error {
	if response.StatusCode == http.StatusNotFound {
		return persistence.ErrDocumentNotFound
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("api returned status %d", response.StatusCode)
	}

	var problem problems.Problem
	if err := json.Unmarshal(data, &problem); err == nil && problem.Title != "" {
		return fmt.Errorf("api returned %d %s: %s", response.StatusCode, problem.Title, problem.Detail)
	}

	return fmt.Errorf("api returned status %d: %s", response.StatusCode, strings.TrimSpace(string(data)))
}
