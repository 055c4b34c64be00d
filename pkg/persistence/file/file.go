// Package file provides file-based persistence for workflow documents.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
)

func init() {
	persistence.RegisterFactory("file", func(_ context.Context, logger *slog.Logger, url string) (persistence.Repository, error) {
		return NewRepository(logger, strings.TrimPrefix(url, "file://"))
	})
}

// Repository stores each workflow document as one JSON file named by its
// numeric ID.
type Repository struct {
	root   string
	logger *slog.Logger
}

func NewRepository(logger *slog.Logger, root string) (*Repository, error) {
	documentsDir := path.Join(root, "documents")
	if err := os.MkdirAll(documentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	return &Repository{root: root, logger: logger}, nil
}

func (r *Repository) documentPath(wid uint64) string {
	return path.Join(r.root, "documents", strconv.FormatUint(wid, 10)+".json")
}

func (r *Repository) Documents(ctx context.Context) ([]*model.WorkflowDocument, error) {
	root := os.DirFS(path.Join(r.root, "documents"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list document files: %w", err)
	}

	documents := make([]*model.WorkflowDocument, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		wid, err := strconv.ParseUint(strings.TrimSuffix(file, ".json"), 10, 64)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping non-document file", "file", file)

			continue
		}

		document, err := r.DocumentByID(ctx, wid)
		if err != nil {
			return nil, err
		}

		documents = append(documents, document)
	}

	sort.Slice(documents, func(i, j int) bool { return documents[i].WID < documents[j].WID })

	return documents, nil
}

func (r *Repository) SaveDocument(_ context.Context, document *model.WorkflowDocument) error {
	if err := document.Validate(); err != nil {
		return &persistence.DocumentError{
			Op:      "Save",
			WID:     document.WID,
			Err:     persistence.ErrInvalidDocument,
			Message: err.Error(),
		}
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return persistence.NewDocumentError("Save", document.WID, err)
	}

	if err := os.WriteFile(r.documentPath(document.WID), data, 0o600); err != nil {
		return persistence.NewDocumentError("Save", document.WID, err)
	}

	return nil
}

func (r *Repository) DocumentByID(_ context.Context, wid uint64) (*model.WorkflowDocument, error) {
	data, err := os.ReadFile(r.documentPath(wid))
	if os.IsNotExist(err) {
		return nil, persistence.NewDocumentError("DocumentByID", wid, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return nil, persistence.NewDocumentError("DocumentByID", wid, err)
	}

	var document model.WorkflowDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, persistence.NewDocumentError("DocumentByID", wid, err)
	}

	return &document, nil
}

func (r *Repository) DeleteDocument(_ context.Context, wid uint64) error {
	err := os.Remove(r.documentPath(wid))
	if os.IsNotExist(err) {
		return persistence.NewDocumentError("Delete", wid, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.NewDocumentError("Delete", wid, err)
	}

	return nil
}

func (r *Repository) HealthCheck(_ context.Context) error {
	info, err := os.Stat(path.Join(r.root, "documents"))
	if err != nil {
		return fmt.Errorf("documents directory is not accessible: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("documents path %s is not a directory", path.Join(r.root, "documents"))
	}

	return nil
}

func (r *Repository) Close(_ context.Context) error {
	return nil
}
