// Package postgresql provides PostgreSQL persistence for workflow documents.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
	"github.com/flowcanvas/flowcanvas/pkg/persistence/sqlbase"
)

func init() {
	persistence.RegisterFactory("postgres", func(ctx context.Context, logger *slog.Logger, url string) (persistence.Repository, error) {
		return NewRepository(ctx, logger, url)
	})
}

// Repository implements document persistence on PostgreSQL.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (*Repository, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repository{db: database, logger: logger}, nil
}

func (r *Repository) Documents(ctx context.Context) ([]*model.WorkflowDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT wid, name, description, content, is_public FROM workflow_documents ORDER BY wid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	documents := make([]*model.WorkflowDocument, 0)

	for rows.Next() {
		var document model.WorkflowDocument

		err := rows.Scan(&document.WID, &document.Name, &document.Description, &document.Content, &document.IsPublic)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		documents = append(documents, &document)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}

	return documents, nil
}

func (r *Repository) SaveDocument(ctx context.Context, document *model.WorkflowDocument) error {
	if err := document.Validate(); err != nil {
		return &persistence.DocumentError{
			Op:      "Save",
			WID:     document.WID,
			Err:     persistence.ErrInvalidDocument,
			Message: err.Error(),
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_documents (wid, name, description, content, is_public, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (wid) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			is_public = EXCLUDED.is_public,
			updated_at = NOW()`,
		document.WID, document.Name, document.Description, document.Content, document.IsPublic)
	if err != nil {
		return persistence.NewDocumentError("Save", document.WID, err)
	}

	return nil
}

func (r *Repository) DocumentByID(ctx context.Context, wid uint64) (*model.WorkflowDocument, error) {
	var document model.WorkflowDocument

	err := r.db.QueryRowContext(ctx,
		`SELECT wid, name, description, content, is_public FROM workflow_documents WHERE wid = $1`,
		wid).Scan(&document.WID, &document.Name, &document.Description, &document.Content, &document.IsPublic)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewDocumentError("DocumentByID", wid, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return nil, persistence.NewDocumentError("DocumentByID", wid, err)
	}

	return &document, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, wid uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_documents WHERE wid = $1`, wid)
	if err != nil {
		return persistence.NewDocumentError("Delete", wid, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDocumentError("Delete", wid, err)
	}

	if affected == 0 {
		return persistence.NewDocumentError("Delete", wid, persistence.ErrDocumentNotFound)
	}

	return nil
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	err := r.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (r *Repository) Close(_ context.Context) error {
	if r.db != nil {
		err := r.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
