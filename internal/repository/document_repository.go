package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/internship-office/ptms-api/internal/models"
)

const documentColumns = `id, application_id, type, status, file_url, version, created_at, updated_at`

// DocumentRepository handles persistence of generated and uploaded documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByApplicationAndType returns the live document for the pair.
func (r *DocumentRepository) FindByApplicationAndType(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE application_id = $1 AND type = $2 LIMIT 1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, applicationID, docType); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByApplication returns all documents of an application.
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE application_id = $1 ORDER BY type`, documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	return docs, nil
}

// Upsert creates the document record on first generation and bumps the
// version on regeneration, moving the live pointer to the new file while
// the prior stored copy keeps its versioned path.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Version <= 0 {
		doc.Version = 1
	}
	const query = `INSERT INTO documents (id, application_id, type, status, file_url, version, created_at, updated_at)
        VALUES (:id, :application_id, :type, :status, :file_url, :version, :created_at, :updated_at)
        ON CONFLICT (application_id, type) DO UPDATE
        SET status = EXCLUDED.status, file_url = EXCLUDED.file_url, version = documents.version + 1, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// UpdateStatus moves a document to a new lifecycle status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	const query = `UPDATE documents SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// CountUnsignedRequired returns how many of the listed document types for
// the application are missing or not yet SIGNED.
func (r *DocumentRepository) CountUnsignedRequired(ctx context.Context, applicationID string, required []models.FormType) (int, error) {
	if len(required) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(required)+1)
	args = append(args, applicationID)
	placeholders := make([]string, len(required))
	for i, t := range required {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, t)
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM unnest(ARRAY[%s]::text[]) AS req(type)
        WHERE NOT EXISTS (
            SELECT 1 FROM documents d
            WHERE d.application_id = $1 AND d.type = req.type AND d.status = 'SIGNED'
        )`, strings.Join(placeholders, ","))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count unsigned required documents: %w", err)
	}
	return count, nil
}
