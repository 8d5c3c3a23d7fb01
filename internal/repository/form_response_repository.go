package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/internship-office/ptms-api/internal/models"
)

const formColumns = `id, application_id, form_type, payload, signatures, created_at, updated_at`

// FormResponseRepository handles persistence of submitted form payloads.
type FormResponseRepository struct {
	db *sqlx.DB
}

// NewFormResponseRepository constructs the repository.
func NewFormResponseRepository(db *sqlx.DB) *FormResponseRepository {
	return &FormResponseRepository{db: db}
}

// FindByApplicationAndType returns the response for the unique pair.
func (r *FormResponseRepository) FindByApplicationAndType(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_responses WHERE application_id = $1 AND form_type = $2 LIMIT 1`, formColumns)
	var form models.FormResponse
	if err := r.db.GetContext(ctx, &form, query, applicationID, formType); err != nil {
		return nil, err
	}
	return &form, nil
}

// ListByApplication returns all form responses of an application.
func (r *FormResponseRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.FormResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_responses WHERE application_id = $1 ORDER BY form_type`, formColumns)
	var forms []models.FormResponse
	if err := r.db.SelectContext(ctx, &forms, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application forms: %w", err)
	}
	return forms, nil
}

// Upsert writes the payload and signatures for the (application, formType)
// pair, creating the row on first submission.
func (r *FormResponseRepository) Upsert(ctx context.Context, form *models.FormResponse) error {
	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}
	form.UpdatedAt = now
	const query = `INSERT INTO form_responses (id, application_id, form_type, payload, signatures, created_at, updated_at)
        VALUES (:id, :application_id, :form_type, :payload, :signatures, :created_at, :updated_at)
        ON CONFLICT (application_id, form_type) DO UPDATE
        SET payload = EXCLUDED.payload, signatures = EXCLUDED.signatures, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, form); err != nil {
		return fmt.Errorf("upsert form response: %w", err)
	}
	return nil
}
