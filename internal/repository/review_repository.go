package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/internship-office/ptms-api/internal/models"
)

// ReviewRepository handles persistence of coordinator decisions.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create appends a review record.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.DecidedAt.IsZero() {
		review.DecidedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reviews (id, application_id, document_id, reviewer_id, decision, comments, decided_at)
        VALUES (:id, :application_id, :document_id, :reviewer_id, :decision, :comments, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ListByApplication returns all reviews of an application, newest first.
func (r *ReviewRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.ReviewDetail, error) {
	const query = `SELECT r.id, r.application_id, r.document_id, r.reviewer_id, r.decision, r.comments, r.decided_at,
        COALESCE(u.full_name, '') AS reviewer_name
        FROM reviews r LEFT JOIN users u ON u.id = r.reviewer_id
        WHERE r.application_id = $1 ORDER BY r.decided_at DESC`
	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application reviews: %w", err)
	}
	return reviews, nil
}

// LatestChangeRequest returns the most recent REQUEST_CHANGES review for an
// application, or sql.ErrNoRows when none exists.
func (r *ReviewRepository) LatestChangeRequest(ctx context.Context, applicationID string) (*models.Review, error) {
	const query = `SELECT id, application_id, document_id, reviewer_id, decision, comments, decided_at
        FROM reviews WHERE application_id = $1 AND decision = $2 ORDER BY decided_at DESC LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, applicationID, models.DecisionRequestChanges); err != nil {
		return nil, err
	}
	return &review, nil
}

// CountChangeRequestsByDocumentType counts REQUEST_CHANGES reviews attached
// to documents of the given type.
func (r *ReviewRepository) CountChangeRequestsByDocumentType(ctx context.Context, docType models.FormType) (int, error) {
	const query = `SELECT COUNT(*) FROM reviews r
        JOIN documents d ON d.id = r.document_id
        WHERE r.decision = $1 AND d.type = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.DecisionRequestChanges, docType); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count change requests: %w", err)
	}
	return count, nil
}

// DeleteChangeRequestsByDocumentType bulk-removes REQUEST_CHANGES reviews
// attached to documents of the given type and returns how many went. Only
// the audited maintenance flow may call this.
func (r *ReviewRepository) DeleteChangeRequestsByDocumentType(ctx context.Context, docType models.FormType) (int64, error) {
	const query = `DELETE FROM reviews r
        USING documents d
        WHERE d.id = r.document_id AND r.decision = $1 AND d.type = $2`
	result, err := r.db.ExecContext(ctx, query, models.DecisionRequestChanges, docType)
	if err != nil {
		return 0, fmt.Errorf("delete change requests: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted change requests: %w", err)
	}
	return deleted, nil
}
