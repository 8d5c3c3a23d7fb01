package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type changeRequestCleaner interface {
	CountChangeRequestsByDocumentType(ctx context.Context, docType models.FormType) (int, error)
	DeleteChangeRequestsByDocumentType(ctx context.Context, docType models.FormType) (int64, error)
}

// CleanupRequest targets REQUEST_CHANGES reviews attached to one document type.
type CleanupRequest struct {
	DocumentType models.FormType `json:"document_type" validate:"required"`
	DryRun       bool            `json:"dry_run"`
}

// CleanupResult reports what the cleanup did (or would do).
type CleanupResult struct {
	DocumentType models.FormType `json:"document_type"`
	Matched      int64           `json:"matched"`
	Deleted      int64           `json:"deleted"`
	DryRun       bool            `json:"dry_run"`
}

// MaintenanceService hosts administrative bulk operations. Every
// destructive run leaves an audit trail.
type MaintenanceService struct {
	reviews changeRequestCleaner
	audit   auditWriter
	logger  *zap.Logger
}

// NewMaintenanceService constructs the maintenance service.
func NewMaintenanceService(reviews changeRequestCleaner, audit auditWriter, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{reviews: reviews, audit: audit, logger: logger}
}

// CleanupChangeRequests removes stale REQUEST_CHANGES reviews for a document
// type. With DryRun set it only counts the rows that would be removed.
func (s *MaintenanceService) CleanupChangeRequests(ctx context.Context, req CleanupRequest, actorID string) (*CleanupResult, error) {
	if !models.ValidFormType(req.DocumentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document type")
	}

	if req.DryRun {
		matched, err := s.reviews.CountChangeRequestsByDocumentType(ctx, req.DocumentType)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count change requests")
		}
		return &CleanupResult{DocumentType: req.DocumentType, Matched: int64(matched), DryRun: true}, nil
	}

	deleted, err := s.reviews.DeleteChangeRequestsByDocumentType(ctx, req.DocumentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete change requests")
	}

	docType := string(req.DocumentType)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionReviewCleanup,
		Resource:   "reviews",
		ResourceID: &docType,
		NewValues:  []byte(fmt.Sprintf(`{"deleted":%d}`, deleted)),
	}); err != nil {
		s.logger.Warn("failed to record cleanup audit log", zap.Error(err))
	}

	s.logger.Info("change request cleanup executed",
		zap.String("document_type", docType),
		zap.Int64("deleted", deleted),
		zap.String("actor_id", actorID))

	return &CleanupResult{DocumentType: req.DocumentType, Matched: deleted, Deleted: deleted}, nil
}
