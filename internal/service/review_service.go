package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	ListByApplication(ctx context.Context, applicationID string) ([]models.ReviewDetail, error)
	LatestChangeRequest(ctx context.Context, applicationID string) (*models.Review, error)
}

type reviewDocumentRepository interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error)
	FindByApplicationAndType(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error)
	CountUnsignedRequired(ctx context.Context, applicationID string, required []models.FormType) (int, error)
}

type applicationTransitioner interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

// SubmitReviewRequest records a coordinator decision, optionally scoped to
// one document type.
type SubmitReviewRequest struct {
	Decision     string `json:"decision" validate:"required,oneof=APPROVE REQUEST_CHANGES REJECT"`
	DocumentType string `json:"document_type,omitempty"`
	Comments     string `json:"comments,omitempty"`
}

// PendingChange pairs a document with the change request it still owes a
// resubmission to.
type PendingChange struct {
	Document  models.Document `json:"document"`
	RequestID string          `json:"request_id"`
	Comments  string          `json:"comments,omitempty"`
}

// ReviewService records coordinator decisions and drives the resulting
// application transitions.
type ReviewService struct {
	repo         reviewRepository
	documents    reviewDocumentRepository
	applications applicationTransitioner
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(repo reviewRepository, documents reviewDocumentRepository, applications applicationTransitioner, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, documents: documents, applications: applications, validator: validate, logger: logger}
}

// List returns the review history of an application, newest first.
func (s *ReviewService) List(ctx context.Context, applicationID string) ([]models.ReviewDetail, error) {
	reviews, err := s.repo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// Submit records a decision. A submitted application is moved to UNDER_REVIEW
// by its first review. APPROVE moves the application to APPROVED and is
// refused while any required letter is unsigned; REJECT closes the
// application; REQUEST_CHANGES keeps it under review awaiting resubmission.
func (s *ReviewService) Submit(ctx context.Context, applicationID, reviewerID string, req SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	decision := models.ReviewDecision(req.Decision)

	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	switch app.Status {
	case models.ApplicationUnderReview, models.ApplicationSubmitted:
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application is not open for review")
	}

	review := &models.Review{
		ApplicationID: applicationID,
		ReviewerID:    reviewerID,
		Decision:      decision,
		Comments:      req.Comments,
	}

	if req.DocumentType != "" {
		docType := models.FormType(req.DocumentType)
		if !models.ValidFormType(docType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", docType))
		}
		doc, err := s.documents.FindByApplicationAndType(ctx, applicationID, docType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		}
		review.DocumentID = &doc.ID
	}

	if decision == models.DecisionApprove {
		unsigned, err := s.unsignedRequired(ctx, applicationID)
		if err != nil {
			return nil, err
		}
		// The decision is not recorded: approval with unsigned letters never
		// reaches the history.
		if len(unsigned) > 0 {
			return nil, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrPreconditionFailed, "required letters are not signed"),
				unsigned,
			)
		}
	}

	// The first review on a submitted application opens it: the transition to
	// UNDER_REVIEW happens as part of recording the entry.
	if app.Status == models.ApplicationSubmitted {
		if err := s.applications.UpdateStatus(ctx, applicationID, models.ApplicationUnderReview); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open review")
		}
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	var target models.ApplicationStatus
	switch decision {
	case models.DecisionApprove:
		target = models.ApplicationApproved
	case models.DecisionReject:
		target = models.ApplicationRejected
	}
	if target != "" {
		if err := s.applications.UpdateStatus(ctx, applicationID, target); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
		}
	}

	s.logger.Info("review recorded",
		zap.String("application_id", applicationID),
		zap.String("reviewer_id", reviewerID),
		zap.String("decision", string(decision)))
	return review, nil
}

// PendingChanges lists documents that still owe a resubmission to the most
// recent change request. A document counts as pending while its last update
// does not postdate the decision and it has not been signed; resubmitting
// and re-listing is therefore idempotent.
func (s *ReviewService) PendingChanges(ctx context.Context, applicationID string) ([]PendingChange, error) {
	request, err := s.repo.LatestChangeRequest(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []PendingChange{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}

	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}

	pending := make([]PendingChange, 0, len(docs))
	for _, doc := range docs {
		if request.DocumentID != nil && *request.DocumentID != doc.ID {
			continue
		}
		if doc.PendingChange(request.DecidedAt) {
			pending = append(pending, PendingChange{
				Document:  doc,
				RequestID: request.ID,
				Comments:  request.Comments,
			})
		}
	}
	return pending, nil
}

func (s *ReviewService) unsignedRequired(ctx context.Context, applicationID string) ([]models.FormType, error) {
	count, err := s.documents.CountUnsignedRequired(ctx, applicationID, models.RequiredDocumentTypes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check required letters")
	}
	if count == 0 {
		return nil, nil
	}
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	signed := make(map[models.FormType]bool, len(docs))
	for _, doc := range docs {
		if doc.Status == models.DocumentSigned {
			signed[doc.Type] = true
		}
	}
	var unsigned []models.FormType
	for _, required := range models.RequiredDocumentTypes {
		if !signed[required] {
			unsigned = append(unsigned, required)
		}
	}
	return unsigned, nil
}
