package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByUserAndSession(ctx context.Context, userID, sessionID string) (*models.Application, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	Replace(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
	Update(ctx context.Context, app *models.Application) error
	CountDependents(ctx context.Context, applicationID string) (documents, forms, reviews int, err error)
}

type eligibilityChecker interface {
	Check(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateApplicationRequest opens (or replaces) a student's attempt for a
// session.
type CreateApplicationRequest struct {
	SessionID       string    `json:"session_id" validate:"required"`
	CompanyName     string    `json:"company_name" validate:"required"`
	CompanyAddress  string    `json:"company_address" validate:"required"`
	CompanyIndustry string    `json:"company_industry"`
	SupervisorName  string    `json:"supervisor_name"`
	SupervisorEmail string    `json:"supervisor_email" validate:"omitempty,email"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required"`
	// ConfirmReplace must be set when a prior attempt with dependent rows
	// exists; the replacement wipes them.
	ConfirmReplace bool `json:"confirm_replace"`
}

// UpdateApplicationRequest edits company and schedule fields of a draft.
type UpdateApplicationRequest struct {
	CompanyName     string    `json:"company_name" validate:"required"`
	CompanyAddress  string    `json:"company_address" validate:"required"`
	CompanyIndustry string    `json:"company_industry"`
	SupervisorName  string    `json:"supervisor_name"`
	SupervisorEmail string    `json:"supervisor_email" validate:"omitempty,email"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required"`
}

// ReplacementBlocked reports the dependent rows a resubmission would erase.
type ReplacementBlocked struct {
	Documents int `json:"documents"`
	Forms     int `json:"forms"`
	Reviews   int `json:"reviews"`
}

// allowedTransitions fixes the application state machine. Cancellation is
// handled separately: any non-terminal status may cancel.
var allowedTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationDraft:       {models.ApplicationSubmitted},
	models.ApplicationSubmitted:   {models.ApplicationUnderReview},
	models.ApplicationUnderReview: {models.ApplicationApproved, models.ApplicationRejected},
}

func transitionAllowed(from, to models.ApplicationStatus) bool {
	if to == models.ApplicationCancelled {
		return !from.IsTerminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplicationService orchestrates the application lifecycle.
type ApplicationService struct {
	repo        applicationRepository
	sessions    sessionReader
	eligibility eligibilityChecker
	audit       auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, sessions sessionReader, eligibility eligibilityChecker, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, sessions: sessions, eligibility: eligibility, audit: audit, validator: validate, logger: logger}
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applications, pagination, nil
}

// Get returns one application with student and session context.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return detail, nil
}

// Create opens a new attempt for the student in the session. When a prior
// attempt exists its documents, form responses and reviews are erased with
// it, so the caller must set confirm_replace once told what would go.
func (s *ApplicationService) Create(ctx context.Context, studentID string, req CreateApplicationRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session is not accepting applications")
	}
	if err := validatePlacementDates(session, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	eligibility, err := s.eligibility.Check(ctx, studentID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !eligibility.IsEligible {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotEligible, ""), eligibility)
	}

	prior, err := s.repo.FindByUserAndSession(ctx, studentID, req.SessionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prior application")
	}
	if prior != nil {
		documents, forms, reviews, err := s.repo.CountDependents(ctx, prior.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count dependent records")
		}
		if (documents > 0 || forms > 0 || reviews > 0) && !req.ConfirmReplace {
			return nil, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrConflict, "an application already exists; replacing it discards its records"),
				ReplacementBlocked{Documents: documents, Forms: forms, Reviews: reviews},
			)
		}
	}

	app := &models.Application{
		UserID:          studentID,
		SessionID:       req.SessionID,
		Status:          models.ApplicationDraft,
		CompanyName:     req.CompanyName,
		CompanyAddress:  req.CompanyAddress,
		CompanyIndustry: req.CompanyIndustry,
		SupervisorName:  req.SupervisorName,
		SupervisorEmail: req.SupervisorEmail,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}
	if err := s.repo.Replace(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save application")
	}

	if prior != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &studentID,
			Action:     models.AuditActionApplicationReplace,
			Resource:   "applications",
			ResourceID: &app.ID,
			OldValues:  []byte(fmt.Sprintf(`{"replaced":%q}`, prior.ID)),
		}); err != nil {
			s.logger.Warn("failed to record replacement audit log", zap.Error(err))
		}
		s.logger.Info("application replaced",
			zap.String("student_id", studentID),
			zap.String("prior_id", prior.ID),
			zap.String("application_id", app.ID))
	}

	return s.Get(ctx, app.ID)
}

// Update edits company and schedule fields. Only drafts and applications
// sent back for changes may be edited.
func (s *ApplicationService) Update(ctx context.Context, id, actorID string, req UpdateApplicationRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	if app.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application is closed")
	}
	session, err := s.sessions.FindByID(ctx, app.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if err := validatePlacementDates(session, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	app.CompanyName = req.CompanyName
	app.CompanyAddress = req.CompanyAddress
	app.CompanyIndustry = req.CompanyIndustry
	app.SupervisorName = req.SupervisorName
	app.SupervisorEmail = req.SupervisorEmail
	app.StartDate = req.StartDate
	app.EndDate = req.EndDate
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
	}
	return s.Get(ctx, id)
}

// Submit moves a draft into the coordinator's queue.
func (s *ApplicationService) Submit(ctx context.Context, id, actorID string) (*models.ApplicationDetail, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	return s.transition(ctx, app, models.ApplicationSubmitted)
}

// Cancel closes any non-terminal application.
func (s *ApplicationService) Cancel(ctx context.Context, id, actorID string, actorRole models.UserRole) (*models.ApplicationDetail, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if actorRole == models.RoleStudent && app.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	return s.transition(ctx, app, models.ApplicationCancelled)
}

// Transition moves an application along the state machine. Coordinators use
// this for UNDER_REVIEW; approval and rejection go through reviews.
func (s *ApplicationService) Transition(ctx context.Context, id string, target models.ApplicationStatus) (*models.ApplicationDetail, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return s.transition(ctx, app, target)
}

func (s *ApplicationService) transition(ctx context.Context, app *models.Application, target models.ApplicationStatus) (*models.ApplicationDetail, error) {
	if !transitionAllowed(app.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot move application from %s to %s", app.Status, target))
	}
	if err := s.repo.UpdateStatus(ctx, app.ID, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	return s.Get(ctx, app.ID)
}

func validatePlacementDates(session *models.Session, start, end time.Time) error {
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}
	weeks := int(end.Sub(start).Hours() / (24 * 7))
	if weeks < session.MinWeeks {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("placement must run at least %d weeks", session.MinWeeks))
	}
	if weeks > session.MaxWeeks {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("placement must not exceed %d weeks", session.MaxWeeks))
	}
	return nil
}
