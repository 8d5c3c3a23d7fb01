package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	CountApplications(ctx context.Context, id string) (int, error)
}

type coordinatorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionRequest describes session creation and update payloads.
type SessionRequest struct {
	Name          string `json:"name" validate:"required"`
	Year          int    `json:"year" validate:"required,min=2000"`
	Semester      int    `json:"semester" validate:"required,min=1,max=3"`
	MinCredits    int    `json:"min_credits" validate:"min=0"`
	MinWeeks      int    `json:"min_weeks" validate:"required,min=1"`
	MaxWeeks      int    `json:"max_weeks" validate:"required,min=1"`
	IsActive      bool   `json:"is_active"`
	CoordinatorID string `json:"coordinator_id" validate:"required"`
}

// SessionService orchestrates training session administration.
type SessionService struct {
	repo      sessionRepository
	users     coordinatorReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, users coordinatorReader, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns sessions with pagination metadata.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
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
	return sessions, pagination, nil
}

// Get returns one session with coordinator context.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return detail, nil
}

// Create registers a new training session.
func (s *SessionService) Create(ctx context.Context, req SessionRequest) (*models.SessionDetail, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	session := &models.Session{
		Name:          req.Name,
		Year:          req.Year,
		Semester:      req.Semester,
		MinCredits:    req.MinCredits,
		MinWeeks:      req.MinWeeks,
		MaxWeeks:      req.MaxWeeks,
		IsActive:      req.IsActive,
		CoordinatorID: req.CoordinatorID,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return s.Get(ctx, session.ID)
}

// Update replaces the mutable fields of a session.
func (s *SessionService) Update(ctx context.Context, id string, req SessionRequest) (*models.SessionDetail, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	session.Name = req.Name
	session.Year = req.Year
	session.Semester = req.Semester
	session.MinCredits = req.MinCredits
	session.MinWeeks = req.MinWeeks
	session.MaxWeeks = req.MaxWeeks
	session.IsActive = req.IsActive
	session.CoordinatorID = req.CoordinatorID
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return s.Get(ctx, id)
}

// Delete removes a session that has no applications attached.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	count, err := s.repo.CountApplications(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count session applications")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "session has applications and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

func (s *SessionService) validateRequest(ctx context.Context, req SessionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if req.MinWeeks > req.MaxWeeks {
		return appErrors.Clone(appErrors.ErrValidation, "min_weeks must not exceed max_weeks")
	}
	coordinator, err := s.users.FindByID(ctx, req.CoordinatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "coordinator not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coordinator")
	}
	if coordinator.Role != models.RoleCoordinator && coordinator.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "assigned user is not a coordinator")
	}
	return nil
}
