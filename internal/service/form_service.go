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
	"github.com/internship-office/ptms-api/pkg/render"
)

type formResponseRepository interface {
	FindByApplicationAndType(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.FormResponse, error)
	Upsert(ctx context.Context, form *models.FormResponse) error
}

type applicationReader interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

type signedDocumentMarker interface {
	FindByApplicationAndType(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error
}

// SubmitFormRequest carries one form's field values.
type SubmitFormRequest struct {
	FormType string            `json:"form_type" validate:"required"`
	Payload  map[string]string `json:"payload" validate:"required"`
}

// SignFormRequest fills one signature slot on a submitted form.
type SignFormRequest struct {
	FormType      string `json:"form_type" validate:"required"`
	Role          string `json:"role" validate:"required,oneof=student coordinator supervisor"`
	Signature     string `json:"signature" validate:"required"`
	SignatureType string `json:"signature_type" validate:"required,oneof=typed drawn image"`
	SignerName    string `json:"signer_name" validate:"required"`
}

// FormService manages form submissions and their signature slots.
type FormService struct {
	repo         formResponseRepository
	applications applicationReader
	documents    signedDocumentMarker
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
}

// WithMetrics attaches an optional metrics recorder.
func (s *FormService) WithMetrics(metrics *MetricsService) *FormService {
	s.metrics = metrics
	return s
}

// WithDocuments lets a completed form flip its generated letter to SIGNED.
func (s *FormService) WithDocuments(documents signedDocumentMarker) *FormService {
	s.documents = documents
	return s
}

// NewFormService constructs FormService.
func NewFormService(repo formResponseRepository, applications applicationReader, validate *validator.Validate, logger *zap.Logger) *FormService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormService{repo: repo, applications: applications, validator: validate, logger: logger}
}

// List returns all form responses of an application.
func (s *FormService) List(ctx context.Context, applicationID string) ([]models.FormResponse, error) {
	if _, err := s.loadApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	forms, err := s.repo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list forms")
	}
	return forms, nil
}

// Get returns one form response.
func (s *FormService) Get(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error) {
	if !models.ValidFormType(formType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form type %q", formType))
	}
	form, err := s.repo.FindByApplicationAndType(ctx, applicationID, formType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "form response not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}
	return form, nil
}

// Submit creates or overwrites the payload for a form. Resubmitting keeps
// already-collected signatures on the slots.
func (s *FormService) Submit(ctx context.Context, applicationID string, req SubmitFormRequest) (*models.FormResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid form payload")
	}
	formType := models.FormType(req.FormType)
	if !models.ValidFormType(formType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form type %q", formType))
	}
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application is closed")
	}

	form, err := s.repo.FindByApplicationAndType(ctx, applicationID, formType)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
		}
		form = &models.FormResponse{
			ApplicationID: applicationID,
			FormType:      formType,
			Signatures:    models.SignatureSlots{},
		}
	}
	form.Payload = models.FormPayload(req.Payload)
	if err := s.repo.Upsert(ctx, form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save form")
	}
	return form, nil
}

// Sign fills one signature slot. The signature value must parse as the
// declared variant; a slot that is already filled stays as it is.
func (s *FormService) Sign(ctx context.Context, applicationID string, req SignFormRequest) (*models.FormResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signature payload")
	}
	formType := models.FormType(req.FormType)
	if !models.ValidFormType(formType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form type %q", formType))
	}
	role := models.SignatureRole(req.Role)
	if !roleRequired(formType, role) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("form %s has no %s signature slot", formType, role))
	}

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application is closed")
	}

	if _, err := render.ParseSignature(req.Signature, req.SignatureType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "signature value is not a valid "+req.SignatureType+" signature")
	}

	form, err := s.repo.FindByApplicationAndType(ctx, applicationID, formType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "form must be submitted before signing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}
	if form.Signatures[role].Present() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "signature slot is already filled")
	}

	now := time.Now().UTC()
	if form.Signatures == nil {
		form.Signatures = models.SignatureSlots{}
	}
	form.Signatures[role] = models.SignatureSlot{
		Signature:     req.Signature,
		SignatureType: req.SignatureType,
		SignerName:    req.SignerName,
		SignedAt:      &now,
	}
	if err := s.repo.Upsert(ctx, form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save signature")
	}

	if form.Complete() {
		s.markDocumentSigned(ctx, applicationID, formType)
	}

	if s.metrics != nil {
		s.metrics.RecordSignature(string(role))
	}
	s.logger.Info("form signed",
		zap.String("application_id", applicationID),
		zap.String("form_type", string(formType)),
		zap.String("role", string(role)))
	return form, nil
}

// markDocumentSigned flips the generated letter for a fully signed form.
// The letter may not have been generated yet; that is not an error.
func (s *FormService) markDocumentSigned(ctx context.Context, applicationID string, formType models.FormType) {
	if s.documents == nil {
		return
	}
	doc, err := s.documents.FindByApplicationAndType(ctx, applicationID, formType)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load document for signed form", zap.Error(err))
		}
		return
	}
	if doc.Status == models.DocumentSigned {
		return
	}
	if err := s.documents.UpdateStatus(ctx, doc.ID, models.DocumentSigned); err != nil {
		s.logger.Warn("failed to mark document signed",
			zap.String("application_id", applicationID),
			zap.String("document_type", string(formType)),
			zap.Error(err))
		return
	}
	s.logger.Info("document marked signed",
		zap.String("application_id", applicationID),
		zap.String("document_type", string(formType)))
}

func (s *FormService) loadApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

func roleRequired(formType models.FormType, role models.SignatureRole) bool {
	for _, required := range models.RequiredSignatures(formType) {
		if required == role {
			return true
		}
	}
	return false
}
