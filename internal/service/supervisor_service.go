package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

const supervisorTokenSubject = "supervisor-sign"

type signerTokenSource interface {
	Generate(subject, ref string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (subject, ref string, expiresAt time.Time, err error)
}

type formSigner interface {
	Sign(ctx context.Context, applicationID string, req SignFormRequest) (*models.FormResponse, error)
	Get(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error)
}

// SupervisorLink is a shareable signing invitation for an external
// industry supervisor.
type SupervisorLink struct {
	Token     string    `json:"token"`
	FormType  string    `json:"form_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SupervisorContext is what the external signing page shows before the
// supervisor signs: enough to recognise the student, nothing more.
type SupervisorContext struct {
	StudentName    string     `json:"student_name"`
	CompanyName    string     `json:"company_name"`
	SupervisorName string     `json:"supervisor_name"`
	FormType       string     `json:"form_type"`
	SessionName    string     `json:"session_name"`
	AlreadySigned  bool       `json:"already_signed"`
	ExpiresAt      time.Time  `json:"expires_at"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
}

// SupervisorSignRequest carries the external supervisor's signature.
type SupervisorSignRequest struct {
	Signature     string `json:"signature" validate:"required"`
	SignatureType string `json:"signature_type" validate:"required,oneof=typed drawn image"`
	SignerName    string `json:"signer_name" validate:"required"`
}

// SupervisorService drives the tokenized external-signer flow: supervisors
// get a time-limited link and sign without an account.
type SupervisorService struct {
	tokens       signerTokenSource
	applications applicationDetailReader
	forms        formSigner
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSupervisorService constructs SupervisorService.
func NewSupervisorService(tokens signerTokenSource, applications applicationDetailReader, forms formSigner, validate *validator.Validate, logger *zap.Logger) *SupervisorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisorService{tokens: tokens, applications: applications, forms: forms, validator: validate, logger: logger}
}

// IssueLink creates a signing invitation for the application's supervisor.
// Only forms with a supervisor slot qualify.
func (s *SupervisorService) IssueLink(ctx context.Context, applicationID string, formType models.FormType) (*SupervisorLink, error) {
	if !models.ValidFormType(formType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form type %q", formType))
	}
	if !roleRequired(formType, models.SignSupervisor) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("form %s has no supervisor signature slot", formType))
	}
	detail, err := s.applications.FindDetailByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if detail.SupervisorEmail == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application has no supervisor on record")
	}

	token, expiresAt, err := s.tokens.Generate(supervisorTokenSubject, tokenRef(applicationID, formType))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue signing token")
	}
	s.logger.Info("supervisor signing link issued",
		zap.String("application_id", applicationID),
		zap.String("form_type", string(formType)))
	return &SupervisorLink{Token: token, FormType: string(formType), ExpiresAt: expiresAt}, nil
}

// Verify resolves a signing token into the context the external page shows.
func (s *SupervisorService) Verify(ctx context.Context, token string) (*SupervisorContext, error) {
	applicationID, formType, expiresAt, err := s.resolve(token)
	if err != nil {
		return nil, err
	}
	detail, err := s.applications.FindDetailByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	result := &SupervisorContext{
		StudentName:    detail.StudentName,
		CompanyName:    detail.CompanyName,
		SupervisorName: detail.SupervisorName,
		FormType:       string(formType),
		SessionName:    detail.SessionName,
		ExpiresAt:      expiresAt,
	}
	form, err := s.forms.Get(ctx, applicationID, formType)
	if err == nil {
		slot := form.Signatures[models.SignSupervisor]
		result.AlreadySigned = slot.Present()
		result.SignedAt = slot.SignedAt
	}
	return result, nil
}

// Sign fills the supervisor slot on the token's form.
func (s *SupervisorService) Sign(ctx context.Context, token string, req SupervisorSignRequest) (*models.FormResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signature payload")
	}
	applicationID, formType, _, err := s.resolve(token)
	if err != nil {
		return nil, err
	}
	form, err := s.forms.Sign(ctx, applicationID, SignFormRequest{
		FormType:      string(formType),
		Role:          string(models.SignSupervisor),
		Signature:     req.Signature,
		SignatureType: req.SignatureType,
		SignerName:    req.SignerName,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("supervisor signed form",
		zap.String("application_id", applicationID),
		zap.String("form_type", string(formType)))
	return form, nil
}

func (s *SupervisorService) resolve(token string) (string, models.FormType, time.Time, error) {
	subject, ref, expiresAt, err := s.tokens.Parse(token, false)
	if err != nil {
		return "", "", time.Time{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "signing link is invalid or expired")
	}
	if subject != supervisorTokenSubject {
		return "", "", time.Time{}, appErrors.Clone(appErrors.ErrUnauthorized, "signing link is invalid")
	}
	applicationID, formType, ok := parseTokenRef(ref)
	if !ok {
		return "", "", time.Time{}, appErrors.Clone(appErrors.ErrUnauthorized, "signing link is malformed")
	}
	return applicationID, formType, expiresAt, nil
}

func tokenRef(applicationID string, formType models.FormType) string {
	return applicationID + "/" + string(formType)
}

func parseTokenRef(ref string) (string, models.FormType, bool) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	formType := models.FormType(parts[1])
	if !models.ValidFormType(formType) {
		return "", "", false
	}
	return parts[0], formType, true
}
