package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/render"
)

type documentRepository interface {
	FindByApplicationAndType(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error)
	Upsert(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error
}

type applicationDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
}

type formReader interface {
	FindByApplicationAndType(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error)
}

type letterStorage interface {
	SaveWithRetry(filename string, data []byte, attempts int, backoff time.Duration) (string, error)
	Read(filename string) ([]byte, error)
}

// letterTemplate fixes the layout inputs for one letter code. required names
// form payload fields; context names application detail fields that must be
// on record before the letter renders.
type letterTemplate struct {
	title    string
	intro    string
	body     []string
	required []string
	context  []string
	labels   map[string]string
}

var letterTemplates = map[models.FormType]letterTemplate{
	models.FormBLI01: {
		title:    "Practical Training Application Form",
		intro:    "This form registers the student's intention to undergo practical training in the stated session.",
		required: []string{"ic_no", "phone", "address"},
		context:  []string{"student_name", "student_matric", "program", "faculty", "session_name", "coordinator_name", "coordinator_email"},
		labels:   map[string]string{"ic_no": "IC Number", "phone": "Phone", "address": "Mailing Address"},
	},
	models.FormBLI02: {
		title:    "Company Information Form",
		intro:    "Details of the organisation hosting the practical training placement.",
		required: []string{"company_phone", "contact_person"},
		labels:   map[string]string{"company_phone": "Company Phone", "contact_person": "Contact Person"},
	},
	models.FormBLI03: {
		title:    "Training Placement Acceptance Form",
		intro:    "Confirmation that the student accepts the offered placement under the stated terms.",
		required: []string{"position", "allowance"},
		context:  []string{"student_name", "student_matric", "company_name", "company_address"},
		labels:   map[string]string{"position": "Position", "allowance": "Monthly Allowance"},
	},
	models.FormBLI03Hardcopy: {
		title:    "Training Placement Acceptance Form (Hardcopy)",
		intro:    "Hardcopy counterpart of the placement acceptance, filed by the faculty office.",
		required: []string{"position"},
		context:  []string{"student_name", "student_matric", "company_name", "company_address"},
		labels:   map[string]string{"position": "Position"},
	},
	models.FormBLI04: {
		title:    "Practical Training Agreement",
		intro:    "Tri-party agreement between the student, the faculty and the host organisation.",
		required: []string{"position", "duties"},
		context:  []string{"student_name", "student_matric", "company_name", "company_address", "supervisor_name", "supervisor_email"},
		labels:   map[string]string{"position": "Position", "duties": "Scope of Duties"},
		body: []string{
			"The parties named below agree to the terms of the practical training placement described in this document.",
			"The host organisation undertakes to provide supervision and a safe working environment for the duration of the placement.",
		},
	},
	models.FormSLI03: {
		title:   "Placement Confirmation Letter",
		intro:   "Official faculty confirmation of the student's practical training placement.",
		context: []string{"student_name", "student_matric", "company_name", "company_address"},
		body: []string{
			"The faculty confirms that the student named above has been placed for practical training at the stated organisation.",
			"We would appreciate the cooperation of your organisation in supervising the student for the stated period.",
		},
	},
	models.FormSLI04: {
		title: "Training Completion Letter",
		intro: "Official faculty acknowledgement that the practical training has concluded.",
		body: []string{
			"The faculty acknowledges the completion of the student's practical training placement at the stated organisation.",
		},
	},
	models.FormDLI01: {
		title:    "Supervisor Evaluation Form",
		intro:    "Evaluation of the student's performance by the industry supervisor.",
		required: []string{"grade"},
		labels:   map[string]string{"grade": "Overall Grade"},
	},
	models.FormOfferLetter: {
		title: "Placement Offer Letter",
		intro: "Record of the offer extended by the host organisation.",
	},
}

// DocumentService composes, renders and stores the official letters.
type DocumentService struct {
	repo          documentRepository
	applications  applicationDetailReader
	forms         formReader
	renderer      *render.LetterRenderer
	storage       letterStorage
	institution   string
	faculty       string
	uploadRetries int
	retryBackoff  time.Duration
	metrics       *MetricsService
	logger        *zap.Logger
}

// WithMetrics attaches an optional metrics recorder.
func (s *DocumentService) WithMetrics(metrics *MetricsService) *DocumentService {
	s.metrics = metrics
	return s
}

// DocumentServiceConfig carries the letterhead identity and storage retry
// policy.
type DocumentServiceConfig struct {
	Institution   string
	Faculty       string
	UploadRetries int
	RetryBackoff  time.Duration
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentRepository, applications applicationDetailReader, forms formReader, renderer *render.LetterRenderer, storage letterStorage, cfg DocumentServiceConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = render.NewLetterRenderer()
	}
	if cfg.UploadRetries < 1 {
		cfg.UploadRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &DocumentService{
		repo:          repo,
		applications:  applications,
		forms:         forms,
		renderer:      renderer,
		storage:       storage,
		institution:   cfg.Institution,
		faculty:       cfg.Faculty,
		uploadRetries: cfg.UploadRetries,
		retryBackoff:  cfg.RetryBackoff,
		logger:        logger,
	}
}

// List returns the documents of an application.
func (s *DocumentService) List(ctx context.Context, applicationID string) ([]models.Document, error) {
	docs, err := s.repo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Get returns the live document for the (application, type) pair.
func (s *DocumentService) Get(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error) {
	doc, err := s.repo.FindByApplicationAndType(ctx, applicationID, docType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// Generate renders the letter for the given form code and stores it under a
// versioned path. Regenerating bumps the version; the prior stored copy
// keeps its path and only the live pointer moves.
func (s *DocumentService) Generate(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error) {
	template, ok := letterTemplates[docType]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown letter type %q", docType))
	}

	detail, err := s.applications.FindDetailByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	form, err := s.forms.FindByApplicationAndType(ctx, applicationID, docType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form response")
	}

	payload := models.FormPayload{}
	signatures := models.SignatureSlots{}
	if form != nil {
		payload = form.Payload
		signatures = form.Signatures
	}

	missing := missingContext(template.context, detail)
	missing = append(missing, missingFields(template.required, payload)...)
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "letter is missing required fields"),
			missing,
		)
	}

	letter := s.composeLetter(docType, template, detail, payload, signatures)
	data, err := s.renderer.Render(letter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRenderFailure.Code, appErrors.ErrRenderFailure.Status, "failed to render letter")
	}

	version := 1
	existing, err := s.repo.FindByApplicationAndType(ctx, applicationID, docType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if existing != nil {
		version = existing.Version + 1
	}

	filename := fmt.Sprintf("%s/%s_v%d.pdf", applicationID, docType, version)
	fileURL, err := s.storage.SaveWithRetry(filename, data, s.uploadRetries, s.retryBackoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to store letter")
	}

	status := models.DocumentPendingSignature
	if form != nil && form.Complete() {
		status = models.DocumentSigned
	}
	doc := &models.Document{
		ApplicationID: applicationID,
		Type:          docType,
		Status:        status,
		FileURL:       fileURL,
		Version:       version,
	}
	if existing != nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.Upsert(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document record")
	}

	if s.metrics != nil {
		s.metrics.RecordLetterGenerated(string(docType))
	}
	s.logger.Info("letter generated",
		zap.String("application_id", applicationID),
		zap.String("type", string(docType)),
		zap.Int("version", version))
	return doc, nil
}

// Download returns the live PDF bytes and a download filename.
func (s *DocumentService) Download(ctx context.Context, applicationID string, docType models.FormType) ([]byte, string, error) {
	doc, err := s.Get(ctx, applicationID, docType)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("%s/%s_v%d.pdf", applicationID, docType, doc.Version)
	data, err := s.storage.Read(filename)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read stored letter")
	}
	return data, fmt.Sprintf("%s_v%d.pdf", docType, doc.Version), nil
}

// UpdateStatus moves a document to a new lifecycle status.
func (s *DocumentService) UpdateStatus(ctx context.Context, applicationID string, docType models.FormType, status models.DocumentStatus) (*models.Document, error) {
	doc, err := s.Get(ctx, applicationID, docType)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, doc.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document status")
	}
	doc.Status = status
	return doc, nil
}

func (s *DocumentService) composeLetter(docType models.FormType, template letterTemplate, detail *models.ApplicationDetail, payload models.FormPayload, signatures models.SignatureSlots) render.Letter {
	fields := []render.Field{
		{Label: "Student Name", Value: detail.StudentName},
		{Label: "Matric Number", Value: detail.StudentMatric},
		{Label: "Program", Value: detail.Program},
	}
	if detail.Faculty != "" {
		fields = append(fields, render.Field{Label: "Faculty", Value: detail.Faculty})
	}
	fields = append(fields,
		render.Field{Label: "Session", Value: detail.SessionName},
		render.Field{Label: "Company", Value: detail.CompanyName},
		render.Field{Label: "Company Address", Value: detail.CompanyAddress},
		render.Field{Label: "Training Period", Value: fmt.Sprintf("%s to %s",
			detail.StartDate.Format("2 January 2006"), detail.EndDate.Format("2 January 2006"))},
	)
	if detail.CoordinatorName != "" {
		fields = append(fields, render.Field{Label: "Coordinator", Value: detail.CoordinatorName})
	}
	if detail.CoordinatorEmail != "" {
		fields = append(fields, render.Field{Label: "Coordinator Email", Value: detail.CoordinatorEmail})
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		label := template.labels[key]
		if label == "" {
			continue
		}
		fields = append(fields, render.Field{Label: label, Value: payload[key]})
	}

	slots := make([]render.SignatureSlot, 0, len(models.RequiredSignatures(docType)))
	for _, role := range models.RequiredSignatures(docType) {
		slot := render.SignatureSlot{Role: signerRoleLabel(role)}
		stored := signatures[role]
		if stored.Present() {
			slot.SignerName = stored.SignerName
			slot.SignedAt = stored.SignedAt
			parsed, err := render.ParseSignature(stored.Signature, stored.SignatureType)
			if err != nil {
				// The letter still renders; the slot is marked instead.
				s.logger.Warn("stored signature failed to parse",
					zap.String("role", string(role)), zap.Error(err))
				slot.Failed = true
			} else {
				slot.Signature = parsed
			}
		}
		slots = append(slots, slot)
	}

	return render.Letter{
		Institution: s.institution,
		Faculty:     s.faculty,
		Code:        string(docType),
		Title:       template.title,
		Intro:       template.intro,
		Fields:      fields,
		Body:        template.body,
		Slots:       slots,
	}
}

// contextField reads one application detail value by its report name.
func contextField(detail *models.ApplicationDetail, key string) string {
	switch key {
	case "student_name":
		return detail.StudentName
	case "student_matric":
		return detail.StudentMatric
	case "program":
		return detail.Program
	case "faculty":
		return detail.Faculty
	case "session_name":
		return detail.SessionName
	case "coordinator_name":
		return detail.CoordinatorName
	case "coordinator_email":
		return detail.CoordinatorEmail
	case "company_name":
		return detail.CompanyName
	case "company_address":
		return detail.CompanyAddress
	case "supervisor_name":
		return detail.SupervisorName
	case "supervisor_email":
		return detail.SupervisorEmail
	default:
		return ""
	}
}

func missingContext(keys []string, detail *models.ApplicationDetail) []string {
	var missing []string
	for _, key := range keys {
		if contextField(detail, key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func missingFields(required []string, payload models.FormPayload) []string {
	var missing []string
	for _, key := range required {
		if payload[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func signerRoleLabel(role models.SignatureRole) string {
	switch role {
	case models.SignStudent:
		return "Student"
	case models.SignCoordinator:
		return "Coordinator"
	case models.SignSupervisor:
		return "Industry Supervisor"
	default:
		return string(role)
	}
}
