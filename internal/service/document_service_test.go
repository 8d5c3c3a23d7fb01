package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type mockDocumentRepo struct {
	docs     map[string]*models.Document
	statuses map[string]models.DocumentStatus
}

func docKey(applicationID string, docType models.FormType) string {
	return applicationID + "/" + string(docType)
}

func (m *mockDocumentRepo) FindByApplicationAndType(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error) {
	if d, ok := m.docs[docKey(applicationID, docType)]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range m.docs {
		if d.ApplicationID == applicationID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) Upsert(ctx context.Context, doc *models.Document) error {
	if m.docs == nil {
		m.docs = make(map[string]*models.Document)
	}
	if doc.ID == "" {
		doc.ID = "new-doc"
	}
	copied := *doc
	m.docs[docKey(doc.ApplicationID, doc.Type)] = &copied
	return nil
}

func (m *mockDocumentRepo) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.DocumentStatus)
	}
	m.statuses[id] = status
	return nil
}

type mockDetailReader struct {
	details map[string]*models.ApplicationDetail
}

func (m *mockDetailReader) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type mockFormReader struct {
	forms map[string]*models.FormResponse
}

func (m *mockFormReader) FindByApplicationAndType(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error) {
	if f, ok := m.forms[formKey(applicationID, formType)]; ok {
		return f, nil
	}
	return nil, sql.ErrNoRows
}

type mockLetterStorage struct {
	saved    map[string][]byte
	failures int
}

func (m *mockLetterStorage) SaveWithRetry(filename string, data []byte, attempts int, backoff time.Duration) (string, error) {
	if m.failures >= attempts {
		return "", errors.New("upload failed")
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockLetterStorage) Read(filename string) ([]byte, error) {
	if data, ok := m.saved[filename]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func documentFixtureWithDetail(detail *models.ApplicationDetail) (*DocumentService, *mockDocumentRepo, *mockFormReader, *mockLetterStorage) {
	repo := &mockDocumentRepo{docs: map[string]*models.Document{}}
	details := &mockDetailReader{details: map[string]*models.ApplicationDetail{"a1": detail}}
	forms := &mockFormReader{forms: map[string]*models.FormResponse{}}
	storage := &mockLetterStorage{}
	cfg := DocumentServiceConfig{Institution: "Universiti Contoso", Faculty: "FSKM", UploadRetries: 2, RetryBackoff: time.Millisecond}
	svc := NewDocumentService(repo, details, forms, nil, storage, cfg, zap.NewNop())
	return svc, repo, forms, storage
}

func fullApplicationDetail() *models.ApplicationDetail {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return &models.ApplicationDetail{
		Application: models.Application{
			ID:             "a1",
			UserID:         "s1",
			CompanyName:    "Acme Sdn Bhd",
			CompanyAddress: "1 Jalan Acme, Shah Alam",
			StartDate:      start,
			EndDate:        start.AddDate(0, 0, 7*12),
		},
		StudentName:      "Ada Lovelace",
		StudentMatric:    "A100",
		Program:          "CS",
		Faculty:          "FSKM",
		SessionName:      "2026/1",
		CoordinatorName:  "Dr. Noor",
		CoordinatorEmail: "noor@uni.edu",
	}
}

func documentFixture() (*DocumentService, *mockDocumentRepo, *mockFormReader, *mockLetterStorage) {
	return documentFixtureWithDetail(fullApplicationDetail())
}

func bli01Form(signed bool) *models.FormResponse {
	form := &models.FormResponse{
		ApplicationID: "a1",
		FormType:      models.FormBLI01,
		Payload:       models.FormPayload{"ic_no": "990101-01-1234", "phone": "0123456789", "address": "1 Jalan Acme"},
		Signatures:    models.SignatureSlots{},
	}
	if signed {
		now := time.Now().UTC()
		form.Signatures[models.SignStudent] = models.SignatureSlot{Signature: "Ada", SignatureType: "typed", SignerName: "Ada", SignedAt: &now}
	}
	return form
}

func TestDocumentGenerateVersioning(t *testing.T) {
	svc, _, forms, storage := documentFixture()
	forms.forms[formKey("a1", models.FormBLI01)] = bli01Form(false)

	first, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, models.DocumentPendingSignature, first.Status)
	assert.Contains(t, storage.saved, "a1/BLI_01_v1.pdf")

	second, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "a1/BLI_01_v2.pdf", second.FileURL)
	// The prior stored copy keeps its path.
	assert.Contains(t, storage.saved, "a1/BLI_01_v1.pdf")
}

func TestDocumentGenerateSignedFormSignsDocument(t *testing.T) {
	svc, _, forms, _ := documentFixture()
	forms.forms[formKey("a1", models.FormBLI01)] = bli01Form(true)

	doc, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentSigned, doc.Status)
}

func TestDocumentGenerateMissingFields(t *testing.T) {
	svc, _, forms, storage := documentFixture()
	form := bli01Form(false)
	delete(form.Payload, "phone")
	delete(form.Payload, "address")
	forms.forms[formKey("a1", models.FormBLI01)] = form

	_, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	missing, ok := appErr.Details.([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"phone", "address"}, missing)
	assert.Empty(t, storage.saved)
}

func TestDocumentGenerateRequiresCoordinatorOnRecord(t *testing.T) {
	detail := fullApplicationDetail()
	detail.Faculty = ""
	detail.CoordinatorName = ""
	detail.CoordinatorEmail = ""
	svc, _, forms, storage := documentFixtureWithDetail(detail)
	forms.forms[formKey("a1", models.FormBLI01)] = bli01Form(false)

	_, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	missing, ok := appErr.Details.([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"faculty", "coordinator_name", "coordinator_email"}, missing)
	assert.Empty(t, storage.saved)
}

func TestDocumentGenerateAcceptanceRequiresPlacement(t *testing.T) {
	detail := fullApplicationDetail()
	detail.CompanyAddress = ""
	svc, _, forms, _ := documentFixtureWithDetail(detail)
	forms.forms[formKey("a1", models.FormBLI03)] = &models.FormResponse{
		ApplicationID: "a1",
		FormType:      models.FormBLI03,
		Payload:       models.FormPayload{"position": "Intern Engineer", "allowance": "800"},
		Signatures:    models.SignatureSlots{},
	}

	_, err := svc.Generate(context.Background(), "a1", models.FormBLI03)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	missing, ok := appErr.Details.([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"company_address"}, missing)
}

func TestDocumentGenerateStorageFailure(t *testing.T) {
	svc, _, forms, storage := documentFixture()
	forms.forms[formKey("a1", models.FormBLI01)] = bli01Form(false)
	storage.failures = 10

	_, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErrors.FromError(err).Code)
}

func TestDocumentGenerateToleratesMissingForm(t *testing.T) {
	svc, _, _, storage := documentFixture()

	// OFFER_LETTER carries no required form fields.
	doc, err := svc.Generate(context.Background(), "a1", models.FormOfferLetter)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.NotEmpty(t, storage.saved)
}

func TestDocumentDownload(t *testing.T) {
	svc, _, forms, _ := documentFixture()
	forms.forms[formKey("a1", models.FormBLI01)] = bli01Form(false)

	_, err := svc.Generate(context.Background(), "a1", models.FormBLI01)
	require.NoError(t, err)

	data, filename, err := svc.Download(context.Background(), "a1", models.FormBLI01)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "BLI_01_v1.pdf", filename)
}
