package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type mockFormRepo struct {
	forms    map[string]*models.FormResponse
	upserted int
}

func formKey(applicationID string, formType models.FormType) string {
	return applicationID + "/" + string(formType)
}

func (m *mockFormRepo) FindByApplicationAndType(ctx context.Context, applicationID string, formType models.FormType) (*models.FormResponse, error) {
	if f, ok := m.forms[formKey(applicationID, formType)]; ok {
		copied := *f
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFormRepo) ListByApplication(ctx context.Context, applicationID string) ([]models.FormResponse, error) {
	var out []models.FormResponse
	for _, f := range m.forms {
		if f.ApplicationID == applicationID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFormRepo) Upsert(ctx context.Context, form *models.FormResponse) error {
	if m.forms == nil {
		m.forms = make(map[string]*models.FormResponse)
	}
	if form.ID == "" {
		form.ID = "new-form"
	}
	copied := *form
	m.forms[formKey(form.ApplicationID, form.FormType)] = &copied
	m.upserted++
	return nil
}

type mockAppReader struct {
	apps map[string]models.Application
}

func (m *mockAppReader) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.apps[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func formFixture() (*FormService, *mockFormRepo) {
	repo := &mockFormRepo{forms: map[string]*models.FormResponse{}}
	apps := &mockAppReader{apps: map[string]models.Application{
		"a1": {ID: "a1", Status: models.ApplicationUnderReview},
		"a2": {ID: "a2", Status: models.ApplicationCancelled},
	}}
	return NewFormService(repo, apps, nil, zap.NewNop()), repo
}

func TestFormSubmitAndResubmitKeepsSignatures(t *testing.T) {
	svc, repo := formFixture()

	form, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{
		FormType: "BLI_01",
		Payload:  map[string]string{"ic_no": "990101-01-1234"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FormBLI01, form.FormType)

	signedAt := time.Now().UTC()
	stored := repo.forms[formKey("a1", models.FormBLI01)]
	stored.Signatures = models.SignatureSlots{
		models.SignStudent: {Signature: "Ada", SignatureType: "typed", SignerName: "Ada", SignedAt: &signedAt},
	}

	resubmitted, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{
		FormType: "BLI_01",
		Payload:  map[string]string{"ic_no": "990101-01-1234", "phone": "0123456789"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789", resubmitted.Payload["phone"])
	assert.True(t, resubmitted.Signatures[models.SignStudent].Present())
}

func TestFormSubmitClosedApplication(t *testing.T) {
	svc, _ := formFixture()

	_, err := svc.Submit(context.Background(), "a2", SubmitFormRequest{FormType: "BLI_01", Payload: map[string]string{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestFormSignRequiresSubmission(t *testing.T) {
	svc, _ := formFixture()

	_, err := svc.Sign(context.Background(), "a1", SignFormRequest{
		FormType:      "BLI_01",
		Role:          "student",
		Signature:     "Ada Lovelace",
		SignatureType: "typed",
		SignerName:    "Ada Lovelace",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "submitted before signing")
}

func TestFormSignFillsSlotOnce(t *testing.T) {
	svc, repo := formFixture()

	_, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_01", Payload: map[string]string{"ic_no": "x"}})
	require.NoError(t, err)

	req := SignFormRequest{
		FormType:      "BLI_01",
		Role:          "student",
		Signature:     "Ada Lovelace",
		SignatureType: "typed",
		SignerName:    "Ada Lovelace",
	}
	form, err := svc.Sign(context.Background(), "a1", req)
	require.NoError(t, err)
	slot := form.Signatures[models.SignStudent]
	assert.True(t, slot.Present())
	require.NotNil(t, slot.SignedAt)
	assert.True(t, form.Complete())

	// A filled slot stays as it is.
	_, err = svc.Sign(context.Background(), "a1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "Ada Lovelace", repo.forms[formKey("a1", models.FormBLI01)].Signatures[models.SignStudent].Signature)
}

func TestFormSignRejectsMissingSlot(t *testing.T) {
	svc, _ := formFixture()

	_, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_01", Payload: map[string]string{}})
	require.NoError(t, err)

	// BLI_01 only carries a student slot.
	_, err = svc.Sign(context.Background(), "a1", SignFormRequest{
		FormType:      "BLI_01",
		Role:          "supervisor",
		Signature:     "Boss",
		SignatureType: "typed",
		SignerName:    "Boss",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFormSignRejectsInvalidDrawnSignature(t *testing.T) {
	svc, _ := formFixture()

	_, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_04", Payload: map[string]string{}})
	require.NoError(t, err)

	_, err = svc.Sign(context.Background(), "a1", SignFormRequest{
		FormType:      "BLI_04",
		Role:          "student",
		Signature:     "not-a-png",
		SignatureType: "drawn",
		SignerName:    "Ada",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

type mockSignedDocs struct {
	docs   map[string]*models.Document
	signed []string
}

func (m *mockSignedDocs) FindByApplicationAndType(ctx context.Context, applicationID string, docType models.FormType) (*models.Document, error) {
	if doc, ok := m.docs[formKey(applicationID, docType)]; ok {
		return doc, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSignedDocs) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	m.signed = append(m.signed, id)
	for _, doc := range m.docs {
		if doc.ID == id {
			doc.Status = status
		}
	}
	return nil
}

func TestFormCompletionMarksDocumentSigned(t *testing.T) {
	svc, _ := formFixture()
	docs := &mockSignedDocs{docs: map[string]*models.Document{
		formKey("a1", models.FormBLI01): {ID: "doc-1", ApplicationID: "a1", Type: models.FormBLI01, Status: models.DocumentPendingSignature},
	}}
	svc = svc.WithDocuments(docs)

	_, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_01", Payload: map[string]string{"ic_no": "x"}})
	require.NoError(t, err)

	_, err = svc.Sign(context.Background(), "a1", SignFormRequest{
		FormType:      "BLI_01",
		Role:          "student",
		Signature:     "Ada Lovelace",
		SignatureType: "typed",
		SignerName:    "Ada Lovelace",
	})
	require.NoError(t, err)

	require.Len(t, docs.signed, 1)
	assert.Equal(t, models.DocumentSigned, docs.docs[formKey("a1", models.FormBLI01)].Status)
}

func TestFormCompletionWithoutGeneratedLetter(t *testing.T) {
	svc, _ := formFixture()
	docs := &mockSignedDocs{docs: map[string]*models.Document{}}
	svc = svc.WithDocuments(docs)

	_, err := svc.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_01", Payload: map[string]string{"ic_no": "x"}})
	require.NoError(t, err)

	// Signing succeeds even though no letter exists to flip.
	_, err = svc.Sign(context.Background(), "a1", SignFormRequest{
		FormType:      "BLI_01",
		Role:          "student",
		Signature:     "Ada Lovelace",
		SignatureType: "typed",
		SignerName:    "Ada Lovelace",
	})
	require.NoError(t, err)
	assert.Empty(t, docs.signed)
}
