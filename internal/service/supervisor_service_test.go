package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/storage"
)

func supervisorFixture(t *testing.T) (*SupervisorService, *FormService, *mockFormRepo) {
	t.Helper()
	formRepo := &mockFormRepo{forms: map[string]*models.FormResponse{}}
	apps := &mockAppReader{apps: map[string]models.Application{
		"a1": {ID: "a1", Status: models.ApplicationUnderReview, SupervisorName: "Boss", SupervisorEmail: "boss@acme.example"},
	}}
	forms := NewFormService(formRepo, apps, nil, zap.NewNop())

	details := &mockDetailReader{details: map[string]*models.ApplicationDetail{
		"a1": {
			Application: models.Application{ID: "a1", Status: models.ApplicationUnderReview, CompanyName: "Acme Sdn Bhd", SupervisorName: "Boss", SupervisorEmail: "boss@acme.example"},
			StudentName: "Ada Lovelace",
			SessionName: "2026/1",
		},
		"a2": {
			Application: models.Application{ID: "a2", Status: models.ApplicationUnderReview, CompanyName: "Acme Sdn Bhd"},
		},
	}}
	signer := storage.NewTokenSigner("test-secret", time.Hour)
	svc := NewSupervisorService(signer, details, forms, nil, zap.NewNop())
	return svc, forms, formRepo
}

func TestSupervisorLinkRoundTrip(t *testing.T) {
	svc, forms, _ := supervisorFixture(t)

	_, err := forms.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_04", Payload: map[string]string{"position": "Intern", "duties": "Testing"}})
	require.NoError(t, err)

	link, err := svc.IssueLink(context.Background(), "a1", models.FormBLI04)
	require.NoError(t, err)
	assert.Equal(t, "BLI_04", link.FormType)
	assert.NotEmpty(t, link.Token)

	view, err := svc.Verify(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", view.StudentName)
	assert.Equal(t, "Acme Sdn Bhd", view.CompanyName)
	assert.False(t, view.AlreadySigned)

	form, err := svc.Sign(context.Background(), link.Token, SupervisorSignRequest{
		Signature:     "Boss",
		SignatureType: "typed",
		SignerName:    "Boss",
	})
	require.NoError(t, err)
	assert.True(t, form.Signatures[models.SignSupervisor].Present())

	after, err := svc.Verify(context.Background(), link.Token)
	require.NoError(t, err)
	assert.True(t, after.AlreadySigned)
	require.NotNil(t, after.SignedAt)

	// The slot stays as it is on a second attempt.
	_, err = svc.Sign(context.Background(), link.Token, SupervisorSignRequest{
		Signature:     "Impostor",
		SignatureType: "typed",
		SignerName:    "Impostor",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSupervisorLinkRequiresSupervisorSlot(t *testing.T) {
	svc, _, _ := supervisorFixture(t)

	// BLI_01 has no supervisor slot.
	_, err := svc.IssueLink(context.Background(), "a1", models.FormBLI01)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSupervisorLinkRequiresSupervisorOnRecord(t *testing.T) {
	svc, _, _ := supervisorFixture(t)

	_, err := svc.IssueLink(context.Background(), "a2", models.FormBLI04)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSupervisorRejectsForeignToken(t *testing.T) {
	svc, _, _ := supervisorFixture(t)

	// Tokens minted for export downloads never open the signing page.
	exportSigner := storage.NewTokenSigner("test-secret", time.Hour)
	token, _, err := exportSigner.Generate("job-1", "exports/report.csv")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestSupervisorRejectsExpiredToken(t *testing.T) {
	svc, forms, _ := supervisorFixture(t)

	_, err := forms.Submit(context.Background(), "a1", SubmitFormRequest{FormType: "BLI_04", Payload: map[string]string{}})
	require.NoError(t, err)

	expired := storage.NewTokenSigner("test-secret", time.Nanosecond)
	token, _, err := expired.Generate(supervisorTokenSubject, tokenRef("a1", models.FormBLI04))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = svc.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
