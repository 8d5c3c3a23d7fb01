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

type mockApplicationRepo struct {
	apps       map[string]models.Application
	byUserSess map[string]models.Application
	dependents map[string][3]int
	replaced   *models.Application
	statuses   map[string]models.ApplicationStatus
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.apps[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) FindByUserAndSession(ctx context.Context, userID, sessionID string) (*models.Application, error) {
	if a, ok := m.byUserSess[userID+sessionID]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	if a, ok := m.apps[id]; ok {
		return &models.ApplicationDetail{Application: a}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	return nil, 0, nil
}

func (m *mockApplicationRepo) Replace(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = "new-app"
	}
	if m.apps == nil {
		m.apps = make(map[string]models.Application)
	}
	m.apps[app.ID] = *app
	m.replaced = app
	return nil
}

func (m *mockApplicationRepo) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.ApplicationStatus)
	}
	m.statuses[id] = status
	if a, ok := m.apps[id]; ok {
		a.Status = status
		m.apps[id] = a
	}
	return nil
}

func (m *mockApplicationRepo) Update(ctx context.Context, app *models.Application) error {
	m.apps[app.ID] = *app
	return nil
}

func (m *mockApplicationRepo) CountDependents(ctx context.Context, applicationID string) (int, int, int, error) {
	counts := m.dependents[applicationID]
	return counts[0], counts[1], counts[2], nil
}

type mockEligibilityChecker struct {
	result *models.EligibilityResult
}

func (m *mockEligibilityChecker) Check(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error) {
	if m.result != nil {
		return m.result, nil
	}
	return &models.EligibilityResult{IsEligible: true, CreditsEarned: 115, MinCredits: 110}, nil
}

type mockAuditSink struct {
	logs []models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func applicationFixture() (*ApplicationService, *mockApplicationRepo, *mockAuditSink) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{}, byUserSess: map[string]models.Application{}, dependents: map[string][3]int{}}
	sessions := &mockSessionSource{sessions: map[string]*models.Session{
		"sess1": {ID: "sess1", MinCredits: 110, MinWeeks: 8, MaxWeeks: 24, IsActive: true},
		"sess2": {ID: "sess2", MinCredits: 110, MinWeeks: 8, MaxWeeks: 24, IsActive: false},
	}}
	audit := &mockAuditSink{}
	svc := NewApplicationService(repo, sessions, &mockEligibilityChecker{}, audit, nil, zap.NewNop())
	return svc, repo, audit
}

func validCreateRequest() CreateApplicationRequest {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return CreateApplicationRequest{
		SessionID:      "sess1",
		CompanyName:    "Acme Sdn Bhd",
		CompanyAddress: "1 Jalan Acme",
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 7*12),
	}
}

func TestApplicationCreate(t *testing.T) {
	svc, repo, audit := applicationFixture()

	detail, err := svc.Create(context.Background(), "s1", validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationDraft, detail.Status)
	require.NotNil(t, repo.replaced)
	assert.Empty(t, audit.logs)
}

func TestApplicationCreateInactiveSession(t *testing.T) {
	svc, _, _ := applicationFixture()
	req := validCreateRequest()
	req.SessionID = "sess2"

	_, err := svc.Create(context.Background(), "s1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestApplicationCreatePlacementTooShort(t *testing.T) {
	svc, _, _ := applicationFixture()
	req := validCreateRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, 7*4)

	_, err := svc.Create(context.Background(), "s1", req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 weeks")
}

func TestApplicationCreateNotEligible(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{}, byUserSess: map[string]models.Application{}}
	sessions := &mockSessionSource{sessions: map[string]*models.Session{
		"sess1": {ID: "sess1", MinCredits: 110, MinWeeks: 8, MaxWeeks: 24, IsActive: true},
	}}
	eligibility := &mockEligibilityChecker{result: &models.EligibilityResult{IsEligible: false, CreditsEarned: 95, MinCredits: 110}}
	svc := NewApplicationService(repo, sessions, eligibility, &mockAuditSink{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "s1", validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErr.Code)
	require.NotNil(t, appErr.Details)
	assert.Nil(t, repo.replaced)
}

func TestApplicationCreateBlockedByDependents(t *testing.T) {
	svc, repo, _ := applicationFixture()
	repo.byUserSess["s1sess1"] = models.Application{ID: "old-app", UserID: "s1", SessionID: "sess1", Status: models.ApplicationRejected}
	repo.dependents["old-app"] = [3]int{2, 1, 3}

	_, err := svc.Create(context.Background(), "s1", validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	blocked, ok := appErr.Details.(ReplacementBlocked)
	require.True(t, ok)
	assert.Equal(t, 2, blocked.Documents)
	assert.Equal(t, 3, blocked.Reviews)
	assert.Nil(t, repo.replaced)
}

func TestApplicationCreateConfirmedReplaceIsAudited(t *testing.T) {
	svc, repo, audit := applicationFixture()
	repo.byUserSess["s1sess1"] = models.Application{ID: "old-app", UserID: "s1", SessionID: "sess1", Status: models.ApplicationRejected}
	repo.dependents["old-app"] = [3]int{2, 1, 3}

	req := validCreateRequest()
	req.ConfirmReplace = true
	detail, err := svc.Create(context.Background(), "s1", req)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationDraft, detail.Status)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionApplicationReplace, audit.logs[0].Action)
	assert.Contains(t, string(audit.logs[0].OldValues), "old-app")
}

func TestApplicationSubmitOwnerOnly(t *testing.T) {
	svc, repo, _ := applicationFixture()
	repo.apps["a1"] = models.Application{ID: "a1", UserID: "s1", Status: models.ApplicationDraft}

	_, err := svc.Submit(context.Background(), "a1", "intruder")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, err := svc.Submit(context.Background(), "a1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, detail.Status)
}

func TestApplicationTransitionRules(t *testing.T) {
	svc, repo, _ := applicationFixture()
	repo.apps["a1"] = models.Application{ID: "a1", UserID: "s1", Status: models.ApplicationDraft}

	// Draft cannot jump straight to approval.
	_, err := svc.Transition(context.Background(), "a1", models.ApplicationApproved)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	repo.apps["a2"] = models.Application{ID: "a2", UserID: "s1", Status: models.ApplicationSubmitted}
	detail, err := svc.Transition(context.Background(), "a2", models.ApplicationUnderReview)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationUnderReview, detail.Status)
}

func TestApplicationCancel(t *testing.T) {
	svc, repo, _ := applicationFixture()
	repo.apps["a1"] = models.Application{ID: "a1", UserID: "s1", Status: models.ApplicationUnderReview}
	repo.apps["a2"] = models.Application{ID: "a2", UserID: "s1", Status: models.ApplicationRejected}

	detail, err := svc.Cancel(context.Background(), "a1", "coord1", models.RoleCoordinator)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationCancelled, detail.Status)

	// Terminal applications stay closed.
	_, err = svc.Cancel(context.Background(), "a2", "s1", models.RoleStudent)
	require.Error(t, err)

	// Students cannot cancel someone else's application.
	repo.apps["a3"] = models.Application{ID: "a3", UserID: "other", Status: models.ApplicationDraft}
	_, err = svc.Cancel(context.Background(), "a3", "s1", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
