package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type mockAuthUsers struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	created       []*models.User
	revokedAll    []string
	auditActions  []string
}

func newMockAuthUsers() *mockAuthUsers {
	return &mockAuthUsers{
		usersByEmail:  make(map[string]*models.User),
		usersByID:     make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthUsers) add(user *models.User) {
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockAuthUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) ExistsByEmailOrMatric(_ context.Context, email, matricNo string) (bool, error) {
	_, ok := m.usersByEmail[email]
	return ok, nil
}

func (m *mockAuthUsers) Create(_ context.Context, user *models.User) error {
	m.created = append(m.created, user)
	m.add(user)
	return nil
}

func (m *mockAuthUsers) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	return nil
}

func (m *mockAuthUsers) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthUsers) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthUsers) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	for _, stored := range m.refreshTokens {
		if stored.ID == id {
			stored.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthUsers) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func newAuthFixture(repo *mockAuthUsers) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "ptms-api",
	})
}

func seedActiveUser(repo *mockAuthUsers, email, password string, role models.UserRole) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         role,
		Active:       true,
	}
	repo.add(user)
	return user
}

func TestAuthRegisterStudentRequiresMatric(t *testing.T) {
	repo := newMockAuthUsers()
	svc := newAuthFixture(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "aina@student.edu.my",
		Password: "secret123",
		FullName: "Aina Binti Rahman",
		Role:     "STUDENT",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestAuthRegisterCoordinatorRejectsMatric(t *testing.T) {
	svc := newAuthFixture(newMockAuthUsers())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "coord@uni.edu.my",
		Password: "secret123",
		FullName: "Coordinator",
		Role:     "COORDINATOR",
		MatricNo: "A123456",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthRegisterAndLoginRoundTrip(t *testing.T) {
	repo := newMockAuthUsers()
	svc := newAuthFixture(repo)

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "aina@student.edu.my",
		Password: "secret123",
		FullName: "Aina Binti Rahman",
		Role:     "STUDENT",
		MatricNo: "A190001",
		Program:  "Software Engineering",
		Faculty:  "Computing",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.Contains(t, repo.auditActions, models.AuditActionRegister)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "aina@student.edu.my",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Contains(t, repo.auditActions, models.AuditActionLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	repo := newMockAuthUsers()
	seedActiveUser(repo, "aina@student.edu.my", "secret123", models.RoleStudent)
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "aina@student.edu.my",
		Password: "wrong",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthUsers()
	user := seedActiveUser(repo, "left@student.edu.my", "secret123", models.RoleStudent)
	user.Active = false
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "left@student.edu.my",
		Password: "secret123",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthUsers()
	seedActiveUser(repo, "aina@student.edu.my", "secret123", models.RoleStudent)
	svc := newAuthFixture(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "aina@student.edu.my",
		Password: "secret123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used refresh token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshExpiredToken(t *testing.T) {
	repo := newMockAuthUsers()
	user := seedActiveUser(repo, "aina@student.edu.my", "secret123", models.RoleStudent)
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    user.ID,
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	svc := newAuthFixture(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthLogoutRejectsForeignToken(t *testing.T) {
	repo := newMockAuthUsers()
	user := seedActiveUser(repo, "aina@student.edu.my", "secret123", models.RoleStudent)
	repo.refreshTokens["theirs"] = &models.RefreshToken{
		ID:        "rt-2",
		UserID:    user.ID,
		Token:     "theirs",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := newAuthFixture(repo)

	err := svc.Logout(context.Background(), "theirs", "someone-else", models.LoginRequest{})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newMockAuthUsers()
	seedActiveUser(repo, "aina@student.edu.my", "secret123", models.RoleStudent)

	issuer := newAuthFixture(repo)
	login, err := issuer.Login(context.Background(), models.LoginRequest{
		Email:    "aina@student.edu.my",
		Password: "secret123",
	})
	require.NoError(t, err)

	verifier := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = verifier.ValidateToken(login.AccessToken)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
