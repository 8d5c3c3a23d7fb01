package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/internship-office/ptms-api/internal/middleware"
	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/service"
)

type fakeApplicationStore struct {
	details    map[string]*models.ApplicationDetail
	listed     []models.ApplicationDetail
	lastFilter models.ApplicationFilter
}

func (f *fakeApplicationStore) FindByID(context.Context, string) (*models.Application, error) {
	return nil, nil
}

func (f *fakeApplicationStore) FindByUserAndSession(context.Context, string, string) (*models.Application, error) {
	return nil, nil
}

func (f *fakeApplicationStore) FindDetailByID(_ context.Context, id string) (*models.ApplicationDetail, error) {
	if detail, ok := f.details[id]; ok {
		return detail, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeApplicationStore) List(_ context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	f.lastFilter = filter
	return f.listed, len(f.listed), nil
}

func (f *fakeApplicationStore) Replace(context.Context, *models.Application) error { return nil }

func (f *fakeApplicationStore) UpdateStatus(context.Context, string, models.ApplicationStatus) error {
	return nil
}

func (f *fakeApplicationStore) Update(context.Context, *models.Application) error { return nil }

func (f *fakeApplicationStore) CountDependents(context.Context, string) (int, int, int, error) {
	return 0, 0, 0, nil
}

func newApplicationHandler(store *fakeApplicationStore) *ApplicationHandler {
	svc := service.NewApplicationService(store, nil, nil, nil, validator.New(), nil)
	return NewApplicationHandler(svc)
}

func ownedDetail(id, userID string) *models.ApplicationDetail {
	return &models.ApplicationDetail{
		Application: models.Application{
			ID:          id,
			UserID:      userID,
			SessionID:   "sess-1",
			Status:      models.ApplicationDraft,
			CompanyName: "Acme Engineering",
		},
		StudentName: "Aina Binti Rahman",
	}
}

func TestApplicationHandlerGetOwnedByStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeApplicationStore{details: map[string]*models.ApplicationDetail{
		"app-1": ownedDetail("app-1", "student-1"),
	}}
	handler := newApplicationHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applications/app-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplicationHandlerGetForeignApplicationForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeApplicationStore{details: map[string]*models.ApplicationDetail{
		"app-1": ownedDetail("app-1", "student-1"),
	}}
	handler := newApplicationHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applications/app-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent})

	handler.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApplicationHandlerGetCoordinatorSeesAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeApplicationStore{details: map[string]*models.ApplicationDetail{
		"app-1": ownedDetail("app-1", "student-1"),
	}}
	handler := newApplicationHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applications/app-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplicationHandlerListScopesStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeApplicationStore{listed: []models.ApplicationDetail{*ownedDetail("app-1", "student-1")}}
	handler := newApplicationHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applications?studentId=student-9", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student-1", store.lastFilter.UserID)
}

func TestApplicationHandlerListStaffCanFilterByStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeApplicationStore{}
	handler := newApplicationHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applications?studentId=student-9&status=submitted", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student-9", store.lastFilter.UserID)
	assert.Equal(t, models.ApplicationSubmitted, store.lastFilter.Status)
}

func TestApplicationHandlerGetMissingReturnsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApplicationHandler(&fakeApplicationStore{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applications/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
