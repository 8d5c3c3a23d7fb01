package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/internship-office/ptms-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "session_id", "status", "company_name", "company_address", "company_industry", "supervisor_name", "supervisor_email", "start_date", "end_date", "created_at", "updated_at"}).
		AddRow("app-1", "stu-1", "sess-1", models.ApplicationSubmitted, "Acme Sdn Bhd", "Kuala Lumpur", "Software", "Jane Lee", "jane@acme.example", now, now.AddDate(0, 3, 0), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, session_id, status, company_name, company_address, company_industry, supervisor_name, supervisor_email, start_date, end_date, created_at, updated_at FROM applications WHERE id = $1")).
		WithArgs("app-1").
		WillReturnRows(rows)

	app, err := repo.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	require.Equal(t, models.ApplicationSubmitted, app.Status)
	require.Equal(t, "Acme Sdn Bhd", app.CompanyName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryReplaceCascades(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reviews WHERE application_id IN (SELECT id FROM applications WHERE user_id = $1 AND session_id = $2)")).
		WithArgs("stu-1", "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE application_id IN (SELECT id FROM applications WHERE user_id = $1 AND session_id = $2)")).
		WithArgs("stu-1", "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM form_responses WHERE application_id IN (SELECT id FROM applications WHERE user_id = $1 AND session_id = $2)")).
		WithArgs("stu-1", "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications WHERE user_id = $1 AND session_id = $2")).
		WithArgs("stu-1", "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &models.Application{
		UserID:      "stu-1",
		SessionID:   "sess-1",
		Status:      models.ApplicationDraft,
		CompanyName: "Acme Sdn Bhd",
	}
	err := repo.Replace(context.Background(), app)
	require.NoError(t, err)
	require.NotEmpty(t, app.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reviews")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM form_responses")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), &models.Application{UserID: "stu-1", SessionID: "sess-1"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("app-1", models.ApplicationUnderReview, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "app-1", models.ApplicationUnderReview)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCountDependents(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows([]string{"documents", "forms", "reviews"}).AddRow(3, 2, 1)
	mock.ExpectQuery("SELECT").WithArgs("app-1").WillReturnRows(rows)

	documents, forms, reviews, err := repo.CountDependents(context.Background(), "app-1")
	require.NoError(t, err)
	require.Equal(t, 3, documents)
	require.Equal(t, 2, forms)
	require.Equal(t, 1, reviews)
	require.NoError(t, mock.ExpectationsWereMet())
}
