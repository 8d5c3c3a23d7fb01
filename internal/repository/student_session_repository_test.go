package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/internship-office/ptms-api/internal/models"
)

func newStudentSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentSessionRepositoryUpsertInsertsDefaults(t *testing.T) {
	db, mock, cleanup := newStudentSessionRepoMock(t)
	defer cleanup()
	repo := NewStudentSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.StudentSession{
		StudentID:     "stu-1",
		SessionID:     "sess-1",
		CreditsEarned: 92,
		IsEligible:    true,
		Status:        models.StudentSessionActive,
	}
	err := repo.Upsert(context.Background(), enrollment)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.False(t, enrollment.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentSessionRepositoryHasOtherActiveEnrollment(t *testing.T) {
	db, mock, cleanup := newStudentSessionRepoMock(t)
	defer cleanup()
	repo := NewStudentSessionRepository(db)

	rows := sqlmock.NewRows([]string{"?column?"}).AddRow(1)
	mock.ExpectQuery("SELECT 1 FROM student_sessions").
		WithArgs("stu-1", "sess-2", models.StudentSessionActive).
		WillReturnRows(rows)

	enrolled, err := repo.HasOtherActiveEnrollment(context.Background(), "stu-1", "sess-2")
	require.NoError(t, err)
	require.True(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentSessionRepositoryHasOtherActiveEnrollmentNone(t *testing.T) {
	db, mock, cleanup := newStudentSessionRepoMock(t)
	defer cleanup()
	repo := NewStudentSessionRepository(db)

	mock.ExpectQuery("SELECT 1 FROM student_sessions").
		WithArgs("stu-1", "sess-2", models.StudentSessionActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	enrolled, err := repo.HasOtherActiveEnrollment(context.Background(), "stu-1", "sess-2")
	require.NoError(t, err)
	require.False(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}
