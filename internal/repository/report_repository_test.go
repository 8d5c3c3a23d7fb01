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

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryDocumentStatsCountsPendingSignature(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"type", "total", "signed", "pending_approval", "change_requests"}).
		AddRow("BLI_01", 10, 6, 3, 1).
		AddRow("BLI_03", 8, 8, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("d.status = 'PENDING_SIGNATURE'")).
		WithArgs("sess1").
		WillReturnRows(rows)

	stats, err := repo.DocumentStats(context.Background(), models.ReportFilter{SessionID: "sess1"})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, models.FormBLI01, stats[0].Type)
	require.Equal(t, 3, stats[0].PendingApproval)
	require.Equal(t, 1, stats[0].ChangeRequests)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryOverviewTurnaround(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	headline := sqlmock.NewRows([]string{
		"total_students", "total_applications", "approved",
		"pending_review", "changes_requested", "completed_internships",
	}).AddRow(20, 25, 9, 5, 2, 4)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(DISTINCT a.user_id) AS total_students")).
		WillReturnRows(headline)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.type = 'SLI_03'")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	// Turnaround averages the span between filing and the approval decision.
	mock.ExpectQuery(regexp.QuoteMeta("AVG(EXTRACT(EPOCH FROM (a.updated_at - a.created_at)) / 86400)")).
		WillReturnRows(sqlmock.NewRows([]string{"avg_review_days"}).AddRow(3.5))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.status IN ('APPROVED', 'REJECTED')")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	report, err := repo.Overview(context.Background(), models.ReportFilter{})
	require.NoError(t, err)
	require.Equal(t, 25, report.TotalApplications)
	require.Equal(t, 7, report.SLI03Issued)
	require.InDelta(t, 3.5, report.AvgReviewDays, 0.001)
	require.InDelta(t, 75.0, report.ApprovalRate, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}
