package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type mockCleaner struct {
	count   int
	deleted int64
	calls   int
}

func (m *mockCleaner) CountChangeRequestsByDocumentType(ctx context.Context, docType models.FormType) (int, error) {
	return m.count, nil
}

func (m *mockCleaner) DeleteChangeRequestsByDocumentType(ctx context.Context, docType models.FormType) (int64, error) {
	m.calls++
	return m.deleted, nil
}

func TestMaintenanceDryRunCountsWithoutDeleting(t *testing.T) {
	cleaner := &mockCleaner{count: 7}
	audit := &mockAuditSink{}
	svc := NewMaintenanceService(cleaner, audit, zap.NewNop())

	result, err := svc.CleanupChangeRequests(context.Background(), CleanupRequest{DocumentType: models.FormBLI04, DryRun: true}, "admin1")
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, int64(7), result.Matched)
	assert.Zero(t, result.Deleted)
	assert.Zero(t, cleaner.calls)
	assert.Empty(t, audit.logs)
}

func TestMaintenanceCleanupDeletesAndAudits(t *testing.T) {
	cleaner := &mockCleaner{deleted: 7}
	audit := &mockAuditSink{}
	svc := NewMaintenanceService(cleaner, audit, zap.NewNop())

	result, err := svc.CleanupChangeRequests(context.Background(), CleanupRequest{DocumentType: models.FormBLI04}, "admin1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Deleted)
	assert.Equal(t, 1, cleaner.calls)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionReviewCleanup, audit.logs[0].Action)
	assert.Contains(t, string(audit.logs[0].NewValues), "7")
}

func TestMaintenanceRejectsUnknownDocumentType(t *testing.T) {
	svc := NewMaintenanceService(&mockCleaner{}, &mockAuditSink{}, zap.NewNop())

	_, err := svc.CleanupChangeRequests(context.Background(), CleanupRequest{DocumentType: "PAYSLIP"}, "admin1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
