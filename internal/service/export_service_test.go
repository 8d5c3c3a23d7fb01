package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/internal/repository"
	"github.com/internship-office/ptms-api/pkg/jobs"
)

type mockJobStore struct {
	jobs    map[string]*models.ExportJob
	updates []repository.UpdateExportJobParams
}

func (m *mockJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ExportJob)
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if j, ok := m.jobs[id]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockJobStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	m.updates = append(m.updates, params)
	j, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		j.Status = *params.Status
	}
	if params.ResultURL != nil {
		j.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		j.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		j.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, j := range m.jobs {
		if j.Status == models.ExportStatusQueued {
			out = append(out, *j)
		}
	}
	return out, nil
}

type mockQueue struct {
	enqueued []jobs.Job
	fail     bool
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.fail {
		return errors.New("queue full")
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (m *mockGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &ExportResult{RelativePath: "exports/out.csv", URL: "/api/v1/exports/download/tok"}, nil
}

type mockExportFiles struct{}

func (m *mockExportFiles) Save(filename string, data []byte) (string, error) { return filename, nil }
func (m *mockExportFiles) Open(filename string) (*os.File, error)           { return nil, errors.New("not found") }
func (m *mockExportFiles) Delete(filename string) error                     { return nil }

func exportFixture() (*ExportService, *mockJobStore, *mockQueue) {
	store := &mockJobStore{jobs: map[string]*models.ExportJob{}}
	queue := &mockQueue{}
	svc := NewExportService(store, queue, &mockGenerator{}, &mockExportFiles{}, nil, zap.NewNop())
	return svc, store, queue
}

func TestExportCreateJob(t *testing.T) {
	svc, store, queue := exportFixture()

	resp, err := svc.CreateJob(context.Background(), ExportRequest{
		Report: models.ExportOverview,
		Format: models.ExportFormatCSV,
	}, "coord1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
	assert.Equal(t, "coord1", store.jobs[resp.ID].CreatedBy)
}

func TestExportCreateJobRejectsUnknownReport(t *testing.T) {
	svc, _, queue := exportFixture()

	_, err := svc.CreateJob(context.Background(), ExportRequest{Report: "payroll", Format: models.ExportFormatCSV}, "coord1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, queue.enqueued)
}

func TestExportCreateJobMarksFailedWhenEnqueueFails(t *testing.T) {
	svc, store, queue := exportFixture()
	queue.fail = true

	_, err := svc.CreateJob(context.Background(), ExportRequest{Report: models.ExportOverview, Format: models.ExportFormatPDF}, "coord1")
	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
		require.NotNil(t, job.FinishedAt)
	}
}

func TestExportGetStatusOwnership(t *testing.T) {
	svc, store, _ := exportFixture()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusProcessing, CreatedBy: "coord1"}

	_, err := svc.GetStatus(context.Background(), "job-1", "other", models.RoleCoordinator)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	resp, err := svc.GetStatus(context.Background(), "job-1", "other", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusProcessing, resp.Status)
}

func TestExportWorkerRetriesThenFails(t *testing.T) {
	store := &mockJobStore{jobs: map[string]*models.ExportJob{
		"job-1": {ID: "job-1", Report: models.ExportOverview, Status: models.ExportStatusQueued},
	}}
	gen := &mockGenerator{err: errors.New("database unavailable")}
	worker := NewExportWorker(store, gen, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, store.jobs["job-1"].Status)
	assert.Nil(t, store.jobs["job-1"].FinishedAt)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, store.jobs["job-1"].Status)
	require.NotNil(t, store.jobs["job-1"].ErrorMessage)
	assert.Contains(t, *store.jobs["job-1"].ErrorMessage, "database unavailable")
	require.NotNil(t, store.jobs["job-1"].FinishedAt)
}

func TestExportWorkerFinishesJob(t *testing.T) {
	store := &mockJobStore{jobs: map[string]*models.ExportJob{
		"job-1": {ID: "job-1", Report: models.ExportOverview, Status: models.ExportStatusQueued},
	}}
	worker := NewExportWorker(store, &mockGenerator{}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	job := store.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/tok", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
}

func TestExportRecoverPendingJobs(t *testing.T) {
	svc, store, queue := exportFixture()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Report: models.ExportOverview, Status: models.ExportStatusQueued}
	store.jobs["job-2"] = &models.ExportJob{ID: "job-2", Report: models.ExportProgress, Status: models.ExportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}
