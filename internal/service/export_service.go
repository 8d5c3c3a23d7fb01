package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/repository"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/export"
	"github.com/internship-office/ptms-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadTokenSigner interface {
	Generate(subject, ref string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (subject, ref string, expiresAt time.Time, err error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRequest asks for an asynchronous report export.
type ExportRequest struct {
	Report    models.ExportReport `json:"report"`
	Format    models.ExportFormat `json:"format"`
	SessionID string              `json:"session_id,omitempty"`
	Program   string              `json:"program,omitempty"`
}

// ExportStatusResponse exposes job progress to clients.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportGenerator builds report datasets and persists rendered files.
type ExportGenerator struct {
	reports   reportRepository
	storage   exportFileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    downloadTokenSigner
	logger    *zap.Logger
	apiPrefix string
}

// NewExportGenerator constructs an ExportGenerator.
func NewExportGenerator(reports reportRepository, storage exportFileStorage, signer downloadTokenSigner, apiPrefix string, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportGenerator{
		reports:   reports,
		storage:   storage,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		apiPrefix: apiPrefix,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (g *ExportGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := g.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = g.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = g.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := g.buildFilename(job)
	relPath, err := g.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := g.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(g.apiPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (g *ExportGenerator) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	sessionPart := sanitizeFilename(job.Params.SessionID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ReplaceAll(string(job.Report), "-", "_"), sessionPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (g *ExportGenerator) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	filter := models.ReportFilter{SessionID: job.Params.SessionID, Program: job.Params.Program}
	switch job.Report {
	case models.ExportOverview:
		return g.buildOverviewDataset(ctx, filter)
	case models.ExportDocumentStats:
		return g.buildDocumentStatsDataset(ctx, filter)
	case models.ExportProgress:
		return g.buildProgressDataset(ctx, filter)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export report %s", job.Report)
	}
}

func (g *ExportGenerator) buildOverviewDataset(ctx context.Context, filter models.ReportFilter) (export.Dataset, string, error) {
	overview, err := g.reports.Overview(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := []map[string]string{
		{"Metric": "Total Students", "Value": fmt.Sprintf("%d", overview.TotalStudents)},
		{"Metric": "Total Applications", "Value": fmt.Sprintf("%d", overview.TotalApplications)},
		{"Metric": "Approved", "Value": fmt.Sprintf("%d", overview.Approved)},
		{"Metric": "Pending Review", "Value": fmt.Sprintf("%d", overview.PendingReview)},
		{"Metric": "Changes Requested", "Value": fmt.Sprintf("%d", overview.ChangesRequested)},
		{"Metric": "Placement Letters Issued", "Value": fmt.Sprintf("%d", overview.SLI03Issued)},
		{"Metric": "Completed Internships", "Value": fmt.Sprintf("%d", overview.CompletedInternships)},
		{"Metric": "Average Review Days", "Value": fmt.Sprintf("%.2f", overview.AvgReviewDays)},
		{"Metric": "Approval Rate (%)", "Value": fmt.Sprintf("%.2f", overview.ApprovalRate)},
	}
	dataset := export.Dataset{Headers: []string{"Metric", "Value"}, Rows: rows}
	return dataset, "Practical Training Overview", nil
}

func (g *ExportGenerator) buildDocumentStatsDataset(ctx context.Context, filter models.ReportFilter) (export.Dataset, string, error) {
	stats, err := g.reports.DocumentStats(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, map[string]string{
			"Document Type":    string(stat.Type),
			"Total":            fmt.Sprintf("%d", stat.Total),
			"Signed":           fmt.Sprintf("%d", stat.Signed),
			"Pending Approval": fmt.Sprintf("%d", stat.PendingApproval),
			"Change Requests":  fmt.Sprintf("%d", stat.ChangeRequests),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Document Type", "Total", "Signed", "Pending Approval", "Change Requests"},
		Rows:    rows,
	}
	return dataset, "Document Statistics", nil
}

func (g *ExportGenerator) buildProgressDataset(ctx context.Context, filter models.ReportFilter) (export.Dataset, string, error) {
	progress, err := g.reports.StudentProgress(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(progress))
	for _, entry := range progress {
		rows = append(rows, map[string]string{
			"Matric No":     entry.MatricNo,
			"Student":       entry.StudentName,
			"Program":       entry.Program,
			"Status":        string(entry.Status),
			"Signed Docs":   fmt.Sprintf("%d", entry.SignedDocs),
			"Required Docs": fmt.Sprintf("%d", entry.RequiredDocs),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Matric No", "Student", "Program", "Status", "Signed Docs", "Required Docs"},
		Rows:    rows,
	}
	return dataset, "Student Progress", nil
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// ExportService orchestrates export job lifecycle management.
type ExportService struct {
	repo      exportJobStore
	queue     jobDispatcher
	generator exportGenerator
	storage   exportFileStorage
	signer    downloadTokenSigner
	logger    *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(repo exportJobStore, queue jobDispatcher, generator exportGenerator, storage exportFileStorage, signer downloadTokenSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, queue: queue, generator: generator, storage: storage, signer: signer, logger: logger}
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, req ExportRequest, actorID string) (*ExportStatusResponse, error) {
	if !isValidExportReport(req.Report) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export report")
	}
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	job := &models.ExportJob{
		Report:    req.Report,
		Params:    models.ExportJobParams{SessionID: req.SessionID, Program: req.Program, Format: req.Format},
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Report)}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &ExportStatusResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata, enforcing ownership for non-admin callers.
func (s *ExportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	resp := &ExportStatusResponse{ID: job.ID, Status: job.Status, ResultURL: job.ResultURL}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Report)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func isValidExportReport(report models.ExportReport) bool {
	switch report {
	case models.ExportOverview, models.ExportDocumentStats, models.ExportProgress:
		return true
	default:
		return false
	}
}

// ExportWorker bridges queue jobs to the generator.
type ExportWorker struct {
	repo       exportJobStore
	generator  exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, generator exportGenerator, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{repo: repo, generator: generator, logger: logger, maxRetries: maxRetries}
}

// Handle processes one queue job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}
	result, err := w.generator.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		} else {
			queued := models.ExportStatusQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}
	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}
