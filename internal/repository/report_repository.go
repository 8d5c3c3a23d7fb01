package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/internship-office/ptms-api/internal/models"
)

// ReportRepository exposes read-optimised aggregate queries for reporting
// endpoints. All queries accept the common session/program filter; zero
// values mean no filter.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository instantiates the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// appendFilter writes the shared WHERE fragments for queries that join
// applications (alias a) with users (alias u).
func appendFilter(builder *strings.Builder, args []interface{}, filter models.ReportFilter) []interface{} {
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		builder.WriteString(fmt.Sprintf(" AND a.session_id = $%d", len(args)))
	}
	if filter.Program != "" {
		args = append(args, filter.Program)
		builder.WriteString(fmt.Sprintf(" AND u.program = $%d", len(args)))
	}
	return args
}

// Overview aggregates the dashboard headline numbers.
func (r *ReportRepository) Overview(ctx context.Context, filter models.ReportFilter) (*models.OverviewReport, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT
        COUNT(DISTINCT a.user_id) AS total_students,
        COUNT(*) AS total_applications,
        SUM(CASE WHEN a.status = 'APPROVED' THEN 1 ELSE 0 END) AS approved,
        SUM(CASE WHEN a.status IN ('SUBMITTED', 'UNDER_REVIEW') THEN 1 ELSE 0 END) AS pending_review,
        SUM(CASE WHEN EXISTS (
            SELECT 1 FROM reviews r
            JOIN documents d ON d.id = r.document_id
            WHERE r.application_id = a.id AND r.decision = 'REQUEST_CHANGES'
              AND d.updated_at <= r.decided_at AND d.status <> 'SIGNED'
        ) THEN 1 ELSE 0 END) AS changes_requested,
        SUM(CASE WHEN a.status = 'APPROVED' AND a.end_date < NOW() THEN 1 ELSE 0 END) AS completed_internships
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)

	var report models.OverviewReport
	if err := r.db.GetContext(ctx, &report, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query overview: %w", err)
	}

	builder.Reset()
	builder.WriteString(`SELECT COUNT(*) FROM documents d
        JOIN applications a ON a.id = d.application_id
        JOIN users u ON u.id = a.user_id
        WHERE d.type = 'SLI_03'`)
	args = args[:0]
	args = appendFilter(&builder, args, filter)
	if err := r.db.GetContext(ctx, &report.SLI03Issued, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query issued placement letters: %w", err)
	}

	builder.Reset()
	builder.WriteString(`SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (a.updated_at - a.created_at)) / 86400), 0) AS avg_review_days
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE a.status = 'APPROVED'`)
	args = args[:0]
	args = appendFilter(&builder, args, filter)
	if err := r.db.GetContext(ctx, &report.AvgReviewDays, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query review turnaround: %w", err)
	}

	builder.Reset()
	builder.WriteString(`SELECT COUNT(*) FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE a.status IN ('APPROVED', 'REJECTED')`)
	args = args[:0]
	args = appendFilter(&builder, args, filter)
	var decided int
	if err := r.db.GetContext(ctx, &decided, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query decided applications: %w", err)
	}
	if decided > 0 {
		report.ApprovalRate = float64(report.Approved) / float64(decided) * 100
	}

	return &report, nil
}

// MonthlyTrends returns application counts bucketed by submission month.
func (r *ReportRepository) MonthlyTrends(ctx context.Context, filter models.ReportFilter) ([]models.TrendPoint, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT DATE_TRUNC('month', a.created_at) AS month, COUNT(*) AS count
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" GROUP BY 1 ORDER BY 1")

	var points []models.TrendPoint
	if err := r.db.SelectContext(ctx, &points, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query monthly trends: %w", err)
	}
	return points, nil
}

// StatusDistribution groups applications by lifecycle status.
func (r *ReportRepository) StatusDistribution(ctx context.Context, filter models.ReportFilter) ([]models.StatusCount, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT a.status, COUNT(*) AS count
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" GROUP BY a.status ORDER BY count DESC")

	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query status distribution: %w", err)
	}
	return counts, nil
}

// ProgramDistribution groups applications by the student's program.
func (r *ReportRepository) ProgramDistribution(ctx context.Context, filter models.ReportFilter) ([]models.ProgramCount, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT u.program, COUNT(*) AS count
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE u.program <> ''`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" GROUP BY u.program ORDER BY count DESC")

	var counts []models.ProgramCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query program distribution: %w", err)
	}
	return counts, nil
}

// TopCompanies ranks host companies by placement count.
func (r *ReportRepository) TopCompanies(ctx context.Context, filter models.ReportFilter, limit int) ([]models.CompanyCount, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT a.company_name, COUNT(*) AS count
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE a.company_name <> ''`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	args = append(args, limit)
	builder.WriteString(fmt.Sprintf(" GROUP BY a.company_name ORDER BY count DESC, a.company_name ASC LIMIT $%d", len(args)))

	var counts []models.CompanyCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query top companies: %w", err)
	}
	return counts, nil
}

// IndustryDistribution groups applications by the host company's industry.
func (r *ReportRepository) IndustryDistribution(ctx context.Context, filter models.ReportFilter) ([]models.IndustryCount, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT COALESCE(NULLIF(a.company_industry, ''), 'UNSPECIFIED') AS industry, COUNT(*) AS count
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" GROUP BY 1 ORDER BY count DESC")

	var counts []models.IndustryCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query industry distribution: %w", err)
	}
	return counts, nil
}

// DocumentStats rolls up per-type document lifecycle counts. A document
// counts as a change request while its latest REQUEST_CHANGES review is
// newer than the document's last update and the document is still unsigned.
func (r *ReportRepository) DocumentStats(ctx context.Context, filter models.ReportFilter) ([]models.DocumentTypeStats, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT d.type,
        COUNT(*) AS total,
        SUM(CASE WHEN d.status = 'SIGNED' THEN 1 ELSE 0 END) AS signed,
        SUM(CASE WHEN d.status = 'PENDING_SIGNATURE' THEN 1 ELSE 0 END) AS pending_approval,
        SUM(CASE WHEN EXISTS (
            SELECT 1 FROM reviews r
            WHERE r.document_id = d.id AND r.decision = 'REQUEST_CHANGES'
              AND d.updated_at <= r.decided_at AND d.status <> 'SIGNED'
        ) THEN 1 ELSE 0 END) AS change_requests
        FROM documents d
        JOIN applications a ON a.id = d.application_id
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" GROUP BY d.type ORDER BY d.type")

	var stats []models.DocumentTypeStats
	if err := r.db.SelectContext(ctx, &stats, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query document stats: %w", err)
	}
	return stats, nil
}

// ReviewerPerformance summarises throughput per reviewer.
func (r *ReportRepository) ReviewerPerformance(ctx context.Context, filter models.ReportFilter) ([]models.ReviewerPerformance, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT rv.reviewer_id,
        COALESCE(ru.full_name, '') AS reviewer_name,
        COUNT(*) AS total_reviews,
        SUM(CASE WHEN rv.decision = 'APPROVE' THEN 1 ELSE 0 END) AS approvals,
        SUM(CASE WHEN rv.decision = 'REQUEST_CHANGES' THEN 1 ELSE 0 END) AS change_requests,
        SUM(CASE WHEN rv.decision = 'REJECT' THEN 1 ELSE 0 END) AS rejections,
        COALESCE(AVG(EXTRACT(EPOCH FROM (rv.decided_at - a.updated_at)) / 3600), 0) AS avg_decision_hrs
        FROM reviews rv
        JOIN users ru ON ru.id = rv.reviewer_id
        JOIN applications a ON a.id = rv.application_id
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	var args []interface{}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" GROUP BY rv.reviewer_id, ru.full_name ORDER BY total_reviews DESC")

	var performance []models.ReviewerPerformance
	if err := r.db.SelectContext(ctx, &performance, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query reviewer performance: %w", err)
	}
	return performance, nil
}

// StudentProgress reports each student's signed-document count against the
// required set for the active attempt.
func (r *ReportRepository) StudentProgress(ctx context.Context, filter models.ReportFilter) ([]models.StudentProgress, error) {
	required := make([]string, 0, len(models.RequiredDocumentTypes))
	for _, t := range models.RequiredDocumentTypes {
		required = append(required, string(t))
	}

	var builder strings.Builder
	builder.WriteString(`SELECT u.id AS student_id,
        u.full_name AS student_name,
        COALESCE(u.matric_no, '') AS matric_no,
        u.program,
        a.status,
        (SELECT COUNT(*) FROM documents d
            WHERE d.application_id = a.id AND d.status = 'SIGNED'
              AND d.type = ANY($1)) AS signed_docs,
        $2::INT AS required_docs
        FROM applications a
        JOIN users u ON u.id = a.user_id
        WHERE 1=1`)
	args := []interface{}{pq.Array(required), len(required)}
	args = appendFilter(&builder, args, filter)
	builder.WriteString(" ORDER BY u.full_name ASC")

	var progress []models.StudentProgress
	if err := r.db.SelectContext(ctx, &progress, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query student progress: %w", err)
	}
	return progress, nil
}
