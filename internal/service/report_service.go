package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type reportRepository interface {
	Overview(ctx context.Context, filter models.ReportFilter) (*models.OverviewReport, error)
	MonthlyTrends(ctx context.Context, filter models.ReportFilter) ([]models.TrendPoint, error)
	StatusDistribution(ctx context.Context, filter models.ReportFilter) ([]models.StatusCount, error)
	ProgramDistribution(ctx context.Context, filter models.ReportFilter) ([]models.ProgramCount, error)
	TopCompanies(ctx context.Context, filter models.ReportFilter, limit int) ([]models.CompanyCount, error)
	IndustryDistribution(ctx context.Context, filter models.ReportFilter) ([]models.IndustryCount, error)
	DocumentStats(ctx context.Context, filter models.ReportFilter) ([]models.DocumentTypeStats, error)
	ReviewerPerformance(ctx context.Context, filter models.ReportFilter) ([]models.ReviewerPerformance, error)
	StudentProgress(ctx context.Context, filter models.ReportFilter) ([]models.StudentProgress, error)
}

// ReportServiceConfig tunes the reporting aggregator.
type ReportServiceConfig struct {
	CacheTTL     time.Duration
	TopCompanies int
}

// ReportService serves the read-only reporting aggregates, fronted by a
// short-lived cache. Reports tolerate values up to one TTL stale.
type ReportService struct {
	repo   reportRepository
	cache  *CacheService
	logger *zap.Logger
	cfg    ReportServiceConfig
}

// NewReportService constructs ReportService.
func NewReportService(repo reportRepository, cache *CacheService, cfg ReportServiceConfig, logger *zap.Logger) *ReportService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopCompanies <= 0 {
		cfg.TopCompanies = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, cache: cache, logger: logger, cfg: cfg}
}

func reportCacheKey(name string, filter models.ReportFilter) string {
	return fmt.Sprintf("reports:%s:%s:%s", name, filter.SessionID, filter.Program)
}

func (s *ReportService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
	}
}

func wrapReportErr(err error, name string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build "+name+" report")
}

// Overview returns the dashboard headline rollup. The bool reports whether
// the cache served the value.
func (s *ReportService) Overview(ctx context.Context, filter models.ReportFilter) (*models.OverviewReport, bool, error) {
	key := reportCacheKey("overview", filter)
	var cached models.OverviewReport
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}
	report, err := s.repo.Overview(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "overview")
	}
	s.store(ctx, key, report)
	return report, false, nil
}

// MonthlyTrends returns per-month application counts.
func (s *ReportService) MonthlyTrends(ctx context.Context, filter models.ReportFilter) ([]models.TrendPoint, bool, error) {
	key := reportCacheKey("trends", filter)
	var cached []models.TrendPoint
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	points, err := s.repo.MonthlyTrends(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "trends")
	}
	s.store(ctx, key, points)
	return points, false, nil
}

// StatusDistribution returns application counts by status.
func (s *ReportService) StatusDistribution(ctx context.Context, filter models.ReportFilter) ([]models.StatusCount, bool, error) {
	key := reportCacheKey("status", filter)
	var cached []models.StatusCount
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	counts, err := s.repo.StatusDistribution(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "status")
	}
	s.store(ctx, key, counts)
	return counts, false, nil
}

// ProgramDistribution returns application counts by program.
func (s *ReportService) ProgramDistribution(ctx context.Context, filter models.ReportFilter) ([]models.ProgramCount, bool, error) {
	key := reportCacheKey("programs", filter)
	var cached []models.ProgramCount
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	counts, err := s.repo.ProgramDistribution(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "programs")
	}
	s.store(ctx, key, counts)
	return counts, false, nil
}

// TopCompanies ranks host companies by placements.
func (s *ReportService) TopCompanies(ctx context.Context, filter models.ReportFilter) ([]models.CompanyCount, bool, error) {
	key := reportCacheKey("companies", filter)
	var cached []models.CompanyCount
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	counts, err := s.repo.TopCompanies(ctx, filter, s.cfg.TopCompanies)
	if err != nil {
		return nil, false, wrapReportErr(err, "companies")
	}
	s.store(ctx, key, counts)
	return counts, false, nil
}

// IndustryDistribution returns application counts by company industry.
func (s *ReportService) IndustryDistribution(ctx context.Context, filter models.ReportFilter) ([]models.IndustryCount, bool, error) {
	key := reportCacheKey("industries", filter)
	var cached []models.IndustryCount
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	counts, err := s.repo.IndustryDistribution(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "industries")
	}
	s.store(ctx, key, counts)
	return counts, false, nil
}

// DocumentStats returns per-type document lifecycle counts.
func (s *ReportService) DocumentStats(ctx context.Context, filter models.ReportFilter) ([]models.DocumentTypeStats, bool, error) {
	key := reportCacheKey("documents", filter)
	var cached []models.DocumentTypeStats
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	stats, err := s.repo.DocumentStats(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "documents")
	}
	s.store(ctx, key, stats)
	return stats, false, nil
}

// ReviewerPerformance returns throughput per reviewer.
func (s *ReportService) ReviewerPerformance(ctx context.Context, filter models.ReportFilter) ([]models.ReviewerPerformance, bool, error) {
	key := reportCacheKey("reviewers", filter)
	var cached []models.ReviewerPerformance
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	performance, err := s.repo.ReviewerPerformance(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "reviewers")
	}
	s.store(ctx, key, performance)
	return performance, false, nil
}

// StudentProgress returns each student's distance from completion.
func (s *ReportService) StudentProgress(ctx context.Context, filter models.ReportFilter) ([]models.StudentProgress, bool, error) {
	key := reportCacheKey("progress", filter)
	var cached []models.StudentProgress
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	progress, err := s.repo.StudentProgress(ctx, filter)
	if err != nil {
		return nil, false, wrapReportErr(err, "progress")
	}
	s.store(ctx, key, progress)
	return progress, false, nil
}

// Invalidate drops every cached report; call after writes that change the
// aggregates.
func (s *ReportService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "reports:*"); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}
