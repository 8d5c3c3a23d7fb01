package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/service"
	"github.com/internship-office/ptms-api/pkg/response"
)

// ReportHandler exposes the read-only reporting aggregates.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func reportFilter(c *gin.Context) models.ReportFilter {
	return models.ReportFilter{
		SessionID: c.Query("sessionId"),
		Program:   c.Query("program"),
	}
}

func reportMeta(start time.Time, cached bool) map[string]interface{} {
	return map[string]interface{}{
		"cached":             cached,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
}

// Overview godoc
// @Summary Headline counters for the training office
// @Tags Reports
// @Produce json
// @Param sessionId query string false "Filter by session"
// @Param program query string false "Filter by program"
// @Success 200 {object} response.Envelope
// @Router /reports/overview [get]
func (h *ReportHandler) Overview(c *gin.Context) {
	start := time.Now()
	overview, cached, err := h.reports.Overview(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil, reportMeta(start, cached))
}

// MonthlyTrends godoc
// @Summary Application volume per month
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/monthly-trends [get]
func (h *ReportHandler) MonthlyTrends(c *gin.Context) {
	start := time.Now()
	trends, cached, err := h.reports.MonthlyTrends(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trends, nil, reportMeta(start, cached))
}

// StatusDistribution godoc
// @Summary Applications grouped by status
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/status-distribution [get]
func (h *ReportHandler) StatusDistribution(c *gin.Context) {
	start := time.Now()
	distribution, cached, err := h.reports.StatusDistribution(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, distribution, nil, reportMeta(start, cached))
}

// ProgramDistribution godoc
// @Summary Applications grouped by study program
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/program-distribution [get]
func (h *ReportHandler) ProgramDistribution(c *gin.Context) {
	start := time.Now()
	distribution, cached, err := h.reports.ProgramDistribution(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, distribution, nil, reportMeta(start, cached))
}

// TopCompanies godoc
// @Summary Companies hosting the most interns
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/top-companies [get]
func (h *ReportHandler) TopCompanies(c *gin.Context) {
	start := time.Now()
	companies, cached, err := h.reports.TopCompanies(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, companies, nil, reportMeta(start, cached))
}

// IndustryDistribution godoc
// @Summary Placements grouped by industry
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/industry-distribution [get]
func (h *ReportHandler) IndustryDistribution(c *gin.Context) {
	start := time.Now()
	distribution, cached, err := h.reports.IndustryDistribution(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, distribution, nil, reportMeta(start, cached))
}

// DocumentStats godoc
// @Summary Letter progress per document type
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/document-stats [get]
func (h *ReportHandler) DocumentStats(c *gin.Context) {
	start := time.Now()
	stats, cached, err := h.reports.DocumentStats(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, reportMeta(start, cached))
}

// ReviewerPerformance godoc
// @Summary Reviewer throughput and decision latency
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/reviewer-performance [get]
func (h *ReportHandler) ReviewerPerformance(c *gin.Context) {
	start := time.Now()
	performance, cached, err := h.reports.ReviewerPerformance(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, performance, nil, reportMeta(start, cached))
}

// StudentProgress godoc
// @Summary Per-student paperwork progress
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/student-progress [get]
func (h *ReportHandler) StudentProgress(c *gin.Context) {
	start := time.Now()
	progress, cached, err := h.reports.StudentProgress(c.Request.Context(), reportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil, reportMeta(start, cached))
}
