package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/internship-office/ptms-api/api/swagger"
	"github.com/internship-office/ptms-api/internal/handler"
	"github.com/internship-office/ptms-api/internal/middleware"
	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/repository"
	"github.com/internship-office/ptms-api/internal/service"
	"github.com/internship-office/ptms-api/pkg/cache"
	"github.com/internship-office/ptms-api/pkg/config"
	"github.com/internship-office/ptms-api/pkg/database"
	"github.com/internship-office/ptms-api/pkg/jobs"
	"github.com/internship-office/ptms-api/pkg/logger"
	corsmiddleware "github.com/internship-office/ptms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/internship-office/ptms-api/pkg/middleware/requestid"
	"github.com/internship-office/ptms-api/pkg/render"
	"github.com/internship-office/ptms-api/pkg/storage"
)

// @title PTMS API
// @version 1.0.0
// @description Practical training management for internship applications, letters and reviews
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it the reporting cache stays off and
	// every aggregate hits postgres directly.
	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentSessionRepo := repository.NewStudentSessionRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	formRepo := repository.NewFormResponseRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	reportRepo := repository.NewReportRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ptms-api",
	})
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, validate, logr)
	eligibilitySvc := service.NewEligibilityService(studentSessionRepo, userRepo, sessionRepo, logr).WithMetrics(metricsSvc)
	applicationSvc := service.NewApplicationService(applicationRepo, sessionRepo, eligibilitySvc, userRepo, validate, logr)
	formSvc := service.NewFormService(formRepo, applicationRepo, validate, logr).WithMetrics(metricsSvc).WithDocuments(documentRepo)

	letterStorage, err := storage.NewLocalStorage(cfg.Letters.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare letter storage", "error", err)
	}
	documentSvc := service.NewDocumentService(documentRepo, applicationRepo, formRepo, render.NewLetterRenderer(), letterStorage, service.DocumentServiceConfig{
		Institution:   cfg.Letters.Institution,
		Faculty:       cfg.Letters.Faculty,
		UploadRetries: cfg.Letters.UploadRetries,
		RetryBackoff:  cfg.Letters.RetryBackoff,
	}, logr).WithMetrics(metricsSvc)

	reviewSvc := service.NewReviewService(reviewRepo, documentRepo, applicationRepo, validate, logr)
	supervisorSvc := service.NewSupervisorService(
		storage.NewTokenSigner(cfg.Supervisor.TokenSecret, cfg.Supervisor.TokenTTL),
		applicationRepo, formSvc, validate, logr,
	)
	reportSvc := service.NewReportService(reportRepo, cacheSvc, service.ReportServiceConfig{
		CacheTTL:     cfg.Reports.CacheTTL,
		TopCompanies: cfg.Reports.TopCompanies,
	}, logr)
	maintenanceSvc := service.NewMaintenanceService(reviewRepo, userRepo, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		exportSigner := storage.NewTokenSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportGen := service.NewExportGenerator(reportRepo, exportStorage, exportSigner, cfg.APIPrefix, logr, nil, nil)
		exportWorker := service.NewExportWorker(exportJobRepo, exportGen, cfg.Exports.WorkerRetries, logr)
		exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		exportSvc = service.NewExportService(exportJobRepo, exportQueue, exportGen, exportStorage, exportSigner, logr)
		exportSvc.RecoverPendingJobs(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, eligibilitySvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	formHandler := handler.NewFormHandler(formSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	supervisorHandler := handler.NewSupervisorHandler(supervisorSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	maintenanceHandler := handler.NewMaintenanceHandler(maintenanceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group(cfg.APIPrefix)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// External supervisors sign through a time-limited token, no account.
	supervisor := v1.Group("/supervisor")
	{
		supervisor.GET("/verify/:token", supervisorHandler.Verify)
		supervisor.POST("/sign/:token", supervisorHandler.Sign)
	}

	staffRoles := []models.UserRole{models.RoleCoordinator, models.RoleAdmin}

	authed := v1.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)

		sessions := authed.Group("/sessions")
		{
			sessions.GET("", sessionHandler.List)
			sessions.GET("/:id", sessionHandler.Get)
			sessions.GET("/:id/eligibility", sessionHandler.CheckEligibility)

			staff := sessions.Group("", middleware.RequireRoles(staffRoles...))
			staff.POST("", sessionHandler.Create)
			staff.PUT("/:id", sessionHandler.Update)
			staff.DELETE("/:id", sessionHandler.Delete)
			staff.POST("/:id/import-students", sessionHandler.ImportStudents)
		}

		applications := authed.Group("/applications")
		{
			applications.GET("", applicationHandler.List)
			applications.POST("", applicationHandler.Create)
			applications.GET("/:id", applicationHandler.Get)
			applications.PUT("/:id", applicationHandler.Update)
			applications.POST("/:id/submit", applicationHandler.Submit)
			applications.POST("/:id/cancel", applicationHandler.Cancel)
			applications.POST("/:id/start-review", middleware.RequireRoles(staffRoles...), applicationHandler.StartReview)

			applications.GET("/:id/forms", formHandler.List)
			applications.GET("/:id/forms/:type", formHandler.Get)
			applications.POST("/:id/forms", formHandler.Submit)
			applications.POST("/:id/forms/sign", formHandler.Sign)

			applications.GET("/:id/documents", documentHandler.List)
			applications.POST("/:id/documents/:type", documentHandler.Generate)
			applications.GET("/:id/documents/:type/download", documentHandler.Download)
			applications.PUT("/:id/documents/:type/status",
				middleware.RequireRoles(staffRoles...),
				middleware.Audit(userRepo, models.AuditActionDocumentUpdate, "documents"),
				documentHandler.UpdateStatus)

			applications.GET("/:id/reviews", reviewHandler.List)
			applications.POST("/:id/reviews", middleware.RequireRoles(staffRoles...), reviewHandler.Submit)
			applications.GET("/:id/pending-changes", reviewHandler.PendingChanges)

			applications.POST("/:id/supervisor-link", supervisorHandler.IssueLink)
		}

		reports := authed.Group("/reports", middleware.RequireRoles(models.RoleCoordinator, models.RoleLecturer, models.RoleAdmin))
		{
			reports.GET("/overview", reportHandler.Overview)
			reports.GET("/monthly-trends", reportHandler.MonthlyTrends)
			reports.GET("/status-distribution", reportHandler.StatusDistribution)
			reports.GET("/program-distribution", reportHandler.ProgramDistribution)
			reports.GET("/top-companies", reportHandler.TopCompanies)
			reports.GET("/industry-distribution", reportHandler.IndustryDistribution)
			reports.GET("/document-stats", reportHandler.DocumentStats)
			reports.GET("/reviewer-performance", reportHandler.ReviewerPerformance)
			reports.GET("/student-progress", reportHandler.StudentProgress)
		}

		authed.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

		authed.POST("/maintenance/change-requests",
			middleware.RequireRoles(models.RoleAdmin),
			maintenanceHandler.CleanupChangeRequests)

		if exportSvc != nil {
			exportHandler := handler.NewExportHandler(exportSvc)
			exports := authed.Group("/exports", middleware.RequireRoles(staffRoles...))
			exports.POST("", exportHandler.Create)
			exports.GET("/jobs/:id", exportHandler.Status)

			// Download is token-authenticated, outside the JWT group.
			v1.GET("/exports/download/:token", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "exports", cfg.Exports.Enabled)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
