package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/novasec/secaware-api/api/swagger"
	"github.com/novasec/secaware-api/internal/handler"
	"github.com/novasec/secaware-api/internal/middleware"
	"github.com/novasec/secaware-api/internal/models"
	"github.com/novasec/secaware-api/internal/repository"
	"github.com/novasec/secaware-api/internal/service"
	"github.com/novasec/secaware-api/pkg/cache"
	"github.com/novasec/secaware-api/pkg/config"
	"github.com/novasec/secaware-api/pkg/database"
	"github.com/novasec/secaware-api/pkg/export"
	"github.com/novasec/secaware-api/pkg/jobs"
	"github.com/novasec/secaware-api/pkg/logger"
	corsmiddleware "github.com/novasec/secaware-api/pkg/middleware/cors"
	reqidmiddleware "github.com/novasec/secaware-api/pkg/middleware/requestid"
)

// @title SecAware Training API
// @version 0.1.0
// @description Learning progression and assessment engine for security awareness training
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	// Services.
	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	certificateSvc := service.NewCertificateService(certificateRepo, notificationSvc, metricsSvc,
		service.CertificateConfig{NumberPrefix: cfg.Training.CertificatePrefix}, logr)

	progressionSvc := service.NewProgressionService(courseRepo, progressRepo, enrollmentRepo,
		certificateSvc, cacheRepo, metricsSvc, service.ProgressionConfig{
			QuizPassThreshold: cfg.Training.QuizPassThreshold,
			SnapshotCacheTTL:  cfg.Training.SnapshotCacheTTL,
		}, logr)

	examSessionSvc := service.NewExamSessionService(examRepo, assignmentRepo, attemptRepo,
		sessionRepo, enrollmentRepo, notificationSvc, metricsSvc,
		service.ExamSessionConfig{SessionGrace: cfg.Training.SessionGrace}, logr)

	assignmentSvc := service.NewAssignmentService(assignmentRepo, enrollmentRepo, userRepo,
		examRepo, courseRepo, validate, logr)

	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, logr)

	exportSvc := service.NewExportService(examRepo, attemptRepo,
		service.ExportConfig{MaxRows: cfg.Exports.MaxRows}, logr,
		export.NewCSVExporter(), export.NewPDFExporter())

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, progressionSvc)
	examHandler := handler.NewExamHandler(examSessionSvc, assignmentSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/certificates/verify/:number", certificateHandler.Verify)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/courses", courseHandler.List)
		authed.GET("/courses/:id", courseHandler.Detail)
		authed.GET("/courses/:id/enrollment", courseHandler.EnrollmentStatus)
		authed.GET("/courses/:id/access/:index", courseHandler.SectionAccess)
		authed.POST("/courses/:id/sections/:sectionId/complete", courseHandler.CompleteSection)
		authed.POST("/courses/:id/sections/:sectionId/quiz", courseHandler.SubmitQuiz)
		authed.GET("/my/courses", courseHandler.MyCourses)
		authed.GET("/my/assignments", examHandler.MyAssignments)
		authed.GET("/exams/:id/eligibility", examHandler.Eligibility)
		authed.POST("/exams/:id/start", examHandler.Start)
		authed.POST("/exams/:id/submit", examHandler.Submit)
		authed.GET("/exams/:id/attempts", examHandler.Attempts)
		authed.GET("/certificates", certificateHandler.List)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin))
	{
		admin.POST("/assignments/exams", assignmentHandler.AssignExam)
		admin.POST("/assignments/courses", assignmentHandler.EnrollCourse)
		if cfg.Exports.Enabled {
			admin.GET("/exams/:id/attempts/export", exportHandler.Attempts)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
