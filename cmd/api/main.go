package main

import (
	"context"
	"errors"
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

	_ "github.com/AllenCortuna/omnhs-api/api/swagger"
	"github.com/AllenCortuna/omnhs-api/internal/handler"
	"github.com/AllenCortuna/omnhs-api/internal/middleware"
	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/internal/repository"
	"github.com/AllenCortuna/omnhs-api/internal/service"
	"github.com/AllenCortuna/omnhs-api/pkg/cache"
	"github.com/AllenCortuna/omnhs-api/pkg/config"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	"github.com/AllenCortuna/omnhs-api/pkg/jobs"
	"github.com/AllenCortuna/omnhs-api/pkg/logger"
	corsmiddleware "github.com/AllenCortuna/omnhs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/AllenCortuna/omnhs-api/pkg/middleware/requestid"
	"github.com/AllenCortuna/omnhs-api/pkg/storage"
)

// @title OMNHS API
// @version 1.0.0
// @description Enrollment and student records API for Occidental Mindoro National High School
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// The dashboard cache degrades to direct queries when redis is down.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	strandRepo := repository.NewStrandRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	recordRepo := repository.NewSubjectRecordRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	dispatchSvc := service.NewDispatchService(notificationRepo, userRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "omnhs-api",
	})
	studentSvc := service.NewStudentService(studentRepo, userRepo, dispatchSvc, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, dispatchSvc, validate, logr)
	strandSvc := service.NewStrandService(strandRepo, sectionRepo, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, strandRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, strandRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, sectionRepo, dispatchSvc, validate, logr)
	recordSvc := service.NewSubjectRecordService(recordRepo, subjectRepo, sectionRepo, teacherRepo, studentRepo, dispatchSvc, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, teacherRepo, sectionRepo, enrollmentRepo, redisClient, cfg.Dashboard.CacheTTL, logr)
	documentSvc := service.NewDocumentService(store, signer, service.DocumentConfig{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
	}, logr)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	strandHandler := handler.NewStrandHandler(strandSvc)
	sectionHandler := handler.NewSectionHandler(sectionSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, dashboardSvc, metricsSvc)
	recordHandler := handler.NewSubjectRecordHandler(recordSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc, dispatchSvc,
		authHandler, studentHandler, teacherHandler, strandHandler, sectionHandler,
		subjectHandler, enrollmentHandler, recordHandler, notificationHandler,
		dashboardHandler, documentHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchSvc.Start(ctx)
	defer dispatchSvc.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	authSvc *service.AuthService,
	dispatchSvc *service.DispatchService,
	authHandler *handler.AuthHandler,
	studentHandler *handler.StudentHandler,
	teacherHandler *handler.TeacherHandler,
	strandHandler *handler.StrandHandler,
	sectionHandler *handler.SectionHandler,
	subjectHandler *handler.SubjectHandler,
	enrollmentHandler *handler.EnrollmentHandler,
	recordHandler *handler.SubjectRecordHandler,
	notificationHandler *handler.NotificationHandler,
	dashboardHandler *handler.DashboardHandler,
	documentHandler *handler.DocumentHandler,
) {
	api := r.Group(cfg.APIPrefix)

	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)
	student := string(models.RoleStudent)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Signed tokens carry their own authorization.
	api.GET("/documents/:token", documentHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/change-password", authHandler.ChangePassword)
	protected.GET("/auth/me", authHandler.Me)

	students := protected.Group("/students")
	{
		students.GET("", middleware.RBAC(admin, teacher), studentHandler.List)
		students.GET("/:id", middleware.RBAC(admin, teacher, "SELF"), studentHandler.Get)
		students.GET("/number/:number", middleware.RBAC(admin, teacher), studentHandler.GetByNumber)
		students.GET("/:id/grades", middleware.RBAC(admin, teacher, "SELF"), recordHandler.StudentGrades)
		students.POST("", middleware.RBAC(admin), studentHandler.Create)
		students.PUT("/:id", middleware.RBAC(admin), studentHandler.Update)
		students.PATCH("/:id/contact", middleware.RBAC(admin, "SELF"), studentHandler.UpdateContact)
		students.PATCH("/:id/status", middleware.RBAC(admin), studentHandler.SetStatus)
		students.DELETE("/number/:number", middleware.RBAC(admin), studentHandler.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", middleware.RBAC(admin), teacherHandler.List)
		teachers.GET("/:id", middleware.RBAC(admin, "SELF"), teacherHandler.Get)
		teachers.POST("", middleware.RBAC(admin), teacherHandler.Create)
		teachers.PUT("/:id", middleware.RBAC(admin), teacherHandler.Update)
		teachers.DELETE("/number/:number", middleware.RBAC(admin), teacherHandler.Delete)
	}

	catalogAudit := middleware.Audit(dispatchSvc, models.AuditActionCatalogChange, "catalog")

	strands := protected.Group("/strands")
	{
		strands.GET("", strandHandler.List)
		strands.GET("/:id", strandHandler.Get)
		strands.POST("", middleware.RBAC(admin), catalogAudit, strandHandler.Create)
		strands.PUT("/:id", middleware.RBAC(admin), catalogAudit, strandHandler.Update)
		strands.DELETE("/:id", middleware.RBAC(admin), catalogAudit, strandHandler.Delete)
	}

	sections := protected.Group("/sections")
	{
		sections.GET("", sectionHandler.List)
		sections.GET("/:id", sectionHandler.Get)
		sections.POST("", middleware.RBAC(admin), catalogAudit, sectionHandler.Create)
		sections.PUT("/:id", middleware.RBAC(admin), catalogAudit, sectionHandler.Update)
		sections.DELETE("/:id", middleware.RBAC(admin), catalogAudit, sectionHandler.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", middleware.RBAC(admin), catalogAudit, subjectHandler.Create)
		subjects.PUT("/:id", middleware.RBAC(admin), catalogAudit, subjectHandler.Update)
		subjects.DELETE("/:id", middleware.RBAC(admin), catalogAudit, subjectHandler.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.POST("", middleware.RBAC(admin, student), enrollmentHandler.Submit)
		enrollments.GET("", middleware.RBAC(admin, student), enrollmentHandler.List)
		enrollments.GET("/:id", middleware.RBAC(admin, student), enrollmentHandler.Get)
		enrollments.POST("/:id/approve", middleware.RBAC(admin), enrollmentHandler.Approve)
		enrollments.POST("/:id/reject", middleware.RBAC(admin), enrollmentHandler.Reject)
	}

	records := protected.Group("/subject-records")
	{
		records.GET("", recordHandler.List)
		records.GET("/:id", recordHandler.Get)
		records.POST("", middleware.RBAC(admin, teacher), recordHandler.Create)
		records.DELETE("/:id", middleware.RBAC(admin), recordHandler.Delete)
		records.POST("/:id/students", middleware.RBAC(admin, teacher), recordHandler.AddStudent)
		records.DELETE("/:id/students/:studentId", middleware.RBAC(admin, teacher), recordHandler.RemoveStudent)
		records.PUT("/:id/grades", middleware.RBAC(admin, teacher), recordHandler.UpsertGrade)
		records.GET("/:id/grades", middleware.RBAC(admin, teacher), recordHandler.GradeSheet)
		records.GET("/:id/export", middleware.RBAC(admin, teacher), recordHandler.Export)
	}

	notifications := protected.Group("/notifications")
	notifications.Use(middleware.RBAC(student))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	protected.GET("/dashboard", middleware.RBAC(admin), dashboardHandler.Summary)

	documents := protected.Group("/documents")
	{
		documents.POST("", middleware.RBAC(admin, student), documentHandler.Upload)
		documents.POST("/refresh", middleware.RBAC(admin, student), documentHandler.Refresh)
	}
}
