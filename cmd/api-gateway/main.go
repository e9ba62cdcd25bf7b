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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/khurram-Shahid09/CourseMat/api/swagger"
	"github.com/khurram-Shahid09/CourseMat/internal/handler"
	"github.com/khurram-Shahid09/CourseMat/internal/middleware"
	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/repository"
	"github.com/khurram-Shahid09/CourseMat/internal/service"
	"github.com/khurram-Shahid09/CourseMat/pkg/cache"
	"github.com/khurram-Shahid09/CourseMat/pkg/config"
	"github.com/khurram-Shahid09/CourseMat/pkg/database"
	"github.com/khurram-Shahid09/CourseMat/pkg/jobs"
	"github.com/khurram-Shahid09/CourseMat/pkg/logger"
	corsmiddleware "github.com/khurram-Shahid09/CourseMat/pkg/middleware/cors"
	reqidmiddleware "github.com/khurram-Shahid09/CourseMat/pkg/middleware/requestid"
	"github.com/khurram-Shahid09/CourseMat/pkg/storage"
)

// @title CourseMat API
// @version 1.0.0
// @description Training institute administration API
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	// Redis only backs the analytics and dashboard caches. A nil client
	// degrades those to direct database reads, so startup proceeds without it.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled)

	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, nil, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, nil, logr)
	batchSvc := service.NewBatchService(batchRepo, courseRepo, teacherRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, batchRepo, studentRepo, nil, logr)
	billingSvc := service.NewBillingService(installmentRepo, enrollmentRepo, batchRepo, logr)
	lessonSvc := service.NewLessonService(lessonRepo, batchRepo, uploadStore, cfg.Uploads, nil, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)

	authSvc := service.NewAuthService(userRepo, studentSvc, teacherSvc, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "coursemat",
	})

	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metricsSvc, cfg.Analytics.CacheTTL, logr)
	dashboardSvc := service.NewDashboardService(analyticsSvc, enrollmentRepo, cacheSvc, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	}, logr)

	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(enrollmentRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, metricsSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	if cfg.Reports.Enabled {
		reportQueue.Start(ctx)
		defer reportQueue.Stop()
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "reason": "database"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, routeHandlers{
		auth:        authHandler,
		users:       userHandler,
		students:    studentHandler,
		courses:     courseHandler,
		teachers:    teacherHandler,
		batches:     batchHandler,
		enrolls:     enrollmentHandler,
		billing:     billingHandler,
		lessons:     lessonHandler,
		analytics:   analyticsHandler,
		dashboard:   dashboardHandler,
		reports:     reportHandler,
		authSvc:     authSvc,
		userRepo:    userRepo,
		reportsOn:   cfg.Reports.Enabled,
		analyticsOn: cfg.Analytics.Enabled,
		dashOn:      cfg.Dashboard.Enabled,
	})

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

type routeHandlers struct {
	auth      *handler.AuthHandler
	users     *handler.UserHandler
	students  *handler.StudentHandler
	courses   *handler.CourseHandler
	teachers  *handler.TeacherHandler
	batches   *handler.BatchHandler
	enrolls   *handler.EnrollmentHandler
	billing   *handler.BillingHandler
	lessons   *handler.LessonHandler
	analytics *handler.AnalyticsHandler
	dashboard *handler.DashboardHandler
	reports   *handler.ReportHandler

	authSvc  *service.AuthService
	userRepo *repository.UserRepository

	reportsOn   bool
	analyticsOn bool
	dashOn      bool
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.auth.Login)
		auth.POST("/register", h.auth.Register)
		auth.POST("/refresh", h.auth.Refresh)
		auth.POST("/logout", middleware.JWT(h.authSvc), h.auth.Logout)
		auth.POST("/change-password", middleware.JWT(h.authSvc), h.auth.ChangePassword)
		auth.GET("/me", middleware.JWT(h.authSvc), h.auth.Me)
	}

	// Signed export links are self-authorizing. OptionalJWT only attributes
	// the download in logs when the client happens to be logged in.
	if h.reportsOn {
		api.GET("/export/:token", middleware.OptionalJWT(h.authSvc), h.reports.Download)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(h.authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	users := protected.Group("/users", adminOnly)
	{
		users.GET("", h.users.List)
		users.GET("/:id", h.users.Get)
		users.POST("", middleware.Audit(h.userRepo, "create", "user"), h.users.Create)
		users.PUT("/:id", middleware.Audit(h.userRepo, "update", "user"), h.users.Update)
		users.DELETE("/:id", middleware.Audit(h.userRepo, "delete", "user"), h.users.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", staff, h.students.List)
		students.GET("/:id", staff, h.students.Get)
		students.POST("", adminOnly, h.students.Create)
		students.PUT("/:id", adminOnly, h.students.Update)
		students.DELETE("/:id", adminOnly, h.students.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", h.courses.List)
		courses.GET("/:id", h.courses.Get)
		courses.POST("", adminOnly, h.courses.Create)
		courses.PUT("/:id", adminOnly, h.courses.Update)
		courses.DELETE("/:id", adminOnly, h.courses.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", h.teachers.List)
		teachers.GET("/:id", h.teachers.Get)
		teachers.POST("", adminOnly, h.teachers.Create)
		teachers.PUT("/:id", adminOnly, h.teachers.Update)
		teachers.DELETE("/:id", adminOnly, h.teachers.Delete)
	}

	batches := protected.Group("/batches")
	{
		batches.GET("", h.batches.List)
		batches.GET("/:id", h.batches.Get)
		batches.POST("", adminOnly, h.batches.Create)
		batches.PUT("/:id", adminOnly, h.batches.Update)
		batches.DELETE("/:id", adminOnly, h.batches.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", h.enrolls.List)
		enrollments.GET("/:id", h.enrolls.Get)
		enrollments.POST("", adminOnly, h.enrolls.Create)
		enrollments.PATCH("/:id/status", adminOnly, h.enrolls.UpdateStatus)
		enrollments.POST("/:id/payments", adminOnly, h.enrolls.RecordPayment)
		enrollments.DELETE("/:id", adminOnly, h.enrolls.Delete)

		enrollments.GET("/:id/billing", h.billing.Summary)
		enrollments.GET("/:id/installments", h.billing.ListInstallments)
		enrollments.POST("/:id/installments/regenerate", adminOnly, h.billing.Regenerate)
	}

	protected.POST("/installments/:id/pay", adminOnly, h.billing.MarkPaid)

	lessons := protected.Group("/lessons")
	{
		lessons.GET("", h.lessons.List)
		lessons.GET("/:id", h.lessons.Get)
		lessons.POST("", staff, h.lessons.Create)
		lessons.PUT("/:id", staff, h.lessons.Update)
		lessons.DELETE("/:id", staff, h.lessons.Delete)
		lessons.POST("/:id/images", staff, h.lessons.UploadImage)
		lessons.GET("/images/:imageId", h.lessons.DownloadImage)
		lessons.DELETE("/images/:imageId", staff, h.lessons.DeleteImage)
	}

	if h.analyticsOn {
		analytics := protected.Group("/analytics", staff)
		{
			analytics.GET("/overview", h.analytics.Overview)
			analytics.GET("/top-courses", h.analytics.TopCourses)
			analytics.GET("/top-teachers", h.analytics.TopTeachers)
			analytics.GET("/system", h.analytics.System)
		}
	}

	if h.dashOn {
		protected.GET("/dashboard", adminOnly, h.dashboard.Summary)
	}

	if h.reportsOn {
		reports := protected.Group("/reports", staff)
		{
			reports.POST("", h.reports.Create)
			reports.GET("/:id", h.reports.Status)
		}
	}
}
