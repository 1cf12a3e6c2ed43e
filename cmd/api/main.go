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

	_ "github.com/cvbeltran/vschool-api/api/swagger"
	"github.com/cvbeltran/vschool-api/internal/handler"
	"github.com/cvbeltran/vschool-api/internal/middleware"
	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/internal/repository"
	"github.com/cvbeltran/vschool-api/internal/service"
	"github.com/cvbeltran/vschool-api/pkg/cache"
	"github.com/cvbeltran/vschool-api/pkg/config"
	"github.com/cvbeltran/vschool-api/pkg/database"
	"github.com/cvbeltran/vschool-api/pkg/jobs"
	"github.com/cvbeltran/vschool-api/pkg/logger"
	corsmiddleware "github.com/cvbeltran/vschool-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cvbeltran/vschool-api/pkg/middleware/requestid"
	"github.com/cvbeltran/vschool-api/pkg/storage"
)

// @title VSchool API
// @version 1.0.0
// @description Multi-tenant admissions and enrollment service
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	// Repositories.
	admissionRepo := repository.NewAdmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	taxonomyRepo := repository.NewTaxonomyRepository(db)
	schoolYearRepo := repository.NewSchoolYearRepository(db)
	organizationRepo := repository.NewOrganizationRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Taxonomies.CacheTTL, logr,
		cfg.Taxonomies.CacheEnabled && redisClient != nil)
	auditSvc := service.NewAuditService(userRepo, logr)
	schoolYearSvc := service.NewSchoolYearService(schoolYearRepo, cacheSvc)
	taxonomySvc := service.NewTaxonomyService(taxonomyRepo, cacheSvc, schoolYearSvc, auditSvc)
	checker := service.NewDuplicateChecker(admissionRepo, studentRepo, schoolYearSvc, logr)
	admissionSvc := service.NewAdmissionService(admissionRepo, studentRepo, checker, auditSvc, metricsSvc, cfg.Admissions, logr)
	studentSvc := service.NewStudentService(studentRepo)
	organizationSvc := service.NewOrganizationService(organizationRepo)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportJobRepo, admissionRepo, localStorage, signer, logr)
		exportQueue := jobs.NewQueue("exports", exportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportSvc.SetQueue(exportQueue)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	admissionHandler := handler.NewAdmissionHandler(admissionSvc, validate)
	studentHandler := handler.NewStudentHandler(studentSvc)
	taxonomyHandler := handler.NewTaxonomyHandler(taxonomySvc, validate)
	schoolYearHandler := handler.NewSchoolYearHandler(schoolYearSvc)
	organizationHandler := handler.NewOrganizationHandler(organizationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
			auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		}

		secured := api.Group("", middleware.JWT(authSvc))
		{
			staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleRegistrar)
			admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

			admissions := secured.Group("/admissions", staff)
			{
				admissions.GET("", admissionHandler.List)
				admissions.POST("", admissionHandler.Create)
				admissions.GET("/:id", admissionHandler.Get)
				admissions.POST("/:id/accept", admissionHandler.Accept)
				admissions.POST("/:id/reject", admissionHandler.Reject)
				admissions.POST("/:id/enroll", admissionHandler.Enroll)
			}

			students := secured.Group("/students", staff)
			{
				students.GET("", studentHandler.List)
				students.GET("/:id", studentHandler.Get)
			}

			taxonomies := secured.Group("/taxonomies")
			{
				taxonomies.GET("", staff, taxonomyHandler.List)
				taxonomies.GET("/:id", staff, taxonomyHandler.Get)
				taxonomies.POST("", admins, taxonomyHandler.Create)
				taxonomies.PUT("/:id", admins, taxonomyHandler.Update)
				taxonomies.DELETE("/:id", admins, taxonomyHandler.Delete)
			}

			schoolYears := secured.Group("/school-years", staff)
			{
				schoolYears.GET("", schoolYearHandler.List)
				schoolYears.GET("/:id", schoolYearHandler.Get)
			}

			organizations := secured.Group("/organizations", staff)
			{
				organizations.GET("", organizationHandler.List)
				organizations.GET("/:id", organizationHandler.Get)
			}

			if exportSvc != nil {
				exportHandler := handler.NewExportHandler(exportSvc)
				exports := secured.Group("/exports", staff)
				{
					exports.POST("", exportHandler.Create)
					exports.GET("/:id", exportHandler.Status)
				}
				// Download authenticates through the signed token itself.
				api.GET("/exports/download", exportHandler.Download)
			}
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
