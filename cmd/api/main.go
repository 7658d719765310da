package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushub/campus-api/api/swagger"
	"github.com/campushub/campus-api/internal/handler"
	"github.com/campushub/campus-api/internal/middleware"
	"github.com/campushub/campus-api/internal/repository"
	"github.com/campushub/campus-api/internal/service"
	"github.com/campushub/campus-api/pkg/cache"
	"github.com/campushub/campus-api/pkg/config"
	"github.com/campushub/campus-api/pkg/database"
	"github.com/campushub/campus-api/pkg/export"
	"github.com/campushub/campus-api/pkg/logger"
	corsmiddleware "github.com/campushub/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/campus-api/pkg/middleware/requestid"
)

// @title Campus API
// @version 1.0.0
// @description Academic management REST API for the student and admin portals
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	marksRepo := repository.NewMarksRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	tokenStore := repository.NewTokenStore(redisClient)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(studentRepo, adminRepo, tokenStore, validate, logr, cfg.Auth)
	studentService := service.NewStudentService(studentRepo, logr)
	courseService := service.NewCourseService(courseRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, studentRepo, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, enrollmentRepo, courseRepo, studentRepo, validate, logr)
	marksService := service.NewMarksService(marksRepo, enrollmentRepo, studentRepo, courseRepo, validate, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, enrollmentRepo, courseRepo, validate, logr)

	handlers := handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Students:    handler.NewStudentHandler(studentService),
		Courses:     handler.NewCourseHandler(courseService),
		Enrollments: handler.NewEnrollmentHandler(enrollmentService),
		Attendance:  handler.NewAttendanceHandler(attendanceService, export.NewCSVExporter()),
		Marks:       handler.NewMarksHandler(marksService, export.NewPDFExporter()),
		Assignments: handler.NewAssignmentHandler(assignmentService),
		Metrics:     handler.NewMetricsHandler(metricsService, db, redisClient),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	handler.RegisterRoutes(r, cfg.APIPrefix, authService, handlers)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
