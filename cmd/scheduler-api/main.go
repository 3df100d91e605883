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

	_ "github.com/campusops/timetable-api/api/swagger"
	"github.com/campusops/timetable-api/internal/handler"
	"github.com/campusops/timetable-api/internal/middleware"
	"github.com/campusops/timetable-api/internal/repository"
	"github.com/campusops/timetable-api/internal/service"
	"github.com/campusops/timetable-api/pkg/cache"
	"github.com/campusops/timetable-api/pkg/config"
	"github.com/campusops/timetable-api/pkg/database"
	"github.com/campusops/timetable-api/pkg/jobs"
	"github.com/campusops/timetable-api/pkg/logger"
	corsmiddleware "github.com/campusops/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/timetable-api/pkg/middleware/requestid"
)

// @title Campus Timetable API
// @version 1.0.0
// @description Asynchronous constraint-based course timetabling service
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
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	taskRepo := repository.NewTaskRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)

	calendarSvc := service.NewCalendarService(holidayRepo, redisClient, cfg.Calendar.HolidayCacheTTL, logr)
	authSvc := service.NewAuthService(cfg.JWT)

	var schedulingSvc *service.SchedulingService
	queue := jobs.NewQueue("scheduling", func(ctx context.Context, job jobs.Job) error {
		return schedulingSvc.Process(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Tasks.Workers,
		BufferSize: cfg.Tasks.QueueBuffer,
		RetryDelay: cfg.Tasks.RetryDelay,
		Logger:     logr,
		OnExhausted: func(ctx context.Context, job jobs.Job, err error) {
			schedulingSvc.AbandonTask(ctx, job.ID, err)
		},
	})
	metricsSvc := service.NewMetricsService(queue.Depth)

	schedulingSvc = service.NewSchedulingService(
		taskRepo,
		roomRepo,
		calendarSvc,
		queue,
		redisClient,
		metricsSvc,
		validator.New(),
		logr,
		service.SchedulingServiceConfig{
			Solver:                 cfg.Solver,
			EnqueueRetries:         cfg.Tasks.EnqueueRetries,
			RetryDelay:             cfg.Tasks.RetryDelay,
			ResultCacheTTL:         cfg.Tasks.ResultCacheTTL,
			StrictHolidayAvoidance: cfg.Calendar.StrictHolidayAvoidance,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	schedulingSvc.RecoverPendingTasks(ctx)

	schedulingHandler := handler.NewSchedulingHandler(schedulingSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)

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
	api.Use(middleware.JWT(authSvc))
	{
		scheduling := api.Group("/scheduling")
		scheduling.POST("/auto", schedulingHandler.Submit)
		scheduling.GET("/tasks", schedulingHandler.ListTasks)
		scheduling.GET("/tasks/:task_id", schedulingHandler.GetTask)
		scheduling.POST("/holiday-check", calendarHandler.HolidayCheck)
		scheduling.GET("/holidays", calendarHandler.Holidays)
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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
