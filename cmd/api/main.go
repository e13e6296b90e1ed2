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

	_ "github.com/campuskit/campus-api/api/swagger"
	"github.com/campuskit/campus-api/internal/handler"
	"github.com/campuskit/campus-api/internal/middleware"
	"github.com/campuskit/campus-api/internal/models"
	"github.com/campuskit/campus-api/internal/repository"
	"github.com/campuskit/campus-api/internal/service"
	"github.com/campuskit/campus-api/pkg/cache"
	"github.com/campuskit/campus-api/pkg/config"
	"github.com/campuskit/campus-api/pkg/database"
	"github.com/campuskit/campus-api/pkg/email"
	"github.com/campuskit/campus-api/pkg/export"
	"github.com/campuskit/campus-api/pkg/jobs"
	"github.com/campuskit/campus-api/pkg/logger"
	corsmiddleware "github.com/campuskit/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/campus-api/pkg/middleware/requestid"
	"github.com/campuskit/campus-api/pkg/sms"
	"github.com/campuskit/campus-api/pkg/storage"
)

// @title CampusKit API
// @version 1.0.0
// @description Role-based school management API
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	store, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	challengeRepo := repository.NewChallengeRepository(redisClient)
	classRepo := repository.NewClassRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// Outbound notifications run on the background queue so ticket writes
	// never wait on the mail provider.
	var mailSender email.Sender
	if cfg.Email.SendGridKey != "" {
		mailSender = email.NewSendGridSender(cfg.Email.SendGridKey, cfg.Email.FromName, cfg.Email.FromAddress)
	} else {
		mailSender = email.NewConsoleSender(logr)
	}
	notifyQueue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(email.Message)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return mailSender.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	passwordSvc := service.NewPasswordService(userRepo, challengeRepo, sms.NewConsoleSender(logr), validate, logr, service.PasswordConfig{
		OTPTTL:       cfg.Password.OTPTTL,
		ChallengeTTL: cfg.Password.ChallengeTTL,
		OTPDigits:    cfg.Password.OTPDigits,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, classRepo, validate, logr)
	sweeper := service.NewAnnouncementSweeper(announcementRepo, cfg.Announcements.SweepInterval, logr)
	sweeper.SetMetrics(metricsSvc)
	classSvc := service.NewClassService(classRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, classRepo, validate, logr)
	ticketSvc := service.NewTicketService(ticketRepo, notifyQueue, validate, logr, service.TicketNotifyConfig{
		SupportName:    cfg.Email.FromName,
		SupportAddress: cfg.Email.SupportTo,
	})
	messageSvc := service.NewMessageService(messageRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)
	jobSvc := service.NewJobService(jobRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc, passwordSvc)
	userHandler := handler.NewUserHandler(userSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc, sweeper)
	classHandler := handler.NewClassHandler(classSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	ticketHandler := handler.NewTicketHandler(ticketSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	jobHandler := handler.NewJobHandler(jobSvc)
	attachmentHandler := handler.NewAttachmentHandler(store, signer, cfg.Storage.MaxUploadBytes)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	registerRoutes(api, authSvc, authHandler, userHandler, announcementHandler, classHandler,
		assignmentHandler, ticketHandler, messageHandler, attendanceHandler, jobHandler, attachmentHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()
	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup,
	authSvc *service.AuthService,
	auth *handler.AuthHandler,
	users *handler.UserHandler,
	announcements *handler.AnnouncementHandler,
	classes *handler.ClassHandler,
	assignments *handler.AssignmentHandler,
	tickets *handler.TicketHandler,
	messages *handler.MessageHandler,
	attendance *handler.AttendanceHandler,
	jobBoard *handler.JobHandler,
	attachments *handler.AttachmentHandler,
) {
	staff := []models.UserRole{models.RoleAdmin, models.RoleTeacher}
	admin := []models.UserRole{models.RoleAdmin}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.POST("/refresh", auth.Refresh)

		protected := authGroup.Group("")
		protected.Use(middleware.JWT(authSvc))
		protected.POST("/logout", auth.Logout)
		protected.POST("/change-password/verify-current", auth.VerifyCurrentPassword)
		protected.POST("/2fa/send-otp", auth.SendOTP)
		protected.POST("/verify-otp", auth.VerifyOTP)
		protected.POST("/change-password/do-update", auth.UpdatePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	userGroup := protected.Group("/users")
	{
		userGroup.GET("", middleware.RequireRoles(staff...), users.List)
		userGroup.GET("/:id", middleware.RBAC("ADMIN", "TEACHER", "SELF"), users.Get)
		userGroup.PUT("/:id", middleware.RBAC("ADMIN", "SELF"), users.Update)
		userGroup.DELETE("/:id", middleware.RequireRoles(admin...), users.Deactivate)
	}

	announcementGroup := protected.Group("/announcements")
	{
		announcementGroup.GET("", announcements.List)
		announcementGroup.POST("", middleware.RequireRoles(staff...), announcements.Create)
		announcementGroup.DELETE("/expired", middleware.RequireRoles(admin...), announcements.PurgeExpired)
		announcementGroup.GET("/:id", announcements.Get)
		announcementGroup.PUT("/:id", middleware.RequireRoles(staff...), announcements.Update)
		announcementGroup.DELETE("/:id", middleware.RequireRoles(staff...), announcements.Delete)
	}

	classGroup := protected.Group("/classes")
	{
		classGroup.GET("", classes.List)
		classGroup.GET("/:id", classes.Get)
		classGroup.POST("", middleware.RequireRoles(admin...), classes.Create)
		classGroup.PUT("/:id", middleware.RequireRoles(admin...), classes.Update)
		classGroup.DELETE("/:id", middleware.RequireRoles(admin...), classes.Delete)
	}

	subjectGroup := protected.Group("/subjects")
	{
		subjectGroup.GET("", classes.ListSubjects)
		subjectGroup.POST("", middleware.RequireRoles(admin...), classes.CreateSubject)
		subjectGroup.DELETE("/:id", middleware.RequireRoles(admin...), classes.DeleteSubject)
	}

	assignmentGroup := protected.Group("/assignments")
	{
		assignmentGroup.GET("", assignments.List)
		assignmentGroup.GET("/:id", assignments.Get)
		assignmentGroup.POST("", middleware.RequireRoles(staff...), assignments.Create)
		assignmentGroup.DELETE("/:id", middleware.RequireRoles(staff...), assignments.Delete)
		assignmentGroup.POST("/:id/submissions", middleware.RequireRoles(models.RoleStudent), assignments.Submit)
		assignmentGroup.GET("/:id/submissions", middleware.RequireRoles(staff...), assignments.ListSubmissions)
		assignmentGroup.POST("/:id/submissions/:studentId/grade", middleware.RequireRoles(staff...), assignments.Grade)
	}

	ticketGroup := protected.Group("/tickets")
	{
		ticketGroup.GET("", tickets.List)
		ticketGroup.GET("/:id", tickets.Get)
		ticketGroup.POST("", middleware.RequireRoles(models.RoleStudent), tickets.Create)
		ticketGroup.PUT("/:id/status", middleware.RequireRoles(staff...), tickets.UpdateStatus)
		ticketGroup.GET("/:id/replies", tickets.ListReplies)
		ticketGroup.POST("/:id/replies", tickets.Reply)
	}

	protected.GET("/conversations", messages.ListConversations)
	protected.GET("/conversations/:id/messages", messages.ListMessages)
	protected.POST("/messages", messages.Send)

	attendanceGroup := protected.Group("/attendance")
	{
		attendanceGroup.POST("", middleware.RequireRoles(staff...), attendance.Mark)
		attendanceGroup.GET("/:classId", middleware.RequireRoles(staff...), attendance.List)
		attendanceGroup.GET("/:classId/export/csv", middleware.RequireRoles(staff...), attendance.ExportCSV)
		attendanceGroup.GET("/:classId/export/pdf", middleware.RequireRoles(staff...), attendance.ExportPDF)
	}

	jobGroup := protected.Group("/jobs")
	{
		jobGroup.GET("", jobBoard.List)
		jobGroup.GET("/bookmarks", jobBoard.ListBookmarked)
		jobGroup.POST("/:id/bookmark", jobBoard.ToggleBookmark)
	}

	protected.POST("/attachments", attachments.Upload)
	api.GET("/attachments/download", attachments.Download)
}
