// Package main runs the live session coordination server with WebSocket
// rooms and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coursehive/live-backend/config"
	"github.com/coursehive/live-backend/internal/analytics"
	"github.com/coursehive/live-backend/internal/attendance"
	"github.com/coursehive/live-backend/internal/auth"
	"github.com/coursehive/live-backend/internal/chat"
	"github.com/coursehive/live-backend/internal/enrollment"
	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/internal/polls"
	"github.com/coursehive/live-backend/internal/presence"
	"github.com/coursehive/live-backend/internal/questions"
	"github.com/coursehive/live-backend/internal/realtime"
	"github.com/coursehive/live-backend/internal/recordings"
	"github.com/coursehive/live-backend/internal/sessions"
	"github.com/coursehive/live-backend/internal/signaling"
	"github.com/coursehive/live-backend/internal/worker"
	"github.com/coursehive/live-backend/pkg/database"
	"github.com/coursehive/live-backend/pkg/queue"
	"github.com/coursehive/live-backend/pkg/redis"
	"github.com/coursehive/live-backend/pkg/response"
	"github.com/coursehive/live-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)

	// Repositories
	enrollmentRepo := enrollment.NewRepository(pool)
	sessionRepo := sessions.NewRepository(pool)
	participantRepo := presence.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)
	chatRepo := chat.NewRepository(pool)
	questionRepo := questions.NewRepository(pool)
	pollRepo := polls.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	statsRepo := analytics.NewRepository(pool)

	// Presence and lifecycle
	tracker := presence.NewTracker(sessionRepo, participantRepo, enrollmentRepo, hub, logger)
	tracker.SetDisconnector(hub)
	attendanceProcessor := attendance.NewProcessor(sessionRepo, participantRepo, attendanceRepo, logger)
	lifecycle := sessions.NewLifecycle(sessionRepo, enrollmentRepo, tracker, attendanceProcessor, hub, logger)

	// Interaction services
	chatService := chat.NewService(sessionRepo, chatRepo, tracker, participantRepo, hub, logger)
	questionService := questions.NewService(sessionRepo, questionRepo, tracker, participantRepo, hub, logger)
	pollService := polls.NewService(sessionRepo, pollRepo, tracker, participantRepo, hub, logger)
	relay := signaling.NewRelay(hub, tracker, logger)

	// Recording pipeline
	jobQueue := queue.NewQueue(rdb.Client, logger)
	recordingService := recordings.NewService(recordingRepo, logger)
	recordingProcessor := worker.NewRecordingProcessor(recordingRepo, s3Client, jobQueue, logger)

	// Handlers
	sessionHandler := sessions.NewHandler(lifecycle, sessionRepo)
	presenceHandler := presence.NewHandler(tracker)
	chatHandler := chat.NewHandler(chatService)
	questionHandler := questions.NewHandler(questionService)
	pollHandler := polls.NewHandler(pollService, sessionRepo)
	attendanceHandler := attendance.NewHandler(attendanceRepo, sessionRepo)
	recordingHandler := recordings.NewHandler(recordingRepo, recordingService, sessionRepo, enrollmentRepo, s3Client, jobQueue, logger)
	recordingWebhook := recordings.NewWebhookHandler(recordingRepo, sessionRepo, jobQueue, logger)
	analyticsHandler := analytics.NewHandler(analytics.NewAggregator(sessionRepo, statsRepo), sessionRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Session lifecycle
		api.POST("/sessions", middleware.RequireRole("instructor"), sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.GetByID)
		api.POST("/sessions/:id/start", sessionHandler.Start)
		api.POST("/sessions/:id/end", sessionHandler.End)
		api.POST("/sessions/:id/cancel", sessionHandler.Cancel)

		// Participants
		api.GET("/sessions/:id/participants", presenceHandler.List)
		api.POST("/sessions/:id/participants/:userId/ban", presenceHandler.Ban)
		api.PATCH("/sessions/:id/participants/:userId/permissions", presenceHandler.SetPermissions)

		// Chat
		api.POST("/sessions/:id/messages", chatHandler.Send)
		api.GET("/sessions/:id/messages", chatHandler.History)
		api.GET("/sessions/:id/messages/pinned", chatHandler.Pinned)
		api.PATCH("/sessions/:id/messages/:messageId", chatHandler.Edit)
		api.DELETE("/sessions/:id/messages/:messageId", chatHandler.Delete)
		api.POST("/sessions/:id/messages/:messageId/pin", chatHandler.Pin)
		api.POST("/sessions/:id/messages/:messageId/unpin", chatHandler.Unpin)
		api.POST("/sessions/:id/messages/:messageId/like", chatHandler.Like)

		// Q&A
		api.POST("/sessions/:id/questions", questionHandler.Ask)
		api.GET("/sessions/:id/questions", questionHandler.List)
		api.POST("/sessions/:id/questions/:questionId/answer", questionHandler.Answer)
		api.POST("/sessions/:id/questions/:questionId/dismiss", questionHandler.Dismiss)
		api.POST("/sessions/:id/questions/:questionId/upvote", questionHandler.Upvote)

		// Polls
		api.POST("/sessions/:id/polls", middleware.RequireRole("instructor"), pollHandler.Create)
		api.GET("/sessions/:id/polls", pollHandler.List)
		api.POST("/sessions/:id/polls/:pollId/start", pollHandler.Start)
		api.POST("/sessions/:id/polls/:pollId/close", pollHandler.Close)
		api.POST("/sessions/:id/polls/:pollId/vote", pollHandler.Vote)
		api.GET("/sessions/:id/polls/:pollId/results", pollHandler.Results)

		// Attendance
		api.GET("/sessions/:id/attendance", attendanceHandler.List)
		api.GET("/sessions/:id/attendance/me", attendanceHandler.Mine)
		api.POST("/sessions/:id/attendance/:recordId/verify", attendanceHandler.Verify)

		// Recordings
		api.POST("/sessions/:id/recordings", recordingHandler.Register)
		api.GET("/sessions/:id/recordings", recordingHandler.List)
		api.GET("/recordings/:recordingId/download-url", recordingHandler.DownloadURL)
		api.POST("/recordings/:recordingId/view", recordingHandler.TrackView)
		api.GET("/recordings/:recordingId/views", recordingHandler.Views)

		// Analytics
		api.GET("/sessions/:id/analytics", analyticsHandler.Summary)

		// ICE servers for client-side WebRTC setup
		api.GET("/signaling/ice-servers", func(c *gin.Context) {
			response.OK(c, gin.H{"ice_servers": cfg.Signaling.ICEUrls})
		})
	}

	// Webhooks (no JWT; provider callbacks)
	router.POST("/webhooks/recording-ready", recordingWebhook.RecordingReady)

	// WebSocket (token in query; browsers cannot set headers on ws dials)
	router.GET("/ws", realtime.ServeWs(hub, realtime.Services{
		Presence:  tracker,
		Chat:      chatService,
		Questions: questionService,
		Polls:     pollService,
		Signaling: relay,
	}, jwtService, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process recording worker; the standalone cmd/worker binary covers
	// deployments that scale processing separately.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go recordingProcessor.Run(workerCtx)
		logger.Info("recording worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
