package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/chronicae/chronicler/pkg/validator"

	"github.com/chronicae/chronicler/internal/adapter/handler"
	"github.com/chronicae/chronicler/internal/adapter/repository"
	"github.com/chronicae/chronicler/internal/domain/entities"
	"github.com/chronicae/chronicler/internal/infrastructure/cache"
	"github.com/chronicae/chronicler/internal/infrastructure/database"
	"github.com/chronicae/chronicler/internal/infrastructure/media"
	"github.com/chronicae/chronicler/internal/infrastructure/queue"
	"github.com/chronicae/chronicler/internal/infrastructure/storage"
	"github.com/chronicae/chronicler/internal/usecase/mixer"
	"github.com/chronicae/chronicler/internal/usecase/session"
	pkgai "github.com/chronicae/chronicler/pkg/ai"
	"github.com/chronicae/chronicler/pkg/config"
	"github.com/chronicae/chronicler/pkg/jwt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run migrations only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running migrations (development only) ...")
		applied, err := database.Migrate(db)
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Printf("✅ Applied %d migration(s)", applied)
	} else {
		log.Println("🔄 Skipping migrations; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize Redis
	log.Println("📦 Connecting to Redis...")
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize blob storage
	log.Println("🗄️  Connecting to blob storage...")
	blobs, err := storage.NewBlobStore(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to blob storage: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	clipRepo := repository.NewClipRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Initialize queues and the recording gate. Only transcription is gated:
	// correction is cheap remote HTTP and keeps draining earlier sessions
	// while a new one records.
	log.Println("📬 Initializing job queues...")
	transcribeQueue := queue.New(redisClient, queue.TranscribeQueue, cfg.Pipeline.MaxAttempts, cfg.Pipeline.RetryBackoffBase)
	correctQueue := queue.New(redisClient, queue.CorrectQueue, cfg.Pipeline.MaxAttempts, cfg.Pipeline.RetryBackoffBase)

	gate := queue.NewRecordingGate(redisClient, logger, transcribeQueue)
	liveSessions, err := sessionRepo.CountByStatus(context.Background(), entities.SessionStatusRecording)
	if err != nil {
		log.Fatalf("Failed to count live recording sessions: %v", err)
	}
	if err := gate.ResetOnBoot(context.Background(), liveSessions); err != nil {
		log.Fatalf("Failed to reset recording gate: %v", err)
	}

	contextStore := cache.NewContextStore(redisClient)

	// Initialize the session mixer
	log.Println("🎚️  Initializing session mixer...")
	ffmpeg := media.NewRunner("")
	mixerService := mixer.NewService(clipRepo, sessionRepo, blobs, ffmpeg, &cfg.Mixer, cfg.Pipeline.RecordingsDir, cfg.Pipeline.MinClipBytes, logger)

	// The remote whisper client doubles as the unloader that frees GPU
	// memory once a session drains. nil when no remote engine is configured.
	var unloader session.Unloader
	if remote := pkgai.NewRemoteWhisperClient(&cfg.Transcription); remote != nil {
		log.Printf("🌐 Remote whisper engine configured: %s", cfg.Transcription.RemoteURL)
		unloader = remote
	} else {
		log.Println("💻 No remote whisper engine, clips transcribe locally")
	}

	// Initialize session service
	log.Println("🎙️  Initializing session service...")
	sessionService := session.NewService(
		sessionRepo,
		clipRepo,
		contextStore,
		gate,
		transcribeQueue,
		[]session.JobQueue{transcribeQueue, correctQueue},
		mixerService,
		unloader,
		&cfg.Pipeline,
		logger,
	)

	// Initialize JWT manager for operator tokens
	log.Println("🔑 Initializing JWT manager...")
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	sessionsHandler := handler.NewSessions(sessionService, blobs, cfg.Transcription.SignedURLTTL, logger)
	clipsHandler := handler.NewClips(sessionService, cfg.Pipeline.RecordingsDir, logger)

	router := handler.NewRouter(cfg, sessionsHandler, clipsHandler, tokens)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
