package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/internal/adapter/repository"
	"github.com/chronicae/chronicler/internal/infrastructure/cache"
	"github.com/chronicae/chronicler/internal/infrastructure/database"
	"github.com/chronicae/chronicler/internal/infrastructure/media"
	"github.com/chronicae/chronicler/internal/infrastructure/queue"
	"github.com/chronicae/chronicler/internal/infrastructure/storage"
	"github.com/chronicae/chronicler/internal/usecase/pipeline"
	"github.com/chronicae/chronicler/internal/usecase/transcribe"
	pkgai "github.com/chronicae/chronicler/pkg/ai"
	"github.com/chronicae/chronicler/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("🔧 Initializing worker dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

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

	// Initialize queues
	log.Println("📬 Initializing job queues...")
	transcribeQueue := queue.New(redisClient, queue.TranscribeQueue, cfg.Pipeline.MaxAttempts, cfg.Pipeline.RetryBackoffBase)
	correctQueue := queue.New(redisClient, queue.CorrectQueue, cfg.Pipeline.MaxAttempts, cfg.Pipeline.RetryBackoffBase)

	contextStore := cache.NewContextStore(redisClient)

	// Initialize transcription engines
	log.Println("🗣️  Initializing transcription engines...")
	ffmpeg := media.NewRunner("")
	local := transcribe.NewLocalEngine(&cfg.Transcription, ffmpeg, logger)

	var remote transcribe.RemoteClient
	if client := pkgai.NewRemoteWhisperClient(&cfg.Transcription); client != nil {
		log.Printf("🌐 Remote whisper engine configured: %s", cfg.Transcription.RemoteURL)
		remote = client
	} else {
		log.Println("💻 No remote whisper engine, clips transcribe locally")
	}
	engine := transcribe.NewCascadeEngine(remote, local, logger)

	// Initialize the AI corrector
	var corrector pipeline.Corrector
	if c := pkgai.NewCorrector(&cfg.Correction); c != nil {
		log.Printf("🤖 AI correction enabled: %s", cfg.Correction.Model)
		corrector = c
	} else {
		log.Println("📝 AI correction disabled, transcripts keep raw text")
	}

	// Initialize the pipeline orchestrator
	log.Println("🎙️  Initializing pipeline service...")
	pipelineService := pipeline.NewService(
		clipRepo,
		blobs,
		engine,
		corrector,
		contextStore,
		correctQueue,
		&cfg.Pipeline,
		cfg.Transcription.SignedURLTTL,
		logger,
	)

	// One slot for whisper keeps CPU transcription serialized; correction is
	// just HTTP calls and can run wider.
	transcribeWorker := queue.NewWorker(redisClient, transcribeQueue, pipelineService.HandleTranscribeJob, cfg.Pipeline.TranscribeConcurrency, logger)
	transcribeWorker.OnExhausted(pipelineService.OnTranscribeExhausted)

	correctWorker := queue.NewWorker(redisClient, correctQueue, pipelineService.HandleCorrectJob, cfg.Pipeline.CorrectConcurrency, logger)
	correctWorker.OnExhausted(pipelineService.OnCorrectExhausted)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("🚀 Worker started: %d transcribe slot(s), %d correct slot(s)",
		cfg.Pipeline.TranscribeConcurrency, cfg.Pipeline.CorrectConcurrency)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		transcribeWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		correctWorker.Run(ctx)
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down worker...")
	wg.Wait()

	log.Println("✅ Worker stopped gracefully")
}
