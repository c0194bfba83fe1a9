package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Transcription TranscriptionConfig
	Correction    CorrectionConfig
	Pipeline      PipelineConfig
	Mixer         MixerConfig
	JWT           JWTConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	PublicURL       string
}

// TranscriptionConfig holds remote and local transcription engine settings
type TranscriptionConfig struct {
	RemoteURL     string        // base URL of the remote whisper server, empty = local only
	RemoteTimeout time.Duration // remote jobs can sit in a shared GPU queue for a long time
	SignedURLTTL  time.Duration
	WhisperBin    string
	WhisperModel  string
	Language      string
	Threads       int
}

// CorrectionConfig holds AI text-correction settings
type CorrectionConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
	Model   string
}

// PipelineConfig holds queue and worker tuning
type PipelineConfig struct {
	RecordingsDir          string
	MinClipBytes           int64
	TranscribeConcurrency  int
	CorrectConcurrency     int
	MaxAttempts            int
	RetryBackoffBase       time.Duration
	CompletionPollInterval time.Duration
	CompletionMaxWait      time.Duration
}

// MixerConfig holds session mixer tuning
type MixerConfig struct {
	TempDir       string
	OutputDir     string
	BatchSize     int
	MasterBitrate string
}

// JWTConfig holds operator API token configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGINS", "http://localhost:3000")},
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Name:        getEnv("DB_NAME", "chronicler"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "chronicler"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
			PublicURL:       getEnv("STORAGE_PUBLIC_URL", ""),
		},
		Transcription: TranscriptionConfig{
			RemoteURL:     getEnv("REMOTE_WHISPER_URL", ""),
			RemoteTimeout: getEnvAsDuration("REMOTE_WHISPER_TIMEOUT", "45m"),
			SignedURLTTL:  getEnvAsDuration("SIGNED_URL_TTL", "1h"),
			WhisperBin:    getEnv("WHISPER_BIN", "/usr/local/bin/whisper-cli"),
			WhisperModel:  getEnv("WHISPER_MODEL", "/models/ggml-medium.bin"),
			Language:      getEnv("WHISPER_LANGUAGE", "it"),
			Threads:       getEnvAsInt("WHISPER_THREADS", 3),
		},
		Correction: CorrectionConfig{
			Enabled: getEnvAsBool("CORRECTION_ENABLED", true),
			APIKey:  getEnv("CORRECTION_API_KEY", ""),
			BaseURL: getEnv("CORRECTION_API_URL", "https://api.groq.com"),
			Model:   getEnv("CORRECTION_MODEL", "llama-3.1-70b-versatile"),
		},
		Pipeline: PipelineConfig{
			RecordingsDir:          getEnv("RECORDINGS_DIR", "recordings"),
			MinClipBytes:           int64(getEnvAsInt("MIN_CLIP_BYTES", 5000)),
			TranscribeConcurrency:  getEnvAsInt("TRANSCRIBE_CONCURRENCY", 1),
			CorrectConcurrency:     getEnvAsInt("CORRECT_CONCURRENCY", 2),
			MaxAttempts:            getEnvAsInt("JOB_MAX_ATTEMPTS", 3),
			RetryBackoffBase:       getEnvAsDuration("JOB_BACKOFF_BASE", "2s"),
			CompletionPollInterval: getEnvAsDuration("COMPLETION_POLL_INTERVAL", "10s"),
			CompletionMaxWait:      getEnvAsDuration("COMPLETION_MAX_WAIT", "24h"),
		},
		Mixer: MixerConfig{
			TempDir:       getEnv("MIXER_TEMP_DIR", "temp_mix"),
			OutputDir:     getEnv("MIXER_OUTPUT_DIR", "mixed_sessions"),
			BatchSize:     getEnvAsInt("MIXER_BATCH_SIZE", 10),
			MasterBitrate: getEnv("MIXER_MASTER_BITRATE", "192k"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", "168h"),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Correction.Enabled && c.Correction.APIKey == "" {
		return fmt.Errorf("CORRECTION_API_KEY is required when correction is enabled")
	}
	if c.Pipeline.TranscribeConcurrency < 1 {
		return fmt.Errorf("TRANSCRIBE_CONCURRENCY must be at least 1")
	}
	if c.Mixer.BatchSize < 2 {
		return fmt.Errorf("MIXER_BATCH_SIZE must be at least 2")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
