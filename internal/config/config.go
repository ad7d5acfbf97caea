package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

// Provider names accepted by PROVIDER.
const (
	ProviderRemoteA      = "remote-a"
	ProviderRemoteB      = "remote-b"
	ProviderLocalService = "local-service"
)

// Vector backends accepted by VECTOR_BACKEND.
const (
	VectorBackendFile     = "file"
	VectorBackendWeaviate = "weaviate"
)

// Job stores accepted by JOB_STORE.
const (
	JobStoreMemory   = "memory"
	JobStorePostgres = "postgres"
)

type Config struct {
	// Provider selection
	Provider string `envconfig:"PROVIDER" default:"local-service"`

	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIEmbedModel string `envconfig:"OPENAI_EMBED_MODEL" default:"text-embedding-3-small"`
	OpenAIChatModel  string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`

	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	GeminiEmbedModel string `envconfig:"GEMINI_EMBED_MODEL" default:"gemini-embedding-001"`
	GeminiChatModel  string `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-1.5-flash"`

	LocalServiceURL string `envconfig:"LOCAL_SERVICE_URL" default:"http://localhost:8000"`
	LocalEmbedModel string `envconfig:"LOCAL_EMBED_MODEL" default:"sentence-transformers/all-MiniLM-L6-v2"`
	LocalChatModel  string `envconfig:"LOCAL_CHAT_MODEL" default:"TinyLlama/TinyLlama-1.1B-Chat-v1.0"`

	EmbedBatchSize         int     `envconfig:"EMBED_BATCH_SIZE" default:"32"`
	ProviderTimeoutSeconds int     `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"120"`
	ProviderRateLimitRPS   float64 `envconfig:"PROVIDER_RATE_LIMIT_RPS" default:"0"`

	// Pipeline
	ChunkSize        int     `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap     int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	IndexDir         string  `envconfig:"INDEX_DIR" default:"data/index"`
	RawLogDir        string  `envconfig:"RAW_LOG_DIR" default:"data/rag_raw"`
	ProgressFile     string  `envconfig:"PROGRESS_FILE" default:"data/progress.json"`
	OutputDir        string  `envconfig:"OUTPUT_DIR" default:"data/drafts"`
	SectionsFile     string  `envconfig:"SECTIONS_FILE"`
	MaxContextChars  int     `envconfig:"MAX_CONTEXT_CHARS" default:"15000"`
	DraftTopK        int     `envconfig:"DRAFT_TOP_K" default:"8"`
	QATopK           int     `envconfig:"QA_TOP_K" default:"6"`
	DraftTemperature float32 `envconfig:"DRAFT_TEMPERATURE" default:"0.2"`
	SummarizeSheets  bool    `envconfig:"SUMMARIZE_SHEETS" default:"false"`
	StopOnError      bool    `envconfig:"DRAFT_STOP_ON_ERROR" default:"false"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// Vector index
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"file"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Async ingestion
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"false"`
	NSQLookupd         string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost           string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP           string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	IngestMaxAttempts  uint16 `envconfig:"INGEST_MAX_ATTEMPTS" default:"5"`

	// Failed job ledger
	JobStore      string `envconfig:"JOB_STORE" default:"memory"`
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"prospectus"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"prospectus"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; a missing .env is fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "..", ".env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerations and numeric bounds. Missing provider
// credentials are not an error here; the provider reports them when called.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderRemoteA, ProviderRemoteB, ProviderLocalService:
	case "":
		return fmt.Errorf("%w: PROVIDER", ErrMissingRequired)
	default:
		return fmt.Errorf("%w: PROVIDER %q", ErrInvalid, c.Provider)
	}

	if c.Provider == ProviderLocalService && c.LocalServiceURL == "" {
		return fmt.Errorf("%w: LOCAL_SERVICE_URL", ErrMissingRequired)
	}
	if c.IndexDir == "" {
		return fmt.Errorf("%w: INDEX_DIR", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalid)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalid)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: EMBED_BATCH_SIZE must be positive", ErrInvalid)
	}

	switch c.VectorBackend {
	case VectorBackendFile, VectorBackendWeaviate:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND %q", ErrInvalid, c.VectorBackend)
	}

	switch c.JobStore {
	case JobStoreMemory:
	case JobStorePostgres:
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: JOB_STORE %q", ErrInvalid, c.JobStore)
	}

	return nil
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) BootstrapRetryDelay() time.Duration {
	return time.Duration(c.BootstrapRetryDelaySeconds) * time.Second
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
