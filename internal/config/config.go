package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config carries every operational tuning knob for the ingestion service.
// Defaults are documented here; nothing reads the environment after Load,
// so a run's behavior is fully determined by the struct it was given.
type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"localhost"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docingest"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docingest"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQDHost   string `envconfig:"NSQD_HOST" default:"localhost:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"localhost:4151"`
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"localhost:4161"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	EmbedModel   string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`

	ParserURL string `envconfig:"PARSER_URL" default:"http://localhost:8000"`

	// Pipeline shape
	EmbedBatchSize   int `envconfig:"EMBED_BATCH_SIZE" default:"16"`
	StoreBatchSize   int `envconfig:"STORE_BATCH_SIZE" default:"64"`
	WindowWidth      int `envconfig:"WINDOW_WIDTH" default:"4"`
	EmbedConcurrency int `envconfig:"EMBED_CONCURRENCY" default:"4"`
	StoreConcurrency int `envconfig:"STORE_CONCURRENCY" default:"2"`

	// Retry shape, shared by all activity kinds
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"5"`
	RetryInitialWait time.Duration `envconfig:"RETRY_INITIAL_WAIT" default:"5s"`
	RetryMaxWait     time.Duration `envconfig:"RETRY_MAX_WAIT" default:"60s"`

	// Per-activity timeouts
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`
	ParseTimeout time.Duration `envconfig:"PARSE_TIMEOUT" default:"60s"`
	EmbedTimeout time.Duration `envconfig:"EMBED_TIMEOUT" default:"120s"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"60s"`

	AllowedFileTypes []string `envconfig:"ALLOWED_FILE_TYPES" default:"pdf,md,html,docx"`
	MaxDocumentMB    int64    `envconfig:"MAX_DOCUMENT_MB" default:"50"`

	ChunkMaxTokens int `envconfig:"CHUNK_MAX_TOKENS" default:"400"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	WorkerMaxInFlight  int `envconfig:"WORKER_MAX_IN_FLIGHT" default:"4"`
	WorkerTaskAttempts int `envconfig:"WORKER_TASK_ATTEMPTS" default:"3"`
	BootstrapAttempts  int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapDelaySecs int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also come from the shell, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("%w: EMBED_BATCH_SIZE must be positive", ErrInvalidConfig)
	}
	if c.StoreBatchSize < 1 {
		return fmt.Errorf("%w: STORE_BATCH_SIZE must be positive", ErrInvalidConfig)
	}
	if c.WindowWidth < 1 {
		return fmt.Errorf("%w: WINDOW_WIDTH must be positive", ErrInvalidConfig)
	}
	if c.EmbedConcurrency < 1 {
		return fmt.Errorf("%w: EMBED_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	if c.StoreConcurrency < 1 {
		return fmt.Errorf("%w: STORE_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%w: RETRY_MAX_ATTEMPTS must be positive", ErrInvalidConfig)
	}
	if len(c.AllowedFileTypes) == 0 {
		return fmt.Errorf("%w: ALLOWED_FILE_TYPES must not be empty", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
