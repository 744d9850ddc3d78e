package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	RabbitMQ   RabbitMQConfig
	Dispatcher DispatcherConfig
	Worker     WorkerConfig
	Onspring   OnspringConfig
	ARRMS      ARRMSConfig
	Sync       SyncConfig
	LogLevel   string
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
}

// DispatcherConfig controls the retry re-dispatcher that republishes pending
// sync events whose next attempt is due.
type DispatcherConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	SyncExchange   string
	SyncRoutingKey string
}

// WorkerConfig controls the queue consumer that executes sync attempts.
type WorkerConfig struct {
	SyncQueue     string
	PrefetchCount int
	MaxAttempts   int
}

// OnspringConfig holds the Source platform connection settings plus the
// static field-id mappings for the questionnaire application.
type OnspringConfig struct {
	BaseURL      string
	APIKey       string
	APIKeySecret string // Secrets Manager secret name, used when APIKey is empty
	DefaultAppID int
	RecordURL    string // base URL for human-facing record links

	FieldMapping    models.FieldMapping
	StatusListValue map[string]string          // status literal -> list value GUID
	ReferenceFields map[int]models.RefTarget   // reference field id -> referenced app/display field
}

type ARRMSConfig struct {
	BaseURL       string
	APIKey        string
	APIKeySecret  string
	WebhookSecret string // shared secret for X-Webhook-Signature verification
}

type SyncConfig struct {
	ExternalSource   string
	PageSize         int
	WriteBackEnabled bool
	// BatchTimeBudget bounds a synchronous batch invocation; the orchestrator
	// stops starting new records when the remaining budget runs low.
	BatchTimeBudget time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present (local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	getDefault := func(key, def string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return def
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getDefault("SERVER_PORT", "8080"),
			Host: getDefault("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  getDefault("DB_SSLMODE", "disable"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Host:     get("RABBITMQ_HOST"),
			Port:     get("RABBITMQ_PORT"),
			User:     get("RABBITMQ_USER"),
			Password: get("RABBITMQ_PASSWORD"),
			VHost:    getDefault("RABBITMQ_VHOST", "/"),
		},
		Dispatcher: DispatcherConfig{
			SyncExchange:   getDefault("SYNC_EXCHANGE", ""),
			SyncRoutingKey: getDefault("SYNC_ROUTING_KEY", "sync.record"),
		},
		Worker: WorkerConfig{
			SyncQueue: getDefault("SYNC_QUEUE", "sync.record"),
		},
		Onspring: OnspringConfig{
			BaseURL:      getDefault("ONSPRING_API_URL", "https://api.onspring.com"),
			APIKey:       os.Getenv("ONSPRING_API_KEY"),
			APIKeySecret: os.Getenv("ONSPRING_API_KEY_SECRET"),
			RecordURL:    getDefault("ONSPRING_RECORD_URL", "https://app.onspring.com/record"),
		},
		ARRMS: ARRMSConfig{
			BaseURL:       get("ARRMS_API_URL"),
			APIKey:        os.Getenv("ARRMS_API_KEY"),
			APIKeySecret:  os.Getenv("ARRMS_API_KEY_SECRET"),
			WebhookSecret: os.Getenv("ARRMS_WEBHOOK_SECRET"),
		},
		Sync: SyncConfig{
			ExternalSource:   getDefault("SYNC_EXTERNAL_SOURCE", "onspring"),
			WriteBackEnabled: getDefault("WRITEBACK_ENABLED", "false") == "true",
		},
		LogLevel: getDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Onspring.DefaultAppID, err = intEnv("ONSPRING_DEFAULT_APP_ID", 0); err != nil {
		return nil, err
	}
	if cfg.Sync.PageSize, err = intEnv("SYNC_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.Worker.PrefetchCount, err = intEnv("SYNC_PREFETCH_COUNT", 1); err != nil {
		return nil, err
	}
	if cfg.Worker.MaxAttempts, err = intEnv("SYNC_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.Dispatcher.BatchSize, err = intEnv("DISPATCHER_BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.Dispatcher.PollInterval, err = durationEnv("DISPATCHER_POLL_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Sync.BatchTimeBudget, err = durationEnv("SYNC_BATCH_TIME_BUDGET", 14*time.Minute); err != nil {
		return nil, err
	}

	if cfg.Onspring.FieldMapping, err = fieldMappingEnv("ONSPRING_FIELD_MAPPING"); err != nil {
		return nil, err
	}
	if cfg.Onspring.StatusListValue, err = stringMapEnv("ONSPRING_STATUS_LIST_VALUES"); err != nil {
		return nil, err
	}
	if cfg.Onspring.ReferenceFields, err = referenceFieldsEnv("ONSPRING_REFERENCE_FIELDS"); err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// fieldMappingEnv parses a JSON object of semantic field name -> Onspring
// field id, e.g. {"Title": 101, "Total Assessment Questions": 14890}.
func fieldMappingEnv(key string) (models.FieldMapping, error) {
	val := os.Getenv(key)
	if val == "" {
		return models.FieldMapping{}, nil
	}
	var mapping models.FieldMapping
	if err := json.Unmarshal([]byte(val), &mapping); err != nil {
		return nil, fmt.Errorf("invalid %s JSON: %w", key, err)
	}
	return mapping, nil
}

func stringMapEnv(key string) (map[string]string, error) {
	val := os.Getenv(key)
	if val == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, fmt.Errorf("invalid %s JSON: %w", key, err)
	}
	return m, nil
}

// referenceFieldsEnv parses a JSON object keyed by reference field id, e.g.
// {"14947": {"app_id": 249, "field_id": 14949}}.
func referenceFieldsEnv(key string) (map[int]models.RefTarget, error) {
	val := os.Getenv(key)
	if val == "" {
		return map[int]models.RefTarget{}, nil
	}
	var raw map[string]models.RefTarget
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		return nil, fmt.Errorf("invalid %s JSON: %w", key, err)
	}
	refs := make(map[int]models.RefTarget, len(raw))
	for idStr, target := range raw {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field id %q: %w", key, idStr, err)
		}
		refs[id] = target
	}
	return refs, nil
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrateURL returns a postgres:// URL for golang-migrate
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, c.VHost)
}
