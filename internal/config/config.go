package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/storage"
)

// Config holds configuration for the bot.
type Config struct {
	Env      string
	HTTPPort string

	Telegram    TelegramConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Provider    ProviderConfig
	Session     SessionConfig
	History     HistoryConfig
	RateLimit   RateLimitConfig
	Delivery    DeliveryConfig
	Prompts     PromptConfig
	TurnLog     TurnLogConfig
	LoggingSink LoggingSinkConfig

	// EncryptionKey protects stored API keys. At least 32 characters.
	EncryptionKey string

	// CatalogFile is an optional TOML file of catalog seeds
	CatalogFile string
	// CustomAPIConfigs are descriptors parsed from CUSTOM_API_CONFIGS
	CustomAPIConfigs []models.APIDescriptor
}

// TelegramConfig holds bot transport settings
type TelegramConfig struct {
	Token             string
	AdminIDs          []int64
	GroupID           int64 // 0 accepts every group
	MessagesPerSecond int
	Workers           int
	DropPending       bool
	Debug             bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	CatalogCacheTTL time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL          string
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	RequestTimeout time.Duration // Default timeout for provider requests
	OpenAIKey      string
	AnthropicKey   string
	GoogleKey      string
}

// SessionConfig holds session and context settings
type SessionConfig struct {
	ContextMaxMessages int
	ContextTTL         time.Duration
	RecentSessions     int
	HistoryLimit       int
}

// HistoryConfig selects synchronous or queued history persistence
type HistoryConfig struct {
	Async      bool
	QueueRedis bool
}

// RateLimitConfig holds per-minute turn limits. Zero disables a limit.
type RateLimitConfig struct {
	Global int
	User   int
	Window time.Duration
}

// DeliveryConfig holds outbound message settings
type DeliveryConfig struct {
	MaxRetries  int
	RetryDelay  time.Duration
	SendTimeout time.Duration
	DeleteDelay time.Duration
}

// PromptConfig holds system prompts
type PromptConfig struct {
	System string
	Admin  string
}

// TurnLogConfig enables the local JSON Lines turn log
type TurnLogConfig struct {
	FilePathTemplate string // empty disables the file sink
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

// LoggingSinkConfig holds configuration for the S3-based turn audit sink
type LoggingSinkConfig struct {
	Enabled       bool          // Whether to enable S3 logging
	BufferSize    int           // In-memory queue size
	FlushSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string        // S3 bucket name
	S3Region      string        // AWS region
	S3Prefix      string        // Prefix for S3 keys (e.g., "turns/")
	S3Endpoint    string        // Optional S3-compatible endpoint
	PodName       string        // Pod identifier for multi-pod deployments
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("900")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// parseIDList parses a comma separated list of chat ids
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadDotEnv reads .env outside production. A missing file is not an error.
func LoadDotEnv() error {
	if getEnvString("ENV", "development") == "production" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables, after an optional .env file.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if len(encryptionKey) < storage.MinSecretLength {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be at least %d characters", storage.MinSecretLength)
	}

	adminIDs, err := parseIDList(os.Getenv("TELEGRAM_ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_IDS: %w", err)
	}

	var groupID int64
	if raw := os.Getenv("TELEGRAM_GROUP_ID"); raw != "" {
		groupID, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_GROUP_ID: %w", err)
		}
	}

	descriptors, err := ParseCustomAPIConfigs(os.Getenv("CUSTOM_API_CONFIGS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:           getEnvString("ENV", "development"),
		HTTPPort:      getEnvString("HTTP_PORT", "8080"),
		EncryptionKey: encryptionKey,
		CatalogFile:   os.Getenv("CATALOG_FILE"),

		CustomAPIConfigs: descriptors,
		Telegram: TelegramConfig{
			Token:             token,
			AdminIDs:          adminIDs,
			GroupID:           groupID,
			MessagesPerSecond: getEnvInt("TELEGRAM_MESSAGES_PER_SECOND", 25),
			Workers:           getEnvInt("TELEGRAM_WORKERS", 8),
			DropPending:       getEnvBool("TELEGRAM_DROP_PENDING", false),
			Debug:             getEnvBool("TELEGRAM_DEBUG", false),
		},
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			CatalogCacheTTL: getEnvDuration("CACHE_CATALOG_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			GoogleKey:      os.Getenv("GOOGLE_API_KEY"),
		},
		Session: SessionConfig{
			ContextMaxMessages: getEnvInt("CONTEXT_MAX_MESSAGES", 20),
			ContextTTL:         getEnvDuration("CONTEXT_TTL", 900*time.Second),
			RecentSessions:     getEnvInt("HISTORY_RECENT_SESSIONS", 3),
			HistoryLimit:       getEnvInt("HISTORY_LIMIT", 10),
		},
		History: HistoryConfig{
			Async:      getEnvBool("HISTORY_ASYNC", false),
			QueueRedis: getEnvBool("HISTORY_QUEUE_REDIS", false),
		},
		RateLimit: RateLimitConfig{
			Global: getEnvInt("RATE_LIMIT_GLOBAL", 100),
			User:   getEnvInt("RATE_LIMIT_USER", 10),
			Window: getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		},
		Delivery: DeliveryConfig{
			MaxRetries:  getEnvInt("SEND_MAX_RETRIES", 3),
			RetryDelay:  getEnvDuration("SEND_RETRY_DELAY", 1*time.Second),
			SendTimeout: getEnvDuration("SEND_TIMEOUT", 30*time.Second),
			DeleteDelay: getEnvDuration("DELETE_DELAY", 60*time.Second),
		},
		Prompts: PromptConfig{
			System: os.Getenv("SYSTEM_PROMPT"),
			Admin:  os.Getenv("ADMIN_SYSTEM_PROMPT"),
		},
		TurnLog: TurnLogConfig{
			FilePathTemplate: os.Getenv("TURN_LOG_FILE"),
			MaxSize:          getEnvInt64("TURN_LOG_MAX_SIZE", 10_485_760), // default 10 MB
			MaxFiles:         getEnvInt("TURN_LOG_MAX_FILES", 5),
			BufferSize:       getEnvInt("TURN_LOG_BUFFER_SIZE", 100),
			FlushInterval:    getEnvDuration("TURN_LOG_FLUSH_INTERVAL", 60*time.Second),
		},
		LoggingSink: LoggingSinkConfig{
			Enabled:       getEnvBool("TURN_LOG_ENABLED", false),
			BufferSize:    getEnvInt("TURN_LOG_S3_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("TURN_LOG_S3_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("TURN_LOG_S3_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("TURN_LOG_S3_BUCKET", ""),
			S3Region:      getEnvString("TURN_LOG_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("TURN_LOG_S3_PREFIX", "turns/"),
			S3Endpoint:    getEnvString("TURN_LOG_S3_ENDPOINT", ""),
			PodName:       getEnvString("POD_NAME", "bot-0"),
		},
	}

	if cfg.LoggingSink.Enabled && cfg.LoggingSink.S3Bucket == "" {
		return nil, fmt.Errorf("TURN_LOG_S3_BUCKET is required when TURN_LOG_ENABLED is set")
	}

	return cfg, nil
}

// StorageDB converts the database settings for storage.NewDB
func (c *Config) StorageDB() storage.DBConfig {
	cfg := storage.DefaultDBConfig()
	cfg.DSN = c.Database.URL
	cfg.MaxOpenConns = c.Database.MaxOpenConns
	cfg.MaxIdleConns = c.Database.MaxIdleConns
	cfg.ConnMaxLifetime = c.Database.ConnMaxLifetime
	cfg.ConnMaxIdleTime = c.Database.ConnMaxIdleTime
	cfg.CatalogCacheTTL = c.Database.CatalogCacheTTL
	return cfg
}

// StorageRedis converts the Redis settings for storage.NewRedisClient
func (c *Config) StorageRedis() storage.RedisConfig {
	cfg := storage.DefaultRedisConfig()
	cfg.URL = c.Redis.URL
	cfg.Address = c.Redis.Address
	cfg.Password = c.Redis.Password
	cfg.DB = c.Redis.DB
	cfg.PoolSize = c.Redis.PoolSize
	cfg.MinIdleConns = c.Redis.MinIdleConns
	cfg.DialTimeout = c.Redis.DialTimeout
	cfg.ReadTimeout = c.Redis.ReadTimeout
	cfg.WriteTimeout = c.Redis.WriteTimeout
	return cfg
}

// ProviderKeys returns the process-wide keys by native provider tag
func (c *Config) ProviderKeys() map[string]string {
	return map[string]string{
		"openai":    c.Provider.OpenAIKey,
		"anthropic": c.Provider.AnthropicKey,
		"google":    c.Provider.GoogleKey,
	}
}
