package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/anronharry/TG-bot/internal/models"
)

// DB wraps the database connection and provides health checks
type DB struct {
	conn *sqlx.DB

	// Cache for catalog entries, looked up on every chat turn
	catalogCache *LRUCache[int64, *models.CatalogModel]
}

// DBConfig holds database configuration
type DBConfig struct {
	// DSN is a postgres:// URL or key=value connection string
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Cache settings
	CatalogCacheSize int
	CatalogCacheTTL  time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN: "postgres://postgres@localhost:5432/tgbot?sslmode=disable",

		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		CatalogCacheSize: 256,
		CatalogCacheTTL:  5 * time.Minute,
	}
}

// NewDB creates a new database connection with caching
func NewDB(cfg DBConfig) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return newDB(conn, cfg), nil
}

func newDB(conn *sqlx.DB, cfg DBConfig) *DB {
	size := cfg.CatalogCacheSize
	if size <= 0 {
		size = 256
	}
	ttl := cfg.CatalogCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DB{
		conn:         conn,
		catalogCache: NewLRUCache[int64, *models.CatalogModel](size, ttl),
	}
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.catalogCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// DBStats reports pool and cache statistics
type DBStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration

	CatalogCacheStats CacheStats
}

// GetStats returns current database and cache statistics
func (db *DB) GetStats() DBStats {
	stats := db.conn.Stats()

	return DBStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,

		CatalogCacheStats: db.catalogCache.GetStats(),
	}
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, opts)
}

// Conn returns the underlying sqlx connection
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// CleanupExpiredCacheEntries removes expired catalog cache entries.
// Called periodically by the bot binary.
func (db *DB) CleanupExpiredCacheEntries() int {
	return db.catalogCache.CleanupExpired()
}

// Repository factory methods

// NewUserRepository creates a new user repository
func (db *DB) NewUserRepository() *UserRepository {
	return NewUserRepository(db)
}

// NewCatalogRepository creates a new catalog repository
func (db *DB) NewCatalogRepository() *CatalogRepository {
	return NewCatalogRepository(db)
}

// NewCredentialRepository creates a new user credential repository
func (db *DB) NewCredentialRepository() *CredentialRepository {
	return NewCredentialRepository(db)
}

// NewCustomModelRepository creates a new personal model repository
func (db *DB) NewCustomModelRepository() *CustomModelRepository {
	return NewCustomModelRepository(db)
}

// NewHistoryRepository creates a new chat history repository
func (db *DB) NewHistoryRepository() *HistoryRepository {
	return NewHistoryRepository(db)
}
