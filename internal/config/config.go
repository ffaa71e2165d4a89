package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

var ErrMissingSecret = errors.New("ACCESS_SECRET_KEY is required outside debug mode")

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Debug           bool
	LogLevel        string
	Secure          bool
	Environment     string // "development", "production", "test"
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Backend string // "postgres", "mongo", "memory"
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
	MaxConns       int
	MinConns       int
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

type AuthConfig struct {
	Secret string
	Issuer string
}

type RealtimeConfig struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	InboundRate    float64
	InboundBurst   int
	// TrustQueryUser accepts an unauthenticated ?userId= on the handshake.
	// Development only.
	TrustQueryUser bool
}

type RateLimitConfig struct {
	FriendRequests int
	Window         time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// loadDotenv is swapped in tests.
var loadDotenv = godotenv.Load

// Load reads configuration from the environment, after applying any .env
// file found at ENV_FILE (default ".env"). Values already present in the
// environment win over the file.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := loadDotenv(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 5000),
			Debug:           getEnvBool("DEBUG", false),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			Secure:          getEnvBool("SERVER_SECURE", false),
			Environment:     getEnv("APP_ENV", "development"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", BackendPostgres),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "lingopals"),
			Password:       getEnv("DB_PASSWORD", "lingopals"),
			DBName:         getEnv("DB_NAME", "lingopals"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
			MaxConns:       getEnvInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvInt("DB_MIN_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "lingopals"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 3),
		},
		Auth: AuthConfig{
			Secret: getEnv("ACCESS_SECRET_KEY", ""),
			Issuer: getEnv("TOKEN_ISSUER", "lingopals"),
		},
		Realtime: RealtimeConfig{
			SendBuffer:     getEnvInt("REALTIME_SEND_BUFFER", 16),
			WriteWait:      getEnvDuration("REALTIME_WRITE_WAIT", 10*time.Second),
			PongWait:       getEnvDuration("REALTIME_PONG_WAIT", 60*time.Second),
			PingPeriod:     getEnvDuration("REALTIME_PING_PERIOD", 54*time.Second),
			MaxMessageSize: int64(getEnvInt("REALTIME_MAX_MESSAGE_SIZE", 4096)),
			InboundRate:    getEnvFloat("REALTIME_INBOUND_RATE", 5),
			InboundBurst:   getEnvInt("REALTIME_INBOUND_BURST", 10),
			TrustQueryUser: getEnvBool("REALTIME_TRUST_QUERY_USER", false),
		},
		RateLimit: RateLimitConfig{
			FriendRequests: getEnvInt("RATE_LIMIT_FRIEND_REQUESTS", 30),
			Window:         getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Auth.Secret == "" && !c.Server.Debug {
		return ErrMissingSecret
	}
	if c.Realtime.PingPeriod >= c.Realtime.PongWait {
		return fmt.Errorf("REALTIME_PING_PERIOD (%s) must be shorter than REALTIME_PONG_WAIT (%s)",
			c.Realtime.PingPeriod, c.Realtime.PongWait)
	}
	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d), which must be positive",
			c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Realtime.SendBuffer < 1 {
		c.Realtime.SendBuffer = 1
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
