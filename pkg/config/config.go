package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Token store backends.
const (
	TokenStoreFile     = "file"
	TokenStoreRedis    = "redis"
	TokenStorePostgres = "postgres"
)

type Config struct {
	Env      string
	Timezone string

	API      APIConfig
	Log      LogConfig
	Token    TokenConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Filters  FiltersConfig
	Ingest   IngestConfig
	Dispatch DispatchConfig
	Watch    WatchConfig
	Export   ExportConfig
}

// APIConfig points the console at the EcoTrack backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// TokenConfig selects where the session token survives between runs.
type TokenConfig struct {
	Store    string
	Key      string
	FilePath string
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// FiltersConfig holds indicator filter defaults.
type FiltersConfig struct {
	DefaultLimit int
}

// IngestConfig tunes the external data ingestion action.
type IngestConfig struct {
	ReloadDelay time.Duration
}

// DispatchConfig sizes the worker pool that runs shell actions.
type DispatchConfig struct {
	Workers int
}

// WatchConfig drives the periodic refresh mode.
type WatchConfig struct {
	Schedule    string
	MetricsAddr string
}

// ExportConfig sets where exported files land by default.
type ExportConfig struct {
	Dir string
}

// Location resolves the configured time zone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.API = APIConfig{
		BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("HTTP_TIMEOUT"), 10*time.Second),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Token = TokenConfig{
		Store:    strings.ToLower(v.GetString("TOKEN_STORE")),
		Key:      v.GetString("TOKEN_KEY"),
		FilePath: v.GetString("TOKEN_FILE"),
	}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	limit := v.GetInt("DEFAULT_LIMIT")
	if limit <= 0 {
		limit = 25
	}
	cfg.Filters = FiltersConfig{DefaultLimit: limit}

	cfg.Ingest = IngestConfig{
		ReloadDelay: parseDuration(v.GetString("INGEST_RELOAD_DELAY"), 2*time.Second),
	}

	workers := v.GetInt("DISPATCH_WORKERS")
	if workers <= 0 {
		workers = 2
	}
	cfg.Dispatch = DispatchConfig{Workers: workers}

	cfg.Watch = WatchConfig{
		Schedule:    v.GetString("WATCH_SCHEDULE"),
		MetricsAddr: v.GetString("METRICS_ADDR"),
	}

	cfg.Export = ExportConfig{Dir: v.GetString("EXPORT_DIR")}

	switch cfg.Token.Store {
	case TokenStoreFile, TokenStoreRedis, TokenStorePostgres:
	default:
		return nil, errors.New("TOKEN_STORE must be one of file, redis, postgres")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("TIMEZONE", "")

	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("HTTP_TIMEOUT", "10s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("TOKEN_STORE", TokenStoreFile)
	v.SetDefault("TOKEN_KEY", "ecotrack_token")
	v.SetDefault("TOKEN_FILE", "./.ecotrack/state.json")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "ecotrack:")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ecotrack_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 2)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)

	v.SetDefault("DEFAULT_LIMIT", 25)
	v.SetDefault("INGEST_RELOAD_DELAY", "2s")
	v.SetDefault("DISPATCH_WORKERS", 2)

	v.SetDefault("WATCH_SCHEDULE", "@every 1m")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("EXPORT_DIR", ".")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
