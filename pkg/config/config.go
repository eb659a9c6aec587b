package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Workflow    WorkflowConfig
	Duplicates  DuplicatesConfig
	Retention   RetentionConfig
	Aggregation AggregationConfig
	Deletion    DeletionConfig
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig tunes the state machine engine.
type WorkflowConfig struct {
	MaxRetries int
}

// DuplicatesConfig carries comparator weights and the flagging threshold.
type DuplicatesConfig struct {
	TitleWeight     float64
	EquipmentWeight float64
	LocationWeight  float64
	Threshold       float64
}

// RetentionConfig governs the archival sweep.
type RetentionConfig struct {
	Days           int
	BatchSize      int
	RetentionYears int
	SweepInterval  time.Duration
	Enabled        bool
}

// AggregationConfig governs the daily metrics rollup job.
type AggregationConfig struct {
	Interval time.Duration
	CacheTTL time.Duration
	Enabled  bool
}

// DeletionConfig toggles the deletion request worker.
type DeletionConfig struct {
	Enabled      bool
	PollInterval time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		MaxRetries: v.GetInt("WORKFLOW_MAX_RETRIES"),
	}

	cfg.Duplicates = DuplicatesConfig{
		TitleWeight:     v.GetFloat64("DUPLICATE_TITLE_WEIGHT"),
		EquipmentWeight: v.GetFloat64("DUPLICATE_EQUIPMENT_WEIGHT"),
		LocationWeight:  v.GetFloat64("DUPLICATE_LOCATION_WEIGHT"),
		Threshold:       v.GetFloat64("DUPLICATE_THRESHOLD"),
	}

	cfg.Retention = RetentionConfig{
		Days:           v.GetInt("RETENTION_DAYS"),
		BatchSize:      v.GetInt("RETENTION_BATCH_SIZE"),
		RetentionYears: v.GetInt("RETENTION_ARCHIVE_YEARS"),
		SweepInterval:  parseDuration(v.GetString("RETENTION_SWEEP_INTERVAL"), 24*time.Hour),
		Enabled:        v.GetBool("ENABLE_RETENTION_SWEEP"),
	}

	cfg.Aggregation = AggregationConfig{
		Interval: parseDuration(v.GetString("AGGREGATION_INTERVAL"), time.Hour),
		CacheTTL: parseDuration(v.GetString("METRICS_CACHE_TTL"), 5*time.Minute),
		Enabled:  v.GetBool("ENABLE_AGGREGATION"),
	}

	cfg.Deletion = DeletionConfig{
		Enabled:      v.GetBool("ENABLE_DELETION_WORKER"),
		PollInterval: parseDuration(v.GetString("DELETION_POLL_INTERVAL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clm_core")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WORKFLOW_MAX_RETRIES", 3)

	v.SetDefault("DUPLICATE_TITLE_WEIGHT", 0.5)
	v.SetDefault("DUPLICATE_EQUIPMENT_WEIGHT", 0.3)
	v.SetDefault("DUPLICATE_LOCATION_WEIGHT", 0.2)
	v.SetDefault("DUPLICATE_THRESHOLD", 0.8)

	v.SetDefault("RETENTION_DAYS", 365)
	v.SetDefault("RETENTION_BATCH_SIZE", 100)
	v.SetDefault("RETENTION_ARCHIVE_YEARS", 7)
	v.SetDefault("RETENTION_SWEEP_INTERVAL", "24h")
	v.SetDefault("ENABLE_RETENTION_SWEEP", false)

	v.SetDefault("AGGREGATION_INTERVAL", "1h")
	v.SetDefault("METRICS_CACHE_TTL", "5m")
	v.SetDefault("ENABLE_AGGREGATION", false)

	v.SetDefault("ENABLE_DELETION_WORKER", false)
	v.SetDefault("DELETION_POLL_INTERVAL", "1m")
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
