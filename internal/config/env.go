package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	AWS      AWSConfig      `mapstructure:"aws"`
	AI       AIConfig       `mapstructure:"ai"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	// AdminToken unlocks /api/admin; empty disables those routes.
	AdminToken     string   `mapstructure:"admin_token"`
}

type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	SslCertPath string `mapstructure:"ssl_cert_path"`
}

type AWSConfig struct {
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	Region         string        `mapstructure:"region"`
	BucketName     string        `mapstructure:"bucket_name"`
	PresignExpiry  time.Duration `mapstructure:"presign_expiry"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type AIConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	EmbedModel        string        `mapstructure:"embed_model"`
	EmbedDim          int           `mapstructure:"embed_dim"`
	GenModel          string        `mapstructure:"gen_model"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	// Truncation limits, in characters.
	AnalysisMaxChars  int `mapstructure:"analysis_max_chars"`
	EmbedMaxChars     int `mapstructure:"embed_max_chars"`
	RationaleMaxChars int `mapstructure:"rationale_max_chars"`
}

type RedisConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type QueueConfig struct {
	Backend     string        `mapstructure:"backend"` // memory | redis
	Workers     int           `mapstructure:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

type ScheduleConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	DailyCron string        `mapstructure:"daily_cron"`
	TopK      int           `mapstructure:"top_k"`
	Lookback  time.Duration `mapstructure:"lookback"`
}

type SourcesConfig struct {
	Enabled        []string      `mapstructure:"enabled"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LoadConfig reads .env, an optional config file and the environment.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("aws.region", "us-east-2")
	v.SetDefault("aws.bucket_name", "jobmatch-resumes")
	v.SetDefault("aws.presign_expiry", time.Hour)
	v.SetDefault("aws.max_upload_bytes", 10*1024*1024)
	v.SetDefault("ai.embed_model", "text-embedding-004")
	v.SetDefault("ai.embed_dim", 768)
	v.SetDefault("ai.gen_model", "gemini-1.5-flash")
	v.SetDefault("ai.requests_per_second", 5.0)
	v.SetDefault("ai.request_timeout", 60*time.Second)
	v.SetDefault("ai.analysis_max_chars", 8000)
	v.SetDefault("ai.embed_max_chars", 8191)
	v.SetDefault("ai.rationale_max_chars", 4000)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.queue", "jobmatch:tasks")
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.task_timeout", 15*time.Minute)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.daily_cron", "0 4 * * *")
	v.SetDefault("schedule.top_k", 1)
	v.SetDefault("schedule.lookback", 24*time.Hour)
	v.SetDefault("sources.enabled", []string{"remoteok", "arbeitnow"})
	v.SetDefault("sources.http_timeout", 30*time.Second)
	v.SetDefault("sources.requests_per_sec", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnv keeps the flat variable names used in deployment .env files.
func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.jwt_secret", "JWT_SECRET")
	v.BindEnv("server.admin_token", "ADMIN_TOKEN")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.ssl_cert_path", "SSL_CERT_PATH")
	v.BindEnv("aws.access_key", "AWS_ACCESS_KEY")
	v.BindEnv("aws.secret_key", "AWS_SECRET_KEY")
	v.BindEnv("aws.region", "AWS_REGION")
	v.BindEnv("aws.bucket_name", "BUCKET_NAME")
	v.BindEnv("ai.api_key", "GEMINI_API_KEY")
	v.BindEnv("ai.embed_model", "EMBED_MODEL")
	v.BindEnv("ai.embed_dim", "EMBED_DIM")
	v.BindEnv("ai.gen_model", "GEN_MODEL")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("queue.backend", "QUEUE_BACKEND")
	v.BindEnv("queue.workers", "QUEUE_WORKERS")
	v.BindEnv("schedule.daily_cron", "DAILY_CRON")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("log.file", "LOG_FILE")
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL not set for the redis queue backend")
		}
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	if c.Schedule.Enabled && c.Schedule.DailyCron == "" {
		return fmt.Errorf("schedule enabled without daily_cron")
	}
	if c.Schedule.TopK < 1 {
		return fmt.Errorf("schedule.top_k must be positive, got %d", c.Schedule.TopK)
	}
	if c.AI.EmbedDim < 1 {
		return fmt.Errorf("ai.embed_dim must be positive, got %d", c.AI.EmbedDim)
	}
	return nil
}
