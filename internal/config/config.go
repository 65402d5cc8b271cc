package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Tracing     TracingConfig `mapstructure:"tracing"`
	Judge0      Judge0Config
	Redis       RedisConfig
	Queue       QueueConfig       `mapstructure:"queue"`
	Google      GoogleConfig      `mapstructure:"google"`
	Certificate CertificateConfig `mapstructure:"certificate"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"`
	MigrateOnly  bool   `mapstructure:"-"`
	SeedFile     string `mapstructure:"-"`
}

type ServerConfig struct {
	Port     string
	Mode     string
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	LogSQL    bool   `mapstructure:"log_sql"`
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	AccessExpire  time.Duration `mapstructure:"access_expire_minutes"`
	RefreshExpire time.Duration `mapstructure:"refresh_expire_hours"`
}

type StorageConfig struct {
	Type                string `mapstructure:"type"`
	LocalPath           string `mapstructure:"local_path"`
	MinioEndpoint       string `mapstructure:"minio_endpoint"`
	MinioAccessID       string `mapstructure:"minio_access_key"`
	MinioSecret         string `mapstructure:"minio_secret_key"`
	MinioBucket         string `mapstructure:"minio_bucket"`
	MinioSecure         bool   `mapstructure:"minio_secure"`
	OSSEndpoint         string `mapstructure:"oss_endpoint"`
	OSSAccessKey        string `mapstructure:"oss_access_key"`
	OSSSecretKey        string `mapstructure:"oss_secret_key"`
	OSSBucket           string `mapstructure:"oss_bucket"`
	DefaultBannerImage  string `mapstructure:"default_banner_image"`
	DefaultProfileImage string `mapstructure:"default_profile_image"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type Judge0Config struct {
	APIKey       string        `mapstructure:"api_key"`
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	PollInterval time.Duration `mapstructure:"poll_interval_ms"`
	MaxPolls     int           `mapstructure:"max_polls"`
	Timeout      time.Duration `mapstructure:"timeout_seconds"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type QueueConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

type CertificateConfig struct {
	VerifyBaseURL string `mapstructure:"verify_base_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_file", "logs/app.log")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("jwt.access_expire_minutes", 60)
	v.SetDefault("jwt.refresh_expire_hours", 24*7)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("judge0.url", "https://judge0-ce.p.rapidapi.com")
	v.SetDefault("judge0.host", "judge0-ce.p.rapidapi.com")
	v.SetDefault("judge0.poll_interval_ms", 1000)
	v.SetDefault("judge0.max_polls", 10)
	v.SetDefault("judge0.timeout_seconds", 10)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("certificate.verify_base_url", "http://localhost:3000/verify-certificate")
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	// .env 文件可选，不存在时直接使用系统环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("UCODE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "PORT")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Judge0
	v.BindEnv("judge0.api_key", "JUDGE0_API_KEY")
	v.BindEnv("judge0.url", "JUDGE0_URL")
	v.BindEnv("judge0.host", "JUDGE0_HOST")

	// Google
	v.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 配置文件中以分钟/小时/毫秒/秒为单位
	cfg.JWT.AccessExpire = cfg.JWT.AccessExpire * time.Minute
	cfg.JWT.RefreshExpire = cfg.JWT.RefreshExpire * time.Hour
	cfg.Judge0.PollInterval = cfg.Judge0.PollInterval * time.Millisecond
	cfg.Judge0.Timeout = cfg.Judge0.Timeout * time.Second

	if cfg.Storage.DefaultBannerImage == "" {
		cfg.Storage.DefaultBannerImage = defaultBannerImage
	}
	if cfg.Storage.DefaultProfileImage == "" {
		cfg.Storage.DefaultProfileImage = defaultProfileImage
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// 未上传图片时使用的默认资源，可在配置文件中覆盖
const (
	defaultBannerImage  = "ucode/course_banners/ar96xy769kralsw28gu0"
	defaultProfileImage = "ucode/profile_images/hyqi9y5ucjmgigtlrmth"
)
