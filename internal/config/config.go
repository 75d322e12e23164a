// Package config loads runtime settings from the environment, optionally
// seeded from a local .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"videotube-backend/internal/auth"
	"videotube-backend/internal/db"
	"videotube-backend/internal/media"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	MediaCloudinary = "cloudinary"
	MediaS3         = "s3"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

type MongoConfig struct {
	URI      string
	Database string
}

type PostgresConfig struct {
	URL           string
	RunMigrations bool
	Pool          db.PoolConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Driver string
	Max    int
	Window time.Duration
}

type MediaConfig struct {
	Driver        string
	CloudinaryURL string
	S3            media.S3Config
}

type Config struct {
	Env             string
	Port            string
	StoreDriver     string
	Mongo           MongoConfig
	Postgres        PostgresConfig
	Redis           RedisConfig
	Tokens          auth.TokenConfig
	Cookies         auth.CookieConfig
	LoginRateLimit  RateLimitConfig
	Media           MediaConfig
	SentryDSN       string
	CronSecret      string
	CleanupBatch    int
	ShutdownTimeout time.Duration
}

type Options struct {
	LoadDotEnv bool
}

func Load(options Options) (*Config, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:         strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		Port:        strings.TrimSpace(v.GetString("PORT")),
		StoreDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(v.GetString("MONGODB_URI")),
			Database: strings.TrimSpace(v.GetString("MONGODB_DATABASE")),
		},
		Postgres: PostgresConfig{
			URL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
			RunMigrations: v.GetBool("RUN_MIGRATIONS_ON_STARTUP"),
			Pool: db.PoolConfig{
				MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
				MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
				ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
				ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			},
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Tokens: auth.TokenConfig{
			AccessSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
			RefreshSecret: v.GetString("REFRESH_TOKEN_SECRET"),
			AccessTTL:     v.GetDuration("ACCESS_TOKEN_EXPIRY"),
			RefreshTTL:    v.GetDuration("REFRESH_TOKEN_EXPIRY"),
		},
		Cookies: auth.CookieConfig{
			Secure:   v.GetBool("COOKIE_SECURE"),
			SameSite: v.GetString("COOKIE_SAME_SITE"),
			Domain:   strings.TrimSpace(v.GetString("COOKIE_DOMAIN")),
		},
		LoginRateLimit: RateLimitConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("LOGIN_RATE_LIMIT_DRIVER"))),
			Max:    v.GetInt("LOGIN_RATE_LIMIT_MAX"),
			Window: v.GetDuration("LOGIN_RATE_LIMIT_WINDOW"),
		},
		Media: MediaConfig{
			Driver:        strings.ToLower(strings.TrimSpace(v.GetString("MEDIA_DRIVER"))),
			CloudinaryURL: strings.TrimSpace(v.GetString("CLOUDINARY_URL")),
			S3: media.S3Config{
				Bucket:        strings.TrimSpace(v.GetString("S3_BUCKET")),
				Region:        strings.TrimSpace(v.GetString("S3_REGION")),
				Endpoint:      strings.TrimSpace(v.GetString("S3_ENDPOINT")),
				AccessKey:     strings.TrimSpace(v.GetString("S3_ACCESS_KEY")),
				SecretKey:     strings.TrimSpace(v.GetString("S3_SECRET_KEY")),
				PublicBaseURL: strings.TrimSpace(v.GetString("S3_PUBLIC_BASE_URL")),
			},
		},
		SentryDSN:       strings.TrimSpace(v.GetString("SENTRY_DSN")),
		CronSecret:      strings.TrimSpace(v.GetString("CRON_SECRET")),
		CleanupBatch:    v.GetInt("CLEANUP_BATCH_SIZE"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGODB_DATABASE", "videotube")
	v.SetDefault("RUN_MIGRATIONS_ON_STARTUP", false)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "10m")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_EXPIRY", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRY", "240h")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_SAME_SITE", "none")
	v.SetDefault("LOGIN_RATE_LIMIT_DRIVER", LimiterMemory)
	v.SetDefault("LOGIN_RATE_LIMIT_MAX", 10)
	v.SetDefault("LOGIN_RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("MEDIA_DRIVER", MediaCloudinary)
	v.SetDefault("CLEANUP_BATCH_SIZE", 500)
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
}

func (c *Config) validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("ACCESS_TOKEN_SECRET", c.Tokens.AccessSecret)
	require("REFRESH_TOKEN_SECRET", c.Tokens.RefreshSecret)

	switch c.StoreDriver {
	case StoreMongo:
		require("MONGODB_URI", c.Mongo.URI)
	case StorePostgres:
		require("DATABASE_URL", c.Postgres.URL)
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Media.Driver {
	case MediaCloudinary:
		require("CLOUDINARY_URL", c.Media.CloudinaryURL)
	case MediaS3:
		require("S3_BUCKET", c.Media.S3.Bucket)
		require("S3_REGION", c.Media.S3.Region)
	default:
		return fmt.Errorf("unsupported MEDIA_DRIVER %q", c.Media.Driver)
	}

	switch c.LoginRateLimit.Driver {
	case LimiterMemory:
	case LimiterRedis:
		require("REDIS_ADDR", c.Redis.Addr)
	default:
		return fmt.Errorf("unsupported LOGIN_RATE_LIMIT_DRIVER %q", c.LoginRateLimit.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.LoginRateLimit.Max <= 0 || c.LoginRateLimit.Window <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_MAX and LOGIN_RATE_LIMIT_WINDOW must be positive")
	}
	if c.CleanupBatch <= 0 {
		c.CleanupBatch = 500
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
