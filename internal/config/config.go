package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketDocs string
	UseSSL     bool
	Region     string
	PresignTTL time.Duration
}

type OAuthConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	StateTTL     time.Duration
	RequireState bool
}

type SessionConfig struct {
	JWTSecret    string
	TTL          time.Duration
	CookieName   string
	Secure       bool
	OrphanWindow time.Duration
}

type UploadConfig struct {
	MaxFileSize int64
	Concurrency int
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	OrphanAge     time.Duration
}

type AppConfig struct {
	Environment      string
	PublicURL        string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	OAuth            OAuthConfig
	Session          SessionConfig
	Upload           UploadConfig
	Worker           WorkerConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("EDUDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Session.JWTSecret == "" {
		return fmt.Errorf("session.jwtsecret is required")
	}
	if c.Upload.Concurrency <= 0 {
		return fmt.Errorf("upload.concurrency must be positive, got %d", c.Upload.Concurrency)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("publicurl", "http://localhost:8080")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "60s")
	v.SetDefault("http.idletimeout", "60s")

	// Keys without a default are invisible to Unmarshal when only set via env.
	for _, key := range []string{
		"postgres.dsn", "redis.password",
		"storage.endpoint", "storage.accesskey", "storage.secretkey",
		"oauth.clientid", "oauth.clientsecret", "oauth.redirecturl",
		"oauth.authurl", "oauth.tokenurl",
		"session.jwtsecret",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", false)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeout", "5s")

	v.SetDefault("storage.bucketdocs", "docs")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignttl", "15m")

	v.SetDefault("oauth.provider", "google")
	v.SetDefault("oauth.userinfourl", "https://www.googleapis.com/oauth2/v3/userinfo")
	v.SetDefault("oauth.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("oauth.statettl", "10m")
	v.SetDefault("oauth.requirestate", true)

	v.SetDefault("session.ttl", "720h") // 30 days
	v.SetDefault("session.cookiename", "session")
	v.SetDefault("session.secure", true)
	v.SetDefault("session.orphanwindow", "30s")

	v.SetDefault("upload.maxfilesize", 50<<20)
	v.SetDefault("upload.concurrency", 3)

	v.SetDefault("worker.stream", "edudocs:tasks")
	v.SetDefault("worker.group", "edudocs-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
	v.SetDefault("worker.orphanage", "1h")
}
