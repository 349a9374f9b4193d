package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPath is read when CONFIG_PATH is unset
const DefaultPath = "config/local.yaml"

type Config struct {
	Env        string     `yaml:"env" env:"MARKETPLACE_ENV" env-default:"local"`
	HTTP       HTTP       `yaml:"http"`
	Database   Database   `yaml:"database"`
	Logger     Logger     `yaml:"logger"`
	Auth       Auth       `yaml:"auth"`
	Media      Media      `yaml:"media"`
	Revalidate Revalidate `yaml:"revalidate"`
	Tasks      Tasks      `yaml:"tasks"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type Database struct {
	Type string `yaml:"type" env:"DB_TYPE" env-default:"sqlite"`
	DSN  string `yaml:"dsn" env:"DB_DSN" env-default:"marketplace.db"`
}

type Logger struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	FileEnable bool   `yaml:"file_enable" env:"LOG_FILE_ENABLE" env-default:"false"`
	Filename   string `yaml:"filename" env:"LOG_FILENAME" env-default:"logs/marketplace.log"`
}

type Auth struct {
	JWTSecret   string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"marketplace-dev-secret-change-in-production"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"720h"`
	AdminEmails []string      `yaml:"admin_emails" env:"ADMIN_EMAILS" env-separator:","`
	Google      OIDCClient    `yaml:"google" env-prefix:"GOOGLE_"`
	Kakao       OIDCClient    `yaml:"kakao" env-prefix:"KAKAO_"`
}

// OIDCClient is an identity provider registration. A provider with an empty
// ClientID is disabled.
type OIDCClient struct {
	Issuer       string `yaml:"issuer" env:"ISSUER"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
}

// IsAdminEmail reports whether email is listed in AdminEmails, ignoring case
func (a Auth) IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	for _, admin := range a.AdminEmails {
		if email != "" && strings.EqualFold(strings.TrimSpace(admin), email) {
			return true
		}
	}
	return false
}

type Media struct {
	CloudName string `yaml:"cloud_name" env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `yaml:"api_key" env:"CLOUDINARY_API_KEY"`
	APISecret string `yaml:"api_secret" env:"CLOUDINARY_API_SECRET"`
}

// Enabled reports whether media host credentials are configured
func (m Media) Enabled() bool {
	return m.CloudName != "" && m.APIKey != "" && m.APISecret != ""
}

type Revalidate struct {
	Driver       string   `yaml:"driver" env:"REVALIDATE_DRIVER" env-default:"log"`
	RedisAddr    string   `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisChannel string   `yaml:"redis_channel" env:"REVALIDATE_CHANNEL" env-default:"marketplace:revalidate"`
	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	KafkaTopic   string   `yaml:"kafka_topic" env:"REVALIDATE_TOPIC" env-default:"marketplace.revalidate"`
}

type Tasks struct {
	PoolSize int           `yaml:"pool_size" env:"TASK_POOL_SIZE" env-default:"64"`
	Timeout  time.Duration `yaml:"timeout" env:"TASK_TIMEOUT" env-default:"10s"`
}

// Load reads .env (if present), then the YAML file at path (if present),
// then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("reading config from env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	switch c.Revalidate.Driver {
	case "log", "redis", "kafka":
	default:
		return fmt.Errorf("unsupported revalidate driver %q", c.Revalidate.Driver)
	}
	if c.Env == "prod" && c.Auth.JWTSecret == "marketplace-dev-secret-change-in-production" {
		return errors.New("JWT_SECRET must be set in prod")
	}
	if c.Tasks.PoolSize <= 0 {
		return errors.New("tasks.pool_size must be positive")
	}
	return nil
}
