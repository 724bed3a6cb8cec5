package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gatekeeper/internal/auth"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Revocation RevocationConfig `yaml:"revocation"`
	Social     SocialConfig     `yaml:"social"`
	Audit      AuditConfig      `yaml:"audit"`
	Email      EmailConfig      `yaml:"email"`
}

type ServerConfig struct {
	Name           string   `yaml:"name"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	AccessTokenTTL    time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `yaml:"refresh_token_ttl"`
	ResetTokenTTL     time.Duration `yaml:"reset_token_ttl"`
	BcryptCost        int           `yaml:"bcrypt_cost"`
	BcryptConcurrency int           `yaml:"bcrypt_concurrency"`
}

type RevocationConfig struct {
	// CleanupInterval of 0 uses the default; a negative value disables cleanup.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SocialConfig struct {
	Timeout  time.Duration  `yaml:"timeout"`
	Google   GoogleConfig   `yaml:"google"`
	Facebook FacebookConfig `yaml:"facebook"`
}

type GoogleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ClientID string `yaml:"client_id"`
}

type FacebookConfig struct {
	Enabled  bool   `yaml:"enabled"`
	GraphURL string `yaml:"graph_url"`
}

type AuditConfig struct {
	Driver string     `yaml:"driver"`
	AMQP   AMQPConfig `yaml:"amqp"`
}

type AMQPConfig struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	BufferSize int    `yaml:"buffer_size"`
}

type EmailConfig struct {
	SMTP     SMTPConfig `yaml:"smtp"`
	ResetURL string     `yaml:"reset_url"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Configured reports whether enough SMTP settings exist to send mail.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != 0 && s.From != ""
}

func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GATEKEEPER_JWT_SECRET", &c.Auth.JWTSecret},
		{"GATEKEEPER_DATABASE_DSN", &c.Database.DSN},
		{"GATEKEEPER_GOOGLE_CLIENT_ID", &c.Social.Google.ClientID},
		{"GATEKEEPER_FACEBOOK_GRAPH_URL", &c.Social.Facebook.GraphURL},
		{"GATEKEEPER_REDIS_PASSWORD", &c.Revocation.Redis.Password},
		{"GATEKEEPER_AMQP_URL", &c.Audit.AMQP.URL},
		{"GATEKEEPER_SMTP_PASSWORD", &c.Email.SMTP.Password},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func missing(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{auth.ErrConfigurationMissing}, args...)...)
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return missing("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return missing("auth.jwt_secret must be at least 32 characters")
	}
	switch c.Database.Driver {
	case "", "sqlite3", "mysql":
	default:
		return missing("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.Driver == "mysql" && c.Database.DSN == "" {
		return missing("database.dsn is required for mysql")
	}
	if c.Social.Google.Enabled && c.Social.Google.ClientID == "" {
		return missing("social.google.client_id is required when google is enabled")
	}
	if c.Revocation.Redis.Enabled && c.Revocation.Redis.Addr == "" {
		return missing("revocation.redis.addr is required when redis is enabled")
	}
	switch c.Audit.Driver {
	case "", "log":
	case "amqp":
		if c.Audit.AMQP.URL == "" {
			return missing("audit.amqp.url is required for the amqp audit driver")
		}
	default:
		return missing("audit.driver %q is not supported", c.Audit.Driver)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not supported", c.Log.Level)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "Gatekeeper"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./data/gatekeeper.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = auth.DefaultResetTokenTTL
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Revocation.CleanupInterval == 0 {
		c.Revocation.CleanupInterval = time.Hour
	}
	if c.Social.Timeout == 0 {
		c.Social.Timeout = 10 * time.Second
	}
	if c.Audit.Driver == "" {
		c.Audit.Driver = "log"
	}
	if c.Audit.AMQP.Queue == "" {
		c.Audit.AMQP.Queue = "auth.audit"
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
