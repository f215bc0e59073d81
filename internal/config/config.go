package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Import   ImportConfig   `yaml:"import"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Queue    QueueConfig    `yaml:"queue"`
	Tracking TrackingConfig `yaml:"tracking"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string    `yaml:"listen_addr"`
	BaseURL    string    `yaml:"base_url"`
	TLS        TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	SessionTTL     time.Duration `yaml:"session_ttl"`
	SecureCookies  bool          `yaml:"secure_cookies"`
	MinPasswordLen int           `yaml:"min_password_length"`
}

// ImportConfig bounds the CSV recipient import pipeline.
type ImportConfig struct {
	MaxFileSize      int64 `yaml:"max_file_size"`
	MaxRecipients    int   `yaml:"max_recipients"`
	AnomalyThreshold int   `yaml:"anomaly_threshold"`
}

type MailerConfig struct {
	RelayAddr   string        `yaml:"relay_addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	FromEmail   string        `yaml:"from_email"`
	FromName    string        `yaml:"from_name"`
	Timeout     time.Duration `yaml:"timeout"`
	InsecureTLS bool          `yaml:"insecure_tls"`
	DKIM        DKIMConfig    `yaml:"dkim"`
}

type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
}

type QueueConfig struct {
	Path         string        `yaml:"path"`
	BatchSize    int           `yaml:"batch_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type TrackingConfig struct {
	// LandingURL is where clicked links resolve to (the learning page).
	LandingURL string `yaml:"landing_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/phishportal.db"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 12 * time.Hour
	}
	if c.Auth.MinPasswordLen == 0 {
		c.Auth.MinPasswordLen = 10
	}
	if c.Import.MaxFileSize == 0 {
		c.Import.MaxFileSize = 2 * 1024 * 1024
	}
	if c.Import.MaxRecipients == 0 {
		c.Import.MaxRecipients = 1000
	}
	if c.Import.AnomalyThreshold == 0 {
		c.Import.AnomalyThreshold = 10
	}
	if c.Mailer.Timeout == 0 {
		c.Mailer.Timeout = 30 * time.Second
	}
	if c.Queue.Path == "" {
		c.Queue.Path = "data/outbound.db"
	}
	if c.Queue.BatchSize == 0 {
		c.Queue.BatchSize = 10
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = 5 * time.Second
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Tracking.LandingURL == "" {
		c.Tracking.LandingURL = c.Server.BaseURL + "/learning"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("tls enabled but cert_file or key_file missing")
		}
	}
	if c.Mailer.DKIM.Enabled {
		if c.Mailer.DKIM.Domain == "" || c.Mailer.DKIM.Selector == "" || c.Mailer.DKIM.KeyFile == "" {
			return fmt.Errorf("dkim enabled but domain, selector or key_file missing")
		}
	}
	if c.Import.AnomalyThreshold < 0 {
		return fmt.Errorf("import.anomaly_threshold must not be negative")
	}
	return nil
}

// Example returns an example YAML configuration
func Example() string {
	return `server:
  listen_addr: ":8080"
  base_url: "https://phish.example.com"
  tls:
    enabled: false
    cert_file: ""
    key_file: ""

database:
  path: "data/phishportal.db"

auth:
  session_ttl: 12h
  secure_cookies: true
  min_password_length: 10

import:
  max_file_size: 2097152
  max_recipients: 1000
  anomaly_threshold: 10

mailer:
  relay_addr: "smtp.example.com:587"
  username: ""
  password: ""
  from_email: "it-security@example.com"
  from_name: "IT Security"
  timeout: 30s
  dkim:
    enabled: false
    domain: ""
    selector: "phish"
    key_file: ""

queue:
  path: "data/outbound.db"
  batch_size: 10
  poll_interval: 5s
  max_attempts: 3

tracking:
  landing_url: "https://phish.example.com/learning"

logging:
  level: "info"
  format: "text"
`
}
