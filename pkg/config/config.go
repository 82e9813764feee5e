package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	BotAPI struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"bot_api"`
	Poll struct {
		StatusInterval     time.Duration `yaml:"status_interval"`
		OscillatorInterval time.Duration `yaml:"oscillator_interval"`
		TickersInterval    time.Duration `yaml:"tickers_interval"`
	} `yaml:"poll"`
	Notifications struct {
		Backend string `yaml:"backend"` // kafka or log
		Kafka   struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic"`
			RequiredAcks int           `yaml:"required_acks"`
			Compression  string        `yaml:"compression"`
			MaxAttempts  int           `yaml:"max_attempts"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"kafka"`
	} `yaml:"notifications"`
	Archive struct {
		Enabled    bool `yaml:"enabled"`
		ClickHouse struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			Database     string        `yaml:"database"`
			User         string        `yaml:"user"`
			Password     string        `yaml:"password"`
			AsyncInsert  bool          `yaml:"async_insert"`
			DialTimeout  time.Duration `yaml:"dial_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"clickhouse"`
	} `yaml:"archive"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		MemoryMaxSize int           `yaml:"memory_max_size"`
		TickerTTL     time.Duration `yaml:"ticker_ttl"`
		RSITTL        time.Duration `yaml:"rsi_ttl"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BOT_API_URL"); v != "" {
		c.BotAPI.BaseURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Notifications.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Archive.ClickHouse.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Poll.StatusInterval == 0 {
		c.Poll.StatusInterval = 3 * time.Second
	}
	if c.Poll.OscillatorInterval == 0 {
		c.Poll.OscillatorInterval = 5 * time.Second
	}
	if c.Poll.TickersInterval == 0 {
		c.Poll.TickersInterval = 30 * time.Second
	}
	if c.BotAPI.Timeout == 0 {
		c.BotAPI.Timeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.TickerTTL == 0 {
		c.Cache.TickerTTL = 30 * time.Second
	}
	if c.Cache.RSITTL == 0 {
		c.Cache.RSITTL = 5 * time.Second
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 1000
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.BotAPI.BaseURL == "" {
		return fmt.Errorf("bot_api.base_url is required")
	}
	switch c.Notifications.Backend {
	case "", "log":
	case "kafka":
		if len(c.Notifications.Kafka.Brokers) == 0 {
			return fmt.Errorf("notifications.kafka.brokers is required for kafka backend")
		}
		if c.Notifications.Kafka.Topic == "" {
			return fmt.Errorf("notifications.kafka.topic is required for kafka backend")
		}
	default:
		return fmt.Errorf("notifications.backend must be kafka or log, got %q", c.Notifications.Backend)
	}
	if c.Archive.Enabled && c.Archive.ClickHouse.Host == "" {
		return fmt.Errorf("archive.clickhouse.host is required when archive is enabled")
	}
	return nil
}
