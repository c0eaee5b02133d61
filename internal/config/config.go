package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		APIKeys         []string `yaml:"api_keys"`
		RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
		RateLimitBurst  int      `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`

		Backup struct {
			Enabled       bool   `yaml:"enabled"`
			Dir           string `yaml:"dir"`
			IntervalHours int    `yaml:"interval_hours"`
			RetentionDays int    `yaml:"retention_days"`
		} `yaml:"backup"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		SlotGranularityMinutes int    `yaml:"slot_granularity_minutes"`
		DefaultTimezone        string `yaml:"default_timezone"`
	} `yaml:"booking"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/stablebook.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	if cfg.Database.Backup.Dir == "" {
		cfg.Database.Backup.Dir = "data/backups"
	}
	if cfg.Database.Backup.IntervalHours <= 0 {
		cfg.Database.Backup.IntervalHours = 24
	}
	if cfg.Database.Backup.RetentionDays <= 0 {
		cfg.Database.Backup.RetentionDays = 14
	}

	if cfg.Booking.SlotGranularityMinutes <= 0 {
		cfg.Booking.SlotGranularityMinutes = 30
	}
	if cfg.Booking.DefaultTimezone == "" {
		cfg.Booking.DefaultTimezone = "UTC"
	}

	return &cfg, nil
}

// SlotGranularity returns the configured picker step.
func (c *Config) SlotGranularity() time.Duration {
	return time.Duration(c.Booking.SlotGranularityMinutes) * time.Minute
}

// CacheTTL returns the redis slot cache TTL; zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.Address == "" || c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
