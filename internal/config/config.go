package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Insights  InsightsConfig  `yaml:"insights"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// InsightsConfig tunes the analytics defaults. DayStartHour 0 is a literal
// midnight boundary, not "unset"; omit the key to get the 4am default.
type InsightsConfig struct {
	DayStartHour int `yaml:"day_start_hour"`
	RollingWeeks int `yaml:"rolling_weeks"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix LIFTLEDGER_ and underscore-separated paths:
//
//	LIFTLEDGER_SERVER_HOST, LIFTLEDGER_SERVER_PORT,
//	LIFTLEDGER_DB_HOST, LIFTLEDGER_DB_PORT, LIFTLEDGER_DB_NAME,
//	LIFTLEDGER_DB_USER, LIFTLEDGER_DB_PASSWORD, LIFTLEDGER_DB_SSLMODE,
//	LIFTLEDGER_AUTH_API_KEY, LIFTLEDGER_TS_HOSTNAME, LIFTLEDGER_TS_STATE_DIR,
//	LIFTLEDGER_DAY_START_HOUR, LIFTLEDGER_ROLLING_WEEKS
func Load(path string) (*Config, error) {
	cfg := &Config{
		Insights: InsightsConfig{
			DayStartHour: 4,
			RollingWeeks: 6,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIFTLEDGER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIFTLEDGER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIFTLEDGER_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("LIFTLEDGER_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("LIFTLEDGER_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LIFTLEDGER_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("LIFTLEDGER_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LIFTLEDGER_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("LIFTLEDGER_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("LIFTLEDGER_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("LIFTLEDGER_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("LIFTLEDGER_DAY_START_HOUR"); v != "" {
		if hour, err := strconv.Atoi(v); err == nil {
			cfg.Insights.DayStartHour = hour
		}
	}
	if v := os.Getenv("LIFTLEDGER_ROLLING_WEEKS"); v != "" {
		if weeks, err := strconv.Atoi(v); err == nil {
			cfg.Insights.RollingWeeks = weeks
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Insights.DayStartHour < 0 || c.Insights.DayStartHour > 23 {
		return fmt.Errorf("insights.day_start_hour must be between 0 and 23")
	}
	if c.Insights.RollingWeeks <= 0 {
		return fmt.Errorf("insights.rolling_weeks must be positive")
	}
	return nil
}
