package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sertdev/reachd/internal/resilience"
)

// Interface modes.
const (
	InterfaceModePoll         = "poll"
	InterfaceModeAlwaysOnline = "always_online"
)

// Config holds all application configuration.
type Config struct {
	ListenAddr            string   `yaml:"listen_addr"`
	Endpoint              string   `yaml:"endpoint"`
	AutoStart             bool     `yaml:"auto_start"`
	RandomizationFactor   float64  `yaml:"randomization_factor"`
	InitialDelayMS        int      `yaml:"initial_delay_ms"`
	MaxDelayMS            int      `yaml:"max_delay_ms"`
	ProbeTimeoutMS        int      `yaml:"probe_timeout_ms"`
	ProbeFloorMS          int      `yaml:"probe_floor_ms"`
	InterfaceMode         string   `yaml:"interface_mode"`
	InterfacePollMS       int      `yaml:"interface_poll_ms"`
	CORSOrigins           []string `yaml:"cors_origins"`
	ControlRateLimitRPS   float64  `yaml:"control_rate_limit_rps"`
	ControlRateLimitBurst int      `yaml:"control_rate_limit_burst"`
	MetricsEnabled        bool     `yaml:"metrics_enabled"`
	LogFormat             string   `yaml:"log_format"`
	LogLevel              string   `yaml:"log_level"`
	DatabaseURL           string   `yaml:"database_url"`
	DatabaseSchema        string   `yaml:"database_schema"`
	JournalBufferSize     int      `yaml:"journal_buffer_size"`
	JournalRetentionDays  int      `yaml:"journal_retention_days"`
	MaxDBConns            int32    `yaml:"max_db_conns"`
	MinDBConns            int32    `yaml:"min_db_conns"`
}

// Default returns the configuration used when no file or variable overrides it.
func Default() *Config {
	return &Config{
		ListenAddr:            ":8080",
		RandomizationFactor:   0.5,
		InitialDelayMS:        500,
		MaxDelayMS:            10000,
		ProbeTimeoutMS:        5000,
		ProbeFloorMS:          1000,
		InterfaceMode:         InterfaceModePoll,
		InterfacePollMS:       2000,
		ControlRateLimitRPS:   1,
		ControlRateLimitBurst: 5,
		LogFormat:             "json",
		LogLevel:              "info",
		DatabaseSchema:        "public",
		JournalBufferSize:     10000,
		JournalRetentionDays:  30,
		MaxDBConns:            10,
		MinDBConns:            2,
	}
}

// Load reads configuration from config.yaml and overrides with environment variables.
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("REACHD_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// Policy returns the retry policy described by the config.
func (c *Config) Policy() resilience.Policy {
	return resilience.Policy{
		RandomizationFactor: c.RandomizationFactor,
		InitialDelay:        time.Duration(c.InitialDelayMS) * time.Millisecond,
		MaxDelay:            time.Duration(c.MaxDelayMS) * time.Millisecond,
	}
}

// JournalEnabled reports whether events are written to Postgres.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("REACHD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("REACHD_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("REACHD_AUTO_START"); v != "" {
		cfg.AutoStart = v == "true" || v == "1"
	}
	if v := os.Getenv("REACHD_RANDOMIZATION_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RandomizationFactor = f
		}
	}
	if v := os.Getenv("REACHD_INITIAL_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InitialDelayMS = n
		}
	}
	if v := os.Getenv("REACHD_MAX_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDelayMS = n
		}
	}
	if v := os.Getenv("REACHD_PROBE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ProbeTimeoutMS = n
		}
	}
	if v := os.Getenv("REACHD_PROBE_FLOOR_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ProbeFloorMS = n
		}
	}
	if v := os.Getenv("REACHD_INTERFACE_MODE"); v != "" {
		cfg.InterfaceMode = v
	}
	if v := os.Getenv("REACHD_INTERFACE_POLL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InterfacePollMS = n
		}
	}
	if v := os.Getenv("REACHD_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("REACHD_CONTROL_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ControlRateLimitRPS = f
		}
	}
	if v := os.Getenv("REACHD_CONTROL_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ControlRateLimitBurst = n
		}
	}
	if v := os.Getenv("REACHD_METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REACHD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("REACHD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REACHD_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REACHD_DATABASE_SCHEMA"); v != "" {
		cfg.DatabaseSchema = v
	}
	if v := os.Getenv("REACHD_JOURNAL_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.JournalBufferSize = n
		}
	}
	if v := os.Getenv("REACHD_JOURNAL_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.JournalRetentionDays = n
		}
	}
	if v := os.Getenv("REACHD_MAX_DB_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDBConns = int32(n)
		}
	}
	if v := os.Getenv("REACHD_MIN_DB_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinDBConns = int32(n)
		}
	}
}
