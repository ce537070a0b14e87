package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks the config for invalid or missing values. Returns a
// multi-error with all problems found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.ListenAddr == "" {
		errs = append(errs, "listen_addr is required")
	}
	if cfg.AutoStart && cfg.Endpoint == "" {
		errs = append(errs, "endpoint is required when auto_start is set")
	}
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "endpoint must be an absolute http(s) URL")
		}
	}
	if cfg.RandomizationFactor < 0 || cfg.RandomizationFactor > 1 {
		errs = append(errs, "randomization_factor must be within [0,1]")
	}
	if cfg.InitialDelayMS <= 0 {
		errs = append(errs, "initial_delay_ms must be > 0")
	}
	if cfg.MaxDelayMS < cfg.InitialDelayMS {
		errs = append(errs, fmt.Sprintf("max_delay_ms (%d) must be >= initial_delay_ms (%d)", cfg.MaxDelayMS, cfg.InitialDelayMS))
	}
	if cfg.ProbeTimeoutMS <= 0 {
		errs = append(errs, "probe_timeout_ms must be > 0")
	}
	if cfg.ProbeFloorMS <= 0 {
		errs = append(errs, "probe_floor_ms must be > 0")
	}
	switch cfg.InterfaceMode {
	case InterfaceModePoll:
		if cfg.InterfacePollMS <= 0 {
			errs = append(errs, "interface_poll_ms must be > 0")
		}
	case InterfaceModeAlwaysOnline:
	default:
		errs = append(errs, "interface_mode must be poll or always_online")
	}
	if cfg.ControlRateLimitRPS < 0 {
		errs = append(errs, "control_rate_limit_rps must be >= 0")
	}
	if cfg.ControlRateLimitBurst < 0 {
		errs = append(errs, "control_rate_limit_burst must be >= 0")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, "log_format must be json or text")
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log_level must be debug, info, warn or error")
	}
	if cfg.DatabaseSchema != "" && !schemaNamePattern.MatchString(cfg.DatabaseSchema) {
		errs = append(errs, "database_schema must match ^[a-z_][a-z0-9_]*$")
	}
	if cfg.JournalBufferSize < 0 {
		errs = append(errs, "journal_buffer_size must be >= 0")
	}
	if cfg.JournalRetentionDays < 0 {
		errs = append(errs, "journal_retention_days must be >= 0")
	}
	if cfg.MaxDBConns > 0 && cfg.MinDBConns > 0 && cfg.MaxDBConns <= cfg.MinDBConns {
		errs = append(errs, fmt.Sprintf("max_db_conns (%d) must be greater than min_db_conns (%d)", cfg.MaxDBConns, cfg.MinDBConns))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}
