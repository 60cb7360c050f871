package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gookit/validate"

	logx "hwbot/pkg/logx"
)

// ParseDurationField parses a Go duration string. Empty means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Validate checks a decoded config. Struct tags cover simple ranges; the
// cross-field rules follow.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	sections := []struct {
		name string
		v    any
	}{
		{"api", &cfg.API},
		{"poll", &cfg.Poll},
		{"telegram", &cfg.Telegram},
		{"notifier", &cfg.Notifier},
		{"storage", &cfg.Storage},
	}
	for _, s := range sections {
		v := validate.Struct(s.v)
		if !v.Validate() {
			return fmt.Errorf("%s: %s", s.name, v.Errors.One())
		}
	}

	durations := map[string]string{
		"api.timeout":          cfg.API.Timeout,
		"telegram.timeout":     cfg.Telegram.Timeout,
		"notifier.retry_base":  cfg.Notifier.RetryBase,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		return errors.New("logging.file.path is required when logging.file.enabled")
	}
	if cfg.Storage.Enabled() && strings.TrimSpace(cfg.Storage.Path) == "" {
		return errors.New("storage.path is required when storage.driver is set")
	}
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Metrics.Addr)); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}
	return nil
}
