package config

import (
	"strings"
	"time"

	logx "hwbot/pkg/logx"
)

const (
	DefaultEndpoint         = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultInterval         = "10m"
	DefaultInitialTimestamp = int64(1651424400)
	DefaultMetricsAddr      = "127.0.0.1:9108"
)

// Config holds the tunables read from the optional config file.
// Secrets never live here; see Credentials.
type Config struct {
	API      APIConfig      `json:"api"`
	Poll     PollConfig     `json:"poll"`
	Telegram TelegramConfig `json:"telegram"`
	Notifier NotifierConfig `json:"notifier"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type APIConfig struct {
	Endpoint string `json:"endpoint" validate:"required|fullUrl"`
	// Timeout bounds one status request (Go duration string).
	Timeout string `json:"timeout,omitempty"`
}

// PollConfig controls the poll loop.
//
// Interval accepts a Go duration ("10m"), an "HH:MM" interval, or a cron
// expression ("*/10 * * * *", "@every 10m").
type PollConfig struct {
	Interval         string `json:"interval" validate:"required"`
	InitialTimestamp int64  `json:"initial_timestamp,omitempty" validate:"min:0"`
}

type TelegramConfig struct {
	// APIURL overrides the Bot API base URL (local bot API server, tests).
	APIURL  string `json:"api_url,omitempty" validate:"fullUrl"`
	Timeout string `json:"timeout,omitempty"`
}

// NotifierConfig tunes delivery. A single send is bounded by telegram.timeout.
type NotifierConfig struct {
	RatePerSec int    `json:"rate_per_sec,omitempty" validate:"min:0|max:30"`
	RetryMax   int    `json:"retry_max,omitempty" validate:"min:0|max:10"`
	RetryBase  string `json:"retry_base,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects where poll state survives restarts.
// An empty driver keeps state in memory only.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"in:none,file,sqlite,sqlite3"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Pprof adds /debug/pprof/ to the metrics listener (loopback only).
	Pprof bool `json:"pprof,omitempty"`
}

// Default returns the configuration used when no file is given and the base
// that file values are decoded on top of.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Endpoint: DefaultEndpoint,
			Timeout:  "30s",
		},
		Poll: PollConfig{
			Interval:         DefaultInterval,
			InitialTimestamp: DefaultInitialTimestamp,
		},
		Notifier: NotifierConfig{
			RatePerSec: 1,
			RetryMax:   2,
			RetryBase:  "1s",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LogFileConfig{Path: "./hwbot.log"},
		},
		Storage: StorageConfig{
			Path: "./hwbot_state",
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

// LogConfig maps the logging section onto the logger's own config.
func (c LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    strings.TrimSpace(c.File.Path),
		},
	}
}

// The duration accessors below assume Validate has already accepted the config.

func (c APIConfig) TimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("api.timeout", c.Timeout, 30*time.Second)
	return d
}

func (c TelegramConfig) TimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.timeout", c.Timeout, 15*time.Second)
	return d
}

func (c NotifierConfig) RetryBaseDuration() time.Duration {
	d, _ := ParseDurationOrDefault("notifier.retry_base", c.RetryBase, time.Second)
	return d
}

func (c StorageConfig) BusyTimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("storage.busy_timeout", c.BusyTimeout, 5*time.Second)
	return d
}

// Enabled reports whether a persistent driver is selected.
func (c StorageConfig) Enabled() bool {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	return d != "" && d != "none"
}
