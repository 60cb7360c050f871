package app

import (
	"strings"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/storage"
	telegram "hwbot/internal/transport/telegram/adapter"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool) {
	if !cfg.Storage.Enabled() {
		return storage.Config{}, false
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: cfg.Storage.BusyTimeoutDuration(),
	}, true
}

func mapNotifierConfig(cfg *config.Config, creds config.Credentials) notifier.Config {
	return notifier.Config{
		ChatID:       creds.ChatID,
		ChatUsername: creds.ChatUsername,
		RatePerSec:   cfg.Notifier.RatePerSec,
		RetryMax:     cfg.Notifier.RetryMax,
		RetryBase:    cfg.Notifier.RetryBaseDuration(),
	}
}

func mapFetcherConfig(cfg *config.Config, creds config.Credentials) homework.FetcherConfig {
	return homework.FetcherConfig{
		Endpoint: cfg.API.Endpoint,
		Token:    creds.APIToken,
		Timeout:  cfg.API.TimeoutDuration(),
	}
}

// The bot is built offline: startup does not call getMe, so a Telegram
// outage cannot keep the poller from starting. A bad token shows up as a
// delivery failure on the first send.
func mapTelegramConfig(cfg *config.Config, creds config.Credentials) telegram.Config {
	return telegram.Config{
		Token:   creds.BotToken,
		URL:     cfg.Telegram.APIURL,
		Offline: true,
		Timeout: cfg.Telegram.TimeoutDuration(),
	}
}
