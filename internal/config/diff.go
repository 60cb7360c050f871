package config

import (
	"strings"

	logx "hwbot/pkg/logx"
)

// SummarizeChange compares two configs. It returns the sections that
// changed and safe fields for logging. Only the logging section can be
// applied live; the rest is reported in restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, restart []string, attrs []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	mark := func(section string, live bool) {
		changed = append(changed, section)
		if !live {
			restart = append(restart, section)
		}
	}

	if oldCfg.Logging != newCfg.Logging {
		mark("logging", true)
		attrs = append(attrs,
			logx.String("logging.level", strings.ToLower(strings.TrimSpace(newCfg.Logging.Level))),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.API != newCfg.API {
		mark("api", false)
		attrs = append(attrs, logx.String("api.timeout", newCfg.API.Timeout))
	}
	if oldCfg.Poll != newCfg.Poll {
		mark("poll", false)
		attrs = append(attrs, logx.String("poll.interval", newCfg.Poll.Interval))
	}
	if oldCfg.Telegram != newCfg.Telegram {
		mark("telegram", false)
		attrs = append(attrs, logx.Bool("telegram.api_url_set", strings.TrimSpace(newCfg.Telegram.APIURL) != ""))
	}
	if oldCfg.Notifier != newCfg.Notifier {
		mark("notifier", false)
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", false)
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Metrics != newCfg.Metrics {
		mark("metrics", false)
		attrs = append(attrs, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}
	return changed, restart, attrs
}
