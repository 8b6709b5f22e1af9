package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// API credentials use the names the deployment has always used:
// RETAILCRM_BASE_URL, RETAILCRM_API_TOKEN, RETAILCRM_SITE_CODE,
// UIS_API_TOKEN, RETAILCRM_BOT_API_TOKEN, TELEGRAM_BOT_TOKEN,
// TELEGRAM_CHAT_ID, OPENAI_API_KEY. Everything else is OKK_-prefixed.
func ApplyEnvOverrides(cfg *Config) error {
	applyCredentialEnv(cfg)

	if err := applyScheduleEnv(cfg); err != nil {
		return err
	}
	if err := applyMetricsEnv(cfg); err != nil {
		return err
	}
	if err := applyInfluxEnv(cfg); err != nil {
		return err
	}
	if err := applyNotifyEnv(cfg); err != nil {
		return err
	}
	return nil
}

// applyCredentialEnv maps the legacy credential variable names onto the config
func applyCredentialEnv(cfg *Config) {
	setStrEnv := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setStrEnv("RETAILCRM_BASE_URL", &cfg.RetailCRMBaseURL)
	setStrEnv("RETAILCRM_API_TOKEN", &cfg.RetailCRMAPIKey)
	setStrEnv("RETAILCRM_SITE_CODE", &cfg.RetailCRMSite)
	setStrEnv("UIS_BASE_URL", &cfg.UISBaseURL)
	setStrEnv("UIS_API_TOKEN", &cfg.UISToken)
	setStrEnv("RETAILCRM_BOT_BASE_URL", &cfg.BotAPIBaseURL)
	setStrEnv("RETAILCRM_BOT_API_TOKEN", &cfg.BotAPIToken)
	setStrEnv("TELEGRAM_BOT_TOKEN", &cfg.TelegramToken)
	setStrEnv("TELEGRAM_CHAT_ID", &cfg.TelegramChatID)
	setStrEnv("OPENAI_API_KEY", &cfg.OpenAIKey)
	setStrEnv("OKK_OPENAI_MODEL", &cfg.OpenAIModel)
}

// applyScheduleEnv handles send time, timeouts, limits, and dry-run
func applyScheduleEnv(cfg *Config) error {
	if v := os.Getenv("OKK_SEND_TIME"); v != "" {
		cfg.SendTime = v
	}
	if v := os.Getenv("OKK_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OKK_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if err := setIntEnv("OKK_MAX_DIALOGS", func(n int) { cfg.MaxDialogs = n }); err != nil {
		return err
	}
	if err := setIntEnv("OKK_MAX_CONCURRENT_CHECKS", func(n int) { cfg.MaxConcurrentChecks = n }); err != nil {
		return err
	}
	return setBoolEnv("OKK_DRY_RUN", func(b bool) { cfg.DryRun = b })
}

// applyMetricsEnv consolidates metrics-related env parsing
func applyMetricsEnv(cfg *Config) error {
	if v := os.Getenv("OKK_METRICS_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "true":
			cfg.MetricsEnabled = true
		case "false":
			cfg.MetricsEnabled = false
		}
	}
	return setIntEnv("OKK_METRICS_PORT", func(n int) { cfg.MetricsPort = n })
}

// applyInfluxEnv consolidates Influx-related env parsing
func applyInfluxEnv(cfg *Config) error {
	if v := os.Getenv("OKK_INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := os.Getenv("OKK_INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := os.Getenv("OKK_INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := os.Getenv("OKK_INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
	if v := os.Getenv("OKK_INFLUX_INTERVAL"); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OKK_INFLUX_INTERVAL: %w", err)
		}
		cfg.InfluxInterval = dur
	}
	return nil
}

// applyNotifyEnv handles the secondary notification channels
func applyNotifyEnv(cfg *Config) error {
	if v := os.Getenv("OKK_SLACK_WEBHOOK"); v != "" {
		cfg.SlackWebhook = v
	}
	if v := os.Getenv("OKK_EMAIL_HOST"); v != "" {
		cfg.EmailHost = v
	}
	if v := os.Getenv("OKK_EMAIL_USER"); v != "" {
		cfg.EmailUser = v
	}
	if v := os.Getenv("OKK_EMAIL_PASS"); v != "" {
		cfg.EmailPass = v
	}
	if err := setIntEnv("OKK_EMAIL_PORT", func(n int) { cfg.EmailPort = n }); err != nil {
		return err
	}
	if v := os.Getenv("OKK_EMAIL_TO"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.EmailTo = parts
	}
	return nil
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

// setIntEnv is a small helper to parse integer environment variables
func setIntEnv(env string, setter func(int)) error {
	if v := os.Getenv(env); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(n)
	}
	return nil
}
