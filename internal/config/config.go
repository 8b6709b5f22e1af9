package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the OKK reporter
type Config struct {
	// RetailCRM v5 API
	RetailCRMBaseURL string `json:"retailcrm_base_url" yaml:"retailcrm_base_url"`
	RetailCRMAPIKey  string `json:"retailcrm_api_key" yaml:"retailcrm_api_key"`
	RetailCRMSite    string `json:"retailcrm_site" yaml:"retailcrm_site"`

	// UIS telephony DataAPI (JSON-RPC)
	UISBaseURL string `json:"uis_base_url" yaml:"uis_base_url"`
	UISToken   string `json:"uis_token" yaml:"uis_token"`

	// RetailCRM Bot API (chats)
	BotAPIBaseURL string `json:"bot_api_base_url" yaml:"bot_api_base_url"`
	BotAPIToken   string `json:"bot_api_token" yaml:"bot_api_token"`

	// Telegram delivery
	TelegramToken  string `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID string `json:"telegram_chat_id" yaml:"telegram_chat_id"`

	// OpenAI name verification; empty key disables the check
	OpenAIKey   string `json:"openai_key" yaml:"openai_key"`
	OpenAIModel string `json:"openai_model" yaml:"openai_model"`

	// SendTime is the daily delivery time, "HH:MM" in MSK
	SendTime string `json:"send_time" yaml:"send_time"`

	// HTTPTimeout applies to every outbound API client
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`

	// MaxDialogs caps how many active dialogs the chat section inspects
	MaxDialogs int `json:"max_dialogs" yaml:"max_dialogs"`

	// MaxConcurrentChecks bounds parallel per-dialog message fetches
	MaxConcurrentChecks int `json:"max_concurrent_checks" yaml:"max_concurrent_checks"`

	// Dry-run: build and log the report without sending it
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`

	// Secondary notification channels
	SlackWebhook string   `json:"slack_webhook" yaml:"slack_webhook"`
	EmailHost    string   `json:"email_host" yaml:"email_host"`
	EmailPort    int      `json:"email_port" yaml:"email_port"`
	EmailUser    string   `json:"email_user" yaml:"email_user"`
	EmailPass    string   `json:"email_pass" yaml:"email_pass"`
	EmailTo      []string `json:"email_to" yaml:"email_to"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		UISBaseURL:    "https://dataapi.uiscom.ru/v2.0",
		BotAPIBaseURL: "https://mg-s1.retailcrm.pro/api/bot/v1",
		OpenAIModel:   "gpt-3.5-turbo",

		// deliver the previous day's report in the morning
		SendTime: "07:00",

		HTTPTimeout:         15 * time.Second,
		MaxDialogs:          50,
		MaxConcurrentChecks: 4,

		// Metrics defaults (opt-in)
		MetricsEnabled: false,
		MetricsPort:    9090,

		InfluxInterval: 1 * time.Minute,

		DryRun: false,
	}
}

// NormalizeBaseURL strips a trailing /api/v5 from the configured RetailCRM
// base URL so clients can append API paths without duplication.
func (c *Config) NormalizeBaseURL() {
	c.RetailCRMBaseURL = strings.TrimSuffix(strings.TrimRight(c.RetailCRMBaseURL, "/"), "/api/v5")
}

// MissingCredentials lists the required settings without which a report
// cannot be built or delivered.
func (c *Config) MissingCredentials() []string {
	var missing []string
	required := []struct {
		val, name string
	}{
		{c.RetailCRMBaseURL, "RETAILCRM_BASE_URL"},
		{c.RetailCRMAPIKey, "RETAILCRM_API_TOKEN"},
		{c.RetailCRMSite, "RETAILCRM_SITE_CODE"},
		{c.UISToken, "UIS_API_TOKEN"},
		{c.BotAPIToken, "RETAILCRM_BOT_API_TOKEN"},
		{c.TelegramToken, "TELEGRAM_BOT_TOKEN"},
		{c.TelegramChatID, "TELEGRAM_CHAT_ID"},
	}
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// Validate returns a list of non-fatal configuration warnings, such as
// incomplete notifier credential combinations.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.OpenAIKey == "", "OPENAI_API_KEY not set; name verification will be skipped"},
		{c.EmailHost != "" && len(c.EmailTo) == 0, "email host provided but no recipients configured (EmailTo)"},
		{c.EmailHost == "" && len(c.EmailTo) > 0, "email recipients configured but email host is empty"},
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
		{c.MaxDialogs <= 0, "max_dialogs must be positive"},
		{c.MaxConcurrentChecks <= 0, "max_concurrent_checks must be positive"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	if w := validateSendTime(c.SendTime); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// validateSendTime returns a warning when the daily send time is malformed.
func validateSendTime(st string) string {
	if st == "" {
		return ""
	}
	var h, m int
	n, err := fmt.Sscanf(st, "%d:%d", &h, &m)
	if err != nil || n != 2 || h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Sprintf("invalid SendTime format: %q (expected HH:MM)", st)
	}
	return ""
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
