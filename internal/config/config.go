package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the export service.
type Config struct {
	Smartlead SmartleadConfig `yaml:"smartlead"`
	Gmail     GmailConfig     `yaml:"gmail"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Attio     AttioConfig     `yaml:"attio"`
}

// SmartleadConfig holds Smartlead API settings.
type SmartleadConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	AuthStyle      string `yaml:"auth_style"` // "query" (default) or "bearer"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	PageSize       int    `yaml:"page_size"`
	PageDelayMS    int    `yaml:"page_delay_ms"`
	UploadDelayMS  int    `yaml:"upload_delay_ms"`
}

// Timeout returns the HTTP client timeout as a duration.
func (c SmartleadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PageDelay returns the delay inserted between lead pages.
func (c SmartleadConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMS) * time.Millisecond
}

// UploadDelay returns the pause after each successful Gmail upload.
func (c SmartleadConfig) UploadDelay() time.Duration {
	return time.Duration(c.UploadDelayMS) * time.Millisecond
}

// GmailConfig holds Gmail OAuth and label settings.
type GmailConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Account      string `yaml:"account"`
	TokenFile    string `yaml:"token_file"`
	LabelSent    string `yaml:"label_sent"`
	LabelReplies string `yaml:"label_replies"`
}

// TrackerConfig holds upload-tracker persistence settings.
type TrackerConfig struct {
	Path       string `yaml:"path"`
	FlushEvery int    `yaml:"flush_every"`
	S3Bucket   string `yaml:"s3_bucket"` // optional; file store when empty
	S3Region   string `yaml:"s3_region"`
	S3Key      string `yaml:"s3_key"`
}

// WebhookConfig holds live-event receiver settings.
type WebhookConfig struct {
	Port      int    `yaml:"port"`
	SecretKey string `yaml:"secret_key"`
}

// AttioConfig holds CRM mirror settings.
type AttioConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Smartlead.BaseURL == "" {
		cfg.Smartlead.BaseURL = "https://server.smartlead.ai/api/v1"
	}
	if cfg.Smartlead.AuthStyle == "" {
		cfg.Smartlead.AuthStyle = "query"
	}
	if cfg.Smartlead.TimeoutSeconds == 0 {
		cfg.Smartlead.TimeoutSeconds = 60
	}
	if cfg.Smartlead.MaxAttempts == 0 {
		cfg.Smartlead.MaxAttempts = 5
	}
	if cfg.Smartlead.PageSize == 0 {
		cfg.Smartlead.PageSize = 100
	}
	if cfg.Smartlead.PageDelayMS == 0 {
		cfg.Smartlead.PageDelayMS = 500
	}
	if cfg.Smartlead.UploadDelayMS == 0 {
		cfg.Smartlead.UploadDelayMS = 500
	}
	if cfg.Gmail.TokenFile == "" {
		cfg.Gmail.TokenFile = "token.json"
	}
	if cfg.Gmail.LabelSent == "" {
		cfg.Gmail.LabelSent = "Smartlead/Sent"
	}
	if cfg.Gmail.LabelReplies == "" {
		cfg.Gmail.LabelReplies = "Smartlead/Replies"
	}
	if cfg.Tracker.Path == "" {
		cfg.Tracker.Path = "upload_tracking.json"
	}
	if cfg.Tracker.FlushEvery == 0 {
		cfg.Tracker.FlushEvery = 10
	}
	if cfg.Tracker.S3Key == "" {
		cfg.Tracker.S3Key = "smartlead-export/upload_tracking.json"
	}
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 5001
	}
	if cfg.Attio.BaseURL == "" {
		cfg.Attio.BaseURL = "https://api.attio.com/v2"
	}
}

// LoadFromEnv loads configuration from a YAML file (if present) and then
// overlays environment variables. A .env file in the working directory is
// loaded first, matching the original deployment layout.
func LoadFromEnv(path string) (*Config, error) {
	godotenv.Load()

	var cfg *Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}
	if cfg == nil {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if v := os.Getenv("SMARTLEAD_API_KEY"); v != "" {
		cfg.Smartlead.APIKey = v
	}
	if v := os.Getenv("SMARTLEAD_BASE_URL"); v != "" {
		cfg.Smartlead.BaseURL = v
	}
	if v := os.Getenv("SMARTLEAD_AUTH_STYLE"); v != "" {
		cfg.Smartlead.AuthStyle = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Gmail.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Gmail.ClientSecret = v
	}
	if v := os.Getenv("GMAIL_ACCOUNT"); v != "" {
		cfg.Gmail.Account = v
	}
	if v := os.Getenv("LABEL_SENT"); v != "" {
		cfg.Gmail.LabelSent = v
	}
	if v := os.Getenv("LABEL_REPLIES"); v != "" {
		cfg.Gmail.LabelReplies = v
	}
	if v := os.Getenv("TRACKING_FILE"); v != "" {
		cfg.Tracker.Path = v
	}
	if v := os.Getenv("TRACKING_S3_BUCKET"); v != "" {
		cfg.Tracker.S3Bucket = v
	}
	if v := os.Getenv("TRACKING_S3_REGION"); v != "" {
		cfg.Tracker.S3Region = v
	}
	if v := os.Getenv("WEBHOOK_SECRET_KEY"); v != "" {
		cfg.Webhook.SecretKey = v
	}
	if v := os.Getenv("ATTIO_API_KEY"); v != "" {
		cfg.Attio.APIKey = v
		cfg.Attio.Enabled = true
	}

	return cfg, nil
}

// ValidateExport checks the settings a bulk export run cannot start without.
// Credential problems are fatal before any network traffic.
func (cfg *Config) ValidateExport() error {
	if cfg.Smartlead.APIKey == "" {
		return fmt.Errorf("smartlead api_key is required (set SMARTLEAD_API_KEY)")
	}
	if cfg.Gmail.Account == "" {
		return fmt.Errorf("gmail account is required (set GMAIL_ACCOUNT)")
	}
	switch cfg.Smartlead.AuthStyle {
	case "query", "bearer":
	default:
		return fmt.Errorf("smartlead auth_style must be \"query\" or \"bearer\", got %q", cfg.Smartlead.AuthStyle)
	}
	return nil
}
