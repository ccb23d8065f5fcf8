package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "DAILYPING_CONFIG"
	DefaultConfigPath = "config.yaml"

	// WebhookPlaceholder marks the unedited webhook URL shipped in example configs.
	WebhookPlaceholder = "YOUR_WEBHOOK"

	DefaultTarget               = "8.8.8.8"
	DefaultTargetLabel          = "Google"
	DefaultInterval             = time.Second
	DefaultProbeTimeout         = 3 * time.Second
	DefaultMethod               = "icmp"
	DefaultMaxConsecutiveFaults = 10
	DefaultNotifyTimeout        = 10 * time.Second
	DefaultNotifyUsername       = "Ping Monitor"
	DefaultRatePerMinute        = 30
	DefaultMetricsListen        = "127.0.0.1:9320"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

var (
	ErrWebhookMissing     = errors.New("discord_webhook_url is not set")
	ErrWebhookPlaceholder = errors.New("discord_webhook_url still contains the example placeholder")
)

type Config struct {
	DiscordWebhookURL string        `yaml:"discord_webhook_url" json:"discord_webhook_url"`
	Monitor           MonitorConfig `yaml:"monitor" json:"monitor"`
	Notify            NotifyConfig  `yaml:"notify" json:"notify"`
	Metrics           MetricsConfig `yaml:"metrics" json:"metrics"`
	Log               LogConfig     `yaml:"log" json:"log"`
}

type MonitorConfig struct {
	Target               string        `yaml:"target" json:"target"`
	TargetLabel          string        `yaml:"target_label" json:"target_label"`
	Interval             time.Duration `yaml:"interval" json:"interval"`
	ProbeTimeout         time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	Method               string        `yaml:"method" json:"method"`
	Privileged           bool          `yaml:"privileged" json:"privileged"`
	Gateway              string        `yaml:"gateway" json:"gateway"`
	MaxConsecutiveFaults int           `yaml:"max_consecutive_faults" json:"max_consecutive_faults"`
}

type NotifyConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	Username      string        `yaml:"username" json:"username"`
	RatePerMinute int           `yaml:"rate_per_minute" json:"rate_per_minute"`
}

// MetricsConfig controls the status server. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

func Load(ctx context.Context, path string) (Config, error) {
	var cfg Config

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	// Absent keys keep their preset value, so an explicit empty listen
	// address or a zero fault budget survives decoding.
	cfg.Metrics.Listen = DefaultMetricsListen
	cfg.Monitor.MaxConsecutiveFaults = DefaultMaxConsecutiveFaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

// ResolvePath picks the config path: an explicit value wins, then the
// DAILYPING_CONFIG environment variable, then DefaultConfigPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv(envConfigPath); path != "" {
		return path
	}
	return DefaultConfigPath
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	return Load(ctx, ResolvePath(""))
}

// ApplyDefaults fills zero values. Metrics.Listen and
// Monitor.MaxConsecutiveFaults are left alone because their zero values mean
// disabled; Load presets both before decoding.
func (c *Config) ApplyDefaults() {
	c.DiscordWebhookURL = strings.TrimSpace(c.DiscordWebhookURL)
	m := &c.Monitor
	if m.Target == "" {
		m.Target = DefaultTarget
		if m.TargetLabel == "" {
			m.TargetLabel = DefaultTargetLabel
		}
	}
	if m.Interval == 0 {
		m.Interval = DefaultInterval
	}
	if m.ProbeTimeout == 0 {
		m.ProbeTimeout = DefaultProbeTimeout
	}
	if m.Method == "" {
		m.Method = DefaultMethod
	}
	m.Method = strings.ToLower(m.Method)

	n := &c.Notify
	if n.Timeout == 0 {
		n.Timeout = DefaultNotifyTimeout
	}
	if n.Username == "" {
		n.Username = DefaultNotifyUsername
	}
	if n.RatePerMinute == 0 {
		n.RatePerMinute = DefaultRatePerMinute
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func (c Config) Validate() error {
	var errs []error

	if err := ValidateWebhookURL(c.DiscordWebhookURL); err != nil {
		errs = append(errs, err)
	}

	m := c.Monitor
	if strings.TrimSpace(m.Target) == "" {
		errs = append(errs, errors.New("monitor.target must not be empty"))
	}
	if m.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.interval must be positive, got %s", m.Interval))
	}
	if m.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("monitor.probe_timeout must be positive, got %s", m.ProbeTimeout))
	}
	switch m.Method {
	case "icmp", "command":
	default:
		errs = append(errs, fmt.Errorf("monitor.method %q is not one of icmp, command", m.Method))
	}
	if m.MaxConsecutiveFaults < 0 {
		errs = append(errs, fmt.Errorf("monitor.max_consecutive_faults must not be negative, got %d", m.MaxConsecutiveFaults))
	}

	if c.Notify.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("notify.timeout must be positive, got %s", c.Notify.Timeout))
	}
	if c.Notify.RatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("notify.rate_per_minute must not be negative, got %d", c.Notify.RatePerMinute))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ValidateWebhookURL requires a real absolute http(s) URL.
func ValidateWebhookURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrWebhookMissing
	}
	if strings.Contains(raw, WebhookPlaceholder) {
		return ErrWebhookPlaceholder
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse discord_webhook_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("discord_webhook_url %q must be an absolute http(s) URL", raw)
	}
	return nil
}

// Redacted returns a copy safe to print: the webhook token is masked.
func (c Config) Redacted() Config {
	out := c
	if out.DiscordWebhookURL == "" {
		return out
	}
	u, err := url.Parse(out.DiscordWebhookURL)
	if err != nil || u.Host == "" {
		out.DiscordWebhookURL = "<redacted>"
		return out
	}
	out.DiscordWebhookURL = u.Scheme + "://" + u.Host + "/<redacted>"
	return out
}
