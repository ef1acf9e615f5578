// Package config loads the kiosk configuration from YAML with
// environment-variable fallbacks.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the kiosk configuration
type Config struct {
	// Backend API
	BackendBaseURL string `yaml:"backend_base_url"`

	// Display
	DefaultLang  string `yaml:"default_lang"`
	AvatarAssets string `yaml:"avatar_assets"` // base path for avatar loop videos

	// Operations
	MetricsPort   int    `yaml:"metrics_port"`
	NightlyReset  string `yaml:"nightly_reset"` // cron expression, empty disables
	RedisAddr     string `yaml:"redis_addr"`    // empty selects the in-memory store
	RedisPassword string `yaml:"redis_password"`

	// Timing
	Timing TimingConfig `yaml:"timing"`
}

// TimingConfig holds every timer the flow machine arms.
type TimingConfig struct {
	StreamTimeout    time.Duration `yaml:"-"`
	RequestTimeout   time.Duration `yaml:"-"`
	Inactivity       time.Duration `yaml:"-"`
	WatchdogTick     time.Duration `yaml:"-"`
	IntroDuration    time.Duration `yaml:"-"`
	IntroExitDelay   time.Duration `yaml:"-"`
	StageInterval    time.Duration `yaml:"-"`
	AnswerDwell      time.Duration `yaml:"-"`
	ErrorResetDelay  time.Duration `yaml:"-"`
	ThanksResetDelay time.Duration `yaml:"-"`
}

// Duration parses "20s" style YAML values.
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler for YAML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// UnmarshalYAML decodes the timing block through Duration wrappers.
func (t *TimingConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		StreamTimeout    Duration `yaml:"stream_timeout"`
		RequestTimeout   Duration `yaml:"request_timeout"`
		Inactivity       Duration `yaml:"inactivity"`
		WatchdogTick     Duration `yaml:"watchdog_tick"`
		IntroDuration    Duration `yaml:"intro_duration"`
		IntroExitDelay   Duration `yaml:"intro_exit_delay"`
		StageInterval    Duration `yaml:"stage_interval"`
		AnswerDwell      Duration `yaml:"answer_dwell"`
		ErrorResetDelay  Duration `yaml:"error_reset_delay"`
		ThanksResetDelay Duration `yaml:"thanks_reset_delay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.StreamTimeout = raw.StreamTimeout.Duration
	t.RequestTimeout = raw.RequestTimeout.Duration
	t.Inactivity = raw.Inactivity.Duration
	t.WatchdogTick = raw.WatchdogTick.Duration
	t.IntroDuration = raw.IntroDuration.Duration
	t.IntroExitDelay = raw.IntroExitDelay.Duration
	t.StageInterval = raw.StageInterval.Duration
	t.AnswerDwell = raw.AnswerDwell.Duration
	t.ErrorResetDelay = raw.ErrorResetDelay.Duration
	t.ThanksResetDelay = raw.ThanksResetDelay.Duration
	return nil
}

// Load loads configuration from a YAML file. A missing file is not an
// error; the kiosk then runs entirely on defaults and environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Load unset values from environment
	if cfg.BackendBaseURL == "" {
		cfg.BackendBaseURL = os.Getenv("KIOSK_API_BASE_URL")
	}
	if cfg.AvatarAssets == "" {
		cfg.AvatarAssets = os.Getenv("KIOSK_AVATAR_BASE_PATH")
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = os.Getenv("KIOSK_REDIS_ADDR")
	}
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = os.Getenv("KIOSK_REDIS_PASSWORD")
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = os.Getenv("KIOSK_DEFAULT_LANG")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BackendBaseURL == "" {
		c.BackendBaseURL = "http://127.0.0.1:8005"
	}
	if c.AvatarAssets == "" {
		c.AvatarAssets = "/assets/tayyib_loops/"
	}
	if !strings.HasSuffix(c.AvatarAssets, "/") {
		c.AvatarAssets += "/"
	}
	if c.DefaultLang == "" {
		c.DefaultLang = "EN"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}

	t := &c.Timing
	if t.StreamTimeout == 0 {
		t.StreamTimeout = 20 * time.Second
	}
	if t.RequestTimeout == 0 {
		t.RequestTimeout = 15 * time.Second
	}
	if t.Inactivity == 0 {
		t.Inactivity = 60 * time.Second
	}
	if t.WatchdogTick == 0 {
		t.WatchdogTick = 10 * time.Second
	}
	if t.IntroDuration == 0 {
		t.IntroDuration = 1500 * time.Millisecond
	}
	if t.IntroExitDelay == 0 {
		t.IntroExitDelay = 800 * time.Millisecond
	}
	if t.StageInterval == 0 {
		t.StageInterval = 900 * time.Millisecond
	}
	if t.AnswerDwell == 0 {
		t.AnswerDwell = 20 * time.Second
	}
	if t.ErrorResetDelay == 0 {
		t.ErrorResetDelay = 10 * time.Second
	}
	if t.ThanksResetDelay == 0 {
		t.ThanksResetDelay = 10 * time.Second
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_base_url %q is not a valid URL", c.BackendBaseURL)
	}
	switch c.DefaultLang {
	case "EN", "AR", "FR":
	default:
		return fmt.Errorf("default_lang %q is not supported", c.DefaultLang)
	}
	if c.Timing.Inactivity < c.Timing.WatchdogTick {
		return fmt.Errorf("inactivity threshold must be at least one watchdog tick")
	}
	return nil
}
