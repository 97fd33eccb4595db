package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	AI            AIConfig       `toml:"ai"`
	Planner       PlannerConfig  `toml:"planner"`
	Calendar      CalendarConfig `toml:"calendar"`
	Notifications NotifyConfig   `toml:"notifications"`
	Server        ServerConfig   `toml:"server"`
	Log           LogConfig      `toml:"log"`
	Store         StoreConfig    `toml:"store"`
}

type AIConfig struct {
	Provider        string `toml:"provider"` // "gemini" or "openai"
	Model           string `toml:"model"`
	GeminiAPIKey    string `toml:"gemini_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	Language        string `toml:"language"`
	SearchGrounding bool   `toml:"search_grounding"`
}

type PlannerConfig struct {
	HistoryLimit       int    `toml:"history_limit"`
	MaxChatMessages    int    `toml:"max_chat_messages"`
	DefaultCurrency    string `toml:"default_currency"`
	BookingURLTemplate string `toml:"booking_url_template"`
}

type CalendarConfig struct {
	Timezone               string `toml:"timezone"`
	DefaultDurationMinutes int    `toml:"default_duration_minutes"`
	GoogleToken            string `toml:"google_token"`
	GoogleBaseURL          string `toml:"google_base_url"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
	// Only generations slower than this notify.
	MinSeconds int `toml:"min_seconds"`
}

type ServerConfig struct {
	Addr              string   `toml:"addr"`
	PublicURL         string   `toml:"public_url"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	RatePerSecond     float64  `toml:"rate_per_second"`
	Burst             int      `toml:"burst"`
	SessionTTLMinutes int      `toml:"session_ttl_minutes"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

func DefaultConfig() Config {
	return Config{
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Language: "English",
		},
		Planner: PlannerConfig{
			HistoryLimit:       10,
			MaxChatMessages:    50,
			DefaultCurrency:    "USD",
			BookingURLTemplate: "https://www.google.com/search?q={query}",
		},
		Calendar: CalendarConfig{
			Timezone:               "Local",
			DefaultDurationMinutes: 90,
		},
		Notifications: NotifyConfig{
			Enabled:    true,
			MinSeconds: 10,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			PublicURL:         "http://127.0.0.1:8080",
			AllowedOrigins:    []string{"http://localhost:3000"},
			RatePerSecond:     1,
			Burst:             5,
			SessionTTLMinutes: 120,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "travelpal"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom layers the file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("TRAVELPAL_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("TRAVELPAL_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("GOOGLE_CALENDAR_TOKEN"); v != "" {
		cfg.Calendar.GoogleToken = v
	}
	if v := os.Getenv("TRAVELPAL_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown ai.provider %q (want gemini or openai)", c.AI.Provider)
	}
	if c.Planner.HistoryLimit < 1 {
		return fmt.Errorf("planner.history_limit must be at least 1")
	}
	if c.Calendar.DefaultDurationMinutes < 1 {
		return fmt.Errorf("calendar.default_duration_minutes must be at least 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	if c.AI.Provider == "openai" {
		return c.AI.OpenAIAPIKey
	}
	return c.AI.GeminiAPIKey
}

// Location resolves calendar.timezone; "" and "Local" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Calendar.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Calendar.DefaultDurationMinutes) * time.Minute
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", s)
	}
	return level, nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// SetValue persists one "section.key" setting to the file at path using a
// read-modify-write approach to preserve other settings.
func SetValue(path, dottedKey string, value any) error {
	section, key, ok := strings.Cut(dottedKey, ".")
	if !ok || section == "" || key == "" {
		return fmt.Errorf("key %q must look like section.key", dottedKey)
	}

	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	sec, ok := cfg[section].(map[string]any)
	if !ok {
		sec = make(map[string]any)
	}
	sec[key] = value
	cfg[section] = sec

	// Reject settings that would make the file unloadable.
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	check := DefaultConfig()
	if err := toml.Unmarshal(out, &check); err != nil {
		return fmt.Errorf("invalid value for %s: %w", dottedKey, err)
	}
	if err := check.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}
