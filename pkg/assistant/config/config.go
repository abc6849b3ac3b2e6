// Package config loads the assistant configuration from YAML with
// environment variable expansion, .env support, and OS keyring lookup for
// secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tenants   []TenantConfig  `yaml:"tenants"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	// TimeoutSeconds bounds one model call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// TenantConfig describes one tenant account.
type TenantConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
	// Language is the tenant's default reply language (ru or kz).
	Language string `yaml:"language"`
	// DisabledModules lists capability ids switched off at config level.
	DisabledModules []string `yaml:"disabled_modules"`
	// TelegramChatID routes scheduled digests for this tenant.
	TelegramChatID string `yaml:"telegram_chat_id"`
	// WhatsAppJID routes scheduled digests over WhatsApp.
	WhatsAppJID string `yaml:"whatsapp_jid"`
	// DiscordChannelID routes scheduled digests over Discord.
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// ChannelsConfig configures messaging channel integrations.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// TelegramConfig configures the Telegram bot.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	// DefaultTenant maps unknown chats to a tenant; empty rejects them.
	DefaultTenant string `yaml:"default_tenant"`
}

// WhatsAppConfig configures the WhatsApp connection.
type WhatsAppConfig struct {
	Enabled bool `yaml:"enabled"`
	// StorePath is the whatsmeow session database location.
	StorePath     string `yaml:"store_path"`
	DefaultTenant string `yaml:"default_tenant"`
}

// DiscordConfig configures the Discord bot.
type DiscordConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Token         string `yaml:"token"`
	DefaultTenant string `yaml:"default_tenant"`
}

// SchedulerConfig configures periodic jobs.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// BirthdayDigestCron fires the morning birthday digest.
	BirthdayDigestCron string `yaml:"birthday_digest_cron"`
	// TaskReminderCron scans for due tasks.
	TaskReminderCron string `yaml:"task_reminder_cron"`
	// TracePruneCron clears old traces.
	TracePruneCron string `yaml:"trace_prune_cron"`
	// TraceRetentionDays keeps traces this many days.
	TraceRetentionDays int `yaml:"trace_retention_days"`
}

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Load reads and expands the config file. A .env file next to the config is
// loaded first when present.
func Load(path string) (*Config, error) {
	if envFile := filepath.Join(filepath.Dir(path), ".env"); fileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := expandEnv(string(data))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Listen: "127.0.0.1:8080"},
		LLM:      LLMConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", TimeoutSeconds: 90},
		Database: DatabaseConfig{Path: "assistant.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			BirthdayDigestCron: "0 9 * * *",
			TaskReminderCron:   "*/15 * * * *",
			TracePruneCron:     "30 3 * * *",
			TraceRetentionDays: 30,
		},
	}
}

func (c *Config) validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	seen := make(map[string]bool)
	for _, t := range c.Tenants {
		if t.ID == "" {
			return fmt.Errorf("tenant with empty id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// TenantByToken finds the tenant owning an API token.
func (c *Config) TenantByToken(token string) (*TenantConfig, bool) {
	if token == "" {
		return nil, false
	}
	for i := range c.Tenants {
		if c.Tenants[i].Token == token {
			return &c.Tenants[i], true
		}
	}
	return nil, false
}

// TenantByID finds a tenant by id.
func (c *Config) TenantByID(id string) (*TenantConfig, bool) {
	for i := range c.Tenants {
		if c.Tenants[i].ID == id {
			return &c.Tenants[i], true
		}
	}
	return nil, false
}

// expandEnv substitutes ${VAR} and ${VAR:-default} references.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name := groups[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if groups[2] != "" {
			return groups[3]
		}
		return ""
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DefaultPath returns the conventional config location, honoring the
// ASSISTANT_CONFIG override.
func DefaultPath() string {
	if p := os.Getenv("ASSISTANT_CONFIG"); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".assistant24", "config.yaml")
		if fileExists(candidate) {
			return candidate
		}
	}
	return "config.yaml"
}
