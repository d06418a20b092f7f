package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"flowmind/internal/intent"
)

// Config is the root configuration for FlowMind.
type Config struct {
	General     GeneralConfig             `json:"general" yaml:"general"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Calendar    CalendarConfig            `json:"calendar" yaml:"calendar"`
	Database    DatabaseConfig            `json:"database" yaml:"database"`
	Schedule    ScheduleConfig            `json:"schedule" yaml:"schedule"`
	Suggestions SuggestionsConfig         `json:"suggestions" yaml:"suggestions"`
	Proactive   ProactiveConfig           `json:"proactive" yaml:"proactive"`
	Routing     RoutingConfig             `json:"routing" yaml:"routing"`
	Channels    ChannelsConfig            `json:"channels" yaml:"channels"`
	Metrics     MetricsConfig             `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string   `json:"logLevel" yaml:"logLevel"`
	LogFormat             string   `json:"logFormat,omitempty" yaml:"logFormat,omitempty"` // "text" | "json"
	LogFile               string   `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	DefaultProvider       string   `json:"defaultProvider" yaml:"defaultProvider"`
	FailoverChain         []string `json:"failoverChain,omitempty" yaml:"failoverChain,omitempty"`
	Timezone              string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	DefaultUser           string   `json:"defaultUser" yaml:"defaultUser"`
	MaxConcurrentMessages int      `json:"maxConcurrentMessages" yaml:"maxConcurrentMessages"`
}

// Location resolves Timezone, falling back to the local zone.
func (g GeneralConfig) Location() *time.Location {
	if g.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Provider kinds understood by the provider registry.
const (
	KindOpenAI = "openai"
	KindClaude = "claude"
	KindOllama = "ollama"
)

type ProviderConfig struct {
	Enabled         bool    `json:"enabled" yaml:"enabled"`
	Kind            string  `json:"kind,omitempty" yaml:"kind,omitempty"` // defaults to the provider name
	APIBase         string  `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey          string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	DefaultModel    string  `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
	MaxTokens       int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TimeoutSeconds  int     `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
	RateLimitPerMin int     `json:"rateLimitPerMinute,omitempty" yaml:"rateLimitPerMinute,omitempty"`
}

// ResolvedKind returns Kind, or the provider name when Kind is empty.
func (p ProviderConfig) ResolvedKind(name string) string {
	if p.Kind != "" {
		return p.Kind
	}
	switch {
	case strings.HasPrefix(name, KindOllama):
		return KindOllama
	case strings.HasPrefix(name, KindClaude), strings.HasPrefix(name, "anthropic"):
		return KindClaude
	}
	return KindOpenAI
}

// CalendarConfig points at the remote calendar service. When disabled the
// assistant works from the local store alone.
type CalendarConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	BaseURL        string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

type ScheduleConfig struct {
	BusinessStartHour int `json:"businessStartHour" yaml:"businessStartHour"`
	BusinessEndHour   int `json:"businessEndHour" yaml:"businessEndHour"`
	HorizonDays       int `json:"horizonDays" yaml:"horizonDays"`
}

type SuggestionsConfig struct {
	TTLHours int `json:"ttlHours" yaml:"ttlHours"`
}

// TTL returns the suggestion lifetime.
func (s SuggestionsConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// ProactiveConfig drives the background suggestion scanner.
type ProactiveConfig struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	IntervalMinutes      int    `json:"intervalMinutes" yaml:"intervalMinutes"`
	RetryIntervalMinutes int    `json:"retryIntervalMinutes" yaml:"retryIntervalMinutes"`
	Channel              string `json:"channel,omitempty" yaml:"channel,omitempty"`
	ChatID               string `json:"chatId,omitempty" yaml:"chatId,omitempty"`
}

func (p ProactiveConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMinutes) * time.Minute
}

func (p ProactiveConfig) RetryInterval() time.Duration {
	return time.Duration(p.RetryIntervalMinutes) * time.Minute
}

// RoutingConfig overrides the keyword lists that pick a specialist.
type RoutingConfig struct {
	Routes []intent.Route `json:"routes,omitempty" yaml:"routes,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	API      APIConfig      `json:"api" yaml:"api"`
	CLI      CLIConfig      `json:"cli" yaml:"cli"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled" yaml:"enabled"`
	Token     string         `json:"token" yaml:"token"`
	AllowFrom FlexStringList `json:"allowFrom" yaml:"allowFrom"`
	ParseMode string         `json:"parseMode" yaml:"parseMode"`
}

// FlexStringList is a []string that can unmarshal from arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// UnmarshalYAML takes every scalar of a sequence verbatim.
func (f *FlexStringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("allowFrom: expected a list, got %s", node.Tag)
	}
	result := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("allowFrom: expected scalar items, got %s", item.Tag)
		}
		result = append(result, item.Value)
	}
	*f = result
	return nil
}

// Allowed reports whether id may talk to the bot. An empty list allows everyone.
func (f FlexStringList) Allowed(id string) bool {
	if len(f) == 0 {
		return true
	}
	for _, v := range f {
		if v == id {
			return true
		}
	}
	return false
}

// APIConfig configures the HTTP API channel.
type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"` // Bearer token; empty disables auth
}

// Address returns the listen address.
func (c APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CLIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// MetricsConfig configures the Prometheus text endpoint on the API channel.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.flowmind).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowmind"
	}
	return filepath.Join(home, ".flowmind")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// isYAML reports whether path names a YAML document.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDotEnv loads a .env file next to the config and one in the working
// directory. Variables already set in the environment win.
func LoadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(ExpandPath(configPath)), ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load reads a JSON or YAML config file over Defaults() and validates it.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, returning Defaults() when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match // keep unresolved references visible
		}
		return val
	})
}

// Save writes cfg to path, as YAML when the extension says so.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
