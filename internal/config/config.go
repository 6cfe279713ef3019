// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Analyzer() AnalyzerConfig
	Resolver() ResolverConfig
	Executor() ExecutorConfig
	Orchestrator() OrchestratorConfig
	Planner() PlannerConfig
	Journal() JournalConfig
	Metrics() MetricsConfig
	Server() ServerConfig

	SetBrowserMode(mode string)
	SetBrowserHeadless(bool)
	SetPlannerEnabled(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	BrowserCfg      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	AnalyzerCfg     AnalyzerConfig     `mapstructure:"analyzer" yaml:"analyzer"`
	ResolverCfg     ResolverConfig     `mapstructure:"resolver" yaml:"resolver"`
	ExecutorCfg     ExecutorConfig     `mapstructure:"executor" yaml:"executor"`
	OrchestratorCfg OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	PlannerCfg      PlannerConfig      `mapstructure:"planner" yaml:"planner"`
	JournalCfg      JournalConfig      `mapstructure:"journal" yaml:"journal"`
	MetricsCfg      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	ServerCfg       ServerConfig       `mapstructure:"server" yaml:"server"`
}

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig           { return c.BrowserCfg }
func (c *Config) Analyzer() AnalyzerConfig         { return c.AnalyzerCfg }
func (c *Config) Resolver() ResolverConfig         { return c.ResolverCfg }
func (c *Config) Executor() ExecutorConfig         { return c.ExecutorCfg }
func (c *Config) Orchestrator() OrchestratorConfig { return c.OrchestratorCfg }
func (c *Config) Planner() PlannerConfig           { return c.PlannerCfg }
func (c *Config) Journal() JournalConfig           { return c.JournalCfg }
func (c *Config) Metrics() MetricsConfig           { return c.MetricsCfg }
func (c *Config) Server() ServerConfig             { return c.ServerCfg }

func (c *Config) SetBrowserMode(mode string) { c.BrowserCfg.Mode = mode }
func (c *Config) SetBrowserHeadless(b bool)  { c.BrowserCfg.Headless = b }
func (c *Config) SetPlannerEnabled(b bool)   { c.PlannerCfg.Enabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Browser modes.
const (
	BrowserModeCDP     = "cdp"
	BrowserModeOffline = "offline"
)

// BrowserConfig selects and tunes the page backend.
type BrowserConfig struct {
	// Mode is "cdp" for a real Chrome instance or "offline" for the static
	// HTML backend.
	Mode              string         `mapstructure:"mode" yaml:"mode"`
	RemoteURL         string         `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ScriptTimeout     time.Duration  `mapstructure:"script_timeout" yaml:"script_timeout"`
	MaxElements       int            `mapstructure:"max_elements" yaml:"max_elements"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
}

// AnalyzerConfig tunes page scanning.
type AnalyzerConfig struct {
	StalenessWindow time.Duration `mapstructure:"staleness_window" yaml:"staleness_window"`
	TopN            int           `mapstructure:"top_n" yaml:"top_n"`
	MinScore        int           `mapstructure:"min_score" yaml:"min_score"`
	TextLimit       int           `mapstructure:"text_limit" yaml:"text_limit"`
}

// ResolverConfig carries the resolution policy. The thresholds and word
// tables are tunable rather than fixed.
type ResolverConfig struct {
	MinScore          float64             `mapstructure:"min_score" yaml:"min_score"`
	SensitiveMinScore float64             `mapstructure:"sensitive_min_score" yaml:"sensitive_min_score"`
	SensitiveTerms    []string            `mapstructure:"sensitive_terms" yaml:"sensitive_terms"`
	Synonyms          map[string][]string `mapstructure:"synonyms" yaml:"synonyms"`
	StopWords         []string            `mapstructure:"stop_words" yaml:"stop_words"`
	AuthKeywords      []string            `mapstructure:"auth_keywords" yaml:"auth_keywords"`
	SearchKeywords    []string            `mapstructure:"search_keywords" yaml:"search_keywords"`
}

// ExecutorConfig tunes action execution.
type ExecutorConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	WaitTimeout        time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	ScrollAmount       int           `mapstructure:"scroll_amount" yaml:"scroll_amount"`
	EnterOnButtonClick bool          `mapstructure:"enter_on_button_click" yaml:"enter_on_button_click"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// OrchestratorConfig tunes command sequencing.
type OrchestratorConfig struct {
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	ReadyPollMin   time.Duration `mapstructure:"ready_poll_min" yaml:"ready_poll_min"`
	ReadyPollMax   time.Duration `mapstructure:"ready_poll_max" yaml:"ready_poll_max"`
	ReadyRetries   int           `mapstructure:"ready_retries" yaml:"ready_retries"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// PlannerConfig is the provider surface for the natural-language fallback.
// Only the fallback planner reads it.
type PlannerConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// Journal types.
const (
	JournalNone     = "none"
	JournalFile     = "file"
	JournalPostgres = "postgres"
)

// JournalConfig selects where command outcomes are recorded.
type JournalConfig struct {
	Type       string `mapstructure:"type" yaml:"type"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	URL        string `mapstructure:"url" yaml:"url"`
	Table      string `mapstructure:"table" yaml:"table"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Address   string `mapstructure:"address" yaml:"address"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// ServerConfig controls the MCP tool server.
type ServerConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"`
	Address   string `mapstructure:"address" yaml:"address"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// DefaultSynonyms is the stock synonym table. "bio" style descriptions expand
// to the words profile editors actually label those fields with.
var DefaultSynonyms = map[string][]string{
	"bio":      {"about", "description", "summary", "profile"},
	"about":    {"bio", "description"},
	"login":    {"signin", "sign", "log"},
	"signin":   {"login"},
	"signup":   {"register", "join", "create"},
	"register": {"signup", "join"},
	"search":   {"find", "query"},
	"submit":   {"send", "save", "continue"},
	"email":    {"mail"},
	"back":     {"previous", "return"},
	"forward":  {"next"},
	"close":    {"dismiss", "cancel"},
	"menu":     {"navigation", "hamburger"},
	"cart":     {"basket", "bag"},
	"name":     {"fullname", "username"},
	"comment":  {"reply", "message"},
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagewright")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.mode", BrowserModeCDP)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.script_timeout", "10s")
	v.SetDefault("browser.max_elements", 5000)
	v.SetDefault("browser.debug", false)

	// -- Analyzer --
	v.SetDefault("analyzer.staleness_window", "30s")
	v.SetDefault("analyzer.top_n", 50)
	v.SetDefault("analyzer.min_score", 5)
	v.SetDefault("analyzer.text_limit", 100)

	// -- Resolver --
	v.SetDefault("resolver.min_score", 18.0)
	v.SetDefault("resolver.sensitive_min_score", 35.0)
	v.SetDefault("resolver.sensitive_terms", []string{"bio", "about", "profile", "description", "summary"})
	v.SetDefault("resolver.synonyms", DefaultSynonyms)
	v.SetDefault("resolver.stop_words", []string{
		"the", "a", "an", "on", "in", "into", "to", "of", "for", "with", "and", "or",
		"button", "field", "link", "box", "input", "element", "please", "that", "this", "my", "at",
	})
	v.SetDefault("resolver.auth_keywords", []string{
		"login", "log-in", "signin", "sign-in", "password", "passwd", "pwd", "username",
		"email", "e-mail", "otp", "2fa", "mfa", "auth", "credential",
	})
	v.SetDefault("resolver.search_keywords", []string{"search", "query", "find", "lookup"})

	// -- Executor --
	v.SetDefault("executor.poll_interval", "100ms")
	v.SetDefault("executor.wait_timeout", "5s")
	v.SetDefault("executor.scroll_amount", 500)
	v.SetDefault("executor.enter_on_button_click", true)
	v.SetDefault("executor.settle_delay", "50ms")

	// -- Orchestrator --
	v.SetDefault("orchestrator.ready_timeout", "10s")
	v.SetDefault("orchestrator.ready_poll_min", "100ms")
	v.SetDefault("orchestrator.ready_poll_max", "3s")
	v.SetDefault("orchestrator.ready_retries", 3)
	v.SetDefault("orchestrator.max_concurrency", 4)
	v.SetDefault("orchestrator.command_timeout", "2m")

	// -- Planner --
	v.SetDefault("planner.enabled", false)
	v.SetDefault("planner.provider", "gemini")
	v.SetDefault("planner.model", "gemini-2.5-flash")
	v.SetDefault("planner.temperature", 0.1)
	v.SetDefault("planner.max_tokens", 1024)
	v.SetDefault("planner.timeout", "30s")
	v.SetDefault("planner.requests_per_minute", 30)
	v.SetDefault("planner.max_retries", 3)

	// -- Journal --
	v.SetDefault("journal.type", JournalNone)
	v.SetDefault("journal.path", "~/.pagewright/journal.jsonl")
	v.SetDefault("journal.max_size", 50)
	v.SetDefault("journal.max_backups", 3)
	v.SetDefault("journal.table", "command_journal")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9464")
	v.SetDefault("metrics.namespace", "pagewright")

	// -- Server --
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.address", ":8080")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	_ = v.BindEnv("planner.api_key", "PAGEWRIGHT_PLANNER_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("journal.url", "PAGEWRIGHT_JOURNAL_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.PlannerCfg.Enabled && cfg.PlannerCfg.APIKey == "" {
		cfg.PlannerCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in file paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.LoggerCfg.LogFile, &c.JournalCfg.Path, &c.BrowserCfg.ExecPath} {
		if *p == "" || !strings.HasPrefix(*p, "~") {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.AnalyzerCfg.Validate(); err != nil {
		return fmt.Errorf("analyzer configuration invalid: %w", err)
	}
	if err := c.ResolverCfg.Validate(); err != nil {
		return fmt.Errorf("resolver configuration invalid: %w", err)
	}
	if err := c.ExecutorCfg.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if err := c.OrchestratorCfg.Validate(); err != nil {
		return fmt.Errorf("orchestrator configuration invalid: %w", err)
	}
	if err := c.PlannerCfg.Validate(); err != nil {
		return fmt.Errorf("planner configuration invalid: %w", err)
	}
	if err := c.JournalCfg.Validate(); err != nil {
		return fmt.Errorf("journal configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	switch b.Mode {
	case BrowserModeCDP, BrowserModeOffline:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", BrowserModeCDP, BrowserModeOffline, b.Mode)
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the analyzer settings.
func (a *AnalyzerConfig) Validate() error {
	if a.StalenessWindow <= 0 {
		return fmt.Errorf("staleness_window must be a positive duration")
	}
	if a.TopN <= 0 {
		return fmt.Errorf("top_n must be a positive integer")
	}
	return nil
}

// Validate checks the resolver policy.
func (r *ResolverConfig) Validate() error {
	if r.MinScore <= 0 {
		return fmt.Errorf("min_score must be positive")
	}
	if r.SensitiveMinScore < r.MinScore {
		return fmt.Errorf("sensitive_min_score must not be lower than min_score")
	}
	return nil
}

// Validate checks the executor settings.
func (e *ExecutorConfig) Validate() error {
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if e.WaitTimeout < e.PollInterval {
		return fmt.Errorf("wait_timeout must be at least poll_interval")
	}
	return nil
}

// Validate checks the orchestrator settings.
func (o *OrchestratorConfig) Validate() error {
	if o.ReadyTimeout <= 0 {
		return fmt.Errorf("ready_timeout must be a positive duration")
	}
	if o.ReadyPollMin <= 0 || o.ReadyPollMax < o.ReadyPollMin {
		return fmt.Errorf("ready_poll_min must be positive and not above ready_poll_max")
	}
	if o.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the planner settings.
func (p *PlannerConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Provider != "gemini" {
		return fmt.Errorf("unsupported provider %q", p.Provider)
	}
	if p.Model == "" {
		return fmt.Errorf("model is required when the planner is enabled")
	}
	if p.APIKey == "" {
		return fmt.Errorf("API key is required but not found. Ensure PAGEWRIGHT_PLANNER_API_KEY or GEMINI_API_KEY is set")
	}
	return nil
}

// Validate checks the journal settings.
func (j *JournalConfig) Validate() error {
	switch j.Type {
	case "", JournalNone:
	case JournalFile:
		if j.Path == "" {
			return fmt.Errorf("path is required for the file journal")
		}
	case JournalPostgres:
		if j.URL == "" {
			return fmt.Errorf("url is required for the postgres journal")
		}
	default:
		return fmt.Errorf("unknown journal type %q", j.Type)
	}
	return nil
}
