package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Upstream strategies.
const (
	StrategyTabular = "tabular"
	StrategyEntries = "entries"
)

// Tabular transports.
const (
	TransportHTTP = "http"
	TransportS3   = "s3"
)

// Aggregation failure policies.
const (
	PolicyTolerate = "tolerate"
	PolicyFailFast = "fail_fast"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Charts      ChartsConfig      `yaml:"charts"`
	Calendar    CalendarConfig    `yaml:"calendar"`
	Regions     []string          `yaml:"regions"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Tabular     TabularConfig     `yaml:"tabular"`
	Entries     EntriesConfig     `yaml:"entries"`
	Aggregation AggregationConfig `yaml:"aggregation"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ShutdownTimeout returns the graceful shutdown window as a duration
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChartsConfig holds request-level chart behaviour
type ChartsConfig struct {
	// LatestShorthand makes a request without start and end resolve to the
	// most recent published chart only. Nil means enabled.
	LatestShorthand *bool `yaml:"latest_shorthand"`
}

// LatestShorthandEnabled reports whether the latest shorthand is on.
func (c ChartsConfig) LatestShorthandEnabled() bool {
	return c.LatestShorthand == nil || *c.LatestShorthand
}

// CalendarConfig holds the publication rules of each chart.
type CalendarConfig struct {
	// Epochs maps a chart identifier (top200_daily, ...) to its first
	// published date, YYYY-MM-DD.
	Epochs map[string]string `yaml:"epochs"`
	// LagDays is how many days behind today the newest chart is published.
	// Defaults to 1 when the key is absent; 0 is honoured.
	LagDays int `yaml:"lag_days"`
}

// UpstreamConfig holds settings shared by every upstream strategy
type UpstreamConfig struct {
	Strategy       string `yaml:"strategy"` // "tabular" or "entries"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"` // 0 disables retries
	UserAgent      string `yaml:"user_agent"`

	// RequestsPerSecond caps outbound upstream calls; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Timeout returns the configured timeout as a duration
func (c UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TabularConfig holds the CSV export source settings
type TabularConfig struct {
	Transport     string            `yaml:"transport"` // "http" or "s3"
	BaseURL       string            `yaml:"base_url"`
	PathTemplates map[string]string `yaml:"path_templates"`
	S3Bucket      string            `yaml:"s3_bucket"`
	S3Prefix      string            `yaml:"s3_prefix"`
	S3Region      string            `yaml:"s3_region"`
	AWSProfile    string            `yaml:"aws_profile"`
	AccessKey     string            `yaml:"access_key"`
	SecretKey     string            `yaml:"secret_key"`
}

// EntriesConfig holds the chart-entries API settings
type EntriesConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Token          string            `yaml:"token"`
	ClientID       string            `yaml:"client_id"`
	ClientSecret   string            `yaml:"client_secret"`
	TokenURL       string            `yaml:"token_url"`
	Scopes         []string          `yaml:"scopes"`
	AliasTemplates map[string]string `yaml:"alias_templates"`
}

// HasCredential reports whether a bearer token or client credentials are set.
func (c EntriesConfig) HasCredential() bool {
	return c.Token != "" || c.UsesClientCredentials()
}

// UsesClientCredentials reports whether tokens are minted via the OAuth2
// client-credentials flow instead of a static token.
func (c EntriesConfig) UsesClientCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}

// AggregationConfig controls the per-pair fetch loop
type AggregationConfig struct {
	Policy      string `yaml:"policy"` // "tolerate" or "fail_fast"
	Concurrency int    `yaml:"concurrency"`
}

// DefaultRegions is the closed set of supported region codes.
var DefaultRegions = []string{
	"global",
	"ad", "ar", "at", "au", "be", "bg", "bo", "br", "ca", "ch",
	"cl", "co", "cr", "cy", "cz", "de", "dk", "do", "ec", "ee",
	"es", "fi", "fr", "gb", "gr", "gt", "hk", "hn", "hu", "id",
	"ie", "il", "is", "it", "jp", "lt", "lu", "lv", "mc", "mt",
	"mx", "my", "ni", "nl", "no", "nz", "pa", "pe", "ph", "pl",
	"pt", "py", "ro", "se", "sg", "sk", "sv", "th", "tr", "tw",
	"us", "uy", "vn",
}

// DefaultEpochs are the first published dates of each chart.
var DefaultEpochs = map[string]string{
	"top200_daily":   "2017-01-01",
	"top200_weekly":  "2016-12-29",
	"viral50_daily":  "2017-01-01",
	"viral50_weekly": "2017-01-05",
}

// DefaultPathTemplates are the tabular export paths of each chart.
var DefaultPathTemplates = map[string]string{
	"top200_daily":   "regional/{region}/daily/{period}/download",
	"top200_weekly":  "regional/{region}/weekly/{period}/download",
	"viral50_daily":  "viral/{region}/daily/{period}/download",
	"viral50_weekly": "viral/{region}/weekly/{period}/download",
}

// DefaultAliasTemplates are the chart-entries aliases of each chart.
var DefaultAliasTemplates = map[string]string{
	"top200_daily":   "regional-{region}-daily",
	"top200_weekly":  "regional-{region}-weekly",
	"viral50_daily":  "viral-{region}-daily",
	"viral50_weekly": "viral-{region}-weekly",
}

const defaultLagDays = 1

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Seeded before decoding so an explicit lag_days: 0 is kept.
	cfg := Config{Calendar: CalendarConfig{LagDays: defaultLagDays}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := Config{Calendar: CalendarConfig{LagDays: defaultLagDays}}
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 15
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = append([]string(nil), DefaultRegions...)
	}
	cfg.Calendar.Epochs = withDefaults(cfg.Calendar.Epochs, DefaultEpochs)
	if cfg.Upstream.Strategy == "" {
		cfg.Upstream.Strategy = StrategyEntries
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = 15
	}
	if cfg.Upstream.Burst == 0 {
		cfg.Upstream.Burst = 1
	}
	if cfg.Upstream.UserAgent == "" {
		cfg.Upstream.UserAgent = "chart-gateway/1.0"
	}
	if cfg.Tabular.Transport == "" {
		cfg.Tabular.Transport = TransportHTTP
	}
	if cfg.Tabular.BaseURL == "" {
		cfg.Tabular.BaseURL = "https://spotifycharts.com"
	}
	if cfg.Tabular.S3Region == "" {
		cfg.Tabular.S3Region = "us-east-1"
	}
	cfg.Tabular.PathTemplates = withDefaults(cfg.Tabular.PathTemplates, DefaultPathTemplates)
	if cfg.Entries.BaseURL == "" {
		cfg.Entries.BaseURL = "https://charts-spotify-com-service.spotify.com/auth/v0"
	}
	cfg.Entries.AliasTemplates = withDefaults(cfg.Entries.AliasTemplates, DefaultAliasTemplates)
	if cfg.Aggregation.Policy == "" {
		cfg.Aggregation.Policy = PolicyTolerate
	}
	if cfg.Aggregation.Concurrency == 0 {
		cfg.Aggregation.Concurrency = 4
	}
}

func withDefaults(m, defaults map[string]string) map[string]string {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Validate rejects settings that cannot be served.
func (c *Config) Validate() error {
	switch c.Upstream.Strategy {
	case StrategyTabular, StrategyEntries:
	default:
		return fmt.Errorf("upstream.strategy must be %q or %q, got %q", StrategyTabular, StrategyEntries, c.Upstream.Strategy)
	}
	switch c.Tabular.Transport {
	case TransportHTTP, TransportS3:
	default:
		return fmt.Errorf("tabular.transport must be %q or %q, got %q", TransportHTTP, TransportS3, c.Tabular.Transport)
	}
	if c.Upstream.Strategy == StrategyTabular && c.Tabular.Transport == TransportS3 && c.Tabular.S3Bucket == "" {
		return fmt.Errorf("tabular.s3_bucket is required for the s3 transport")
	}
	switch c.Aggregation.Policy {
	case PolicyTolerate, PolicyFailFast:
	default:
		return fmt.Errorf("aggregation.policy must be %q or %q, got %q", PolicyTolerate, PolicyFailFast, c.Aggregation.Policy)
	}
	if c.Aggregation.Concurrency < 1 {
		return fmt.Errorf("aggregation.concurrency must be positive, got %d", c.Aggregation.Concurrency)
	}
	if c.Upstream.TimeoutSeconds < 1 {
		return fmt.Errorf("upstream.timeout_seconds must be positive, got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return fmt.Errorf("upstream.requests_per_second must not be negative, got %v", c.Upstream.RequestsPerSecond)
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries must not be negative, got %d", c.Upstream.MaxRetries)
	}
	for name, epoch := range c.Calendar.Epochs {
		if _, err := time.Parse("2006-01-02", epoch); err != nil {
			return fmt.Errorf("calendar.epochs.%s: %w", name, err)
		}
	}
	return nil
}

// envOverrides are read from CHARTS_* environment variables.
type envOverrides struct {
	Port           int     `envconfig:"PORT"`
	Host           string  `envconfig:"HOST"`
	LogLevel       string  `envconfig:"LOG_LEVEL"`
	Strategy       string  `envconfig:"UPSTREAM_STRATEGY"`
	TimeoutSeconds int     `envconfig:"UPSTREAM_TIMEOUT_SECONDS"`
	RatePerSecond  float64 `envconfig:"UPSTREAM_REQUESTS_PER_SECOND"`
	Token          string  `envconfig:"UPSTREAM_TOKEN"`
	ClientID       string  `envconfig:"UPSTREAM_CLIENT_ID"`
	ClientSecret   string  `envconfig:"UPSTREAM_CLIENT_SECRET"`
	TokenURL       string  `envconfig:"UPSTREAM_TOKEN_URL"`
	EntriesBaseURL string  `envconfig:"ENTRIES_BASE_URL"`
	TabularBaseURL string  `envconfig:"TABULAR_BASE_URL"`
	Transport      string  `envconfig:"TABULAR_TRANSPORT"`
	S3Bucket       string  `envconfig:"TABULAR_S3_BUCKET"`
	S3Region       string  `envconfig:"TABULAR_S3_REGION"`
	AWSProfile     string  `envconfig:"TABULAR_AWS_PROFILE"`
	Policy         string  `envconfig:"AGGREGATION_POLICY"`
	Concurrency    int     `envconfig:"AGGREGATION_CONCURRENCY"`
}

// LoadFromEnv loads configuration with environment variable overrides.
// A missing config file is not an error; defaults are used instead.
// It automatically loads a .env file (if present) before reading env vars,
// so the upstream token can live in .env locally and in real env vars in
// deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}

	var env envOverrides
	if err := envconfig.Process("CHARTS", &env); err != nil {
		return nil, fmt.Errorf("processing env overrides: %w", err)
	}
	env.apply(cfg)

	return cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	if e.Port != 0 {
		cfg.Server.Port = e.Port
	}
	if e.Host != "" {
		cfg.Server.Host = e.Host
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	if e.Strategy != "" {
		cfg.Upstream.Strategy = e.Strategy
	}
	if e.TimeoutSeconds != 0 {
		cfg.Upstream.TimeoutSeconds = e.TimeoutSeconds
	}
	if e.RatePerSecond != 0 {
		cfg.Upstream.RequestsPerSecond = e.RatePerSecond
	}
	if e.Token != "" {
		cfg.Entries.Token = e.Token
	}
	if e.ClientID != "" {
		cfg.Entries.ClientID = e.ClientID
	}
	if e.ClientSecret != "" {
		cfg.Entries.ClientSecret = e.ClientSecret
	}
	if e.TokenURL != "" {
		cfg.Entries.TokenURL = e.TokenURL
	}
	if e.EntriesBaseURL != "" {
		cfg.Entries.BaseURL = e.EntriesBaseURL
	}
	if e.TabularBaseURL != "" {
		cfg.Tabular.BaseURL = e.TabularBaseURL
	}
	if e.Transport != "" {
		cfg.Tabular.Transport = e.Transport
	}
	if e.S3Bucket != "" {
		cfg.Tabular.S3Bucket = e.S3Bucket
	}
	if e.S3Region != "" {
		cfg.Tabular.S3Region = e.S3Region
	}
	if e.AWSProfile != "" {
		cfg.Tabular.AWSProfile = e.AWSProfile
	}
	if e.Policy != "" {
		cfg.Aggregation.Policy = e.Policy
	}
	if e.Concurrency != 0 {
		cfg.Aggregation.Concurrency = e.Concurrency
	}
}
