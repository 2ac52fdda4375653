package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Backend    BackendConfig    `yaml:"backend"`
	Admin      AdminConfig      `yaml:"admin"`
	Redis      RedisConfig      `yaml:"redis"`
	Store      StoreConfig      `yaml:"store"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Search     SearchConfig     `yaml:"search"`
	Directory  DirectoryConfig  `yaml:"directory"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// BackendConfig points the console at the booking backend. Credentials are
// ambient: every call carries the same session headers.
type BackendConfig struct {
	BaseURL        string  `yaml:"base_url"`
	SessionToken   string  `yaml:"session_token"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// AdminConfig describes the console's own HTTP surface consumed by the
// admin panel.
type AdminConfig struct {
	Port      int               `yaml:"port"`
	Auth      AdminAuthConfig   `yaml:"auth"`
	RateLimit AdminRateLimitCfg `yaml:"rate_limit"`
}

type AdminAuthConfig struct {
	Enabled      bool             `yaml:"enabled"`
	HeaderAPIKey string           `yaml:"header_api_key"`
	HeaderExtra  string           `yaml:"header_extra"`
	APIKeys      []AdminClientKey `yaml:"api_keys"`
}

type AdminClientKey struct {
	Key   string `yaml:"key"`
	Extra string `yaml:"extra"`
	Name  string `yaml:"name"`
}

type AdminRateLimitCfg struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	CredentialsFile    string `yaml:"credentials_file"`
	AuditSpreadsheetID string `yaml:"audit_spreadsheet_id"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// ReconcileConfig carries the placeholder-email patterns used to decide
// whether the remember-email opt-in defaults on. Imported emails with a
// synthetic vendor domain or prefix should not be remembered.
type ReconcileConfig struct {
	PlaceholderDomains  []string `yaml:"placeholder_domains"`
	PlaceholderPrefixes []string `yaml:"placeholder_prefixes"`
}

type SearchConfig struct {
	DebounceMillis int `yaml:"debounce_millis"`
	MinQueryLength int `yaml:"min_query_length"`
}

type DirectoryConfig struct {
	TTLMinutes     int `yaml:"ttl_minutes"`
	RefreshMinutes int `yaml:"refresh_minutes"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment variables are expanded before parsing so secrets can
	// stay out of the YAML file.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend base_url is required")
	}

	if c.Admin.Auth.Enabled && len(c.Admin.Auth.APIKeys) == 0 {
		return errors.New("admin auth is enabled but no api keys are configured")
	}

	for _, d := range c.Reconcile.PlaceholderDomains {
		if strings.ContainsAny(d, " @") {
			return fmt.Errorf("invalid placeholder domain %q", d)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 10
	}
	if c.Backend.RateLimitBurst == 0 {
		c.Backend.RateLimitBurst = 10
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8080
	}
	if c.Admin.Auth.HeaderAPIKey == "" {
		c.Admin.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Admin.Auth.HeaderExtra == "" {
		c.Admin.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/teesheet.db"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Search.DebounceMillis == 0 {
		c.Search.DebounceMillis = 300
	}
	if c.Search.MinQueryLength == 0 {
		c.Search.MinQueryLength = 3
	}
	if c.Directory.TTLMinutes == 0 {
		c.Directory.TTLMinutes = 30
	}
	if c.Directory.RefreshMinutes == 0 {
		c.Directory.RefreshMinutes = 15
	}
}
