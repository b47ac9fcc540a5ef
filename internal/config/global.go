package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default service endpoints.
const (
	DefaultBaseURL     = "https://api.mendeley.com"
	DefaultAuthURL     = "https://api.mendeley.com/oauth/authorize"
	DefaultTokenURL    = "https://api.mendeley.com/oauth/token"
	DefaultRedirectURI = "http://localhost:5000/oauth"
)

// GlobalConfig represents configuration stored in ~/.config/mly/config.yml.
type GlobalConfig struct {
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	RedirectURI  string `yaml:"redirect_uri,omitempty"`
	User         string `yaml:"user,omitempty"`
	DataDir      string `yaml:"data_dir,omitempty"`
	DevToken     string `yaml:"dev_token,omitempty"`
	// Public uses the client-credentials grant (catalog-only access).
	Public bool `yaml:"public,omitempty"`

	BaseURL  string `yaml:"base_url,omitempty"`
	AuthURL  string `yaml:"auth_url,omitempty"`
	TokenURL string `yaml:"token_url,omitempty"`

	HTTP  HTTPConfig  `yaml:"http,omitempty"`
	Match MatchConfig `yaml:"match,omitempty"`
}

// HTTPConfig tunes the session. Zero values fall back to the session defaults.
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	RateLimit     float64       `yaml:"rate_limit,omitempty"` // requests per second
	MaxAttempts   int           `yaml:"max_attempts,omitempty"`
	BackoffBase   time.Duration `yaml:"backoff_base,omitempty"`
	BackoffMax    time.Duration `yaml:"backoff_max,omitempty"`
	RefreshMargin time.Duration `yaml:"refresh_margin,omitempty"`
	PageLimit     int           `yaml:"page_limit,omitempty"`
}

// MatchConfig tunes the reference matcher. Zero values fall back to defaults.
type MatchConfig struct {
	Threshold    float64 `yaml:"threshold,omitempty"`
	TitleWeight  float64 `yaml:"title_weight,omitempty"`
	AuthorWeight float64 `yaml:"author_weight,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "mly"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment variables that override the config file.
const (
	EnvClientID     = "MLY_CLIENT_ID"
	EnvClientSecret = "MLY_CLIENT_SECRET"
	EnvDevToken     = "MLY_DEV_TOKEN"
	EnvDataDir      = "MLY_DATA_DIR"
	EnvUser         = "MLY_USER"
	EnvBaseURL      = "MLY_BASE_URL"
)

// ErrClientNotConfigured is returned when client_id or client_secret is missing.
var ErrClientNotConfigured = errors.New("client credentials not configured")

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/mly/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file, applies environment
// overrides and fills unset endpoints with defaults.
// A missing file is not an error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// GetConfigValue returns the environment variable if set, else the config value.
func GetConfigValue(envKey, configValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return configValue
}

func (c *GlobalConfig) applyEnv() {
	c.ClientID = GetConfigValue(EnvClientID, c.ClientID)
	c.ClientSecret = GetConfigValue(EnvClientSecret, c.ClientSecret)
	c.DevToken = GetConfigValue(EnvDevToken, c.DevToken)
	c.DataDir = GetConfigValue(EnvDataDir, c.DataDir)
	c.User = GetConfigValue(EnvUser, c.User)
	c.BaseURL = GetConfigValue(EnvBaseURL, c.BaseURL)
}

func (c *GlobalConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	c.DataDir = ExpandPath(c.DataDir)
}

// Validate checks that the client credentials needed for any grant are set.
func (c *GlobalConfig) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrClientNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Redacted returns a copy safe to print: secrets are masked.
func (c GlobalConfig) Redacted() GlobalConfig {
	c.ClientSecret = redact(c.ClientSecret)
	c.DevToken = redact(c.DevToken)
	return c
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// HelpfulConfigMessage returns a hint for setting up client credentials.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No Mendeley client credentials configured.

Register an app at https://dev.mendeley.com/myapps.html, then create %s:
  mkdir -p %s
  cat > %s <<'YAML'
  client_id: "1234"
  client_secret: "..."
  redirect_uri: "%s"
  YAML

Alternatively set %s and %s (a .env file is read too).`,
		configPath,
		filepath.Dir(configPath),
		configPath,
		DefaultRedirectURI,
		EnvClientID, EnvClientSecret)
}
