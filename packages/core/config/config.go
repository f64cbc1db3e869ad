package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the smokecheck configuration
type Config struct {
	BaseURL         string            `yaml:"baseURL,omitempty"`
	APIPrefix       string            `yaml:"apiPrefix,omitempty"`
	ResultsFile     string            `yaml:"resultsFile,omitempty"`
	JUnitFile       string            `yaml:"junitFile,omitempty"`
	TAPFile         string            `yaml:"tapFile,omitempty"`
	MetricsFile     string            `yaml:"metricsFile,omitempty"`
	HistoryDB       string            `yaml:"historyDB,omitempty"`
	RootMarker      string            `yaml:"rootMarker,omitempty"`
	Timeout         string            `yaml:"timeout,omitempty"` // e.g. 30s, empty for none
	Rate            float64           `yaml:"rate,omitempty"`    // requests per second, 0 for unpaced
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Notify          NotifyConfig      `yaml:"notify,omitempty"`
	Datadog         DatadogConfig     `yaml:"datadog,omitempty"`
}

// DatadogConfig enables pushing run metrics to DataDog
type DatadogConfig struct {
	APIKey string   `yaml:"apiKey,omitempty"`
	Site   string   `yaml:"site,omitempty"`
	Tags   []string `yaml:"tags,omitempty"`
}

// NotifyConfig holds webhook settings for run summaries
type NotifyConfig struct {
	On    string        `yaml:"on,omitempty"` // always, failure, success, recovery
	Slack WebhookConfig `yaml:"slack,omitempty"`
	Teams WebhookConfig `yaml:"teams,omitempty"`
}

// WebhookConfig is a single webhook target
type WebhookConfig struct {
	Webhook string `yaml:"webhook,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetTimeout parses Timeout; an empty value means no client-side timeout
func (c *Config) GetTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout value %q: must not be negative", c.Timeout)
	}
	return d, nil
}

// Validate checks values that would make every request fail
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("baseURL must not be empty")
	}
	if c.ResultsFile == "" {
		return fmt.Errorf("resultsFile must not be empty")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	if _, err := c.GetTimeout(); err != nil {
		return err
	}
	switch c.Notify.On {
	case "", "always", "failure", "success", "recovery":
	default:
		return fmt.Errorf("notify.on must be one of always, failure, success, recovery (got %q)", c.Notify.On)
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".smokecheck.yaml",
	"smokecheck.yaml",
	".smokecheck.yml",
	"smokecheck.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or ""
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	fileCfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return DefaultConfig().Merge(fileCfg), nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy
	result.Headers = make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		result.Headers[k] = v
	}

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.APIPrefix != "" {
		result.APIPrefix = other.APIPrefix
	}
	if other.ResultsFile != "" {
		result.ResultsFile = other.ResultsFile
	}
	if other.JUnitFile != "" {
		result.JUnitFile = other.JUnitFile
	}
	if other.TAPFile != "" {
		result.TAPFile = other.TAPFile
	}
	if other.MetricsFile != "" {
		result.MetricsFile = other.MetricsFile
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.RootMarker != "" {
		result.RootMarker = other.RootMarker
	}
	if other.Timeout != "" {
		result.Timeout = other.Timeout
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}

	for k, v := range other.Headers {
		result.Headers[k] = v
	}

	if other.Notify.On != "" {
		result.Notify.On = other.Notify.On
	}
	if other.Notify.Slack.Webhook != "" {
		result.Notify.Slack = other.Notify.Slack
	}
	if other.Notify.Teams.Webhook != "" {
		result.Notify.Teams = other.Notify.Teams
	}

	if other.Datadog.APIKey != "" {
		result.Datadog.APIKey = other.Datadog.APIKey
	}
	if other.Datadog.Site != "" {
		result.Datadog.Site = other.Datadog.Site
	}
	if len(other.Datadog.Tags) > 0 {
		result.Datadog.Tags = other.Datadog.Tags
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
