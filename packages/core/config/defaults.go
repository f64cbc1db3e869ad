package config

const (
	// DefaultBaseURL is the deployed backend the suite targets
	DefaultBaseURL = "https://sitecraft-12.preview.emergentagent.com"
	// DefaultAPIPrefix is prepended to every endpoint path
	DefaultAPIPrefix = "/api"
	// DefaultResultsFile is where the results list is written at the end of a run
	DefaultResultsFile = "/app/backend_test_results.json"
	// DefaultRootMarker must appear in the API root message
	DefaultRootMarker = "CAUGUSTEG"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		APIPrefix:       DefaultAPIPrefix,
		ResultsFile:     DefaultResultsFile,
		RootMarker:      DefaultRootMarker,
		Timeout:         "",
		Rate:            0,
		FollowRedirects: boolPtr(true),
		ValidateSSL:     boolPtr(true),
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Notify: NotifyConfig{
			On: "failure",
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURL == defaults.BaseURL &&
		c.APIPrefix == defaults.APIPrefix &&
		c.ResultsFile == defaults.ResultsFile &&
		c.RootMarker == defaults.RootMarker &&
		c.Timeout == defaults.Timeout &&
		c.Rate == defaults.Rate &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == "" &&
		c.JUnitFile == "" &&
		c.TAPFile == "" &&
		c.MetricsFile == "" &&
		c.HistoryDB == "" &&
		len(c.Headers) == len(defaults.Headers) &&
		c.Notify.Slack.Webhook == "" &&
		c.Notify.Teams.Webhook == "" &&
		c.Datadog.APIKey == ""
}
