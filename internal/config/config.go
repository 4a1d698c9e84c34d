// Package config builds the explicit configuration struct threaded into
// every API client. Values come from the environment (optionally via .env
// files loaded by the CLI) through Viper; nothing reads process-wide state
// after Load returns.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentstation/ownersync/pkg/errors"
)

// Environment variable names recognized by Load.
const (
	EnvAPIKey        = "DD_API_KEY"
	EnvAppKey        = "DD_APP_KEY"
	EnvSite          = "DD_SITE"
	EnvTableName     = "REF_TABLE_NAME"
	EnvTableID       = "REF_TABLE_ID"
	EnvServiceColumn = "REF_TABLE_COL_1"
	EnvTeamColumn    = "REF_TABLE_COL_2"
)

// Defaults applied when the environment leaves a value unset.
const (
	DefaultSite          = "datadoghq.com"
	DefaultTableName     = "reference_table"
	DefaultServiceColumn = "service"
	DefaultTeamColumn    = "team"
)

// Config holds the credentials and reference-table identity for one run.
type Config struct {
	APIKey string
	AppKey string
	Site   string

	// TableName is resolved to an id at run start. TableID, when set,
	// bypasses the lookup entirely.
	TableName string
	TableID   string

	ServiceColumn string
	TeamColumn    string
}

// Load builds a Config from Viper-bound environment variables.
func Load() *Config {
	for _, key := range []string{
		EnvAPIKey, EnvAppKey, EnvSite,
		EnvTableName, EnvTableID, EnvServiceColumn, EnvTeamColumn,
	} {
		_ = viper.BindEnv(key)
	}

	cfg := &Config{
		APIKey:        getString(EnvAPIKey),
		AppKey:        getString(EnvAppKey),
		Site:          getString(EnvSite),
		TableName:     getString(EnvTableName),
		TableID:       getString(EnvTableID),
		ServiceColumn: getString(EnvServiceColumn),
		TeamColumn:    getString(EnvTeamColumn),
	}

	if cfg.Site == "" {
		cfg.Site = DefaultSite
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if cfg.ServiceColumn == "" {
		cfg.ServiceColumn = DefaultServiceColumn
	}
	if cfg.TeamColumn == "" {
		cfg.TeamColumn = DefaultTeamColumn
	}

	return cfg
}

// Validate checks that credentials required by every call are present.
func (c *Config) Validate() error {
	if c.APIKey == "" || c.AppKey == "" {
		return &errors.ConfigError{
			Component: "credentials",
			Message:   EnvAPIKey + " and " + EnvAppKey + " must be set in your environment or .env",
		}
	}
	return nil
}

// BaseURL derives the API base URL from the configured site.
// A full URL passes through, an api.-prefixed host gains a scheme, and a
// bare site becomes https://api.{site}.
func (c *Config) BaseURL() string {
	site := strings.TrimSpace(c.Site)
	if strings.HasPrefix(site, "http://") || strings.HasPrefix(site, "https://") {
		return strings.TrimRight(site, "/")
	}
	if strings.HasPrefix(site, "api.") {
		return "https://" + site
	}
	return "https://api." + site
}

// getString reads a key from Viper, falling back to the raw environment.
func getString(key string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(key)
}
