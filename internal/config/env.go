package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override fundsync.yaml. Secrets belong here
// rather than in the YAML file.
const (
	EnvClientID     = "FUNDSYNC_CLIENT_ID"
	EnvClientSecret = "FUNDSYNC_CLIENT_SECRET"
	EnvRedirectURI  = "FUNDSYNC_REDIRECT_URI"
	EnvBaseURL      = "FUNDSYNC_BASE_URL"
	EnvDataDir      = "FUNDSYNC_DATA_DIR"
	EnvLogLevel     = "FUNDSYNC_LOG_LEVEL"
)

// ReadEnvFile reads KEY=value pairs from a .env file. A missing file yields
// an empty map.
func ReadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return vars, nil
}

// ApplyEnv overrides fields from file vars and then the process environment,
// which wins.
func (c *Config) ApplyEnv(file map[string]string) {
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return file[key]
	}

	set := func(dst *string, key string) {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	set(&c.Streamlabs.ClientID, EnvClientID)
	set(&c.Streamlabs.ClientSecret, EnvClientSecret)
	set(&c.Streamlabs.RedirectURI, EnvRedirectURI)
	set(&c.Streamlabs.BaseURL, EnvBaseURL)
	set(&c.Storage.DataDir, EnvDataDir)
	set(&c.Log.Level, EnvLogLevel)
}
