package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fundsync-dev/fundsync/internal/forward"
	"github.com/fundsync-dev/fundsync/internal/history"
)

// FileName is the config file looked up in the working directory.
const FileName = "fundsync.yaml"

// Config represents the top-level fundsync.yaml configuration.
type Config struct {
	Streamlabs StreamlabsConfig `yaml:"streamlabs"`
	HTTP       HTTPConfig       `yaml:"http"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// StreamlabsConfig identifies the registered Streamlabs application.
type StreamlabsConfig struct {
	BaseURL      string   `yaml:"base_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes"`
	Currency     string   `yaml:"currency"`
	Message      string   `yaml:"message"` // sent with every forwarded payment
}

// HTTPConfig bounds calls to the donation API.
type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// StorageConfig locates persisted state. Relative paths resolve against DataDir.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	HistoryFile     string `yaml:"history_file"`
	CredentialsFile string `yaml:"credentials_file"`
	Capacity        int    `yaml:"capacity"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ServerConfig controls `fundsync serve`.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads a fundsync.yaml file from disk. Unset fields take defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new installation.
func Default() *Config {
	return &Config{
		Streamlabs: StreamlabsConfig{
			BaseURL:     forward.DefaultBaseURL,
			RedirectURI: "fundsync://com.zero.fundsync",
			Scopes:      append([]string(nil), forward.DefaultScopes...),
			Currency:    forward.DefaultCurrency,
			Message:     forward.DefaultMessage,
		},
		HTTP: HTTPConfig{
			ConnectTimeout: forward.DefaultConnectTimeout,
			ReadTimeout:    forward.DefaultReadTimeout,
			WriteTimeout:   forward.DefaultWriteTimeout,
		},
		Storage: StorageConfig{
			DataDir:         ".fundsync",
			HistoryFile:     "notifications.json",
			CredentialsFile: "credentials.yaml",
			Capacity:        history.DefaultCapacity,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8765",
		},
	}
}

// HistoryPath returns the event log location.
func (c *Config) HistoryPath() string {
	return c.Storage.resolve(c.Storage.HistoryFile)
}

// StatePath returns where the pending authorization state is kept.
func (c *Config) StatePath() string {
	return c.Storage.resolve("oauth_state")
}

// CredentialsPath returns the token file location.
func (c *Config) CredentialsPath() string {
	return c.Storage.resolve(c.Storage.CredentialsFile)
}

func (s StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

// Forward returns the forwarder settings.
func (c *Config) Forward() forward.Config {
	return forward.Config{
		BaseURL:        c.Streamlabs.BaseURL,
		ClientID:       c.Streamlabs.ClientID,
		ClientSecret:   c.Streamlabs.ClientSecret,
		RedirectURI:    c.Streamlabs.RedirectURI,
		Scopes:         c.Streamlabs.Scopes,
		Currency:       c.Streamlabs.Currency,
		ConnectTimeout: c.HTTP.ConnectTimeout,
		ReadTimeout:    c.HTTP.ReadTimeout,
		WriteTimeout:   c.HTTP.WriteTimeout,
	}
}
