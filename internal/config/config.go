package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ontomcp/pkg/logging"
)

const (
	// TransportStreamableHTTP is the streamable HTTP transport.
	TransportStreamableHTTP = "http"
	// TransportStdio is the standard I/O transport.
	TransportStdio = "stdio"
)

// DefaultConfigDir is the per-user directory holding the config file and the
// persisted token file, relative to the home directory.
const DefaultConfigDir = ".onto-mcp"

// Config is the resolved runtime configuration. It is assembled once at
// startup from an optional YAML config file overlaid by environment
// variables; no other component reads configuration sources directly.
type Config struct {
	// KeycloakBaseURL is the base URL of the identity provider, e.g.
	// https://app.ontonet.ru.
	KeycloakBaseURL string `yaml:"keycloakBaseURL"`

	// KeycloakRealm is the identity provider realm.
	KeycloakRealm string `yaml:"keycloakRealm"`

	// KeycloakClientID is the OAuth client id used for all grants.
	KeycloakClientID string `yaml:"keycloakClientID"`

	// KeycloakClientSecret is optional; required only for the
	// client-credentials grant.
	KeycloakClientSecret string `yaml:"keycloakClientSecret,omitempty"`

	// OntoAPIBase is the base URL of the Onto platform API.
	OntoAPIBase string `yaml:"ontoAPIBase"`

	// Transport selects the MCP transport ("stdio" or "http").
	Transport string `yaml:"transport,omitempty"`

	// Host is the bind host for the HTTP transport.
	Host string `yaml:"host,omitempty"`

	// Port is the bind port for the HTTP transport.
	Port int `yaml:"port,omitempty"`

	// TokenDir overrides the directory for the persisted token file.
	TokenDir string `yaml:"tokenDir,omitempty"`
}

// Load resolves the configuration: defaults, then the optional config file
// at ~/.onto-mcp/config.yaml, then environment variables. Validation errors
// are returned to the caller; a missing or unreadable config file is not an
// error.
func Load() (*Config, error) {
	cfg := &Config{
		Transport: TransportStdio,
		Host:      "localhost",
		Port:      8080,
	}

	if path, err := defaultConfigFilePath(); err == nil {
		if err := loadFile(path, cfg); err != nil {
			logging.Warn("Config", "Ignoring config file %s: %v", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required settings are present.
func (c *Config) Validate() error {
	var missing []string
	if c.KeycloakBaseURL == "" {
		missing = append(missing, "KEYCLOAK_BASE_URL")
	}
	if c.KeycloakRealm == "" {
		missing = append(missing, "KEYCLOAK_REALM")
	}
	if c.KeycloakClientID == "" {
		missing = append(missing, "KEYCLOAK_CLIENT_ID")
	}
	if c.OntoAPIBase == "" {
		missing = append(missing, "ONTO_API_BASE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		return fmt.Errorf("transport must be %q or %q, got %q", TransportStdio, TransportStreamableHTTP, c.Transport)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	return nil
}

// TokenDirOrDefault returns the configured token directory, falling back to
// ~/.onto-mcp.
func (c *Config) TokenDirOrDefault() (string, error) {
	if c.TokenDir != "" {
		return c.TokenDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir), nil
}

func defaultConfigFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DefaultConfigDir, "config.yaml"), nil
}

// loadFile overlays settings from a YAML file onto cfg. A missing file is
// not an error.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	logging.Debug("Config", "Loaded config file from %s", path)
	return nil
}

// applyEnv overlays environment variables onto cfg. Environment variables
// take precedence over the config file so mcp.json-style client
// configurations work unchanged.
func applyEnv(cfg *Config) {
	setString(&cfg.KeycloakBaseURL, "KEYCLOAK_BASE_URL")
	setString(&cfg.KeycloakRealm, "KEYCLOAK_REALM")
	setString(&cfg.KeycloakClientID, "KEYCLOAK_CLIENT_ID")
	setString(&cfg.KeycloakClientSecret, "KEYCLOAK_CLIENT_SECRET")
	setString(&cfg.OntoAPIBase, "ONTO_API_BASE")
	setString(&cfg.Transport, "MCP_TRANSPORT")
	setString(&cfg.Host, "MCP_HOST")
	setString(&cfg.TokenDir, "ONTO_MCP_TOKEN_DIR")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		} else {
			logging.Warn("Config", "Ignoring invalid PORT value %q", v)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
