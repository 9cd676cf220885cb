package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KEYCLOAK_BASE_URL", "https://idp.example.com")
	t.Setenv("KEYCLOAK_REALM", "onto")
	t.Setenv("KEYCLOAK_CLIENT_ID", "onto-client")
	t.Setenv("ONTO_API_BASE", "https://api.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	// Point HOME at an empty dir so no real user config file interferes.
	t.Setenv("HOME", t.TempDir())
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://idp.example.com", cfg.KeycloakBaseURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEYCLOAK_BASE_URL", "")
	t.Setenv("KEYCLOAK_REALM", "")
	t.Setenv("KEYCLOAK_CLIENT_ID", "")
	t.Setenv("ONTO_API_BASE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEYCLOAK_BASE_URL")
	assert.Contains(t, err.Error(), "ONTO_API_BASE")
}

func TestLoad_ConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, DefaultConfigDir)
	require.NoError(t, os.MkdirAll(configDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(`
keycloakBaseURL: https://file.example.com
keycloakRealm: file-realm
keycloakClientID: file-client
ontoAPIBase: https://file-api.example.com
transport: http
port: 9090
`), 0600))

	// No env overrides beyond what the file provides.
	for _, key := range []string{"KEYCLOAK_BASE_URL", "KEYCLOAK_REALM", "KEYCLOAK_CLIENT_ID", "ONTO_API_BASE", "MCP_TRANSPORT", "PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", cfg.KeycloakBaseURL)
	assert.Equal(t, "file-realm", cfg.KeycloakRealm)
	assert.Equal(t, TransportStreamableHTTP, cfg.Transport)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, DefaultConfigDir)
	require.NoError(t, os.MkdirAll(configDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(`
keycloakBaseURL: https://file.example.com
keycloakRealm: file-realm
keycloakClientID: file-client
ontoAPIBase: https://file-api.example.com
`), 0600))

	setRequiredEnv(t)
	t.Setenv("MCP_TRANSPORT", "http")
	t.Setenv("PORT", "3001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.com", cfg.KeycloakBaseURL, "env wins over file")
	assert.Equal(t, TransportStreamableHTTP, cfg.Transport)
	assert.Equal(t, 3001, cfg.Port)
}

func TestLoad_CorruptConfigFileIgnored(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, DefaultConfigDir)
	require.NoError(t, os.MkdirAll(configDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("{not yaml"), 0600))

	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err, "corrupt config file falls back to env")
	assert.Equal(t, "https://idp.example.com", cfg.KeycloakBaseURL)
}

func TestValidate(t *testing.T) {
	valid := Config{
		KeycloakBaseURL:  "https://idp.example.com",
		KeycloakRealm:    "onto",
		KeycloakClientID: "onto-client",
		OntoAPIBase:      "https://api.example.com",
		Transport:        TransportStdio,
		Port:             8080,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad transport", func(c *Config) { c.Transport = "websocket" }, "transport"},
		{"port too low", func(c *Config) { c.Port = 0 }, "port"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port"},
		{"missing realm", func(c *Config) { c.KeycloakRealm = "" }, "KEYCLOAK_REALM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTokenDirOrDefault(t *testing.T) {
	cfg := Config{TokenDir: "/custom/dir"}
	dir, err := cfg.TokenDirOrDefault()
	require.NoError(t, err)
	assert.Equal(t, "/custom/dir", dir)

	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg.TokenDir = ""
	dir, err = cfg.TokenDirOrDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultConfigDir), dir)
}
