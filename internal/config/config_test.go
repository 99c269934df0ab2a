package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFrom_DeploymentFileWithDefaults(t *testing.T) {
	// Arrange
	path := writeConfigFile(t, `{
		"agencyId": "co.monroe.il.us",
		"agencyName": "Monroe County",
		"createdBy": "gis",
		"ng911GDBSchemasPath": "/data/schemas"
	}`)

	// Act
	cfg, err := LoadFrom(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "co.monroe.il.us", cfg.NG911.AgencyID)
	assert.Equal(t, "Monroe County", cfg.NG911.AgencyName)
	assert.Equal(t, "gis", cfg.NG911.CreatedBy)
	assert.Equal(t, "/data/schemas", cfg.NG911.SchemasPath)

	// defaults fill everything the file omits
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 3435, cfg.NG911.SRID)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.Origins)
}

func TestLoadFrom_EnvironmentOverridesDeploymentFile(t *testing.T) {
	// Arrange
	path := writeConfigFile(t, `{
		"agencyId": "co.monroe.il.us",
		"ng911GDBSchemasPath": "/data/schemas"
	}`)
	t.Setenv("NG911_AGENCY_ID", "co.stclair.il.us")

	// Act
	cfg, err := LoadFrom(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "co.stclair.il.us", cfg.NG911.AgencyID)
	assert.Equal(t, "/data/schemas", cfg.NG911.SchemasPath)
}

func TestLoadFrom_MissingAgencyIDFails(t *testing.T) {
	// Arrange
	path := writeConfigFile(t, `{"ng911GDBSchemasPath": "/data/schemas"}`)

	// Act
	_, err := LoadFrom(path)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NG911_AGENCY_ID")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", Env: "test"},
			Database: DatabaseConfig{Host: "localhost", Name: "ng911", User: "postgres", PoolMin: 2, PoolMax: 10},
			NG911:    NG911Config{SchemasPath: "schemas", AgencyID: "co.monroe.il.us", SRID: 3435},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "PORT"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "DB_HOST"},
		{"pool min above max", func(c *Config) { c.Database.PoolMin = 20 }, "DB_POOL_MIN"},
		{"missing agency", func(c *Config) { c.NG911.AgencyID = "" }, "NG911_AGENCY_ID"},
		{"missing schemas path", func(c *Config) { c.NG911.SchemasPath = "" }, "NG911_SCHEMAS_PATH"},
		{"zero srid", func(c *Config) { c.NG911.SRID = 0 }, "NG911_SRID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

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

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins("http://a, http://b"))
	assert.Empty(t, parseOrigins(""))
	assert.Equal(t, []string{"http://a"}, parseOrigins("http://a,,"))
}
