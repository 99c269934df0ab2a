package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all toolkit configuration. Values are read from an optional
// config.json (deployment settings written by the provisioning tools) with
// environment variable overrides.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	NG911    NG911Config
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration for the NG911
// geodatabase.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// NG911Config holds deployment-level NG911 settings: where the schema JSON
// files live and the agency identity stamped into NENA identifiers.
type NG911Config struct {
	SchemasPath string
	AgencyName  string
	AgencyID    string
	CreatedBy   string
	SRID        int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from config.json (when present) and environment
// variables. Environment variables win over file values.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration, optionally from an explicit config file path.
func LoadFrom(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "ng911")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("NG911_SCHEMAS_PATH", "schemas")
	v.SetDefault("NG911_SRID", 3435) // Illinois State Plane East, US feet
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	// missing config.json is fine, env vars can carry everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		NG911: NG911Config{
			SchemasPath: deployString(v, "NG911_SCHEMAS_PATH", "ng911GDBSchemasPath"),
			AgencyName:  deployString(v, "NG911_AGENCY_NAME", "agencyName"),
			AgencyID:    deployString(v, "NG911_AGENCY_ID", "agencyId"),
			CreatedBy:   deployString(v, "NG911_CREATED_BY", "createdBy"),
			SRID:        v.GetInt("NG911_SRID"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// deployString resolves a deployment setting that the provisioning tools write
// under a camelCase key in config.json. Precedence: environment variable, then
// the file key, then the registered default.
func deployString(v *viper.Viper, envKey, fileKey string) string {
	if _, ok := os.LookupEnv(envKey); ok {
		return v.GetString(envKey)
	}
	if v.InConfig(fileKey) {
		return v.GetString(fileKey)
	}
	return v.GetString(envKey)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	if c.NG911.AgencyID == "" {
		return fmt.Errorf("NG911_AGENCY_ID is required (identifier agency suffix, e.g. co.monroe.il.us)")
	}
	if c.NG911.SchemasPath == "" {
		return fmt.Errorf("NG911_SCHEMAS_PATH is required")
	}
	if c.NG911.SRID <= 0 {
		return fmt.Errorf("NG911_SRID must be a positive spatial reference id")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
