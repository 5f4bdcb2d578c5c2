// Package config handles loading and validation of gateway configuration.
// Supports both development (env vars, optionally a .env file) and
// production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
)

// Catalog source modes.
const (
	CatalogRemote = "remote"
	CatalogStatic = "static"
)

// Config holds all gateway configuration.
// Environment determines whether store credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SiteName   string // Secret Manager secret name for this store

	// CatalogMode selects the product source: "remote" queries the
	// platform catalog, "static" serves pre-generated collection files.
	CatalogMode string

	// StaticCatalogDir is the directory of collection files when
	// CatalogMode is "static".
	StaticCatalogDir string

	// RedisAddr enables the catalog cache when set (host:port).
	RedisAddr string

	// Store-specific configuration (loaded from secrets)
	Store StoreConfig
}

// StoreConfig contains store-specific settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type StoreConfig struct {
	// ClientID is the Wix Headless OAuth client ID used for anonymous
	// visitor sessions.
	ClientID string `json:"client_id"`

	// SiteID is the Wix site GUID, used to build dashboard and
	// premium-upgrade URLs.
	SiteID string `json:"site_id"`

	// StoreURL is the public storefront URL, used as the post-checkout
	// return target when the client supplies none.
	StoreURL string `json:"store_url"`

	// StoreName is a display name for logs and the health endpoint.
	StoreName string `json:"store_name,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager. In
// development a .env file in the working directory is loaded first.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:             envOrDefault("PORT", "8080"),
		Environment:      envOrDefault("ENVIRONMENT", "development"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		GCPProject:       os.Getenv("GCP_PROJECT"),
		SiteName:         os.Getenv("SITE_NAME"),
		CatalogMode:      envOrDefault("CATALOG_MODE", CatalogRemote),
		StaticCatalogDir: os.Getenv("STATIC_CATALOG_DIR"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.SiteName == "" {
			return nil, fmt.Errorf("SITE_NAME required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port             string      `json:"port"`
		Environment      string      `json:"environment"`
		LogLevel         string      `json:"log_level"`
		CatalogMode      string      `json:"catalog_mode"`
		StaticCatalogDir string      `json:"static_catalog_dir"`
		RedisAddr        string      `json:"redis_addr"`
		Store            StoreConfig `json:"store"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:             withDefault(fileConfig.Port, "8080"),
		Environment:      withDefault(fileConfig.Environment, "development"),
		LogLevel:         withDefault(fileConfig.LogLevel, "info"),
		CatalogMode:      withDefault(fileConfig.CatalogMode, CatalogRemote),
		StaticCatalogDir: fileConfig.StaticCatalogDir,
		RedisAddr:        fileConfig.RedisAddr,
		Store:            fileConfig.Store,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{site_name}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SiteName)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		ClientID:  os.Getenv("WIX_CLIENT_ID"),
		SiteID:    os.Getenv("WIX_SITE_ID"),
		StoreURL:  os.Getenv("STORE_URL"),
		StoreName: os.Getenv("STORE_NAME"),
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	switch c.CatalogMode {
	case CatalogRemote:
	case CatalogStatic:
		if c.StaticCatalogDir == "" {
			return fmt.Errorf("static_catalog_dir is required when catalog_mode is static")
		}
	default:
		return fmt.Errorf("catalog_mode must be %q or %q", CatalogRemote, CatalogStatic)
	}

	if c.Store.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.Store.SiteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if c.Store.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if _, err := url.Parse(c.Store.StoreURL); err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}

	return nil
}

// ReturnURL is the post-checkout callback target: the storefront URL with
// no trailing slash.
func (c *Config) ReturnURL() string {
	return strings.TrimSuffix(c.Store.StoreURL, "/")
}

// DashboardProductsURL is the store dashboard's product management page,
// linked from empty catalog states.
func (c *Config) DashboardProductsURL() string {
	return fmt.Sprintf("https://manage.wix.com/dashboard/%s/products", c.Store.SiteID)
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
