// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"icegate/internal/domain"
	"icegate/internal/provider"
)

// CatalogFile is the YAML document named by CATALOG_CONFIG_FILE.
//
//	properties:
//	  type: rest
//	  uri: http://rest:8181
//	catalogs:
//	  sales:
//	    uri: http://sales:8181
type CatalogFile struct {
	Properties map[string]string            `yaml:"properties"`
	Catalogs   map[string]map[string]string `yaml:"catalogs"`
}

// Config holds the gateway configuration.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8181")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Catalog provider
	Provider           string // provider short name or canonical id (default "config-based")
	EvictionIntervalMS int64  // write TTL of cached catalog handles (default 3600000)
	CatalogConfigFile  string // optional YAML catalog definitions
	RegistryDBPath     string // SQLite registry for the registry-based provider

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// Catalogs holds the parsed CatalogConfigFile, if any.
	Catalogs CatalogFile

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// CacheTTL returns the write TTL of cached catalog handles.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.EvictionIntervalMS) * time.Millisecond
}

// UsesRegistry reports whether the registry-based provider is selected.
func (c *Config) UsesRegistry() bool {
	return provider.Resolve(c.Provider) == provider.RegistryBasedID
}

// ProviderProperties flattens the catalog file into the property map handed
// to the provider: top-level properties as-is, per-catalog keys as
// catalog.<name>.<key>.
func (c *Config) ProviderProperties() map[string]string {
	props := make(map[string]string, len(c.Catalogs.Properties))
	for k, v := range c.Catalogs.Properties {
		props[k] = v
	}
	for name, kv := range c.Catalogs.Catalogs {
		for k, v := range kv {
			props[provider.CatalogPropertyPrefix+name+"."+k] = v
		}
	}
	if c.UsesRegistry() {
		props[provider.PropRegistryDBPath] = c.RegistryDBPath
	}
	return props
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.EvictionIntervalMS <= 0 {
		return fmt.Errorf("CATALOG_CACHE_EVICTION_INTERVAL_MS must be positive, got %d", c.EvictionIntervalMS)
	}
	if _, ok := c.Catalogs.Catalogs[domain.DefaultCatalog]; ok {
		return fmt.Errorf("%s: catalog name %q is reserved; put its keys under properties", c.CatalogConfigFile, domain.DefaultCatalog)
	}
	for name := range c.Catalogs.Catalogs {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "./") {
			return fmt.Errorf("%s: invalid catalog name %q", c.CatalogConfigFile, name)
		}
	}
	if c.UsesRegistry() && c.RegistryDBPath == "" {
		return fmt.Errorf("CATALOG_REGISTRY_DB_PATH is required for the registry-based provider")
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		Env:               os.Getenv("ENV"),
		Provider:          strings.TrimSpace(os.Getenv("CATALOG_PROVIDER")),
		CatalogConfigFile: os.Getenv("CATALOG_CONFIG_FILE"),
		RegistryDBPath:    os.Getenv("CATALOG_REGISTRY_DB_PATH"),
	}

	if v := os.Getenv("CATALOG_CACHE_EVICTION_INTERVAL_MS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse CATALOG_CACHE_EVICTION_INTERVAL_MS: %w", err)
		}
		cfg.EvictionIntervalMS = n
	} else {
		cfg.EvictionIntervalMS = 3600000
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if cfg.CatalogConfigFile != "" {
		file, err := LoadCatalogFile(cfg.CatalogConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.Catalogs = *file
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8181"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Provider == "" {
		cfg.Provider = "config-based"
	}
	if cfg.RegistryDBPath == "" {
		cfg.RegistryDBPath = "icegate_registry.sqlite"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}

	if !cfg.UsesRegistry() && cfg.CatalogConfigFile == "" {
		cfg.Warnings = append(cfg.Warnings, "CATALOG_CONFIG_FILE not set: only the default catalog with empty properties is available")
	}
	if cfg.IsProduction() && cfg.CatalogConfigFile == "" && !cfg.UsesRegistry() {
		return nil, fmt.Errorf("CATALOG_CONFIG_FILE must be set in production (ENV=production)")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCatalogFile reads a YAML catalog file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return &file, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
