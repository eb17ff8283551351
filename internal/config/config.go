// Package config handles loading and persisting user configuration
// for kx. Configuration is stored in ~/.kx/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirName           = ".kx"
	fileName          = "config.json"
	defaultAPIURL     = "http://localhost:8000"
	defaultTokenEnv   = "KX_TOKEN"
	defaultRedisKeyNS = "kx:"
	envKeyAPIURL      = "KX_API_URL"
	envKeyRedisAddr   = "KX_REDIS_ADDR"
)

// Config holds the user's configuration.
type Config struct {
	APIURL string `json:"api_url"`
	// TokenEnv names the environment variable consulted when no token
	// has been saved with `kx login`.
	TokenEnv string `json:"token_env,omitempty"`
	// RedisAddr enables quota sync over Redis pub/sub when set.
	RedisAddr   string `json:"redis_addr,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

func defaults() *Config {
	return &Config{
		APIURL:      defaultAPIURL,
		TokenEnv:    defaultTokenEnv,
		RedisPrefix: defaultRedisKeyNS,
	}
}

// read loads the file over the defaults. A missing or corrupt file
// leaves the defaults in place.
func read() *Config {
	cfg := defaults()
	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}
	return cfg
}

// Load reads the configuration from disk and environment variables.
func Load() (*Config, error) {
	cfg := read()

	if url := os.Getenv(envKeyAPIURL); url != "" {
		cfg.APIURL = url
	}
	if addr := os.Getenv(envKeyRedisAddr); addr != "" {
		cfg.RedisAddr = addr
	}

	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.TokenEnv == "" {
		cfg.TokenEnv = defaultTokenEnv
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = defaultRedisKeyNS
	}

	return cfg, nil
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

// SetAPIURL saves the backend URL to the config file.
func SetAPIURL(url string) error {
	cfg := read()
	cfg.APIURL = strings.TrimRight(url, "/")
	return save(cfg)
}

// SetRedisAddr saves the Redis address used for quota sync.
// An empty address disables Redis sync.
func SetRedisAddr(addr string) error {
	cfg := read()
	cfg.RedisAddr = addr
	return save(cfg)
}

// SetTokenEnv saves the name of the fallback token variable.
func SetTokenEnv(name string) error {
	cfg := read()
	cfg.TokenEnv = name
	return save(cfg)
}
