// Package config loads API keys, routing settings and model aliases.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DirEnv overrides the config directory (default ~/.triage).
const DirEnv = "TRIAGE_HOME"

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	OllamaURL       string
	RoutingConfig   *RoutingConfig
	RoutingPath     string
	ConfigDir       string
}

// Load reads configuration from the config directory and environment.
// API keys come only from the environment; a .env file in the config
// directory or the working directory is loaded first without overriding
// variables that are already set.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	routingPath := filepath.Join(configDir, "routing.yaml")
	if _, err := os.Stat(routingPath); err != nil {
		cfg := newConfig(configDir)
		cfg.RoutingConfig = DefaultRoutingConfig()
		return cfg, nil
	}
	return load(configDir, routingPath)
}

// LoadWithRoutingFile loads config with a specific routing file.
func LoadWithRoutingFile(routingPath string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir, routingPath)
}

func load(configDir, routingPath string) (*Config, error) {
	cfg := newConfig(configDir)
	routing, err := LoadRoutingConfig(routingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing config from %s: %w", routingPath, err)
	}
	cfg.RoutingConfig = routing
	cfg.RoutingPath = routingPath
	return cfg, nil
}

func newConfig(configDir string) *Config {
	loadDotEnv(filepath.Join(configDir, ".env"), ".env")
	return &Config{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		OllamaURL:       getEnvOrDefault("OLLAMA_HOST", ""),
		ConfigDir:       configDir,
	}
}

// loadDotEnv loads each existing file. Missing files are ignored.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// HasAdapter returns true if the given adapter can be constructed. Ollama and
// the mock adapter need no key.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	case "ollama", "mock":
		return true
	default:
		return false
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	configDir := os.Getenv(DirEnv)
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".triage")
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	return configDir, nil
}
