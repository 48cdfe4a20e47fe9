package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/triage/pkg/classifier"
	"github.com/zen-systems/triage/pkg/logging"
)

// Known adapter names.
var knownAdapters = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"google":    true,
	"deepseek":  true,
	"ollama":    true,
	"mock":      true,
}

// RoutingConfig holds the escalation and backend configuration.
type RoutingConfig struct {
	Mode                string          `yaml:"mode"`
	EscalationThreshold float64         `yaml:"escalation_threshold,omitempty"`
	EscalationGuard     string          `yaml:"escalation_guard,omitempty"`
	Backends            []BackendConfig `yaml:"backends"`
	Pricing             PricingConfig   `yaml:"pricing,omitempty"`
	Logging             logging.Config  `yaml:"logging,omitempty"`
	Server              ServerConfig    `yaml:"server,omitempty"`
}

// BackendConfig describes one escalation backend. Backends are tried in the
// order they are listed.
type BackendConfig struct {
	Name              string  `yaml:"name"`
	Adapter           string  `yaml:"adapter"`
	Model             string  `yaml:"model"`
	Tier              string  `yaml:"tier,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	TimeoutMs         int     `yaml:"timeout_ms,omitempty"`
	MaxTokens         int     `yaml:"max_tokens,omitempty"`
	Temperature       float64 `yaml:"temperature,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	FailureThreshold  int     `yaml:"failure_threshold,omitempty"`
	CooldownMs        int     `yaml:"cooldown_ms,omitempty"`
	Disabled          bool    `yaml:"disabled,omitempty"`
}

// Timeout returns the per-call timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Cooldown returns how long the backend rests after repeated failures.
func (b BackendConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownMs) * time.Millisecond
}

// ServerConfig configures `triage serve`.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// PricingConfig maps adapter -> model -> pricing.
type PricingConfig map[string]map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// Lookup returns pricing for adapter/model.
func (p PricingConfig) Lookup(adapter, model string) (ModelPricing, bool) {
	models, ok := p[adapter]
	if !ok {
		return ModelPricing{}, false
	}
	mp, ok := models[model]
	return mp, ok
}

// LoadRoutingConfig reads routing configuration from a YAML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRoutingConfig(data)
}

// ParseRoutingConfig decodes, defaults and validates routing YAML.
func ParseRoutingConfig(data []byte) (*RoutingConfig, error) {
	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyRoutingDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultRoutingConfig returns the default routing configuration: an on-device
// model, a larger local model, then a cloud model.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{
		Mode: "hybrid",
		Backends: []BackendConfig{
			{Name: "on-device", Adapter: "ollama", Model: "phi3:mini", Tier: "on_device", TimeoutMs: 5000},
			{Name: "local", Adapter: "ollama", Model: "llama3.1:8b", Tier: "local", TimeoutMs: 15000},
			{Name: "cloud", Adapter: "anthropic", Model: "claude-3-5-haiku-latest", Tier: "cloud", TimeoutMs: 20000},
		},
		Pricing: PricingConfig{
			"anthropic": {"claude-3-5-haiku-latest": {PromptPer1K: 0.0008, CompletionPer1K: 0.004}},
			"openai":    {"gpt-4o-mini": {PromptPer1K: 0.00015, CompletionPer1K: 0.0006}},
			"google":    {"gemini-2.0-flash": {PromptPer1K: 0.0001, CompletionPer1K: 0.0004}},
			"deepseek":  {"deepseek-chat": {PromptPer1K: 0.00027, CompletionPer1K: 0.0011}},
		},
	}
	applyRoutingDefaults(cfg)
	return cfg
}

// Validate reports the first configuration error.
func (c *RoutingConfig) Validate() error {
	switch c.Mode {
	case "rule_based_only", "hybrid", "llm_preferred", "llm_only":
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.EscalationThreshold <= 0 || c.EscalationThreshold > 1 {
		return fmt.Errorf("escalation_threshold %.2f out of range (0, 1]", c.EscalationThreshold)
	}

	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if !knownAdapters[b.Adapter] {
			return fmt.Errorf("backend %d: unknown adapter %q", i, b.Adapter)
		}
		if b.Model == "" {
			return fmt.Errorf("backend %q: model is required", b.Name)
		}
		switch b.Tier {
		case "on_device", "local", "cloud":
		default:
			return fmt.Errorf("backend %q: unknown tier %q", b.Name, b.Tier)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	cfg.Mode = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cfg.Mode), "-", "_"))
	if cfg.Mode == "" {
		cfg.Mode = "hybrid"
	}
	if cfg.EscalationThreshold == 0 {
		cfg.EscalationThreshold = classifier.EscalationThreshold
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8085"
	}
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		b.Adapter = strings.ToLower(strings.TrimSpace(b.Adapter))
		if b.Tier == "" {
			b.Tier = defaultTier(b.Adapter)
		}
		if b.Name == "" {
			b.Name = b.Adapter + "/" + b.Model
		}
		if b.TimeoutMs == 0 {
			b.TimeoutMs = 10000
		}
		if b.MaxTokens == 0 {
			b.MaxTokens = 512
		}
	}
}

func defaultTier(adapter string) string {
	switch adapter {
	case "mock":
		return "on_device"
	case "ollama":
		return "local"
	default:
		return "cloud"
	}
}
