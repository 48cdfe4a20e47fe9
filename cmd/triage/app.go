package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/backend"
	"github.com/zen-systems/triage/pkg/config"
	"github.com/zen-systems/triage/pkg/logging"
	"github.com/zen-systems/triage/pkg/router"
)

type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	router *router.Router
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.RoutingConfig.Logging
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	log, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	aliases, err := config.LoadAliasesFromDir(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model aliases: %w", err)
	}
	for _, err := range aliases.ResolveBackends(cfg.RoutingConfig) {
		log.WithError(err).Warn("model alias check failed")
	}

	backends, err := buildBackends(cfg, mockFlag, log)
	if err != nil {
		return nil, err
	}
	r, err := newRouter(cfg.RoutingConfig, modeFlag, backends, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, router: r}, nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithRoutingFile(configFile)
	}
	return config.Load()
}

// newRouter builds a router from routing config. A non-empty modeOverride
// replaces the configured mode.
func newRouter(rc *config.RoutingConfig, modeOverride string, backends []backend.Backend, log logrus.FieldLogger) (*router.Router, error) {
	modeName := rc.Mode
	if modeOverride != "" {
		modeName = modeOverride
	}
	mode, err := router.ParseMode(modeName)
	if err != nil {
		return nil, err
	}

	policy := router.NewPolicy()
	policy.Threshold = rc.EscalationThreshold
	if err := policy.SetGuard(rc.EscalationGuard); err != nil {
		return nil, err
	}

	return router.New(
		router.WithMode(mode),
		router.WithPolicy(policy),
		router.WithBackends(backends...),
		router.WithLogger(log),
	), nil
}

// buildBackends creates one backend per configured entry, in order. Cloud
// entries without an API key are skipped with a warning. With mock set, every
// entry is served by the mock adapter.
func buildBackends(cfg *config.Config, mock bool, log logrus.FieldLogger) ([]backend.Backend, error) {
	var out []backend.Backend
	for _, bc := range cfg.RoutingConfig.Backends {
		a, err := newAdapter(cfg, bc, mock)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", bc.Name, err)
		}
		if a == nil {
			log.WithField("backend", bc.Name).Warn("no API key configured, backend skipped")
			continue
		}

		llm := backend.LLMConfig{
			ID:                bc.Name,
			Model:             bc.Model,
			Tier:              backend.Tier(bc.Tier),
			Timeout:           bc.Timeout(),
			MaxTokens:         bc.MaxTokens,
			Temperature:       bc.Temperature,
			RequestsPerSecond: bc.RequestsPerSecond,
			Disabled:          bc.Disabled,
			FailureThreshold:  bc.FailureThreshold,
			Cooldown:          bc.Cooldown(),
		}
		if mp, ok := cfg.RoutingConfig.Pricing.Lookup(bc.Adapter, bc.Model); ok {
			p := adapter.Pricing(mp)
			llm.Pricing = &p
		}
		out = append(out, backend.NewLLMBackend(a, llm))
	}
	return out, nil
}

// newAdapter returns nil, nil when the adapter needs a key that is not set.
func newAdapter(cfg *config.Config, bc config.BackendConfig, mock bool) (adapter.Adapter, error) {
	if mock || bc.Adapter == "mock" {
		return adapter.NewMockAdapter(), nil
	}
	if !cfg.HasAdapter(bc.Adapter) {
		return nil, nil
	}

	switch bc.Adapter {
	case "ollama":
		baseURL := bc.BaseURL
		if baseURL == "" {
			baseURL = cfg.OllamaURL
		}
		return adapter.NewOllamaAdapter(baseURL, bc.Timeout()), nil
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "google":
		return adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
	case "deepseek":
		var opts []adapter.DeepSeekOption
		if bc.BaseURL != "" {
			opts = append(opts, adapter.WithDeepSeekBaseURL(bc.BaseURL))
		}
		return adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown adapter %q", bc.Adapter)
	}
}
