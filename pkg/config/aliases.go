package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps short backend model names to provider model ids.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}
	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}
	return &aliases, nil
}

// LoadAliasesFromDir loads models.yaml from configDir, or DefaultAliases when
// the file does not exist.
func LoadAliasesFromDir(configDir string) (*ModelAliases, error) {
	path := filepath.Join(configDir, "models.yaml")
	if _, err := os.Stat(path); err != nil {
		return DefaultAliases(), nil
	}
	return LoadAliases(path)
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (a *ModelAliases) IsAlias(name string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[name]
	return ok
}

// ValidateModel checks if a model exists in the adapter's list. Adapters
// without a list accept any model, since local model names are user-chosen.
func (a *ModelAliases) ValidateModel(adapter, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}
	models, ok := a.Providers[adapter]
	if !ok {
		return nil
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not in %s provider list", model, adapter)
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// ResolveBackends rewrites backend models to canonical names in place and
// returns the validation errors of the result.
func (a *ModelAliases) ResolveBackends(cfg *RoutingConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}
	var errs []error
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		b.Model = a.Resolve(b.Model)
		if err := a.ValidateModel(b.Adapter, b.Model); err != nil {
			errs = append(errs, fmt.Errorf("backend %q: %w", b.Name, err))
		}
	}
	return errs
}

// DefaultAliases returns the built-in aliases.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"tiny":    "phi3:mini",
			"small":   "llama3.2:3b",
			"medium":  "llama3.1:8b",
			"haiku":   "claude-3-5-haiku-latest",
			"sonnet":  "claude-sonnet-4-20250514",
			"mini":    "gpt-4o-mini",
			"flash":   "gemini-2.0-flash",
			"cheap":   "deepseek-chat",
			"default": "claude-3-5-haiku-latest",
		},
		Providers: map[string][]string{
			"anthropic": {"claude-3-5-haiku-latest", "claude-sonnet-4-20250514"},
			"openai":    {"gpt-4o-mini", "gpt-4o"},
			"google":    {"gemini-2.0-flash", "gemini-2.0-pro"},
			"deepseek":  {"deepseek-chat"},
		},
	}
}
