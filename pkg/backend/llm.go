package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiktoken-go/tokenizer"
	"golang.org/x/time/rate"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

const (
	defaultFailureThreshold = 3
	defaultCooldown         = 30 * time.Second
)

// LLMConfig configures an LLMBackend.
type LLMConfig struct {
	// ID names the backend in provenance and logs. Defaults to adapter/model.
	ID          string
	Model       string
	Tier        Tier
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	// RequestsPerSecond limits call rate when positive.
	RequestsPerSecond float64
	Pricing           *adapter.Pricing
	Disabled          bool
	// FailureThreshold consecutive transient failures trigger Cooldown.
	FailureThreshold int
	Cooldown         time.Duration
}

// LLMBackend turns an adapter.Adapter into a Backend.
type LLMBackend struct {
	cfg     LLMConfig
	adapter adapter.Adapter
	limiter *rate.Limiter
	now     func() time.Time

	failures  atomic.Int32
	coolUntil atomic.Int64
}

// NewLLMBackend wraps a with cfg.
func NewLLMBackend(a adapter.Adapter, cfg LLMConfig) *LLMBackend {
	if cfg.ID == "" {
		cfg.ID = a.Name() + "/" + cfg.Model
	}
	if cfg.Tier == "" {
		cfg.Tier = TierCloud
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}

	b := &LLMBackend{cfg: cfg, adapter: a, now: time.Now}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return b
}

func (b *LLMBackend) ID() string      { return b.cfg.ID }
func (b *LLMBackend) ModelID() string { return b.cfg.Model }
func (b *LLMBackend) Tier() Tier      { return b.cfg.Tier }

// Adapter returns the underlying provider adapter.
func (b *LLMBackend) Adapter() adapter.Adapter { return b.adapter }

// Available reports false while disabled or cooling down after repeated
// transient failures.
func (b *LLMBackend) Available() bool {
	if b.cfg.Disabled {
		return false
	}
	return b.now().UnixNano() >= b.coolUntil.Load()
}

// Complete prompts the model and parses its answer.
func (b *LLMBackend) Complete(ctx context.Context, req *Request) (*Completion, error) {
	system, prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", b.cfg.ID, err)
		}
	}

	areq := &adapter.Request{
		Model:       b.cfg.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   firstPositive(req.MaxTokens, b.cfg.MaxTokens),
		Temperature: b.cfg.Temperature,
		JSON:        true,
	}
	if req.Temperature > 0 {
		areq.Temperature = req.Temperature
	}

	resp, err := b.adapter.Generate(ctx, areq)
	if err != nil {
		b.recordFailure(err)
		return nil, fmt.Errorf("%s: %w", b.cfg.ID, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: %w: empty response", b.cfg.ID, ErrInvalidOutput)
	}

	result, reasoning, err := ParseResult(req.Request.Type, resp.Content, req.Hint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.cfg.ID, err)
	}
	b.failures.Store(0)

	usage, estimated := b.usage(resp, system+prompt)
	completion := &Completion{
		Result:    result,
		ModelID:   firstNonEmpty(resp.Model, b.cfg.Model),
		Reasoning: reasoning,
		Usage: &schema.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
			Estimated:        estimated,
		},
	}
	if cost, ok := adapter.EstimateCost(b.cfg.Pricing, usage); ok {
		completion.Cost = &schema.Cost{
			Currency:     cost.Currency,
			Amount:       cost.Amount,
			IsEstimate:   cost.IsEstimate,
			PricingModel: cost.PricingModel,
		}
	}
	return completion, nil
}

func (b *LLMBackend) recordFailure(err error) {
	if !adapter.IsTransient(err) {
		return
	}
	if int(b.failures.Add(1)) >= b.cfg.FailureThreshold {
		b.coolUntil.Store(b.now().Add(b.cfg.Cooldown).UnixNano())
		b.failures.Store(0)
	}
}

// usage returns provider-reported usage, or a local token estimate when the
// provider reported none.
func (b *LLMBackend) usage(resp *adapter.Response, prompt string) (adapter.Usage, bool) {
	usage := adapter.NormalizeUsage(resp.Usage)
	if usage.TotalTokens > 0 {
		return usage, false
	}
	usage.PromptTokens = CountTokens(prompt)
	usage.CompletionTokens = CountTokens(resp.Content)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage, true
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// CountTokens estimates tokens with the cl100k_base encoding, falling back to
// four characters per token if the encoding cannot be loaded.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	codecOnce.Do(func() {
		if enc, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
			codec = enc
		}
	})
	if codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
