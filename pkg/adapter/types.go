package adapter

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Cost captures normalized cost estimates.
type Cost struct {
	Currency     string  `json:"currency"`
	Amount       float64 `json:"amount"`
	IsEstimate   bool    `json:"is_estimate"`
	PricingModel string  `json:"pricing_model,omitempty"`
}

// Pricing defines per-1k token pricing for one model.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// NormalizeUsage fills in TotalTokens when a provider omits it.
func NormalizeUsage(u *Usage) Usage {
	if u == nil {
		return Usage{}
	}
	usage := *u
	if usage.TotalTokens == 0 && (usage.PromptTokens > 0 || usage.CompletionTokens > 0) {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// EstimateCost prices usage with p. It reports false when p is nil.
func EstimateCost(p *Pricing, usage Usage) (Cost, bool) {
	if p == nil {
		return Cost{Currency: "USD"}, false
	}
	promptCost := (float64(usage.PromptTokens) / 1000.0) * p.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * p.CompletionPer1K
	return Cost{
		Currency:     "USD",
		Amount:       promptCost + completionCost,
		IsEstimate:   true,
		PricingModel: "per_1k_tokens",
	}, true
}
