package adapter

import (
	"context"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a request to the model and returns its raw completion.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Request is a single provider call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks providers that support it to constrain output to JSON.
	JSON bool
}

// Response is the raw provider output plus optional usage data.
type Response struct {
	Content string
	Model   string
	Adapter string
	Usage   *Usage
}

func maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return 512
}
