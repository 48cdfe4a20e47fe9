package adapter

import (
	"context"
	"sync/atomic"
)

// DefaultMockResponse mirrors what an on-device model answers when it cannot
// make sense of a task.
const DefaultMockResponse = `{"quadrant": "SCHEDULE", "confidence": 0.5, "reasoning": "mock backend"}`

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string
	// Respond, when set, takes precedence over canned responses.
	Respond func(req *Request) (string, error)
	Usage   *Usage
	calls   atomic.Int64
}

// NewMockAdapter creates a mock adapter with the default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: DefaultMockResponse,
	}
}

// NewMockAdapterWithResponses creates a mock adapter with responses keyed by prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = DefaultMockResponse
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Calls returns how many times Generate ran.
func (a *MockAdapter) Calls() int64 {
	return a.calls.Load()
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(_ context.Context, req *Request) (*Response, error) {
	a.calls.Add(1)
	model := req.Model
	if model == "" {
		model = "mock-1"
	}

	content := a.defaultResponse
	if a.Respond != nil {
		var err error
		if content, err = a.Respond(req); err != nil {
			return nil, err
		}
	} else if response, ok := a.responses[req.Prompt]; ok {
		content = response
	}
	return &Response{Content: content, Model: model, Adapter: a.Name(), Usage: a.Usage}, nil
}
