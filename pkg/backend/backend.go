// Package backend defines the inference backends the router escalates to.
package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/zen-systems/triage/pkg/schema"
)

var (
	// ErrInvalidOutput means a backend answered but the answer was unusable.
	ErrInvalidOutput = errors.New("backend: invalid output")
	// ErrUnsupportedType means the backend does not handle the request type.
	ErrUnsupportedType = errors.New("backend: unsupported request type")
	// ErrUnavailable means the backend is disabled or cooling down.
	ErrUnavailable = errors.New("backend: unavailable")
)

// Tier orders backends by cost.
type Tier string

const (
	TierOnDevice Tier = "on_device"
	TierLocal    Tier = "local"
	TierCloud    Tier = "cloud"
)

// Rank orders tiers by cost and capability, 0 for on-device. Unknown tiers
// rank below on-device.
func (t Tier) Rank() int {
	switch t {
	case TierOnDevice:
		return 0
	case TierLocal:
		return 1
	case TierCloud:
		return 2
	default:
		return -1
	}
}

// Request is what the router hands to a backend.
type Request struct {
	// Request is the caller's request. Backends must not modify it.
	Request *schema.Request
	// Hint is the rule-based result for the same request.
	Hint schema.Result
	// Now anchors relative dates for task parsing and goal suggestion.
	Now         time.Time
	MaxTokens   int
	Temperature float64
}

// Completion is a successful backend answer.
type Completion struct {
	Result    schema.Result
	ModelID   string
	Reasoning string
	Usage     *schema.Usage
	Cost      *schema.Cost
}

// Backend is a higher-cost classifier. Available must not block.
type Backend interface {
	ID() string
	ModelID() string
	Tier() Tier
	Available() bool
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

// CompleteFunc answers a request.
type CompleteFunc func(ctx context.Context, req *Request) (*Completion, error)

// StaticBackend is a function-backed Backend for tests and embedding callers.
type StaticBackend struct {
	id    string
	model string
	tier  Tier
	fn    CompleteFunc
	down  atomic.Bool
	calls atomic.Int64
}

// NewStatic returns an available StaticBackend.
func NewStatic(id, model string, tier Tier, fn CompleteFunc) *StaticBackend {
	return &StaticBackend{id: id, model: model, tier: tier, fn: fn}
}

func (b *StaticBackend) ID() string      { return b.id }
func (b *StaticBackend) ModelID() string { return b.model }
func (b *StaticBackend) Tier() Tier      { return b.tier }
func (b *StaticBackend) Available() bool { return !b.down.Load() }

// SetAvailable flips the availability flag.
func (b *StaticBackend) SetAvailable(ok bool) {
	b.down.Store(!ok)
}

// Calls returns how many times Complete ran.
func (b *StaticBackend) Calls() int64 {
	return b.calls.Load()
}

// Complete invokes the backing function.
func (b *StaticBackend) Complete(ctx context.Context, req *Request) (*Completion, error) {
	b.calls.Add(1)
	if b.fn == nil {
		return nil, ErrUnavailable
	}
	return b.fn(ctx, req)
}
