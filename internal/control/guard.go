package control

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stupiduntilnot/docchat/internal/model"
)

var ErrCircuitOpen = errors.New("model backend circuit open")

// GuardedProvider wraps a model.Provider with the request wall-time policy
// and a circuit breaker. It never retries.
type GuardedProvider struct {
	next    model.Provider
	policy  Policy
	breaker *CircuitBreaker
	now     func() time.Time

	// OnStateChange, when set, is called after each call that moved the breaker.
	OnStateChange func(from, to CircuitState, errClass string)
}

func NewGuardedProvider(next model.Provider, policy Policy, breaker *CircuitBreaker) *GuardedProvider {
	return &GuardedProvider{
		next:    next,
		policy:  policy,
		breaker: breaker,
		now:     time.Now,
	}
}

// Complete calls the wrapped provider under the wall-time policy. Calls
// ended by the caller's own context are not held against the backend.
func (g *GuardedProvider) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	prev := g.breaker.State()
	if !g.breaker.Allow(g.now()) {
		return model.CompletionResponse{}, ErrCircuitOpen
	}

	callCtx := ctx
	if g.policy.MaxWallTime > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.policy.MaxWallTime)
		defer cancel()
	}

	startedAt := g.now()
	resp, err := g.next.Complete(callCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			g.breaker.Release()
			return model.CompletionResponse{}, err
		}
		errClass := ClassifyError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			if limitErr := CheckWallTime(g.policy, startedAt, g.now()); limitErr != nil {
				limitErr.(*LimitError).Err = err
				err = limitErr
			}
		}
		g.breaker.RecordFailure(errClass, g.now())
		g.notify(prev)
		return model.CompletionResponse{}, err
	}
	g.breaker.RecordSuccess()
	g.notify(prev)
	return resp, nil
}

func (g *GuardedProvider) notify(prev CircuitState) {
	if g.OnStateChange == nil {
		return
	}
	if cur := g.breaker.State(); cur != prev {
		g.OnStateChange(prev, cur, g.breaker.OpenedClass())
	}
}

// ClassifyError maps a model backend error to a coarse error class.
func ClassifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return "rate_limit"
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return "auth"
	default:
		return "provider_api"
	}
}
