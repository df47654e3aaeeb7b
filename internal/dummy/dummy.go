// Package dummy provides a scripted model backend for offline runs and tests.
package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stupiduntilnot/docchat/internal/model"
)

type action struct {
	kind string
	arg  string
}

// parseScript parses a comma separated list of actions:
// ok, empty, err:<class>, sleep:<ms>, msg:<text>, msgb64:<base64>, echo.
func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		switch {
		case token == "ok", token == "empty", token == "echo":
			actions = append(actions, action{kind: token})
		case strings.HasPrefix(token, "err:"):
			actions = append(actions, action{kind: "err", arg: strings.TrimPrefix(token, "err:")})
		case strings.HasPrefix(token, "sleep:"):
			actions = append(actions, action{kind: "sleep", arg: strings.TrimPrefix(token, "sleep:")})
		case strings.HasPrefix(token, "msg:"):
			actions = append(actions, action{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
		case strings.HasPrefix(token, "msgb64:"):
			actions = append(actions, action{kind: "msgb64", arg: strings.TrimPrefix(token, "msgb64:")})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

// next returns the following action; the last one repeats forever.
func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Provider replays a script of canned completions and records every request.
type Provider struct {
	mu       sync.Mutex
	script   *scriptRunner
	requests []model.CompletionRequest
}

func NewProvider(script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{script: runner}, nil
}

// MustProvider is NewProvider for scripts known to be valid.
func MustProvider(script string) *Provider {
	p, err := NewProvider(script)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Provider) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	a := p.script.next()
	p.mu.Unlock()

	switch a.kind {
	case "ok":
		return respond("dummy-ok"), nil
	case "empty":
		return respond(""), nil
	case "echo":
		return respond(req.Prompt), nil
	case "err":
		return model.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return respond("dummy-after-sleep"), nil
		case <-ctx.Done():
			return model.CompletionResponse{}, ctx.Err()
		}
	case "msg":
		return respond(a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return model.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		return respond(string(raw)), nil
	default:
		return respond("dummy-ok"), nil
	}
}

// Requests returns a copy of every request seen so far.
func (p *Provider) Requests() []model.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func respond(content string) model.CompletionResponse {
	return model.CompletionResponse{
		Content:      content,
		InputTokens:  1,
		OutputTokens: 1,
	}
}

// Catalog is a fixed model list. Err, when set, is returned by List.
type Catalog struct {
	mu     sync.Mutex
	models []model.Descriptor
	Err    error
	calls  int
}

// NewCatalog builds a catalog from model ids.
func NewCatalog(ids ...string) *Catalog {
	models := make([]model.Descriptor, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		models = append(models, model.Descriptor{ID: id, Provider: "dummy"})
	}
	return &Catalog{models: models}
}

func (c *Catalog) List(ctx context.Context) ([]model.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]model.Descriptor, len(c.models))
	copy(out, c.models)
	return out, nil
}

// Set replaces the catalog contents.
func (c *Catalog) Set(ids ...string) {
	next := NewCatalog(ids...)
	c.mu.Lock()
	c.models = next.models
	c.mu.Unlock()
}

// Calls reports how many times List was invoked.
func (c *Catalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
