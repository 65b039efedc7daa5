// Package test provides deterministic provider adapters used by conformance
// tests and scenario replay: Provider (an echoing responder useful for
// convergence scenarios) and Silent (a zero-length responder for
// "meditation mode" experiments).
package test

import (
	"context"
	"fmt"
	"strings"

	"pidgin/internal/provideradapter"
)

// Provider is a deterministic adapter that never calls a network. Its
// response is a function of the conversation so far, making conformance
// tests reproducible: it echoes the last message from its counterpart,
// prefixed by a turn counter, which drives vocabulary overlap up over
// successive turns and lets convergence-stop scenarios be exercised without
// a live model.
type Provider struct {
	// FixedResponses, when non-empty, are returned in order before falling
	// back to the echo behavior — used to script exact scenarios (e.g. a
	// provider that returns identical text to force fast convergence).
	FixedResponses []string

	// FailWith, when set, is returned by every Chat/ChatStream call instead
	// of a response — used to exercise the engine's fatal-provider-error
	// path without a live model. Wrap a *provideradapter.ProviderError with
	// a non-retryable category to reach that path deterministically.
	FailWith error

	calls int
}

// NewProvider constructs a fresh deterministic test provider.
func NewProvider(fixedResponses ...string) *Provider {
	return &Provider{FixedResponses: fixedResponses}
}

// NewFailingProvider constructs a test provider whose every call fails with
// err, for scenarios that exercise the engine's failure paths.
func NewFailingProvider(err error) *Provider {
	return &Provider{FailWith: err}
}

func (p *Provider) Name() string { return "test" }

func (p *Provider) Chat(_ context.Context, req provideradapter.ChatRequest) (provideradapter.ChatResponse, error) {
	if p.FailWith != nil {
		return provideradapter.ChatResponse{}, p.FailWith
	}
	content := p.nextResponse(req)
	return provideradapter.ChatResponse{
		Content:      content,
		InputTokens:  provideradapter.EstimateTokens(req.SystemPrompt + joinContents(req.Messages)),
		OutputTokens: provideradapter.EstimateTokens(content),
	}, nil
}

func (p *Provider) ChatStream(ctx context.Context, req provideradapter.ChatRequest) (<-chan provideradapter.StreamDelta, <-chan error) {
	deltas := make(chan provideradapter.StreamDelta, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(deltas)
		defer close(errs)
		resp, err := p.Chat(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		deltas <- provideradapter.StreamDelta{Content: resp.Content, Done: true}
	}()
	return deltas, errs
}

func (p *Provider) nextResponse(req provideradapter.ChatRequest) string {
	if p.calls < len(p.FixedResponses) {
		resp := p.FixedResponses[p.calls]
		p.calls++
		return resp
	}
	p.calls++
	if len(req.Messages) == 0 {
		return fmt.Sprintf("turn %d: hello", p.calls)
	}
	last := req.Messages[len(req.Messages)-1]
	return fmt.Sprintf("turn %d: %s", p.calls, last.Content)
}

func joinContents(msgs []provideradapter.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, " ")
}

// Silent always returns an empty assistant message, modeling the "silent"
// adapter variant used for meditation experiments where one agent never
// speaks.
type Silent struct{}

func (Silent) Name() string { return "silent" }

func (Silent) Chat(_ context.Context, _ provideradapter.ChatRequest) (provideradapter.ChatResponse, error) {
	return provideradapter.ChatResponse{Content: "", InputTokens: 0, OutputTokens: 0}, nil
}

func (s Silent) ChatStream(ctx context.Context, req provideradapter.ChatRequest) (<-chan provideradapter.StreamDelta, <-chan error) {
	deltas := make(chan provideradapter.StreamDelta, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(deltas)
		defer close(errs)
		deltas <- provideradapter.StreamDelta{Content: "", Done: true}
	}()
	return deltas, errs
}

var (
	_ provideradapter.Provider = (*Provider)(nil)
	_ provideradapter.Provider = Silent{}
)
