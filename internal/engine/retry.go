package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pidgin/internal/config"
	"pidgin/internal/eventlog"
	"pidgin/internal/provideradapter"
)

// maxRetries is the per-turn retry budget for retryable error categories
// (spec.md §7 default: 3 retries, exponential backoff 1→60s).
const maxRetries = 3

const (
	retryBackoffBase = time.Second
	retryBackoffMax  = 60 * time.Second
	retryJitter      = 50 * time.Millisecond
)

// contextExhaustedError marks a conversation-fatal context_length failure
// that truncation could not resolve (either disabled or already retried
// once).
type contextExhaustedError struct {
	cause error
}

func (e *contextExhaustedError) Error() string { return fmt.Sprintf("context exhausted: %v", e.cause) }
func (e *contextExhaustedError) Unwrap() error { return e.cause }

// runTurn dispatches one agent's turn: builds its message list from the
// current shared history, rate-limits, calls the provider with retries,
// appends the resulting message to history, and returns its content.
func (e *Engine) runTurn(ctx context.Context, speaker config.AgentRole, provider provideradapter.Provider, systemPrompt, model string, temperature *float64, turn int) (string, error) {
	truncatedOnce := false

	for {
		e.history = trimForContextWindow(e.history, model, e.cfg.Context)
		messages := buildMessages(speaker, e.history)
		req := provideradapter.ChatRequest{
			Model:        model,
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Temperature:  temperature,
		}
		if e.cfg.ThinkEnabled {
			req.ThinkBudget = e.cfg.ThinkBudget
		}

		e.emit(eventlog.TypeMessageRequested, map[string]any{
			"agent_id": string(speaker),
			"turn":     turn,
		})

		resp, err := e.callWithRetry(ctx, speaker, provider, req, model, turn)
		if err == nil {
			e.emit(eventlog.TypeMessageCompleted, map[string]any{
				"agent_id":      string(speaker),
				"turn":          turn,
				"content":       resp.Content,
				"input_tokens":  resp.InputTokens,
				"output_tokens": resp.OutputTokens,
			})
			e.totalInputTokens += resp.InputTokens
			e.totalOutputTokens += resp.OutputTokens
			e.history = append(e.history, historyEntry{Author: speaker, Content: resp.Content})
			return resp.Content, nil
		}

		var pe *provideradapter.ProviderError
		if errors.As(err, &pe) && pe.Category == provideradapter.CategoryContextLength {
			if e.cfg.AllowTruncation && !truncatedOnce {
				truncatedOnce = true
				e.history = dropOldestPair(e.history)
				continue
			}
			return "", &contextExhaustedError{cause: err}
		}

		return "", err
	}
}

// callWithRetry retries retryable categories up to maxRetries times,
// honoring rate_limited backoff via the shared limiter and plain
// exponential backoff for transient/unknown errors (spec.md §7). It drives
// the turn through the provider's streaming path (spec.md §4.5,
// AWAITING→STREAMING→TURN_COMPLETE), emitting message_chunk events as
// deltas arrive.
func (e *Engine) callWithRetry(ctx context.Context, speaker config.AgentRole, provider provideradapter.Provider, req provideradapter.ChatRequest, model string, turn int) (provideradapter.ChatResponse, error) {
	estimated := provideradapter.EstimateTokens(req.SystemPrompt) + estimateMessagesTokens(req.Messages)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := e.deps.Limiter.Acquire(ctx, provider.Name(), estimated); err != nil {
			return provideradapter.ChatResponse{}, err
		}

		resp, err := e.streamChat(ctx, speaker, provider, req, turn)
		if err == nil {
			e.deps.Limiter.RecordSuccess(provider.Name())
			return resp, nil
		}

		pe := provideradapter.Classify(err, provider.Name(), model)
		lastErr = pe

		e.emit(eventlog.TypeProviderError, map[string]any{
			"agent_id":  string(speaker),
			"provider":  provider.Name(),
			"message":   pe.HumanMessage,
			"retryable": pe.Category.Retryable(),
			"category":  string(pe.Category),
		})

		if !pe.Category.Retryable() {
			return provideradapter.ChatResponse{}, pe
		}
		if attempt == maxRetries {
			return provideradapter.ChatResponse{}, pe
		}

		var delay time.Duration
		if pe.Category == provideradapter.CategoryRateLimited {
			delay = e.deps.Limiter.RecordRateLimited(provider.Name())
		} else {
			delay = backoffDelay(attempt)
		}

		if err := e.deps.Limiter.Wait(ctx, provider.Name(), delay, "provider_error_retry"); err != nil {
			return provideradapter.ChatResponse{}, err
		}
	}
	return provideradapter.ChatResponse{}, lastErr
}

// backoffDelay computes the plain exponential backoff used for
// transient/unknown retries (not provider-reported rate limits, which go
// through the limiter's own counter): min(max, base × 2^attempt) plus a
// fixed retryJitter/2 offset (no random component).
func backoffDelay(attempt int) time.Duration {
	delay := retryBackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > retryBackoffMax {
			delay = retryBackoffMax
			break
		}
	}
	return delay + retryJitter/2
}

// streamChat drives one provider call through ChatStream rather than the
// blocking Chat, so the AWAITING(agent)→STREAMING(agent) transition
// (spec.md §4.5) actually produces message_chunk events instead of the
// engine observing only the finished turn. Token counts are approximated
// with the same heuristic used for pre-flight budgeting, since streamed
// deltas carry no usage accounting until the provider closes the stream.
func (e *Engine) streamChat(ctx context.Context, speaker config.AgentRole, provider provideradapter.Provider, req provideradapter.ChatRequest, turn int) (provideradapter.ChatResponse, error) {
	deltas, errs := provider.ChatStream(ctx, req)

	var content strings.Builder
	for d := range deltas {
		if d.Content == "" {
			continue
		}
		content.WriteString(d.Content)
		e.emit(eventlog.TypeMessageChunk, map[string]any{
			"agent_id": string(speaker),
			"turn":     turn,
			"delta":    d.Content,
		})
	}
	if err := <-errs; err != nil {
		return provideradapter.ChatResponse{}, err
	}

	text := content.String()
	return provideradapter.ChatResponse{
		Content:      text,
		InputTokens:  provideradapter.EstimateTokens(req.SystemPrompt) + estimateMessagesTokens(req.Messages),
		OutputTokens: provideradapter.EstimateTokens(text),
	}, nil
}

func estimateMessagesTokens(messages []provideradapter.Message) int {
	total := 0
	for _, m := range messages {
		total += provideradapter.EstimateTokens(m.Content)
	}
	return total
}
