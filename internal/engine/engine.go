// Package engine implements the per-conversation state machine that
// alternates turns between two provider adapters, enforces convergence
// based termination, and emits the conversation's event stream (spec.md
// §4.5).
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pidgin/internal/config"
	"pidgin/internal/eventlog"
	"pidgin/internal/metrics"
	"pidgin/internal/prompt"
	"pidgin/internal/provideradapter"
	"pidgin/internal/ratelimit"
)

// ProviderResolver resolves a model identifier to the provider adapter
// that serves it. *registry.Registry satisfies this structurally; engine
// depends only on this narrow interface so tests can substitute a
// hand-built resolver without touching the real adapter registry.
type ProviderResolver interface {
	ForModel(model string) (provideradapter.Provider, error)
}

// Clock lets tests substitute a deterministic now() without touching the
// wall clock.
type Clock func() time.Time

// Deps bundles the collaborators an Engine needs, all already constructed
// by the scheduler (or a test harness) once per conversation (event log
// writer, state path) or shared across a whole experiment
// (provider registry, rate limiter).
type Deps struct {
	Providers ProviderResolver
	Limiter   *ratelimit.Limiter
	Writer    *eventlog.Writer
	StatePath string
	Clock     Clock

	// ConversationID overrides the generated identifier. Callers that must
	// know the ID before constructing Writer/StatePath (the scheduler,
	// which names the conversation directory after it) set this; left
	// empty, New generates one.
	ConversationID string
}

// Result is the terminal outcome of one conversation run.
type Result struct {
	ConversationID   string
	Status           string // completed | failed | interrupted
	Reason           string // max_turns | convergence | provider_fatal | context_exhausted | interrupted
	TotalTurns       int
	FinalConvergence *float64
	ChosenNameA      string
	ChosenNameB      string
	InputTokens      int
	OutputTokens     int
}

// Conversation lifecycle statuses (spec.md §3).
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Engine drives a single conversation from INITIALIZING to TERMINATED.
type Engine struct {
	conversationID string
	experimentID   string
	cfg            config.ExperimentConfig
	deps           Deps
	calc           *metrics.Calculator

	history []historyEntry

	chosenNameA string
	chosenNameB string

	turnsCompleted    int
	totalInputTokens  int
	totalOutputTokens int
}

// New constructs an Engine for one conversation. experimentID is empty for
// a standalone (non-experiment) conversation. cfg must already be resolved
// (internal/config.Resolve), so ConvergenceProfile/CustomWeights are known
// to validate.
func New(experimentID string, cfg config.ExperimentConfig, deps Deps) (*Engine, error) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	weights, err := config.ResolveConvergenceWeights(cfg.ConvergenceProfile, cfg.CustomWeights)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve convergence weights: %w", err)
	}
	conversationID := deps.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	return &Engine{
		conversationID: conversationID,
		experimentID:   experimentID,
		cfg:            cfg,
		deps:           deps,
		calc:           metrics.NewCalculator(weights),
	}, nil
}

// ConversationID returns the generated identifier for this run.
func (e *Engine) ConversationID() string { return e.conversationID }

func (e *Engine) now() time.Time { return e.deps.Clock() }

// Run drives the conversation to completion or interruption, returning
// once TERMINATED. ctx cancellation triggers the interrupted path
// (spec.md §4.5, "Cancellation").
func (e *Engine) Run(ctx context.Context) (Result, error) {
	started := e.now()
	e.emit(eventlog.TypeConversationStarted, map[string]any{
		"conversation_id": e.conversationID,
		"experiment_id":   e.experimentID,
		"agent_a_model":   e.cfg.AgentAModel,
		"agent_b_model":   e.cfg.AgentBModel,
		"max_turns":       e.cfg.MaxTurns,
		"started_at":      started.UTC().Format(time.RFC3339),
	})
	e.writeState(StatusRunning, 0, nil)

	providerA, err := e.deps.Providers.ForModel(e.cfg.AgentAModel)
	if err != nil {
		return e.fail("provider_fatal", err)
	}
	providerB, err := e.deps.Providers.ForModel(e.cfg.AgentBModel)
	if err != nil {
		return e.fail("provider_fatal", err)
	}

	systemA := prompt.System(e.awareness(config.AgentA), e.cfg.ChooseNames, "", e.cfg.PromptTag)
	systemB := prompt.System(e.awareness(config.AgentB), e.cfg.ChooseNames, "", e.cfg.PromptTag)
	e.emit("system_prompt", map[string]any{"agent_id": string(config.AgentA), "content": systemA})
	e.emit("system_prompt", map[string]any{"agent_id": string(config.AgentB), "content": systemB})

	if e.cfg.ChooseNames {
		if err := e.runNamingExchange(ctx, providerA, providerB, systemA, systemB); err != nil {
			if ctx.Err() != nil {
				return e.interrupted()
			}
		}
		systemA = prompt.System(e.awareness(config.AgentA), true, e.chosenNameA, e.cfg.PromptTag)
		systemB = prompt.System(e.awareness(config.AgentB), true, e.chosenNameB, e.cfg.PromptTag)
	}

	initial := prompt.InitialMessage(e.cfg.CustomPrompt, e.cfg.Dimensions, e.cfg.PromptTag)
	e.history = append(e.history, historyEntry{Author: "", Content: initial})

	firstSpeaker := e.cfg.FirstSpeaker
	if firstSpeaker == "" {
		firstSpeaker = config.AgentA
	}
	secondSpeaker := other(firstSpeaker)

	providerFor := func(role config.AgentRole) provideradapter.Provider {
		if role == config.AgentA {
			return providerA
		}
		return providerB
	}
	systemFor := func(role config.AgentRole) string {
		if role == config.AgentA {
			return systemA
		}
		return systemB
	}
	modelFor := func(role config.AgentRole) string {
		if role == config.AgentA {
			return e.cfg.AgentAModel
		}
		return e.cfg.AgentBModel
	}
	tempFor := func(role config.AgentRole) *float64 {
		if role == config.AgentA {
			return e.cfg.TemperatureA
		}
		return e.cfg.TemperatureB
	}

	for turn := 0; turn < e.cfg.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return e.interrupted()
		}

		firstContent, err := e.runTurn(ctx, firstSpeaker, providerFor(firstSpeaker), systemFor(firstSpeaker), modelFor(firstSpeaker), tempFor(firstSpeaker), turn)
		if err != nil {
			if ctx.Err() != nil {
				return e.interrupted()
			}
			return e.fail(reasonFor(err), err)
		}

		secondContent, err := e.runTurn(ctx, secondSpeaker, providerFor(secondSpeaker), systemFor(secondSpeaker), modelFor(secondSpeaker), tempFor(secondSpeaker), turn)
		if err != nil {
			if ctx.Err() != nil {
				return e.interrupted()
			}
			return e.fail(reasonFor(err), err)
		}

		msgA, msgB := firstContent, secondContent
		if firstSpeaker == config.AgentB {
			msgA, msgB = secondContent, firstContent
		}

		turnMetrics := e.calc.CalculateTurn(turn, msgA, msgB)
		e.turnsCompleted = turn + 1
		convergence := turnMetrics.Convergence.OverallConvergence

		e.emit(eventlog.TypeTurnCompleted, map[string]any{
			"turn":        turn,
			"convergence": convergence,
		})
		e.writeState(StatusRunning, e.turnsCompleted, &convergence)

		if e.cfg.ConvergenceThreshold != nil && convergence >= *e.cfg.ConvergenceThreshold {
			e.emit(eventlog.TypeConvergenceReached, map[string]any{
				"turn":      turn,
				"score":     convergence,
				"threshold": *e.cfg.ConvergenceThreshold,
				"action":    string(e.cfg.ConvergenceAction),
			})
			if e.cfg.ConvergenceAction == config.ConvergenceActionStop {
				return e.complete("convergence", &convergence)
			}
		}

		if turn == e.cfg.MaxTurns-1 {
			return e.complete("max_turns", &convergence)
		}
	}

	return e.complete("max_turns", nil)
}

func (e *Engine) awareness(role config.AgentRole) string {
	if role == config.AgentA && e.cfg.AwarenessA != "" {
		return e.cfg.AwarenessA
	}
	if role == config.AgentB && e.cfg.AwarenessB != "" {
		return e.cfg.AwarenessB
	}
	return e.cfg.Awareness
}

func other(role config.AgentRole) config.AgentRole {
	if role == config.AgentA {
		return config.AgentB
	}
	return config.AgentA
}

func reasonFor(err error) string {
	var ce *contextExhaustedError
	if errors.As(err, &ce) {
		return "context_exhausted"
	}
	return "provider_fatal"
}

func (e *Engine) complete(reason string, convergence *float64) (Result, error) {
	e.emit(eventlog.TypeConversationEnded, map[string]any{
		"status":        StatusCompleted,
		"reason":        reason,
		"total_turns":   e.turnsCompleted,
		"input_tokens":  e.totalInputTokens,
		"output_tokens": e.totalOutputTokens,
	})
	e.writeState(StatusCompleted, e.turnsCompleted, convergence)
	return Result{
		ConversationID:   e.conversationID,
		Status:           StatusCompleted,
		Reason:           reason,
		TotalTurns:       e.turnsCompleted,
		FinalConvergence: convergence,
		ChosenNameA:      e.chosenNameA,
		ChosenNameB:      e.chosenNameB,
		InputTokens:      e.totalInputTokens,
		OutputTokens:     e.totalOutputTokens,
	}, nil
}

func (e *Engine) fail(reason string, cause error) (Result, error) {
	e.emit(eventlog.TypeConversationEnded, map[string]any{
		"status":      StatusFailed,
		"reason":      reason,
		"total_turns": e.turnsCompleted,
		"error":       cause.Error(),
	})
	e.writeState(StatusFailed, e.turnsCompleted, nil)
	return Result{
		ConversationID: e.conversationID,
		Status:         StatusFailed,
		Reason:         reason,
		TotalTurns:     e.turnsCompleted,
	}, fmt.Errorf("engine: conversation failed: %w", cause)
}

func (e *Engine) interrupted() (Result, error) {
	e.emit(eventlog.TypeConversationEnded, map[string]any{
		"status":      StatusInterrupted,
		"reason":      "interrupted",
		"total_turns": e.turnsCompleted,
	})
	e.writeState(StatusInterrupted, e.turnsCompleted, nil)
	return Result{
		ConversationID: e.conversationID,
		Status:         StatusInterrupted,
		Reason:         "interrupted",
		TotalTurns:     e.turnsCompleted,
	}, nil
}

func (e *Engine) emit(eventType string, fields map[string]any) {
	if e.deps.Writer == nil {
		return
	}
	_ = e.deps.Writer.Append(eventlog.New(e.now(), eventType, fields))
}

func (e *Engine) writeState(status string, currentTurn int, convergence *float64) {
	if e.deps.StatePath == "" {
		return
	}
	_ = eventlog.WriteState(e.deps.StatePath, eventlog.ConversationState{
		ConversationID:  e.conversationID,
		ExperimentID:    e.experimentID,
		Status:          status,
		CurrentTurn:     currentTurn,
		MaxTurns:        e.cfg.MaxTurns,
		LastConvergence: convergence,
		AgentAModel:     e.cfg.AgentAModel,
		AgentBModel:     e.cfg.AgentBModel,
		UpdatedAt:       e.now().UTC(),
	})
}
