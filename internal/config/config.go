// Package config defines ExperimentConfig (spec.md §3) and the resolver
// that fills provider-aware defaults before an experiment is frozen and
// handed to the scheduler daemon.
package config

import (
	"fmt"
	"math"
	"strings"
)

// Awareness levels (spec.md §4.6).
const (
	AwarenessNone     = "none"
	AwarenessBasic    = "basic"
	AwarenessFirm     = "firm"
	AwarenessResearch = "research"
)

// AgentRole identifies one of the two conversation participants.
type AgentRole string

const (
	AgentA AgentRole = "agent_a"
	AgentB AgentRole = "agent_b"
)

// ConvergenceAction controls what the engine does when convergence reaches
// the configured threshold (spec.md §4.5 transition 8).
type ConvergenceAction string

const (
	ConvergenceActionStop ConvergenceAction = "stop"
	ConvergenceActionWarn ConvergenceAction = "warn"
)

// DisplayMode is a contract-only field: the runtime never renders it itself,
// but freezes it into config.yaml for external reader processes (§4.7).
type DisplayMode string

const (
	DisplayChat  DisplayMode = "chat"
	DisplayTail  DisplayMode = "tail"
	DisplayQuiet DisplayMode = "quiet"
	DisplayNone  DisplayMode = "none"
)

// ConvergenceComponent names one term of the weighted convergence score
// (spec.md §4.3).
type ConvergenceComponent string

const (
	ComponentContent     ConvergenceComponent = "content"
	ComponentStructure   ConvergenceComponent = "structure"
	ComponentSentences   ConvergenceComponent = "sentences"
	ComponentLength      ConvergenceComponent = "length"
	ComponentPunctuation ConvergenceComponent = "punctuation"
)

// ConvergenceWeights is a named or custom profile of weights over the five
// convergence components. Values must be non-negative and sum to 1.0 within
// a 0.01 tolerance (spec.md §8).
type ConvergenceWeights struct {
	Content     float64 `json:"content" yaml:"content"`
	Structure   float64 `json:"structure" yaml:"structure"`
	Sentences   float64 `json:"sentences" yaml:"sentences"`
	Length      float64 `json:"length" yaml:"length"`
	Punctuation float64 `json:"punctuation" yaml:"punctuation"`
}

// Sum returns the total weight across all components.
func (w ConvergenceWeights) Sum() float64 {
	return w.Content + w.Structure + w.Sentences + w.Length + w.Punctuation
}

// Validate enforces the non-negative, sum-to-1.0±0.01 invariant.
func (w ConvergenceWeights) Validate() error {
	for name, v := range map[string]float64{
		"content": w.Content, "structure": w.Structure, "sentences": w.Sentences,
		"length": w.Length, "punctuation": w.Punctuation,
	} {
		if v < 0 {
			return fmt.Errorf("config: convergence weight %q must be non-negative, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("config: convergence weights must sum to 1.0 (±0.01), got %.4f", sum)
	}
	return nil
}

// Named convergence profiles, values taken verbatim from the original
// pidgin/metrics/constants.py::DEFAULT_CONVERGENCE_WEIGHTS table.
const (
	ProfileBalanced   = "balanced"
	ProfileStructural = "structural"
	ProfileSemantic   = "semantic"
	ProfileStrict     = "strict"
	ProfileCustom     = "custom"
)

// DefaultConvergenceWeights returns the built-in weight table for a named
// profile. The "custom" profile has no built-in weights; callers must
// supply ExperimentConfig.CustomWeights.
func DefaultConvergenceWeights() map[string]ConvergenceWeights {
	return map[string]ConvergenceWeights{
		ProfileBalanced:   {Content: 0.40, Structure: 0.15, Sentences: 0.20, Length: 0.15, Punctuation: 0.10},
		ProfileStructural: {Content: 0.25, Structure: 0.35, Sentences: 0.20, Length: 0.10, Punctuation: 0.10},
		ProfileSemantic:   {Content: 0.60, Structure: 0.10, Sentences: 0.15, Length: 0.10, Punctuation: 0.05},
		ProfileStrict:     {Content: 0.50, Structure: 0.25, Sentences: 0.15, Length: 0.05, Punctuation: 0.05},
	}
}

const (
	// DefaultConvergenceThreshold matches pidgin/metrics/constants.py.
	DefaultConvergenceThreshold = 0.8
	// DefaultConvergenceAction matches pidgin/metrics/constants.py.
	DefaultConvergenceAction = ConvergenceActionWarn
	// DefaultConvergenceProfile matches pidgin/metrics/constants.py.
	DefaultConvergenceProfile = ProfileBalanced
	// DefaultMaxTurns is the CLI/spec-file default (pidgin/cli/constants.py DEFAULT_TURNS).
	DefaultMaxTurns = 20
	// DefaultPromptTag is prepended to the initial content message.
	DefaultPromptTag = "[HUMAN]"
)

// ExperimentProfile is a named preset that fills convergence defaults when a
// spec file references it by name (pidgin/config/schema.py::ExperimentsConfig).
type ExperimentProfile struct {
	ConvergenceThreshold *float64
	ConvergenceAction    *ConvergenceAction
}

// BuiltinExperimentProfiles mirrors the "unattended" and "baseline" presets.
func BuiltinExperimentProfiles() map[string]ExperimentProfile {
	f := func(v float64) *float64 { return &v }
	a := func(v ConvergenceAction) *ConvergenceAction { return &v }
	return map[string]ExperimentProfile{
		"unattended": {ConvergenceThreshold: f(0.75), ConvergenceAction: a(ConvergenceActionStop)},
		"baseline":   {ConvergenceThreshold: f(1.0)},
	}
}

// AgentSpec configures one of the two conversation participants (spec.md §3
// "Agent").
type AgentSpec struct {
	Role        AgentRole
	Model       string
	ChosenName  string
	Temperature *float64
	Awareness   string
	ThinkBudget *int
}

// ExperimentConfig is the frozen, validated configuration for an experiment
// (spec.md §3). It is built by the resolver from either CLI flags (out of
// scope) or a YAML spec file (internal/specfile) and never mutated once the
// scheduler daemon starts.
type ExperimentConfig struct {
	Name        string
	AgentAModel string
	AgentBModel string

	Repetitions int
	MaxTurns    int

	TemperatureA *float64
	TemperatureB *float64

	CustomPrompt string
	Dimensions   []string

	FirstSpeaker AgentRole

	MaxParallel int

	ConvergenceThreshold *float64
	ConvergenceAction    ConvergenceAction
	ConvergenceProfile   string
	CustomWeights        *ConvergenceWeights

	Awareness  string
	AwarenessA string
	AwarenessB string

	ChooseNames     bool
	PromptTag       string
	AllowTruncation bool
	DisplayMode     DisplayMode

	ThinkEnabled bool
	ThinkBudget  *int

	RateLimiting RateLimitingConfig
	Context      ContextManagementConfig
}

// RateLimitingConfig controls the per-provider sliding-window limiter
// (spec.md §4.2; defaults from pidgin/config/schema.py::RateLimitingConfig).
type RateLimitingConfig struct {
	Enabled                   bool
	SafetyMargin              float64
	TokenEstimationMultiplier float64
	BackoffBaseSeconds        float64
	BackoffMaxSeconds         float64
	SlidingWindowMinutes      int
	CustomLimits              map[string]ProviderRateLimit
	Overrides                 map[string]ProviderOverride
}

// ProviderRateLimit is a per-provider requests/tokens-per-minute ceiling.
type ProviderRateLimit struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

// ProviderOverride tweaks a single provider's limiter/context inputs.
type ProviderOverride struct {
	TokensPerMinute *int
	ContextLimit    *int
}

// DefaultRateLimiting returns the pidgin defaults.
func DefaultRateLimiting() RateLimitingConfig {
	return RateLimitingConfig{
		Enabled:                   true,
		SafetyMargin:              0.9,
		TokenEstimationMultiplier: 1.1,
		BackoffBaseSeconds:        1.0,
		BackoffMaxSeconds:         60.0,
		SlidingWindowMinutes:      1,
		CustomLimits:              map[string]ProviderRateLimit{},
		Overrides:                 map[string]ProviderOverride{},
	}
}

// ContextManagementConfig generalizes spec.md §4.5's binary allow_truncation
// into a proactive sliding-window trim policy (pidgin/config/schema.py::
// ProviderContextConfig), applied before a context_length error is even hit.
type ContextManagementConfig struct {
	Enabled             bool
	ContextReserveRatio float64
	MinMessagesRetained int
	SafetyFactor        float64
}

// DefaultContextManagement returns the pidgin defaults.
func DefaultContextManagement() ContextManagementConfig {
	return ContextManagementConfig{
		Enabled:             true,
		ContextReserveRatio: 0.25,
		MinMessagesRetained: 10,
		SafetyFactor:        0.9,
	}
}

// Resolve fills in provider-aware defaults and validates the config,
// returning a frozen copy. It never mutates its argument.
func Resolve(in ExperimentConfig) (ExperimentConfig, error) {
	out := in

	if strings.TrimSpace(out.AgentAModel) == "" || strings.TrimSpace(out.AgentBModel) == "" {
		return ExperimentConfig{}, fmt.Errorf("config: agent_a_model and agent_b_model are required")
	}
	if out.Repetitions <= 0 {
		out.Repetitions = 1
	}
	if out.MaxTurns < 0 {
		return ExperimentConfig{}, fmt.Errorf("config: max_turns must be >= 0, got %d", out.MaxTurns)
	}
	if out.MaxParallel <= 0 {
		out.MaxParallel = 1
	}
	if out.FirstSpeaker == "" {
		out.FirstSpeaker = AgentA
	}
	if out.FirstSpeaker != AgentA && out.FirstSpeaker != AgentB {
		return ExperimentConfig{}, fmt.Errorf("config: first_speaker must be agent_a or agent_b, got %q", out.FirstSpeaker)
	}

	if out.Awareness == "" {
		out.Awareness = AwarenessBasic
	}
	if err := validateAwareness(out.Awareness); err != nil {
		return ExperimentConfig{}, err
	}
	if out.AwarenessA == "" {
		out.AwarenessA = out.Awareness
	}
	if out.AwarenessB == "" {
		out.AwarenessB = out.Awareness
	}
	if err := validateAwareness(out.AwarenessA); err != nil {
		return ExperimentConfig{}, err
	}
	if err := validateAwareness(out.AwarenessB); err != nil {
		return ExperimentConfig{}, err
	}

	if out.PromptTag == "" {
		out.PromptTag = DefaultPromptTag
	}
	if out.DisplayMode == "" {
		out.DisplayMode = DisplayChat
	}

	if out.ConvergenceProfile == "" {
		out.ConvergenceProfile = DefaultConvergenceProfile
	}
	weights, err := ResolveConvergenceWeights(out.ConvergenceProfile, out.CustomWeights)
	if err != nil {
		return ExperimentConfig{}, err
	}
	out.CustomWeights = &weights

	if out.ConvergenceThreshold != nil {
		if *out.ConvergenceThreshold < 0 || *out.ConvergenceThreshold > 1 {
			return ExperimentConfig{}, fmt.Errorf("config: convergence_threshold must be in [0,1], got %v", *out.ConvergenceThreshold)
		}
		if out.ConvergenceAction == "" {
			out.ConvergenceAction = ConvergenceActionStop
		}
	}
	if out.ConvergenceAction != "" && out.ConvergenceAction != ConvergenceActionStop && out.ConvergenceAction != ConvergenceActionWarn {
		return ExperimentConfig{}, fmt.Errorf("config: convergence_action must be stop or warn, got %q", out.ConvergenceAction)
	}

	if out.RateLimiting.SafetyMargin == 0 && out.RateLimiting.TokenEstimationMultiplier == 0 {
		out.RateLimiting = DefaultRateLimiting()
	}
	if out.Context.SafetyFactor == 0 && out.Context.ContextReserveRatio == 0 {
		out.Context = DefaultContextManagement()
	}

	out.TemperatureA = clampTemperature(out.AgentAModel, out.TemperatureA)
	out.TemperatureB = clampTemperature(out.AgentBModel, out.TemperatureB)

	return out, nil
}

func validateAwareness(level string) error {
	switch level {
	case AwarenessNone, AwarenessBasic, AwarenessFirm, AwarenessResearch:
		return nil
	default:
		return fmt.Errorf("config: unknown awareness level %q (must be none, basic, firm, or research)", level)
	}
}

// ResolveConvergenceWeights looks up a named profile or validates a custom
// one. A 1.3 sum is a configuration error, not a silently-normalized value
// (spec.md §9).
func ResolveConvergenceWeights(profile string, custom *ConvergenceWeights) (ConvergenceWeights, error) {
	if profile == ProfileCustom {
		if custom == nil {
			return ConvergenceWeights{}, fmt.Errorf("config: convergence_profile \"custom\" requires custom weights")
		}
		if err := custom.Validate(); err != nil {
			return ConvergenceWeights{}, err
		}
		return *custom, nil
	}
	weights, ok := DefaultConvergenceWeights()[profile]
	if !ok {
		return ConvergenceWeights{}, fmt.Errorf("config: unknown convergence profile %q", profile)
	}
	return weights, nil
}
