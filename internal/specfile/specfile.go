// Package specfile loads experiment YAML spec files and maps their
// shorthand fields onto config.ExperimentConfig, mirroring the original
// CLI's spec_loader.py.
package specfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pidgin/internal/config"
)

// rawSpec is the loose, shorthand-tolerant shape of a spec file on disk.
// Every field is optional; Normalize resolves shorthand and aliases before
// the file is converted to a config.ExperimentConfig.
type rawSpec struct {
	Name string `yaml:"name"`

	AgentAModel string `yaml:"agent_a_model"`
	AgentBModel string `yaml:"agent_b_model"`
	AgentA      string `yaml:"agent_a"`
	AgentB      string `yaml:"agent_b"`

	Repetitions int `yaml:"repetitions"`
	MaxTurns    int `yaml:"max_turns"`
	Turns       int `yaml:"turns"`

	Temperature  *float64 `yaml:"temperature"`
	TemperatureA *float64 `yaml:"temperature_a"`
	TemperatureB *float64 `yaml:"temperature_b"`

	CustomPrompt string `yaml:"custom_prompt"`
	Prompt       string `yaml:"prompt"`

	Dimensions yaml.Node `yaml:"dimensions"`
	Dimension  yaml.Node `yaml:"dimension"`

	FirstSpeaker string `yaml:"first_speaker"`
	MaxParallel  int    `yaml:"max_parallel"`

	ConvergenceThreshold *float64                   `yaml:"convergence_threshold"`
	ConvergenceAction    string                     `yaml:"convergence_action"`
	ConvergenceProfile   string                     `yaml:"convergence_profile"`
	ConvergenceWeights   *config.ConvergenceWeights `yaml:"convergence_weights"`

	Awareness  string `yaml:"awareness"`
	AwarenessA string `yaml:"awareness_a"`
	AwarenessB string `yaml:"awareness_b"`

	ChooseNames     bool   `yaml:"choose_names"`
	DisplayMode     string `yaml:"display_mode"`
	PromptTag       string `yaml:"prompt_tag"`
	AllowTruncation bool   `yaml:"allow_truncation"`

	Profile string `yaml:"profile"`
}

// Load reads and parses a YAML spec file from disk.
func Load(path string) (*rawSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("specfile: read %s: %w", path, err)
	}
	var spec rawSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("specfile: parse %s: %w", path, err)
	}
	return &spec, nil
}

// Validate checks the minimum required fields, resolving the agent_a/
// agent_b shorthand into agent_a_model/agent_b_model first.
func (s *rawSpec) Validate() error {
	s.resolveModelShorthand()
	if strings.TrimSpace(s.AgentAModel) == "" || strings.TrimSpace(s.AgentBModel) == "" {
		return fmt.Errorf("specfile: must specify agent_a_model and agent_b_model (or agent_a and agent_b)")
	}
	return nil
}

func (s *rawSpec) resolveModelShorthand() {
	if s.AgentAModel == "" && s.AgentA != "" {
		s.AgentAModel = s.AgentA
	}
	if s.AgentBModel == "" && s.AgentB != "" {
		s.AgentBModel = s.AgentB
	}
}

// ToExperimentConfig converts a validated rawSpec into an unresolved
// config.ExperimentConfig, applying the same field aliasing as the
// original spec_to_config: turns/max_turns, temperature/temperature_a/_b,
// prompt/custom_prompt, dimension/dimensions, and named-profile defaults.
func (s *rawSpec) ToExperimentConfig() (config.ExperimentConfig, error) {
	if err := s.Validate(); err != nil {
		return config.ExperimentConfig{}, err
	}

	cfg := config.ExperimentConfig{
		Name:            s.Name,
		AgentAModel:     s.AgentAModel,
		AgentBModel:     s.AgentBModel,
		Repetitions:     s.Repetitions,
		MaxTurns:        firstNonZero(s.MaxTurns, s.Turns, config.DefaultMaxTurns),
		TemperatureA:    firstNonNilFloat(s.TemperatureA, s.Temperature),
		TemperatureB:    firstNonNilFloat(s.TemperatureB, s.Temperature),
		CustomPrompt:    firstNonEmpty(s.CustomPrompt, s.Prompt),
		FirstSpeaker:    config.AgentRole(s.FirstSpeaker),
		MaxParallel:     s.MaxParallel,
		Awareness:       firstNonEmpty(s.Awareness, config.AwarenessBasic),
		AwarenessA:      s.AwarenessA,
		AwarenessB:      s.AwarenessB,
		ChooseNames:     s.ChooseNames,
		DisplayMode:     config.DisplayMode(firstNonEmpty(s.DisplayMode, string(config.DisplayChat))),
		PromptTag:       firstNonEmpty(s.PromptTag, config.DefaultPromptTag),
		AllowTruncation: s.AllowTruncation,
	}

	dims, err := dimensionsToList(s.Dimensions, s.Dimension)
	if err != nil {
		return config.ExperimentConfig{}, err
	}
	cfg.Dimensions = dims

	if s.ConvergenceProfile != "" {
		cfg.ConvergenceProfile = s.ConvergenceProfile
	} else {
		cfg.ConvergenceProfile = config.ProfileBalanced
	}
	cfg.CustomWeights = s.ConvergenceWeights

	if s.Profile != "" {
		profile, ok := config.BuiltinExperimentProfiles()[s.Profile]
		if !ok {
			return config.ExperimentConfig{}, fmt.Errorf("specfile: unknown profile %q", s.Profile)
		}
		if s.ConvergenceThreshold == nil && profile.ConvergenceThreshold != nil {
			cfg.ConvergenceThreshold = profile.ConvergenceThreshold
		}
		if s.ConvergenceAction == "" && profile.ConvergenceAction != nil {
			cfg.ConvergenceAction = *profile.ConvergenceAction
		}
	}
	if s.ConvergenceThreshold != nil {
		cfg.ConvergenceThreshold = s.ConvergenceThreshold
	}
	if s.ConvergenceAction != "" {
		cfg.ConvergenceAction = config.ConvergenceAction(s.ConvergenceAction)
	} else if cfg.ConvergenceAction == "" && cfg.ConvergenceThreshold != nil {
		// A threshold with no explicit action defaults to "stop", matching
		// spec_to_config's `"stop" if convergence_threshold else None`.
		cfg.ConvergenceAction = config.ConvergenceActionStop
	}

	return cfg, nil
}

// LoadAndResolve loads, validates, converts, and resolves a spec file in
// one call — the common path for the scheduler's --spec flag.
func LoadAndResolve(path string) (config.ExperimentConfig, error) {
	raw, err := Load(path)
	if err != nil {
		return config.ExperimentConfig{}, err
	}
	cfg, err := raw.ToExperimentConfig()
	if err != nil {
		return config.ExperimentConfig{}, err
	}
	return config.Resolve(cfg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonNilFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// dimensionsToList accepts either a YAML scalar ("tone") or a sequence
// (["tone", "length"]) for dimensions/dimension, matching the original's
// "wrap a bare string in a list" behavior.
func dimensionsToList(primary, fallback yaml.Node) ([]string, error) {
	node := primary
	if node.Kind == 0 {
		node = fallback
	}
	if node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, fmt.Errorf("specfile: decode dimension scalar: %w", err)
		}
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("specfile: decode dimensions list: %w", err)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("specfile: dimensions must be a string or list")
	}
}
