package engine

import (
	"context"

	"pidgin/internal/config"
	"pidgin/internal/eventlog"
	"pidgin/internal/prompt"
	"pidgin/internal/provideradapter"
)

// runNamingExchange runs the one-shot name-selection exchange before turn
// 0 (spec.md §4.6). Each agent is asked independently, so neither sees the
// other's proposed name. A failed, empty, or oversize response is not an
// engine error: ExtractChosenName already degrades to "" and the
// conversation proceeds unnamed for that agent.
func (e *Engine) runNamingExchange(ctx context.Context, providerA, providerB provideradapter.Provider, systemA, systemB string) error {
	nameA, err := e.requestChosenName(ctx, config.AgentA, providerA, systemA, e.cfg.AgentAModel, e.cfg.TemperatureA)
	if err != nil {
		return err
	}
	e.chosenNameA = nameA
	if nameA != "" {
		e.emit("name_chosen", map[string]any{"agent_id": string(config.AgentA), "name": nameA})
	}

	nameB, err := e.requestChosenName(ctx, config.AgentB, providerB, systemB, e.cfg.AgentBModel, e.cfg.TemperatureB)
	if err != nil {
		return err
	}
	e.chosenNameB = nameB
	if nameB != "" {
		e.emit("name_chosen", map[string]any{"agent_id": string(config.AgentB), "name": nameB})
	}
	return nil
}

func (e *Engine) requestChosenName(ctx context.Context, agent config.AgentRole, provider provideradapter.Provider, systemPrompt, model string, temperature *float64) (string, error) {
	req := provideradapter.ChatRequest{
		Model:        model,
		SystemPrompt: systemPrompt,
		Messages:     []provideradapter.Message{{Role: "user", Content: prompt.ChosenNamePrompt}},
		Temperature:  temperature,
	}
	resp, err := e.callWithRetry(ctx, agent, provider, req, model, -1)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		// A naming-exchange failure never fails the conversation
		// (spec.md §9): log it and proceed without a chosen name.
		e.emit(eventlog.TypeProviderError, map[string]any{
			"agent_id": string(agent),
			"message":  "name selection failed, proceeding unnamed",
		})
		return "", nil
	}
	return prompt.ExtractChosenName(resp.Content), nil
}
