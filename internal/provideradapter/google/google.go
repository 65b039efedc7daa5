// Package google adapts Google's genai SDK (Gemini) to provideradapter.Provider.
package google

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"pidgin/internal/observability"
	"pidgin/internal/provideradapter"
)

// Adapter wraps a genai.Client behind the provideradapter.Provider contract,
// clamping temperature to the [0.0, 2.0] range Google shares with
// OpenAI/xAI (spec §4.1).
type Adapter struct {
	sdk *genai.Client
}

// New constructs a Google adapter against the Gemini API using the given
// API key.
func New(ctx context.Context, apiKey string) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{sdk: client}, nil
}

func (a *Adapter) Name() string { return "google" }

func (a *Adapter) Chat(ctx context.Context, req provideradapter.ChatRequest) (provideradapter.ChatResponse, error) {
	contents, cfg := a.buildParams(req)

	ctx, span := observability.StartSpan(ctx, "Google Chat", attribute.String("model", req.Model))
	defer span.End()

	log := observability.Component("provideradapter.google")
	start := time.Now()
	resp, err := a.sdk.Models.GenerateContent(ctx, req.Model, contents, cfg)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", req.Model).Dur("duration", dur).Msg("chat_error")
		return provideradapter.ChatResponse{}, provideradapter.Classify(err, "google", req.Model)
	}

	var inTok, outTok int
	if resp.UsageMetadata != nil {
		inTok = int(resp.UsageMetadata.PromptTokenCount)
		outTok = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return provideradapter.ChatResponse{
		Content:      resp.Text(),
		InputTokens:  inTok,
		OutputTokens: outTok,
	}, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req provideradapter.ChatRequest) (<-chan provideradapter.StreamDelta, <-chan error) {
	deltas := make(chan provideradapter.StreamDelta, 8)
	errs := make(chan error, 1)

	contents, cfg := a.buildParams(req)
	go func() {
		defer close(deltas)
		defer close(errs)

		ctx, span := observability.StartSpan(ctx, "Google ChatStream", attribute.String("model", req.Model))
		defer span.End()

		for chunk, err := range a.sdk.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				span.RecordError(err)
				errs <- provideradapter.Classify(err, "google", req.Model)
				return
			}
			if text := chunk.Text(); text != "" {
				deltas <- provideradapter.StreamDelta{Content: text}
			}
		}
		deltas <- provideradapter.StreamDelta{Done: true}
	}()
	return deltas, errs
}

func (a *Adapter) buildParams(req provideradapter.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(clamp(*req.Temperature, 0.0, 2.0))
		cfg.Temperature = &t
	}
	return contents, cfg
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

var _ provideradapter.Provider = (*Adapter)(nil)
