// Package anthropic adapts Anthropic's Messages API to provideradapter.Provider.
package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"

	"pidgin/internal/observability"
	"pidgin/internal/provideradapter"
)

const defaultMaxTokens int64 = 4096

// Adapter wraps the Anthropic SDK client behind the provideradapter.Provider
// contract, clamping temperature to Anthropic's accepted [0.0, 1.0] range
// the way every call site expects (spec §4.1).
type Adapter struct {
	sdk       anthropicsdk.Client
	maxTokens int64
}

// New constructs an Anthropic adapter. apiKey and baseURL follow the usual
// environment-var overrides; httpClient may be nil to use the package
// default transport tuned by observability.NewHTTPClient.
func New(apiKey, baseURL string, httpClient *http.Client) *Adapter {
	httpClient = observability.NewHTTPClient(httpClient)
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &Adapter{sdk: anthropicsdk.NewClient(opts...), maxTokens: defaultMaxTokens}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Chat(ctx context.Context, req provideradapter.ChatRequest) (provideradapter.ChatResponse, error) {
	params := a.buildParams(req)

	ctx, span := observability.StartSpan(ctx, "Anthropic Chat", attribute.String("model", req.Model))
	defer span.End()

	log := observability.Component("provideradapter.anthropic")
	start := time.Now()
	resp, err := a.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", req.Model).Dur("duration", dur).Msg("anthropic_chat_error")
		return provideradapter.ChatResponse{}, provideradapter.Classify(err, "anthropic", req.Model)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return provideradapter.ChatResponse{
		Content:      text.String(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req provideradapter.ChatRequest) (<-chan provideradapter.StreamDelta, <-chan error) {
	deltas := make(chan provideradapter.StreamDelta, 8)
	errs := make(chan error, 1)

	params := a.buildParams(req)
	go func() {
		defer close(deltas)
		defer close(errs)

		ctx, span := observability.StartSpan(ctx, "Anthropic ChatStream", attribute.String("model", req.Model))
		defer span.End()

		stream := a.sdk.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(anthropicsdk.ContentBlockDeltaEvent); ok {
				if delta.Delta.Text != "" {
					deltas <- provideradapter.StreamDelta{Content: delta.Delta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			span.RecordError(err)
			errs <- provideradapter.Classify(err, "anthropic", req.Model)
			return
		}
		deltas <- provideradapter.StreamDelta{Done: true}
	}()
	return deltas, errs
}

func (a *Adapter) buildParams(req provideradapter.ChatRequest) anthropicsdk.MessageNewParams {
	msgs := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropicsdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropicsdk.NewUserMessage(block))
		}
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: a.maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(clamp(*req.Temperature, 0.0, 1.0))
	}
	if req.ThinkBudget != nil && *req.ThinkBudget > 0 {
		budget := int64(*req.ThinkBudget)
		if budget < 1024 {
			budget = 1024
		}
		params.Thinking = anthropicsdk.ThinkingConfigParamOfEnabled(budget)
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + 1024
		}
	}
	return params
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
