// Package openai adapts the OpenAI chat completions API to
// provideradapter.Provider. The same client also serves xAI's
// Grok models, which expose an OpenAI-compatible endpoint — callers select
// that by passing an xAI base URL and model name to New.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.opentelemetry.io/otel/attribute"

	"pidgin/internal/observability"
	"pidgin/internal/provideradapter"
)

// Adapter wraps the OpenAI SDK client behind the provideradapter.Provider
// contract, clamping temperature to the [0.0, 2.0] range OpenAI/Google/xAI
// share (spec §4.1).
type Adapter struct {
	sdk  openaisdk.Client
	name string
}

// New constructs an adapter against the OpenAI API, or any OpenAI-compatible
// endpoint when baseURL is set (xAI, local gateways). name is the adapter's
// reported provider label, used in error classification and event logs.
func New(name, apiKey, baseURL string, httpClient *http.Client) *Adapter {
	httpClient = observability.NewHTTPClient(httpClient)
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if name == "" {
		name = "openai"
	}
	return &Adapter{sdk: openaisdk.NewClient(opts...), name: name}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Chat(ctx context.Context, req provideradapter.ChatRequest) (provideradapter.ChatResponse, error) {
	params := a.buildParams(req)

	ctx, span := observability.StartSpan(ctx, a.name+" Chat", attribute.String("model", req.Model))
	defer span.End()

	log := observability.Component("provideradapter." + a.name)
	start := time.Now()
	resp, err := a.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", req.Model).Dur("duration", dur).Msg("chat_error")
		return provideradapter.ChatResponse{}, provideradapter.Classify(err, a.name, req.Model)
	}
	if len(resp.Choices) == 0 {
		return provideradapter.ChatResponse{}, provideradapter.Classify(
			errEmptyChoices, a.name, req.Model)
	}

	return provideradapter.ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req provideradapter.ChatRequest) (<-chan provideradapter.StreamDelta, <-chan error) {
	deltas := make(chan provideradapter.StreamDelta, 8)
	errs := make(chan error, 1)

	params := a.buildParams(req)
	go func() {
		defer close(deltas)
		defer close(errs)

		ctx, span := observability.StartSpan(ctx, a.name+" ChatStream", attribute.String("model", req.Model))
		defer span.End()

		stream := a.sdk.Chat.Completions.NewStreaming(ctx, params)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				deltas <- provideradapter.StreamDelta{Content: chunk.Choices[0].Delta.Content}
			}
		}
		if err := stream.Err(); err != nil {
			span.RecordError(err)
			errs <- provideradapter.Classify(err, a.name, req.Model)
			return
		}
		deltas <- provideradapter.StreamDelta{Done: true}
	}()
	return deltas, errs
}

func (a *Adapter) buildParams(req provideradapter.ChatRequest) openaisdk.ChatCompletionNewParams {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			msgs = append(msgs, openaisdk.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openaisdk.UserMessage(m.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature != nil {
		params.Temperature = openaisdk.Float(clamp(*req.Temperature, 0.0, 2.0))
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

var errEmptyChoices = &emptyChoicesError{}

type emptyChoicesError struct{}

func (*emptyChoicesError) Error() string { return "provider returned no choices" }

var _ provideradapter.Provider = (*Adapter)(nil)
