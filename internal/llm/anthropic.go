package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider executes requests against the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates an Anthropic provider. A non-empty baseURL
// overrides the default endpoint (used for proxies).
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	params := p.buildParams(req)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Result{
		Content:      content.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		FinishReason: normalizeStopReason(string(msg.StopReason)),
		Model:        req.Model,
	}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request, fn StreamFunc) (*Result, error) {
	params := p.buildParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream: %w", err)
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					if err := fn(delta.Text); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classifyAnthropicError(err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Result{
		Content:      content.String(),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		FinishReason: normalizeStopReason(string(message.StopReason)),
		Model:        req.Model,
	}, nil
}

func (p *AnthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []anthropic.MessageParam
	for i, m := range req.Messages {
		var blocks []anthropic.ContentBlockParamUnion
		// Page images ride on the first user message.
		if i == 0 && m.Role == "user" {
			for _, img := range req.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(
					img.MediaType, base64.StdEncoding.EncodeToString(img.Data)))
			}
		}
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))

		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	system := req.System
	// The Messages API has no response_format; schema conformance is
	// requested through the system prompt instead.
	if len(req.ResponseFormat) > 0 {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object conforming to this JSON schema, with no surrounding prose:\n" + string(req.ResponseFormat))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

// classifyAnthropicError marks rate limits, upstream 5xx responses, and
// network failures as transient. Other API rejections are permanent.
func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return fmt.Errorf("%w: anthropic request failed: %v", ErrTransient, err)
		}
		return fmt.Errorf("anthropic request failed: %w", err)
	}
	// No API response at all, so the request never completed.
	return fmt.Errorf("%w: anthropic request failed: %v", ErrTransient, err)
}

func normalizeStopReason(reason string) string {
	switch reason {
	case "max_tokens":
		return "length"
	case "end_turn", "stop_sequence", "":
		return "stop"
	}
	return reason
}
