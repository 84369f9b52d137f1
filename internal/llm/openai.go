package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// OpenAIAPIBase is the default base URL for the OpenAI API.
	OpenAIAPIBase = "https://api.openai.com/v1"

	// OpenRouterAPIBase is the default base URL for OpenRouter.
	OpenRouterAPIBase = "https://openrouter.ai/api/v1"

	// CompletionTimeout for completion requests (long for large documents).
	CompletionTimeout = 300 * time.Second
)

// OpenAIProvider executes requests against any OpenAI-compatible
// chat/completions API. It serves both the "openai" and "openrouter"
// provider names.
type OpenAIProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAI-compatible provider. A non-empty
// baseURL overrides the default endpoint for the provider name.
func NewOpenAIProvider(name, apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		if name == "openrouter" {
			baseURL = OpenRouterAPIBase
		} else {
			baseURL = OpenAIAPIBase
		}
	}
	return &OpenAIProvider{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: CompletionTimeout,
		},
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	body, err := p.buildBody(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s API returned no choices", p.name)
	}

	choice := parsed.Choices[0]
	return &Result{
		Content:      choice.Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		FinishReason: choice.FinishReason,
		Model:        req.Model,
	}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request, fn StreamFunc) (*Result, error) {
	body, err := p.buildBody(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, p.statusError(resp.StatusCode, raw)
	}

	result := &Result{Model: req.Model, FinishReason: "stop"}
	var content strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			result.InputTokens = chunk.Usage.PromptTokens
			result.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if err := fn(choice.Delta.Content); err != nil {
				return nil, err
			}
		}
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: stream read failed: %v", ErrTransient, err)
	}

	result.Content = content.String()
	return result, nil
}

func (p *OpenAIProvider) buildBody(req Request, stream bool) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for i, m := range req.Messages {
		// Page images ride on the first user message.
		if i == 0 && m.Role == "user" && len(req.Images) > 0 {
			parts := make([]chatContentPart, 0, len(req.Images)+1)
			for _, img := range req.Images {
				parts = append(parts, chatContentPart{
					Type: "image_url",
					ImageURL: &chatImagePart{
						URL: fmt.Sprintf("data:%s;base64,%s", img.MediaType,
							base64.StdEncoding.EncodeToString(img.Data)),
					},
				})
			}
			parts = append(parts, chatContentPart{Type: "text", Text: m.Content})
			messages = append(messages, chatMessage{Role: m.Role, Content: parts})
			continue
		}
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := map[string]any{
		"model":      req.Model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if req.Temperature > 0 {
		reqBody["temperature"] = req.Temperature
	}
	if len(req.ResponseFormat) > 0 {
		reqBody["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "extraction",
				"strict": true,
				"schema": json.RawMessage(req.ResponseFormat),
			},
		}
	}
	if stream {
		reqBody["stream"] = true
		reqBody["stream_options"] = map[string]any{"include_usage": true}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return jsonBody, nil
}

func (p *OpenAIProvider) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrTransient, err)
	}
	return resp, nil
}

// statusError classifies a non-200 response. Rate limits and upstream
// failures are transient; any other 4xx is a permanent rejection.
func (p *OpenAIProvider) statusError(status int, body []byte) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%w: %s API error (status %d): %s", ErrTransient, p.name, status, string(body))
	}
	return fmt.Errorf("%s API error (status %d): %s", p.name, status, string(body))
}
