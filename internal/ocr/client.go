package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Provider performs OCR on a raw document.
type Provider interface {
	Process(ctx context.Context, fileName string, content []byte) (*Result, error)
}

// Client communicates with the OCR service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientConfig holds configuration for the OCR client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a new OCR service client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: cfg.Logger,
	}
}

type processRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"` // base64
}

type processResponse struct {
	NPages int             `json:"n_pages"`
	Blocks json.RawMessage `json:"blocks"`
	Pages  []struct {
		Text  string `json:"text"`
		Image string `json:"image,omitempty"` // base64 PNG
	} `json:"pages"`
}

// Process sends a document to the OCR service and returns blocks, per-page
// text and page images.
func (c *Client) Process(ctx context.Context, fileName string, content []byte) (*Result, error) {
	reqBody, err := json.Marshal(processRequest{
		FileName: fileName,
		Content:  base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("OCR service error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed processResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &Result{
		NPages: parsed.NPages,
		Blocks: parsed.Blocks,
	}
	if result.NPages == 0 {
		result.NPages = len(parsed.Pages)
	}
	for i, page := range parsed.Pages {
		result.PageTexts = append(result.PageTexts, page.Text)
		// PageImages stays index-aligned with pages; an imageless page
		// holds a nil slot.
		var img []byte
		if page.Image != "" {
			img, err = base64.StdEncoding.DecodeString(page.Image)
			if err != nil {
				return nil, fmt.Errorf("failed to decode page %d image: %w", i+1, err)
			}
		}
		result.PageImages = append(result.PageImages, img)
	}

	if c.logger != nil {
		c.logger.Debug("OCR completed", "file_name", fileName, "n_pages", result.NPages)
	}
	return result, nil
}
