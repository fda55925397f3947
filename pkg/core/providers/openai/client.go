// Package openai is a minimal chat-completions client used for call grading.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/respondersim/callbridge/pkg/core"
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      model,
		httpClient: httpClient,
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatJSON runs one non-streaming completion with response_format json_object
// and returns the raw message content. There is no retry: callers decide what
// a failed completion means for them.
func (c *Client) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", core.NewValidationError("at least one message is required")
	}

	temperature := 0.3
	body, err := json.Marshal(&chatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewUpstreamUnavailableError(fmt.Sprintf("completion request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", core.NewUpstreamAuthError("completion rejected", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", core.NewUpstreamUnavailableError(fmt.Sprintf("completion returned status %d", resp.StatusCode))
	}

	var payload chatResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", core.NewProtocolError("completion response is not valid JSON")
	}
	if len(payload.Choices) == 0 {
		return "", core.NewProtocolError("completion response has no choices")
	}
	content := payload.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", core.NewProtocolError("completion response has empty content")
	}
	return content, nil
}
