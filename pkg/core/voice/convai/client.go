// Package convai talks to the voice AI service: signed-URL session issuance
// over HTTP and the realtime conversation websocket.
package convai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/respondersim/callbridge/pkg/core"
)

const signedURLPath = "/v1/convai/conversation/get_signed_url"

// Client issues authenticated requests against the voice AI REST surface.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// SignedURL requests a fresh single-use realtime endpoint for the given agent.
// The returned URL is short-lived and must never be reused across calls.
func (c *Client) SignedURL(ctx context.Context, agentID string) (string, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return "", core.NewValidationErrorWithParam("agent id is required", "agent_id")
	}

	reqURL := c.baseURL + signedURLPath + "?agent_id=" + url.QueryEscape(agentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewUpstreamUnavailableError(fmt.Sprintf("signed url request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", core.NewUpstreamAuthError("signed url request rejected", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var payload struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", core.NewProtocolError("signed url response is not valid JSON")
	}
	if strings.TrimSpace(payload.SignedURL) == "" {
		return "", core.NewProtocolError("signed url response is missing signed_url")
	}
	return payload.SignedURL, nil
}
