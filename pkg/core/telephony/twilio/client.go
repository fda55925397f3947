// Package twilio is the telephony-provider client: outbound call creation
// over the provider REST API and the markup instructing the provider to open
// a media stream back to this process.
package twilio

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

type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewClient(accountSID, authToken, fromNumber, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		fromNumber: strings.TrimSpace(fromNumber),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// CreateCall places one outbound call whose handling instructions are fetched
// from webhookURL once the callee answers. Returns the provider-assigned call id.
func (c *Client) CreateCall(ctx context.Context, toNumber, webhookURL string) (string, error) {
	toNumber = strings.TrimSpace(toNumber)
	if toNumber == "" {
		return "", core.NewValidationErrorWithParam("destination number is required", "number")
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Url", webhookURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, url.PathEscape(c.accountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewUpstreamUnavailableError(fmt.Sprintf("call creation request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", core.NewUpstreamAuthError("call creation rejected", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", core.NewUpstreamUnavailableError(fmt.Sprintf("call creation returned status %d: %s", resp.StatusCode, compactBody(body)))
	}

	var payload struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", core.NewProtocolError("call creation response is not valid JSON")
	}
	if strings.TrimSpace(payload.SID) == "" {
		return "", core.NewProtocolError("call creation response is missing sid")
	}
	return payload.SID, nil
}

func compactBody(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 300 {
		s = s[:300] + "…"
	}
	return s
}
