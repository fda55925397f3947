package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/respondersim/callbridge/pkg/gateway/config"
	"github.com/respondersim/callbridge/pkg/gateway/lifecycle"
	"github.com/respondersim/callbridge/pkg/gateway/metrics"
)

// CallCreator is the telephony client slice this handler needs.
type CallCreator interface {
	CreateCall(ctx context.Context, toNumber, webhookURL string) (string, error)
}

// OutboundCallHandler starts one training call: it asks the carrier to dial
// the trainee and points it at the webhook that will open the media stream.
type OutboundCallHandler struct {
	Config    config.Config
	Calls     CallCreator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Lifecycle *lifecycle.Lifecycle
}

type outboundCallRequest struct {
	Number       string          `json:"number"`
	Prompt       string          `json:"prompt"`
	FirstMessage string          `json:"first_message"`
	ScenarioID   json.RawMessage `json:"scenarioId"`
}

// scenarioIDString accepts both string and numeric scenario identifiers.
func (r outboundCallRequest) scenarioIDString() string {
	raw := strings.TrimSpace(string(r.ScenarioID))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.ScenarioID, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return raw
}

func (h OutboundCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "service is draining",
		})
		return
	}

	var req outboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Phone number is required"})
		return
	}

	webhookURL := h.webhookURL(req.Prompt, req.FirstMessage, req.scenarioIDString())
	callID, err := h.Calls.CreateCall(r.Context(), req.Number, webhookURL)
	if err != nil {
		h.Logger.Error("call creation failed", "error", err)
		if h.Metrics != nil {
			h.Metrics.RecordCallStarted("error")
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to initiate call",
			"detail":  err.Error(),
		})
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordCallStarted("ok")
	}
	h.Logger.Info("call initiated", "call_id", callID, "scenario_id", req.scenarioIDString())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Call initiated",
		"callId":  callID,
	})
}

// webhookURL carries the scenario context through the carrier to the webhook
// fetch, so it survives to the stream-start event.
func (h OutboundCallHandler) webhookURL(prompt, firstMessage, scenarioID string) string {
	q := url.Values{}
	q.Set("prompt", prompt)
	q.Set("first_message", firstMessage)
	q.Set("scenarioId", scenarioID)
	return fmt.Sprintf("https://%s/outbound-call-twiml?%s", h.Config.PublicHost, q.Encode())
}
