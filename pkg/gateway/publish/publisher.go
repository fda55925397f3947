// Package publish delivers finished analysis results to the external storage
// endpoint and keeps an in-memory copy for the debug retrieval route.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/respondersim/callbridge/pkg/gateway/grading"
	"github.com/respondersim/callbridge/pkg/gateway/metrics"
)

// Publisher posts each result to the storage endpoint exactly once. Delivery
// failure is logged, counted, and otherwise swallowed: the session is already
// complete and the in-memory store remains readable either way.
type Publisher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewPublisher(endpoint string, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// Publish sends one result to the analysis-ingest endpoint. Never returns an
// error; no retry.
func (p *Publisher) Publish(ctx context.Context, callID string, result grading.AnalysisResult) {
	body, err := json.Marshal(result)
	if err != nil {
		p.fail(callID, fmt.Errorf("marshal result: %w", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/analysis", bytes.NewReader(body))
	if err != nil {
		p.fail(callID, fmt.Errorf("create request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.fail(callID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.fail(callID, fmt.Errorf("storage endpoint returned status %d", resp.StatusCode))
		return
	}
	p.logger.Info("analysis result delivered", "call_id", callID, "scenario_id", result.ScenarioID)
}

func (p *Publisher) fail(callID string, err error) {
	p.logger.Error("analysis result delivery failed", "call_id", callID, "error", err)
	if p.metrics != nil {
		p.metrics.RecordPublishFailure()
	}
}
