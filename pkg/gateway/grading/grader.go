package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/respondersim/callbridge/pkg/core"
	"github.com/respondersim/callbridge/pkg/core/providers/openai"
)

// Completer is the slice of the chat client the grader needs.
type Completer interface {
	ChatJSON(ctx context.Context, messages []openai.Message) (string, error)
}

// Grader runs exactly one review attempt per call. Any failure, from transport
// errors to malformed model output, degrades to FallbackResult, so a call that
// reached grading always ends with a result.
type Grader struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

func New(completer Completer, timeout time.Duration, logger *slog.Logger) *Grader {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{completer: completer, timeout: timeout, logger: logger}
}

const systemPrompt = `You are an expert trainer of emergency-call responders. You grade a single training call between a trainee responder and a simulated emergency caller.

Respond with a single JSON object and nothing else, matching exactly this schema:
{
  "scenarioId": string,
  "overallScore": integer 1-10,
  "overallSummary": string,
  "strengths": [string],
  "improvementAreas": [string],
  "informationHandling": {"gatheredCorrectly": [string], "missedOrIncorrect": [string]},
  "actionAssessment": {"appropriate": [string], "inappropriate": [string]},
  "efficiency": {"rating": integer 1-10, "comments": string},
  "finalRecommendation": string,
  "passFail": "PASS" or "FAIL"
}`

// Grade renders the transcript, asks the review model for a strict-JSON
// assessment, and force-sets scenarioId on whatever comes back. One attempt,
// no retry.
func (g *Grader) Grade(ctx context.Context, scenarioID string, transcript []core.Turn) AnalysisResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content, err := g.completer.ChatJSON(ctx, []openai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: RenderTranscript(scenarioID, transcript)},
	})
	if err != nil {
		g.logger.Error("grading request failed", "scenario_id", scenarioID, "error", err)
		return FallbackResult(scenarioID)
	}

	result, err := parseResult(content)
	if err != nil {
		g.logger.Error("grading response unusable", "scenario_id", scenarioID, "error", err)
		return FallbackResult(scenarioID)
	}

	// The model never gets to decide where the result is routed.
	result.ScenarioID = scenarioID
	return result
}

// RenderTranscript flattens the turns into the text block the review model
// reads: scenario label first, then every line in arrival order.
func RenderTranscript(scenarioID string, transcript []core.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n\n", scenarioID)
	for _, turn := range transcript {
		switch turn.Role {
		case core.RoleContext:
			fmt.Fprintf(&b, "[Scenario context] %s\n", turn.Text)
		case core.RoleCaller:
			fmt.Fprintf(&b, "Caller: %s\n", turn.Text)
		case core.RoleTrainee:
			fmt.Fprintf(&b, "Responder: %s\n", turn.Text)
		}
	}
	return b.String()
}

func parseResult(content string) (AnalysisResult, error) {
	content = stripCodeFence(content)

	var result AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return AnalysisResult{}, core.NewParseError(fmt.Sprintf("review output is not valid JSON: %v", err))
	}
	if result.PassFail != PassVerdict && result.PassFail != FailVerdict {
		return AnalysisResult{}, core.NewParseError(fmt.Sprintf("review output has invalid passFail %q", result.PassFail))
	}
	normalizeLists(&result)
	return result, nil
}

// stripCodeFence tolerates models that wrap the object in ```json fences
// despite the strict-JSON instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeLists(r *AnalysisResult) {
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.ImprovementAreas == nil {
		r.ImprovementAreas = []string{}
	}
	if r.InformationHandling.GatheredCorrectly == nil {
		r.InformationHandling.GatheredCorrectly = []string{}
	}
	if r.InformationHandling.MissedOrIncorrect == nil {
		r.InformationHandling.MissedOrIncorrect = []string{}
	}
	if r.ActionAssessment.Appropriate == nil {
		r.ActionAssessment.Appropriate = []string{}
	}
	if r.ActionAssessment.Inappropriate == nil {
		r.ActionAssessment.Inappropriate = []string{}
	}
}
