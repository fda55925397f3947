// Package grading turns a finished call transcript into a structured
// performance review of the trainee, with a deterministic fallback when the
// review model cannot be reached or answers with garbage.
package grading

// AnalysisResult is the graded outcome of one training call. The shape is
// part of the storage contract: the ingest endpoint and the debug retrieval
// route both serve it verbatim.
type AnalysisResult struct {
	ScenarioID          string              `json:"scenarioId"`
	OverallScore        int                 `json:"overallScore"`
	OverallSummary      string              `json:"overallSummary"`
	Strengths           []string            `json:"strengths"`
	ImprovementAreas    []string            `json:"improvementAreas"`
	InformationHandling InformationHandling `json:"informationHandling"`
	ActionAssessment    ActionAssessment    `json:"actionAssessment"`
	Efficiency          Efficiency          `json:"efficiency"`
	FinalRecommendation string              `json:"finalRecommendation"`
	PassFail            string              `json:"passFail"`
}

type InformationHandling struct {
	GatheredCorrectly []string `json:"gatheredCorrectly"`
	MissedOrIncorrect []string `json:"missedOrIncorrect"`
}

type ActionAssessment struct {
	Appropriate   []string `json:"appropriate"`
	Inappropriate []string `json:"inappropriate"`
}

type Efficiency struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

const (
	PassVerdict = "PASS"
	FailVerdict = "FAIL"
)

// FallbackResult is the terminal outcome when grading fails for any reason.
// Every list field is non-nil so the stored JSON carries empty arrays rather
// than nulls.
func FallbackResult(scenarioID string) AnalysisResult {
	return AnalysisResult{
		ScenarioID:       scenarioID,
		OverallScore:     0,
		OverallSummary:   "Automated analysis could not be completed for this call.",
		Strengths:        []string{},
		ImprovementAreas: []string{},
		InformationHandling: InformationHandling{
			GatheredCorrectly: []string{},
			MissedOrIncorrect: []string{},
		},
		ActionAssessment: ActionAssessment{
			Appropriate:   []string{},
			Inappropriate: []string{},
		},
		Efficiency: Efficiency{
			Rating:   0,
			Comments: "Not assessed.",
		},
		FinalRecommendation: "The automated analysis could not be produced for this call. Please review the session with a supervisor.",
		PassFail:            FailVerdict,
	}
}
