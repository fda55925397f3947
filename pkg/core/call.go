package core

import "strings"

// Role identifies who produced a transcript turn.
type Role string

const (
	// RoleContext is the leading narration turn that frames the scenario.
	RoleContext Role = "context"
	// RoleCaller is the simulated emergency caller.
	RoleCaller Role = "caller"
	// RoleTrainee is the human responder being trained.
	RoleTrainee Role = "trainee"
)

// Turn is one transcript entry. Turns are append-only and never reordered.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ScenarioContext is the immutable input to one training call.
type ScenarioContext struct {
	ScenarioID        string `json:"scenarioId"`
	CharacterPrompt   string `json:"characterPrompt"`
	FirstUtterance    string `json:"firstUtterance"`
	DestinationNumber string `json:"destinationNumber"`
}

// Normalize trims whitespace on every field.
func (s ScenarioContext) Normalize() ScenarioContext {
	return ScenarioContext{
		ScenarioID:        strings.TrimSpace(s.ScenarioID),
		CharacterPrompt:   strings.TrimSpace(s.CharacterPrompt),
		FirstUtterance:    strings.TrimSpace(s.FirstUtterance),
		DestinationNumber: strings.TrimSpace(s.DestinationNumber),
	}
}
