// Package agent maps scenario identifiers to voice-agent identifiers.
package agent

import (
	"strings"
)

// Selector picks the voice agent for a scenario. Absence of a per-scenario
// mapping is an expected case, not an error: the default agent is used.
type Selector struct {
	DefaultID   string
	PerScenario map[string]string
}

// Select returns the agent identifier for scenarioID. An empty or unmapped
// scenario yields the default agent identifier.
func (s Selector) Select(scenarioID string) string {
	scenarioID = strings.TrimSpace(scenarioID)
	if scenarioID == "" {
		return s.DefaultID
	}
	if id, ok := s.PerScenario[scenarioID]; ok && strings.TrimSpace(id) != "" {
		return id
	}
	return s.DefaultID
}
