package publish

import (
	"sync"

	"github.com/respondersim/callbridge/pkg/gateway/grading"
)

// Store is the in-memory result index keyed by call id, backing the debug
// retrieval route. Results are small and calls are short-lived, so there is
// no eviction.
type Store struct {
	mu      sync.RWMutex
	results map[string]grading.AnalysisResult
}

func NewStore() *Store {
	return &Store{results: make(map[string]grading.AnalysisResult)}
}

// Put records the result for a call, replacing any previous entry.
func (s *Store) Put(callID string, result grading.AnalysisResult) {
	if callID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[callID] = result
}

// Get returns the stored result for a call, if any.
func (s *Store) Get(callID string) (grading.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[callID]
	return result, ok
}

// Len reports how many results are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
