package handlers

import (
	"net/http"
	"strings"

	"github.com/respondersim/callbridge/pkg/gateway/publish"
)

// AnalysisHandler is the debug retrieval route: the most recently stored
// result for a call id, or 404 while grading is still in flight.
type AnalysisHandler struct {
	Store *publish.Store
}

func (h AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	callID := strings.TrimSpace(r.PathValue("callId"))
	if callID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "callId is required"})
		return
	}

	result, ok := h.Store.Get(callID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no analysis for call"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
