package handlers

import (
	"net/http"

	"github.com/respondersim/callbridge/pkg/core/telephony/twilio"
	"github.com/respondersim/callbridge/pkg/gateway/config"
)

// TwiMLHandler answers the carrier's webhook fetch with the markup that opens
// the media stream back to this process, echoing the scenario parameters.
type TwiMLHandler struct {
	Config config.Config
}

func (h TwiMLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	doc := twilio.StreamTwiML(h.Config.PublicHost, twilio.StreamParams{
		Prompt:       q.Get("prompt"),
		FirstMessage: q.Get("first_message"),
		ScenarioID:   q.Get("scenarioId"),
	})

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
