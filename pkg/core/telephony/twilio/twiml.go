package twilio

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// StreamParams are the per-call values the markup threads through to the
// media-stream websocket as custom parameters.
type StreamParams struct {
	Prompt       string
	FirstMessage string
	ScenarioID   string
}

// StreamTwiML renders the voice-response document that tells the provider to
// open a bidirectional media stream to wss://{host}/outbound-media-stream.
// All values are XML-escaped; the document is otherwise byte-stable so the
// webhook handler can serve it directly.
func StreamTwiML(host string, params StreamParams) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n<Response><Connect>")
	fmt.Fprintf(&buf, `<Stream url="wss://%s/outbound-media-stream">`, escapeXML(host))
	writeParameter(&buf, "prompt", params.Prompt)
	writeParameter(&buf, "first_message", params.FirstMessage)
	writeParameter(&buf, "scenarioId", params.ScenarioID)
	buf.WriteString("</Stream></Connect></Response>")
	return buf.String()
}

func writeParameter(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, `<Parameter name=%q value="%s" />`, name, escapeXML(value))
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
