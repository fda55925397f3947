// Package protocol implements the telephony media-stream framing: the JSON
// events the carrier delivers over the stream websocket and the frames this
// process sends back.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badFrame(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message, Param: param}
}

// unknownEvent marks event types this bridge does not handle. Callers log and
// ignore these; new carrier event types must not kill a live call.
func unknownEvent(event string) *DecodeError {
	return &DecodeError{Code: "unknown_event", Message: "unknown stream event", Param: event}
}

// IsUnknownEvent reports whether err is a decode error for an unrecognized
// event type, which is non-fatal by contract.
func IsUnknownEvent(err error) bool {
	de, ok := err.(*DecodeError)
	return ok && de != nil && de.Code == "unknown_event"
}

// StreamStart carries the provider-assigned identifiers and the scenario
// parameters echoed from the call webhook.
type StreamStart struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// StreamMedia is one inbound audio frame.
type StreamMedia struct {
	Track   string `json:"track,omitempty"`
	Payload string `json:"payload"`
}

// StreamStop signals end of call audio.
type StreamStop struct {
	CallSID string `json:"callSid,omitempty"`
}

// StreamConnected is the carrier's first frame on a fresh stream connection.
type StreamConnected struct {
	Protocol string `json:"protocol,omitempty"`
	Version  string `json:"version,omitempty"`
}

// StreamMark acknowledges a previously sent mark frame.
type StreamMark struct {
	Name string `json:"name"`
}

// DecodeStreamMessage decodes one carrier frame into its typed variant.
func DecodeStreamMessage(data []byte) (any, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	event := strings.TrimSpace(envelope.Event)
	if event == "" {
		return nil, badFrame("missing event", "event")
	}

	switch event {
	case "connected":
		var msg StreamConnected
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid connected frame", "")
		}
		return msg, nil
	case "start":
		var frame struct {
			Start StreamStart `json:"start"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, badFrame("invalid start frame", "")
		}
		if strings.TrimSpace(frame.Start.StreamSID) == "" {
			return nil, badFrame("start.streamSid is required", "start.streamSid")
		}
		if strings.TrimSpace(frame.Start.CallSID) == "" {
			return nil, badFrame("start.callSid is required", "start.callSid")
		}
		return frame.Start, nil
	case "media":
		var frame struct {
			Media StreamMedia `json:"media"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, badFrame("invalid media frame", "")
		}
		if frame.Media.Payload == "" {
			return nil, badFrame("media.payload is required", "media.payload")
		}
		return frame.Media, nil
	case "stop":
		var frame struct {
			Stop StreamStop `json:"stop"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, badFrame("invalid stop frame", "")
		}
		return frame.Stop, nil
	case "mark":
		var frame struct {
			Mark StreamMark `json:"mark"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, badFrame("invalid mark frame", "")
		}
		return frame.Mark, nil
	default:
		return nil, unknownEvent(event)
	}
}

// OutboundMedia is an audio frame sent back to the carrier, tagged with the
// stream it belongs to.
type OutboundMedia struct {
	Event     string               `json:"event"`
	StreamSID string               `json:"streamSid"`
	Media     OutboundMediaPayload `json:"media"`
}

type OutboundMediaPayload struct {
	Payload string `json:"payload"`
}

// NewOutboundMedia builds a media frame for the given stream.
func NewOutboundMedia(streamSID, payloadB64 string) OutboundMedia {
	return OutboundMedia{
		Event:     "media",
		StreamSID: streamSID,
		Media:     OutboundMediaPayload{Payload: payloadB64},
	}
}

// OutboundClear tells the carrier to discard buffered playback audio
// immediately (barge-in).
type OutboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// NewOutboundClear builds a clear frame for the given stream.
func NewOutboundClear(streamSID string) OutboundClear {
	return OutboundClear{Event: "clear", StreamSID: streamSID}
}
