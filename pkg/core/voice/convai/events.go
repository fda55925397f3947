package convai

import (
	"encoding/json"
	"strings"
)

// Server event variants. The realtime endpoint tags every frame with "type";
// unrecognized types decode to Unknown so callers can log and move on.

type InitiationMetadata struct {
	ConversationID         string `json:"conversation_id,omitempty"`
	AgentOutputAudioFormat string `json:"agent_output_audio_format,omitempty"`
}

type Audio struct {
	EventID  int64  `json:"event_id,omitempty"`
	AudioB64 string `json:"audio_base_64"`
}

type Interruption struct {
	EventID int64 `json:"event_id,omitempty"`
}

type Ping struct {
	EventID int64 `json:"event_id"`
	PingMS  int64 `json:"ping_ms,omitempty"`
}

type AgentResponse struct {
	Text string `json:"agent_response"`
}

type UserTranscript struct {
	Text string `json:"user_transcript"`
}

type Unknown struct {
	Type string
}

// DecodeServerEvent decodes one realtime frame into its typed variant.
func DecodeServerEvent(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`

		InitiationMetadata *InitiationMetadata `json:"conversation_initiation_metadata_event,omitempty"`
		Audio              *Audio              `json:"audio_event,omitempty"`
		Interruption       *Interruption       `json:"interruption_event,omitempty"`
		Ping               *Ping               `json:"ping_event,omitempty"`
		AgentResponse      *AgentResponse      `json:"agent_response_event,omitempty"`
		UserTranscript     *UserTranscript     `json:"user_transcription_event,omitempty"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch strings.TrimSpace(envelope.Type) {
	case "conversation_initiation_metadata":
		if envelope.InitiationMetadata == nil {
			return InitiationMetadata{}, nil
		}
		return *envelope.InitiationMetadata, nil
	case "audio":
		if envelope.Audio == nil {
			return Unknown{Type: "audio"}, nil
		}
		return *envelope.Audio, nil
	case "interruption":
		if envelope.Interruption == nil {
			return Interruption{}, nil
		}
		return *envelope.Interruption, nil
	case "ping":
		if envelope.Ping == nil {
			return Unknown{Type: "ping"}, nil
		}
		return *envelope.Ping, nil
	case "agent_response":
		if envelope.AgentResponse == nil {
			return Unknown{Type: "agent_response"}, nil
		}
		return *envelope.AgentResponse, nil
	case "user_transcript":
		if envelope.UserTranscript == nil {
			return Unknown{Type: "user_transcript"}, nil
		}
		return *envelope.UserTranscript, nil
	default:
		return Unknown{Type: envelope.Type}, nil
	}
}

// Client frames.

type initiationClientData struct {
	Type                       string             `json:"type"`
	ConversationConfigOverride conversationConfig `json:"conversation_config_override"`
}

type conversationConfig struct {
	Agent agentOverride `json:"agent"`
}

type agentOverride struct {
	Prompt       agentPrompt `json:"prompt"`
	FirstMessage string      `json:"first_message"`
}

type agentPrompt struct {
	Prompt string `json:"prompt"`
}

func newInitiationClientData(prompt, firstMessage string) initiationClientData {
	return initiationClientData{
		Type: "conversation_initiation_client_data",
		ConversationConfigOverride: conversationConfig{
			Agent: agentOverride{
				Prompt:       agentPrompt{Prompt: prompt},
				FirstMessage: firstMessage,
			},
		},
	}
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type pong struct {
	Type    string `json:"type"`
	EventID int64  `json:"event_id"`
}
