package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// agentIDEnvPrefix is scanned from the environment to build the per-scenario
// agent mapping: ELEVENLABS_AGENT_ID_7=agent_abc maps scenario "7" to agent_abc.
const agentIDEnvPrefix = "ELEVENLABS_AGENT_ID_"

type Config struct {
	Addr string

	// PublicHost is the externally reachable host:port of this process; Twilio
	// fetches the webhook and opens the media stream against it.
	PublicHost string

	// Telephony provider credentials.
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioBaseURL     string

	// Voice AI service.
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	DefaultAgentID    string
	// PerScenarioAgentIDs maps a scenario identifier to an agent identifier.
	// Scenarios without an entry fall back to DefaultAgentID.
	PerScenarioAgentIDs map[string]string

	// Grading service.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Analysis delivery target. Results are POSTed to {ResultEndpoint}/api/analysis.
	ResultEndpoint string

	// Media stream websocket limits.
	StreamMaxJSONMessageBytes int64

	GradingTimeout time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults.
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("CALLBRIDGE_ADDR", ":8000"),
		PublicHost:                    strings.TrimSpace(os.Getenv("CALLBRIDGE_PUBLIC_HOST")),
		TwilioAccountSID:              strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:               strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		TwilioPhoneNumber:             strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER")),
		TwilioBaseURL:                 envOr("TWILIO_BASE_URL", "https://api.twilio.com"),
		ElevenLabsAPIKey:              strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenLabsBaseURL:             envOr("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		DefaultAgentID:                strings.TrimSpace(os.Getenv("ELEVENLABS_AGENT_ID")),
		PerScenarioAgentIDs:           agentIDsFromEnviron(os.Environ()),
		OpenAIAPIKey:                  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:                 envOr("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:                   envOr("OPENAI_MODEL", "gpt-4o"),
		ResultEndpoint:                strings.TrimSpace(os.Getenv("RESULT_ENDPOINT")),
		StreamMaxJSONMessageBytes:     envInt64Or("CALLBRIDGE_STREAM_MAX_JSON_MESSAGE_BYTES", 256*1024),
		GradingTimeout:                envDurationOr("CALLBRIDGE_GRADING_TIMEOUT", 60*time.Second),
		ReadHeaderTimeout:             envDurationOr("CALLBRIDGE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("CALLBRIDGE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("CALLBRIDGE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("CALLBRIDGE_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("CALLBRIDGE_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	if cfg.PublicHost == "" {
		return Config{}, fmt.Errorf("CALLBRIDGE_PUBLIC_HOST must be set")
	}
	if cfg.TwilioAccountSID == "" {
		return Config{}, fmt.Errorf("TWILIO_ACCOUNT_SID must be set")
	}
	if cfg.TwilioAuthToken == "" {
		return Config{}, fmt.Errorf("TWILIO_AUTH_TOKEN must be set")
	}
	if cfg.TwilioPhoneNumber == "" {
		return Config{}, fmt.Errorf("TWILIO_PHONE_NUMBER must be set")
	}
	if cfg.ElevenLabsAPIKey == "" {
		return Config{}, fmt.Errorf("ELEVENLABS_API_KEY must be set")
	}
	if cfg.DefaultAgentID == "" {
		return Config{}, fmt.Errorf("ELEVENLABS_AGENT_ID must be set")
	}
	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if cfg.ResultEndpoint == "" {
		return Config{}, fmt.Errorf("RESULT_ENDPOINT must be set")
	}
	if cfg.StreamMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_STREAM_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.GradingTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_GRADING_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

// agentIDsFromEnviron extracts per-scenario agent mappings from KEY=VALUE pairs.
func agentIDsFromEnviron(environ []string) map[string]string {
	out := make(map[string]string)
	for _, kv := range environ {
		idx := strings.Index(kv, "=")
		if idx <= 0 {
			continue
		}
		key := kv[:idx]
		if !strings.HasPrefix(key, agentIDEnvPrefix) {
			continue
		}
		scenario := strings.TrimSpace(strings.TrimPrefix(key, agentIDEnvPrefix))
		value := strings.TrimSpace(kv[idx+1:])
		if scenario == "" || value == "" {
			continue
		}
		out[scenario] = value
	}
	return out
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
