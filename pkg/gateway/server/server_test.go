package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/respondersim/callbridge/pkg/gateway/config"
	"github.com/respondersim/callbridge/pkg/gateway/grading"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                          ":0",
		PublicHost:                    "trainer.example.com",
		TwilioAccountSID:              "AC123",
		TwilioAuthToken:               "token",
		TwilioPhoneNumber:             "+15550001111",
		TwilioBaseURL:                 "https://api.twilio.invalid",
		ElevenLabsAPIKey:              "el-secret",
		ElevenLabsBaseURL:             "https://api.elevenlabs.invalid",
		DefaultAgentID:                "agent_default",
		OpenAIAPIKey:                  "sk-test",
		OpenAIBaseURL:                 "https://api.openai.invalid",
		OpenAIModel:                   "gpt-4o",
		ResultEndpoint:                "https://results.invalid",
		StreamMaxJSONMessageBytes:     256 * 1024,
		GradingTimeout:                5 * time.Second,
		ReadHeaderTimeout:             10 * time.Second,
		ReadTimeout:                   30 * time.Second,
		ShutdownGracePeriod:           5 * time.Second,
		UpstreamConnectTimeout:        5 * time.Second,
		UpstreamResponseHeaderTimeout: 5 * time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_HealthAndReady(t *testing.T) {
	s := New(testConfig(), testLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Fatal("missing X-Request-ID header")
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}

	s.SetDraining()
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("draining readyz status = %d", resp.StatusCode)
	}
}

// TestServer_FullCallFlow walks the whole pipeline against fake externals:
// call creation, webhook markup, media stream, voice events, grading,
// result delivery, and the debug retrieval route.
func TestServer_FullCallFlow(t *testing.T) {
	// Fake carrier REST API.
	fakeTwilio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA1"}`))
	}))
	defer fakeTwilio.Close()

	// Fake voice-AI realtime socket: consume the initiation, emit one agent
	// line and one trainee transcript, then hold until closed.
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var initFrames []map[string]any
	var initMu sync.Mutex
	fakeRealtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var init map[string]any
		_ = json.Unmarshal(data, &init)
		initMu.Lock()
		initFrames = append(initFrames, init)
		initMu.Unlock()

		_ = conn.WriteJSON(map[string]any{
			"type":                 "agent_response",
			"agent_response_event": map[string]any{"agent_response": "He's on the floor, hurry!"},
		})
		_ = conn.WriteJSON(map[string]any{
			"type":                     "user_transcript",
			"user_transcription_event": map[string]any{"user_transcript": "Is he breathing at all?"},
		})

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer fakeRealtime.Close()
	realtimeWS := "ws" + strings.TrimPrefix(fakeRealtime.URL, "http")

	// Fake voice-AI REST API issuing the signed URL of the socket above.
	fakeElevenLabs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"signed_url":"` + realtimeWS + `"}`))
	}))
	defer fakeElevenLabs.Close()

	// Fake grading model answering with a strict JSON review.
	fakeOpenAI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		review := `{\"scenarioId\":\"ignored\",\"overallScore\":9,\"overallSummary\":\"Strong call.\",\"strengths\":[\"calm\"],\"improvementAreas\":[],\"informationHandling\":{\"gatheredCorrectly\":[\"breathing\"],\"missedOrIncorrect\":[]},\"actionAssessment\":{\"appropriate\":[\"dispatched\"],\"inappropriate\":[]},\"efficiency\":{\"rating\":8,\"comments\":\"Quick.\"},\"finalRecommendation\":\"Pass.\",\"passFail\":\"PASS\"}`
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + review + `"}}]}`))
	}))
	defer fakeOpenAI.Close()

	// Fake storage endpoint collecting published results.
	published := make(chan grading.AnalysisResult, 1)
	fakeResults := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analysis" {
			t.Errorf("publish path = %q", r.URL.Path)
		}
		var result grading.AnalysisResult
		_ = json.NewDecoder(r.Body).Decode(&result)
		published <- result
	}))
	defer fakeResults.Close()

	cfg := testConfig()
	cfg.TwilioBaseURL = fakeTwilio.URL
	cfg.ElevenLabsBaseURL = fakeElevenLabs.URL
	cfg.OpenAIBaseURL = fakeOpenAI.URL
	cfg.ResultEndpoint = fakeResults.URL

	s := New(cfg, testLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// 1. Start the call.
	resp, err := http.Post(srv.URL+"/outbound-call", "application/json",
		strings.NewReader(`{"number":"+447700900123","prompt":"John Smith, father collapsed","first_message":"He can't breathe!","scenarioId":1}`))
	if err != nil {
		t.Fatalf("outbound-call: %v", err)
	}
	var started struct {
		Success bool   `json:"success"`
		CallID  string `json:"callId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if !started.Success || started.CallID != "CA1" {
		t.Fatalf("start response = %+v", started)
	}

	// 2. The carrier fetches the webhook markup.
	resp, err = http.Get(srv.URL + "/outbound-call-twiml?prompt=John+Smith&first_message=Help&scenarioId=1")
	if err != nil {
		t.Fatalf("twiml: %v", err)
	}
	markup, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(markup), "wss://trainer.example.com/outbound-media-stream") {
		t.Fatalf("markup = %s", markup)
	}

	// 3. The carrier opens the media stream.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/outbound-media-stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial media stream: %v", err)
	}
	defer conn.Close()

	send := func(frame string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	send(`{"event":"connected","protocol":"Call","version":"1.0.0"}`)
	send(`{"event":"start","start":{"streamSid":"MZ1","callSid":"CA1","customParameters":{"prompt":"John Smith, father collapsed","first_message":"He can't breathe!","scenarioId":"1"}}}`)

	// Let the bridge come up and the transcript events land.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		initMu.Lock()
		n := len(initFrames)
		initMu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	initMu.Lock()
	if len(initFrames) != 1 || initFrames[0]["type"] != "conversation_initiation_client_data" {
		t.Fatalf("init frames = %+v", initFrames)
	}
	initMu.Unlock()

	send(`{"event":"media","media":{"payload":"AAAA"}}`)
	time.Sleep(100 * time.Millisecond)
	send(`{"event":"stop","stop":{"callSid":"CA1"}}`)

	// 4. The graded result reaches the storage endpoint, scenarioId forced.
	select {
	case result := <-published:
		if result.ScenarioID != "1" {
			t.Fatalf("published scenarioId = %q, want 1", result.ScenarioID)
		}
		if result.PassFail != grading.PassVerdict || result.OverallScore != 9 {
			t.Fatalf("published result = %+v", result)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for published result")
	}

	// 5. Debug retrieval serves the same record.
	resp, err = http.Get(srv.URL + "/analysis/CA1")
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %d", resp.StatusCode)
	}
	var stored grading.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if stored.ScenarioID != "1" || stored.PassFail != grading.PassVerdict {
		t.Fatalf("stored result = %+v", stored)
	}
}

func TestServer_AnalysisUnknownCall404(t *testing.T) {
	s := New(testConfig(), testLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/analysis/CA-missing")
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
