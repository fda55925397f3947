// Package session holds the per-call state machine: one instance per media
// stream, from the carrier connecting through grading and publication.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/respondersim/callbridge/pkg/core"
	"github.com/respondersim/callbridge/pkg/core/voice/convai"
	"github.com/respondersim/callbridge/pkg/gateway/call/agent"
	"github.com/respondersim/callbridge/pkg/gateway/call/protocol"
	"github.com/respondersim/callbridge/pkg/gateway/grading"
	"github.com/respondersim/callbridge/pkg/gateway/metrics"
)

// State is the lifecycle position of one call session.
type State string

const (
	StateCreated   State = "created"
	StateDialing   State = "dialing"
	StateStreaming State = "streaming"
	StateGrading   State = "grading"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Bridge is the live voice-AI leg. Satisfied by *convai.Conn.
type Bridge interface {
	SendInitiation(ctx context.Context, prompt, firstMessage string) error
	SendAudioChunk(ctx context.Context, payloadB64 string) error
	SendPong(ctx context.Context, eventID int64) error
	Events() <-chan any
	Open() bool
	Close() error
}

// BridgeDialer opens the voice-AI leg against a signed URL.
type BridgeDialer func(ctx context.Context, signedURL string) (Bridge, error)

// SignedURLRequester issues a fresh single-use realtime endpoint per call.
type SignedURLRequester interface {
	SignedURL(ctx context.Context, agentID string) (string, error)
}

// Grader produces the analysis result for a finished transcript.
type Grader interface {
	Grade(ctx context.Context, scenarioID string, transcript []core.Turn) grading.AnalysisResult
}

// Publisher delivers the result to the storage endpoint.
type Publisher interface {
	Publish(ctx context.Context, callID string, result grading.AnalysisResult)
}

// ResultStore keeps results readable for the debug route.
type ResultStore interface {
	Put(callID string, result grading.AnalysisResult)
}

// CarrierWriter is the write side of the carrier media-stream socket.
type CarrierWriter interface {
	WriteJSON(v any) error
}

// Deps are the collaborators one session needs. All fields are required
// except Metrics.
type Deps struct {
	Agents     agent.Selector
	Voice      SignedURLRequester
	DialBridge BridgeDialer
	Grader     Grader
	Publisher  Publisher
	Store      ResultStore
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Session is one outbound training call. Methods are driven by the carrier
// socket's read loop; the voice-AI pump runs on its own goroutine, so shared
// state is guarded by mu.
type Session struct {
	deps    Deps
	carrier CarrierWriter
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	callID     string
	streamID   string
	scenario   core.ScenarioContext
	transcript []core.Turn
	bridge     Bridge

	liveCtx    context.Context
	liveCancel context.CancelFunc

	finishOnce sync.Once
	done       chan struct{}
	startedAt  time.Time
}

// DialConvAI adapts convai.Dial to the BridgeDialer shape.
func DialConvAI(ctx context.Context, signedURL string) (Bridge, error) {
	return convai.Dial(ctx, signedURL)
}

func New(deps Deps, carrier CarrierWriter) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	liveCtx, liveCancel := context.WithCancel(context.Background())
	return &Session{
		deps:       deps,
		carrier:    carrier,
		logger:     logger,
		state:      StateCreated,
		liveCtx:    liveCtx,
		liveCancel: liveCancel,
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CallID returns the carrier-assigned call id, empty before stream-start.
func (s *Session) CallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID
}

// StreamID returns the carrier-assigned stream id, empty before stream-start.
func (s *Session) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

// TranscriptSnapshot copies the transcript accumulated so far.
func (s *Session) TranscriptSnapshot() []core.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Done closes once the session has reached a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel tears down the live legs. The carrier read loop observes the closed
// bridge and finishes the session through its normal path.
func (s *Session) Cancel() {
	s.liveCancel()
	if bridge := s.currentBridge(); bridge != nil {
		_ = bridge.Close()
	}
}

// HandleConnected marks the carrier socket as established; the call is ringing
// until the start frame arrives.
func (s *Session) HandleConnected(msg protocol.StreamConnected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCreated {
		s.state = StateDialing
	}
	s.logger.Debug("carrier stream connected", "protocol", msg.Protocol, "version", msg.Version)
}

// HandleStart records the carrier identifiers, seeds the transcript with the
// scenario context, and kicks off the voice-AI leg in the background. The
// session accepts media from this point.
func (s *Session) HandleStart(start protocol.StreamStart) {
	scenario := core.ScenarioContext{
		ScenarioID:      start.CustomParameters["scenarioId"],
		CharacterPrompt: start.CustomParameters["prompt"],
		FirstUtterance:  start.CustomParameters["first_message"],
	}.Normalize()

	s.mu.Lock()
	if s.state == StateStreaming || s.state == StateGrading || s.state == StateCompleted {
		s.mu.Unlock()
		s.logger.Warn("duplicate start frame ignored", "stream_id", start.StreamSID)
		return
	}
	s.state = StateStreaming
	s.callID = start.CallSID
	s.streamID = start.StreamSID
	s.scenario = scenario
	s.transcript = append(s.transcript,
		core.Turn{Role: core.RoleContext, Text: scenario.CharacterPrompt},
		core.Turn{Role: core.RoleCaller, Text: scenario.FirstUtterance},
	)
	s.mu.Unlock()

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordSessionStart()
	}
	s.logger.Info("media stream started",
		"call_id", start.CallSID,
		"stream_id", start.StreamSID,
		"scenario_id", scenario.ScenarioID,
	)

	go s.connectBridge(scenario)
}

// HandleMedia forwards one caller-audio frame to the voice-AI leg. Frames
// arriving before the bridge is up, or after it closed, are dropped.
func (s *Session) HandleMedia(media protocol.StreamMedia) {
	bridge := s.currentBridge()
	if bridge == nil || !bridge.Open() {
		s.logger.Debug("dropping media frame, no live bridge", "stream_id", s.StreamID())
		return
	}
	if err := bridge.SendAudioChunk(s.liveCtx, media.Payload); err != nil {
		s.logger.Warn("audio forward failed", "error", err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFrame("inbound")
	}
}

// HandleStop ends the live phase and runs the terminal pipeline. Re-entrant
// stop frames are no-ops.
func (s *Session) HandleStop(stop protocol.StreamStop) {
	s.Finish()
}

// Finish drives the session to its terminal state: close the bridge, grade
// whatever transcript accumulated, store and publish the result. Runs at most
// once; safe to call from both the stop frame and the read loop's exit path.
func (s *Session) Finish() {
	s.finishOnce.Do(func() {
		defer close(s.done)
		s.liveCancel()

		s.mu.Lock()
		startedStreaming := s.state == StateStreaming
		if startedStreaming {
			s.state = StateGrading
		} else {
			s.state = StateFailed
		}
		callID := s.callID
		scenarioID := s.scenario.ScenarioID
		transcript := make([]core.Turn, len(s.transcript))
		copy(transcript, s.transcript)
		bridge := s.bridge
		s.mu.Unlock()

		if bridge != nil {
			_ = bridge.Close()
		}

		if !startedStreaming {
			s.logger.Info("session ended before streaming, nothing to grade")
			return
		}

		// Grading and delivery must survive the carrier socket going away.
		ctx := context.Background()
		result := s.deps.Grader.Grade(ctx, scenarioID, transcript)
		if s.deps.Metrics != nil {
			outcome := "graded"
			if result.PassFail == grading.FailVerdict && result.OverallScore == 0 {
				outcome = "fallback"
			}
			s.deps.Metrics.RecordGrading(outcome)
		}

		s.deps.Store.Put(callID, result)
		s.deps.Publisher.Publish(ctx, callID, result)

		s.mu.Lock()
		s.state = StateCompleted
		s.mu.Unlock()

		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordSessionEnd("completed", time.Since(s.startedAt))
		}
		s.logger.Info("session completed",
			"call_id", callID,
			"scenario_id", scenarioID,
			"pass_fail", result.PassFail,
			"turns", len(transcript),
		)
	})
}

// connectBridge runs the voice-AI side: agent selection, signed URL, dial,
// initiation handshake, then the event pump. Every failure here only logs;
// the carrier leg keeps running and the partial transcript still gets graded.
func (s *Session) connectBridge(scenario core.ScenarioContext) {
	agentID := s.deps.Agents.Select(scenario.ScenarioID)

	signedURL, err := s.deps.Voice.SignedURL(s.liveCtx, agentID)
	if err != nil {
		s.logger.Error("signed url request failed", "agent_id", agentID, "error", err)
		return
	}

	bridge, err := s.deps.DialBridge(s.liveCtx, signedURL)
	if err != nil {
		s.logger.Error("voice bridge dial failed", "agent_id", agentID, "error", err)
		return
	}

	// Configuration override goes out before any audio; otherwise the agent
	// runs with its default persona.
	if err := bridge.SendInitiation(s.liveCtx, scenario.CharacterPrompt, scenario.FirstUtterance); err != nil {
		s.logger.Error("initiation handshake failed", "error", err)
		_ = bridge.Close()
		return
	}

	s.mu.Lock()
	terminal := s.state == StateGrading || s.state == StateCompleted || s.state == StateFailed
	if !terminal {
		s.bridge = bridge
	}
	s.mu.Unlock()
	if terminal {
		_ = bridge.Close()
		return
	}

	s.logger.Info("voice bridge established", "agent_id", agentID)
	s.pumpBridge(bridge)
}

// pumpBridge translates voice-AI events onto the carrier socket until the
// bridge closes. No retry on failure: the transcript keeps whatever arrived.
func (s *Session) pumpBridge(bridge Bridge) {
	for event := range bridge.Events() {
		switch e := event.(type) {
		case convai.InitiationMetadata:
			s.logger.Debug("conversation initiated", "conversation_id", e.ConversationID)
		case convai.Audio:
			streamID := s.StreamID()
			if streamID == "" {
				s.logger.Warn("dropping agent audio, stream id not yet known")
				continue
			}
			if err := s.carrier.WriteJSON(protocol.NewOutboundMedia(streamID, e.AudioB64)); err != nil {
				s.logger.Warn("carrier write failed", "error", err)
				continue
			}
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordFrame("outbound")
			}
		case convai.Interruption:
			streamID := s.StreamID()
			if streamID == "" {
				continue
			}
			if err := s.carrier.WriteJSON(protocol.NewOutboundClear(streamID)); err != nil {
				s.logger.Warn("carrier clear write failed", "error", err)
			}
		case convai.Ping:
			if err := bridge.SendPong(s.liveCtx, e.EventID); err != nil {
				s.logger.Warn("pong failed", "event_id", e.EventID, "error", err)
			}
		case convai.AgentResponse:
			s.appendTurn(core.RoleCaller, e.Text)
		case convai.UserTranscript:
			s.appendTurn(core.RoleTrainee, e.Text)
		case convai.Unknown:
			s.logger.Debug("ignoring voice event", "type", e.Type)
		}
	}
	s.logger.Info("voice bridge closed", "call_id", s.CallID())
}

func (s *Session) appendTurn(role core.Role, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return
	}
	s.transcript = append(s.transcript, core.Turn{Role: role, Text: text})
}

func (s *Session) currentBridge() Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge
}
