// Package server wires the call-bridge components into one HTTP handler.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/respondersim/callbridge/pkg/core/providers/openai"
	"github.com/respondersim/callbridge/pkg/core/telephony/twilio"
	"github.com/respondersim/callbridge/pkg/core/voice/convai"
	"github.com/respondersim/callbridge/pkg/gateway/call/agent"
	"github.com/respondersim/callbridge/pkg/gateway/call/session"
	"github.com/respondersim/callbridge/pkg/gateway/call/sessions"
	"github.com/respondersim/callbridge/pkg/gateway/config"
	"github.com/respondersim/callbridge/pkg/gateway/grading"
	"github.com/respondersim/callbridge/pkg/gateway/handlers"
	"github.com/respondersim/callbridge/pkg/gateway/lifecycle"
	"github.com/respondersim/callbridge/pkg/gateway/metrics"
	"github.com/respondersim/callbridge/pkg/gateway/mw"
	"github.com/respondersim/callbridge/pkg/gateway/publish"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	httpClient *http.Client
	lifecycle  *lifecycle.Lifecycle
	sessions   *sessions.Tracker
	metrics    *metrics.Metrics
	store      *publish.Store

	calls     *twilio.Client
	voice     *convai.Client
	grader    *grading.Grader
	publisher *publish.Publisher
}

func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	m := metrics.New("callbridge")
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		httpClient: httpClient,
		lifecycle:  &lifecycle.Lifecycle{},
		sessions:   sessions.NewTracker(),
		metrics:    m,
		store:      publish.NewStore(),
		calls:      twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.TwilioBaseURL, httpClient),
		voice:      convai.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL, httpClient),
		grader:     grading.New(openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, httpClient), cfg.GradingTimeout, logger),
		publisher:  publish.NewPublisher(cfg.ResultEndpoint, httpClient, logger, m),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle, Sessions: s.sessions})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/outbound-call", handlers.OutboundCallHandler{
		Config:    s.cfg,
		Calls:     s.calls,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Lifecycle: s.lifecycle,
	})
	s.mux.Handle("/outbound-call-twiml", handlers.TwiMLHandler{Config: s.cfg})
	s.mux.Handle("/outbound-media-stream", handlers.MediaStreamHandler{
		Config:     s.cfg,
		Logger:     s.logger,
		Lifecycle:  s.lifecycle,
		Sessions:   s.sessions,
		NewSession: s.newSession,
	})
	s.mux.Handle("/analysis/{callId}", handlers.AnalysisHandler{Store: s.store})
}

func (s *Server) newSession(carrier session.CarrierWriter) *session.Session {
	return session.New(session.Deps{
		Agents: agent.Selector{
			DefaultID:   s.cfg.DefaultAgentID,
			PerScenario: s.cfg.PerScenarioAgentIDs,
		},
		Voice:      s.voice,
		DialBridge: session.DialConvAI,
		Grader:     s.grader,
		Publisher:  s.publisher,
		Store:      s.store,
		Metrics:    s.metrics,
		Logger:     s.logger,
	}, carrier)
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness and makes call-starting routes refuse work.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WaitLiveSessions blocks until all media-stream sessions end or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}

// CancelLiveSessions force-closes every live session's legs.
func (s *Server) CancelLiveSessions() int {
	return s.sessions.CancelAll()
}
