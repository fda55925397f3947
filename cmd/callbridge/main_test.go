package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/respondersim/callbridge/pkg/gateway/config"
	gatewayserver "github.com/respondersim/callbridge/pkg/gateway/server"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, bridgeDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newServer: func(cfg config.Config, logger *slog.Logger) *gatewayserver.Server {
			t.Fatalf("newServer should not be called when config load fails")
			return nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

func TestRunBridge_SignalTriggersGracefulStop(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:                          "127.0.0.1:0",
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
		StreamMaxJSONMessageBytes:     64 * 1024,
		GradingTimeout:                time.Second,
		ReadHeaderTimeout:             time.Second,
		ReadTimeout:                   time.Second,
		ShutdownGracePeriod:           time.Second,
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: time.Second,
	}

	var sink chan<- os.Signal
	deps := bridgeDeps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		newServer:  gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			sink = c
		},
		signalStop: func(c chan<- os.Signal) {},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() {
		done <- runBridge(context.Background(), logger, deps)
	}()

	// Give the listener a moment, then deliver the shutdown signal.
	time.Sleep(100 * time.Millisecond)
	if sink == nil {
		t.Fatal("signal channel was not registered")
	}
	sink <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runBridge error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runBridge did not stop after signal")
	}
}
