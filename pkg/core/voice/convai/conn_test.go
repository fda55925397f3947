package convai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConn_InitiationThenEvents(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	received := make(chan map[string]any, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// First client frame must be the initiation override.
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var init map[string]any
		_ = json.Unmarshal(data, &init)
		received <- init

		_ = conn.WriteJSON(map[string]any{
			"type": "conversation_initiation_metadata",
			"conversation_initiation_metadata_event": map[string]any{
				"conversation_id": "conv_1",
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"type":        "audio",
			"audio_event": map[string]any{"audio_base_64": "dGVzdA==", "event_id": 1},
		})
		_ = conn.WriteJSON(map[string]any{
			"type":       "ping",
			"ping_event": map[string]any{"event_id": 5},
		})

		// Expect the pong reply, then whatever else until close.
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			_ = json.Unmarshal(data, &msg)
			received <- msg
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	if err := conn.SendInitiation(context.Background(), "You are John Smith.", "He can't breathe!"); err != nil {
		t.Fatalf("SendInitiation error: %v", err)
	}

	select {
	case init := <-received:
		if init["type"] != "conversation_initiation_client_data" {
			t.Fatalf("first frame type = %v", init["type"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initiation frame")
	}

	wantTypes := []string{"convai.InitiationMetadata", "convai.Audio", "convai.Ping"}
	for _, want := range wantTypes {
		select {
		case event := <-conn.Events():
			switch e := event.(type) {
			case InitiationMetadata:
				if want != "convai.InitiationMetadata" {
					t.Fatalf("got %T, want %s", e, want)
				}
			case Audio:
				if want != "convai.Audio" {
					t.Fatalf("got %T, want %s", e, want)
				}
				if e.AudioB64 != "dGVzdA==" {
					t.Fatalf("audio_base_64=%q", e.AudioB64)
				}
			case Ping:
				if want != "convai.Ping" {
					t.Fatalf("got %T, want %s", e, want)
				}
				if err := conn.SendPong(context.Background(), e.EventID); err != nil {
					t.Fatalf("SendPong error: %v", err)
				}
			default:
				t.Fatalf("unexpected event %T", event)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	select {
	case msg := <-received:
		if msg["type"] != "pong" {
			t.Fatalf("reply type = %v, want pong", msg["type"])
		}
		if id, _ := msg["event_id"].(float64); int64(id) != 5 {
			t.Fatalf("pong event_id = %v, want 5", msg["event_id"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for pong")
	}
}

func TestConn_EventsChannelClosesOnServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	select {
	case _, ok := <-conn.Events():
		if ok {
			t.Fatal("expected closed events channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for events channel close")
	}
	if conn.Open() {
		t.Fatal("Open() = true after server close")
	}
}
