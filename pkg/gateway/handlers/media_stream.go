package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/respondersim/callbridge/pkg/gateway/call/protocol"
	"github.com/respondersim/callbridge/pkg/gateway/call/session"
	"github.com/respondersim/callbridge/pkg/gateway/call/sessions"
	"github.com/respondersim/callbridge/pkg/gateway/config"
	"github.com/respondersim/callbridge/pkg/gateway/lifecycle"
)

// SessionFactory builds the per-call session around the carrier write side.
type SessionFactory func(carrier session.CarrierWriter) *session.Session

// MediaStreamHandler accepts the carrier's media-stream websocket and drives
// one call session per connection.
type MediaStreamHandler struct {
	Config     config.Config
	Logger     *slog.Logger
	Lifecycle  *lifecycle.Lifecycle
	Sessions   *sessions.Tracker
	NewSession SessionFactory
}

func (h MediaStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if h.Lifecycle.IsDraining() {
		http.Error(w, "service is draining", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		// The carrier does not send a browser Origin header.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.StreamMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.StreamMaxJSONMessageBytes)
	}

	carrier := &carrierConn{conn: conn}
	sess := h.NewSession(carrier)
	var unregister func()
	defer func() {
		// A dropped carrier socket finishes the session the same way a stop
		// frame does: close the bridge, grade what we have.
		sess.Finish()
		if unregister != nil {
			unregister()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeStreamMessage(data)
		if err != nil {
			if protocol.IsUnknownEvent(err) {
				h.Logger.Debug("ignoring stream event", "error", err)
			} else {
				h.Logger.Warn("bad stream frame", "error", err)
			}
			continue
		}

		switch m := msg.(type) {
		case protocol.StreamConnected:
			sess.HandleConnected(m)
		case protocol.StreamStart:
			sess.HandleStart(m)
			if unregister != nil {
				unregister()
			}
			unregister = h.Sessions.Register(m.StreamSID, sessions.Handle{Cancel: sess.Cancel})
		case protocol.StreamMedia:
			sess.HandleMedia(m)
		case protocol.StreamStop:
			sess.HandleStop(m)
		case protocol.StreamMark:
			h.Logger.Debug("mark acknowledged", "name", m.Name)
		}
	}
}

// carrierConn serializes writes to the carrier socket; the session's bridge
// pump is the only writer today, but the lock keeps that an implementation
// detail rather than a contract.
type carrierConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *carrierConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}
