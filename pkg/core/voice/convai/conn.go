package convai

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live realtime conversation connection. Decoded server events are
// delivered on Events(); the channel closes when the socket dies.
type Conn struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	events    chan any
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens the realtime connection against a signed URL.
func Dial(ctx context.Context, signedURL string) (*Conn, error) {
	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		conn:   wsConn,
		events: make(chan any, 256),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SendInitiation pushes the conversation configuration override. It must be
// the first frame on the wire: the service falls back to its default persona
// for any session that streams audio before configuration.
func (c *Conn) SendInitiation(ctx context.Context, prompt, firstMessage string) error {
	return c.writeJSON(ctx, newInitiationClientData(prompt, firstMessage))
}

// SendAudioChunk forwards one base64 caller-audio payload.
func (c *Conn) SendAudioChunk(ctx context.Context, payloadB64 string) error {
	return c.writeJSON(ctx, userAudioChunk{UserAudioChunk: payloadB64})
}

// SendPong answers a ping keepalive, echoing its event id. Skipping pongs gets
// the connection closed by the service.
func (c *Conn) SendPong(ctx context.Context, eventID int64) error {
	return c.writeJSON(ctx, pong{Type: "pong", EventID: eventID})
}

// Events returns the decoded server event stream.
func (c *Conn) Events() <-chan any {
	if c == nil {
		ch := make(chan any)
		close(ch)
		return ch
	}
	return c.events
}

// Open reports whether the connection has not been closed yet.
func (c *Conn) Open() bool {
	if c == nil {
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.events)
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		event, err := DecodeServerEvent(data)
		if err != nil {
			continue
		}
		select {
		case c.events <- event:
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) writeJSON(ctx context.Context, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	return c.conn.WriteJSON(payload)
}
