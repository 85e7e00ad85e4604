package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maxFrameSize is the maximum allowed inbound frame (512KB).
	maxFrameSize  = 512 * 1024
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendBuffer    = 256
)

// frame is the JSON line protocol on the wire: a named event with an opaque
// payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSDialer dials the gateway's live-event endpoint over gorilla/websocket.
type WSDialer struct{}

func (WSDialer) Dial(ctx context.Context, url, token string) (Transport, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial %s: %w", url, err)
	}

	t := &wsTransport{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go t.readPump()
	go t.writePump()
	return t, nil
}

type wsTransport struct {
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	handler func(event string, data json.RawMessage)
	err     error

	done     chan struct{}
	doneOnce sync.Once
}

func (t *wsTransport) OnEvent(fn func(event string, data json.RawMessage)) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

func (t *wsTransport) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("realtime: marshal %s: %w", event, err)
	}
	msg, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("realtime: marshal frame: %w", err)
	}
	select {
	case t.send <- msg:
		return nil
	case <-t.done:
		return fmt.Errorf("realtime: emit %s: connection closed", event)
	default:
		return fmt.Errorf("realtime: emit %s: send buffer full", event)
	}
}

func (t *wsTransport) Done() <-chan struct{} { return t.done }

func (t *wsTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *wsTransport) Close() error {
	t.fail(nil)
	return nil
}

// fail records the drop reason (first one wins), closes done and the
// underlying connection.
func (t *wsTransport) fail(err error) {
	t.doneOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
		t.conn.Close()
	})
}

// readPump reads frames until the connection drops.
func (t *wsTransport) readPump() {
	t.conn.SetReadLimit(maxFrameSize)
	t.conn.SetReadDeadline(time.Now().Add(readDeadline))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.fail(fmt.Errorf("realtime: read: %w", err))
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(readDeadline))

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			// Malformed frames are dropped, not fatal.
			continue
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil && f.Event != "" {
			handler(f.Event, f.Data)
		}
	}
}

// writePump writes queued frames and keepalive pings.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case msg := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				t.fail(fmt.Errorf("realtime: write: %w", err))
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.fail(fmt.Errorf("realtime: ping: %w", err))
				return
			}
		}
	}
}
