package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

const (
	// DefaultMaxReconnectAttempts bounds automatic reconnection. A manual
	// Connect call can always retry past it.
	DefaultMaxReconnectAttempts = 5
	// DefaultReconnectBaseDelay is the first backoff step; each further
	// attempt waits 1.5x the previous.
	DefaultReconnectBaseDelay = 2 * time.Second

	// ErrMaxReconnect is the terminal connection-error state after the
	// automatic path is exhausted.
	ErrMaxReconnect = "max reconnection attempts reached"
	errNoToken      = "no authentication token"
)

// Options configures a Channel.
type Options struct {
	URL                  string
	Tokens               TokenSource
	Dialer               Dialer
	MaxReconnectAttempts int           // 0 means DefaultMaxReconnectAttempts
	ReconnectBaseDelay   time.Duration // 0 means DefaultReconnectBaseDelay
}

// Channel multiplexes live event-room subscriptions over one transport
// connection. Room membership survives reconnection: every successful
// connect re-issues a join for each joined room.
type Channel struct {
	url       string
	tokens    TokenSource
	dialer    Dialer
	maxRetry  int
	baseDelay time.Duration

	mu                sync.Mutex
	transport         Transport
	connected         bool
	connErr           string
	connecting        bool
	reconnectAttempts int
	reconnectTimer    *time.Timer
	joinedRooms       map[string]struct{}
	polling           map[string]chan struct{}
	listeners         map[string]map[int]func(json.RawMessage)
	nextListener      int
	gen               int // bumped on connect/disconnect to expire stale watchers
}

// New creates a disconnected Channel.
func New(opts Options) *Channel {
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = UnavailableDialer{}
	}
	return &Channel{
		url:         opts.URL,
		tokens:      opts.Tokens,
		dialer:      opts.Dialer,
		maxRetry:    opts.MaxReconnectAttempts,
		baseDelay:   opts.ReconnectBaseDelay,
		joinedRooms: make(map[string]struct{}),
		polling:     make(map[string]chan struct{}),
		listeners:   make(map[string]map[int]func(json.RawMessage)),
	}
}

// Connect establishes the transport. Failures are recorded, never thrown:
// a missing credential or unavailable transport leaves the channel
// disconnected with a descriptive error; a connect failure additionally
// schedules a bounded reconnect.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.connected || c.connecting {
		c.mu.Unlock()
		return
	}
	var token string
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" {
		c.connErr = errNoToken
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	tr, err := c.dialer.Dial(ctx, c.url, token)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.connecting = false
		c.connected = false
		if errors.Is(err, ErrTransportUnavailable) {
			// Absent library, not a transient fault: no reconnect spiral.
			c.connErr = "socket transport unavailable, polling fallback only"
			slog.Warn("realtime: transport unavailable")
			return
		}
		c.connErr = err.Error()
		slog.Warn("realtime: connect failed", "error", err)
		c.scheduleReconnectLocked()
		return
	}

	tr.OnEvent(c.dispatch)

	c.mu.Lock()
	c.connecting = false
	c.transport = tr
	c.connected = true
	c.connErr = ""
	c.reconnectAttempts = 0
	c.gen++
	gen := c.gen
	rooms := make([]string, 0, len(c.joinedRooms))
	for room := range c.joinedRooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	// Restore prior subscriptions on the fresh connection.
	for _, room := range rooms {
		if err := tr.Emit(protocol.MsgJoinEvent, protocol.RoomRef{EventID: room}); err != nil {
			slog.Warn("realtime: rejoin failed", "room", room, "error", err)
		}
	}
	slog.Info("realtime: connected", "rooms", len(rooms))

	go c.watch(tr, gen)
}

// watch waits for the transport to drop and triggers reconnection unless
// the drop was a deliberate Disconnect (which bumps gen).
func (c *Channel) watch(tr Transport, gen int) {
	<-tr.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.connected = false
	c.transport = nil
	if err := tr.Err(); err != nil {
		c.connErr = err.Error()
	}
	slog.Warn("realtime: connection dropped", "error", tr.Err())
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked implements the bounded backoff:
// baseDelay * 1.5^(attempts-1), capped at maxRetry attempts. Callers hold c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.reconnectAttempts >= c.maxRetry {
		c.connErr = ErrMaxReconnect
		slog.Warn("realtime: giving up", "attempts", c.reconnectAttempts)
		return
	}
	c.reconnectAttempts++
	delay := time.Duration(float64(c.baseDelay) * math.Pow(1.5, float64(c.reconnectAttempts-1)))
	slog.Info("realtime: reconnect scheduled", "attempt", c.reconnectAttempts, "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.Connect(context.Background())
	})
}

// Disconnect cancels any pending reconnect, stops all polling, tears down
// the transport and clears room membership. Idempotent; the sole
// authoritative release point for the channel's timers.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	for room, stop := range c.polling {
		close(stop)
		delete(c.polling, room)
	}
	tr := c.transport
	c.transport = nil
	c.connected = false
	c.gen++
	c.joinedRooms = make(map[string]struct{})
	c.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
}

// JoinRoom subscribes to a room. If connected the join is sent now;
// otherwise it is deferred to the next successful Connect.
func (c *Channel) JoinRoom(roomID string) {
	c.mu.Lock()
	c.joinedRooms[roomID] = struct{}{}
	tr, connected := c.transport, c.connected
	c.mu.Unlock()

	if connected && tr != nil {
		tr.Emit(protocol.MsgJoinEvent, protocol.RoomRef{EventID: roomID})
	}
}

// LeaveRoom unsubscribes and stops any polling fallback for the room.
func (c *Channel) LeaveRoom(roomID string) {
	c.mu.Lock()
	delete(c.joinedRooms, roomID)
	if stop, ok := c.polling[roomID]; ok {
		close(stop)
		delete(c.polling, roomID)
	}
	tr, connected := c.transport, c.connected
	c.mu.Unlock()

	if connected && tr != nil {
		tr.Emit(protocol.MsgLeaveEvent, protocol.RoomRef{EventID: roomID})
	}
}

// On registers cb for eventName and returns a disposer removing exactly
// that callback. Many independent listeners per event are supported.
func (c *Channel) On(eventName string, cb func(data json.RawMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.listeners[eventName]
	if !ok {
		set = make(map[int]func(json.RawMessage))
		c.listeners[eventName] = set
	}
	id := c.nextListener
	c.nextListener++
	set[id] = cb

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if set, ok := c.listeners[eventName]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(c.listeners, eventName)
			}
		}
	}
}

// Emit sends a frame if connected; otherwise the frame is silently dropped.
func (c *Channel) Emit(eventName string, data any) {
	c.mu.Lock()
	tr, connected := c.transport, c.connected
	c.mu.Unlock()

	if connected && tr != nil {
		if err := tr.Emit(eventName, data); err != nil {
			slog.Debug("realtime: emit dropped", "event", eventName, "error", err)
		}
	}
}

// dispatch fans an inbound frame out to every callback registered for its
// exact name. Unknown names are dropped without error.
func (c *Channel) dispatch(eventName string, data json.RawMessage) {
	c.mu.Lock()
	set := c.listeners[eventName]
	cbs := make([]func(json.RawMessage), 0, len(set))
	for _, cb := range set {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(data)
	}
}

// StartPollingIfDisconnected starts a degraded-mode fetch loop for roomID:
// fetchFn runs immediately, then every interval, until StopPolling,
// LeaveRoom or Disconnect. Idempotent per room. The loop runs regardless of
// connection state; it is a parallel channel, not a replacement.
func (c *Channel) StartPollingIfDisconnected(roomID string, fetchFn func(), interval time.Duration) {
	c.mu.Lock()
	if _, ok := c.polling[roomID]; ok {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.polling[roomID] = stop
	c.mu.Unlock()

	go func() {
		fetchFn()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fetchFn()
			}
		}
	}()
}

// StopPolling cancels the polling loop for roomID, if any.
func (c *Channel) StopPolling(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stop, ok := c.polling[roomID]; ok {
		close(stop)
		delete(c.polling, roomID)
	}
}

// IsConnected reports the live-transport state.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ConnectionError returns the last recorded connection error, or "".
func (c *Channel) ConnectionError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connErr
}

// ReconnectAttempts returns the current automatic-reconnect count.
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempts
}
