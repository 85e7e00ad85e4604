// Package realtime maintains a best-effort live event stream: one socket
// connection multiplexing per-event rooms, with bounded-backoff reconnection
// and a per-room polling fallback.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrTransportUnavailable is returned by a Dialer whose underlying socket
// library is absent at runtime. The channel records it and stays
// disconnected without retrying; polling remains usable.
var ErrTransportUnavailable = errors.New("realtime: socket transport unavailable")

// Transport is one established socket connection.
type Transport interface {
	// OnEvent installs the single inbound handler. Every inbound frame,
	// regardless of name, is delivered to it.
	OnEvent(fn func(event string, data json.RawMessage))
	// Emit sends a named frame. Fire-and-forget semantics.
	Emit(event string, data any) error
	// Done is closed when the connection drops, for any reason.
	Done() <-chan struct{}
	// Err reports the drop reason after Done is closed; nil for a
	// deliberate Close.
	Err() error
	Close() error
}

// Dialer establishes a Transport. The socket library is an optional
// dependency: implementations return ErrTransportUnavailable when it cannot
// be loaded, and ordinary errors for connect failures.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Transport, error)
}

// UnavailableDialer is a Dialer for builds without a socket library.
type UnavailableDialer struct{}

func (UnavailableDialer) Dial(context.Context, string, string) (Transport, error) {
	return nil, ErrTransportUnavailable
}

// TokenSource supplies the current auth credential for the channel.
type TokenSource interface {
	Token() string
}
