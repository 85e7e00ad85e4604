// Package netmon tracks gateway reachability and raises online/offline
// transitions for the rest of the client (most importantly the offline
// scan queue, which syncs on the offline→online edge).
package netmon

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultInterval = 15 * time.Second
	probeTimeout    = 3 * time.Second
)

// Probe checks reachability once; nil means online.
type Probe func(ctx context.Context) error

// TCPProbe dials addr (host:port) and reports reachability. Deliberately
// not an HTTP request: the monitor only needs a transport-level signal.
func TCPProbe(addr string) Probe {
	return func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		conn.Close()
		return nil
	}
}

// Monitor probes reachability on an interval and notifies subscribers on
// every online/offline transition.
type Monitor struct {
	probe    Probe
	interval time.Duration
	limiter  *rate.Limiter // caps demand-triggered Check bursts

	mu      sync.Mutex
	online  bool
	subs    map[int]func(online bool)
	nextSub int
	running bool
	cancel  context.CancelFunc
}

// New builds a monitor probing addr. interval <= 0 selects the default.
func New(addr string, interval time.Duration) *Monitor {
	return NewWithProbe(TCPProbe(addr), interval)
}

// NewWithProbe builds a monitor with a custom probe.
func NewWithProbe(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		subs:     make(map[int]func(bool)),
	}
}

// Start begins the probe loop. The first probe runs immediately so IsOnline
// settles fast after startup.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	go m.loop(ctx)
	slog.Info("netmon started", "interval", m.interval)
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	m.running = false
	slog.Info("netmon stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	m.probeOnce(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	err := m.probe(pctx)
	m.SetOnline(err == nil)
}

// Check probes on demand and returns the resulting state. Bursts are
// rate-limited; a throttled call returns the current state unchanged.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.limiter.Allow() {
		m.probeOnce(ctx)
	}
	return m.IsOnline()
}

// SetOnline records the state, notifying subscribers only on a transition.
// Also serves as a manual override for hosts with their own signal.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	cbs := make([]func(bool), 0, len(m.subs))
	for _, cb := range m.subs {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()

	if online {
		slog.Info("netmon: connectivity restored")
	} else {
		slog.Warn("netmon: connectivity lost")
	}
	for _, cb := range cbs {
		cb(online)
	}
}

// IsOnline reports the last observed state. The monitor starts offline
// until the first probe completes.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback and returns its disposer.
func (m *Monitor) Subscribe(cb func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = cb
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
