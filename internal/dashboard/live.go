// Package dashboard consumes the realtime channel for one event and keeps a
// live snapshot of stats and alerts for display layers, with a polling
// fallback when the live transport is down.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

// DefaultPollInterval is the degraded-mode refresh cadence.
const DefaultPollInterval = 15 * time.Second

// LiveStats is the gateway's rolling picture of an event.
type LiveStats struct {
	EventID           string  `json:"eventId"`
	TotalTickets      int     `json:"totalTickets"`
	TicketsSold       int     `json:"ticketsSold"`
	TicketsScanned    int     `json:"ticketsScanned"`
	TotalRevenue      float64 `json:"totalRevenue"`
	AttendanceRate    float64 `json:"attendanceRate"`
	RemainingCapacity int     `json:"remainingCapacity"`
	Timestamp         int64   `json:"timestamp"`
}

// FlowPoint is one minute bucket of entry counts.
type FlowPoint struct {
	Minute string `json:"minute"`
	Count  int    `json:"count"`
}

// EntriesFlow is the recent entry-rate series for an event.
type EntriesFlow struct {
	EventID string      `json:"eventId"`
	Period  int         `json:"period"`
	Data    []FlowPoint `json:"data"`
}

// Alert is an operational notification raised by the gateway
// (capacity, fraud, attendance, traffic, info).
type Alert struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Timestamp    int64  `json:"timestamp"`
	Acknowledged bool   `json:"acknowledged"`
}

// Data is the combined dashboard snapshot.
type Data struct {
	EventID     string       `json:"eventId"`
	LiveStats   *LiveStats   `json:"liveStats"`
	EntriesFlow *EntriesFlow `json:"entriesFlow"`
	Alerts      []Alert      `json:"alerts"`
	Timestamp   int64        `json:"timestamp"`
}

// Fetcher retrieves the dashboard snapshot over HTTP. Implemented by the
// application's API client collaborator.
type Fetcher interface {
	Dashboard(ctx context.Context, eventID string) (Data, error)
}

// Feed is the subset of the realtime channel the dashboard consumes.
type Feed interface {
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
	On(eventName string, cb func(data json.RawMessage)) func()
	StartPollingIfDisconnected(roomID string, fetchFn func(), interval time.Duration)
	StopPolling(roomID string)
}

// Live is the dashboard consumer for one event. Stats updates replace the
// snapshot; scan/sale events trigger a refetch; alerts are prepended.
type Live struct {
	feed    Feed
	fetch   Fetcher
	eventID string

	mu         sync.Mutex
	stats      *LiveStats
	flow       *EntriesFlow
	alerts     []Alert
	lastUpdate time.Time
	closed     bool

	disposers []func()
	subs      map[int]func()
	nextSub   int
}

// Open joins the event room, wires the four reserved listeners, loads the
// initial snapshot and starts the polling fallback.
func Open(feed Feed, fetch Fetcher, eventID string, pollInterval time.Duration) *Live {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	l := &Live{
		feed:    feed,
		fetch:   fetch,
		eventID: eventID,
		subs:    make(map[int]func()),
	}

	feed.JoinRoom(eventID)
	l.disposers = append(l.disposers,
		feed.On(protocol.EventStatsUpdate, l.onStats),
		feed.On(protocol.EventTicketScanned, func(json.RawMessage) { l.refresh() }),
		feed.On(protocol.EventTicketSold, func(json.RawMessage) { l.refresh() }),
		feed.On(protocol.EventAlert, l.onAlert),
	)

	l.refresh()
	feed.StartPollingIfDisconnected(eventID, l.refresh, pollInterval)
	return l
}

// Close disposes listeners, leaves the room and stops polling. Idempotent.
func (l *Live) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	disposers := l.disposers
	l.disposers = nil
	l.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
	l.feed.LeaveRoom(l.eventID)
	l.feed.StopPolling(l.eventID)
}

func (l *Live) onStats(data json.RawMessage) {
	raw := protocol.Unwrap(data)
	if protocol.IsJSONArray(raw) {
		return
	}
	var stats LiveStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		slog.Debug("dashboard: bad stats payload", "error", err)
		return
	}
	l.mu.Lock()
	l.stats = &stats
	l.lastUpdate = time.Now()
	l.mu.Unlock()
	l.notify()
}

func (l *Live) onAlert(data json.RawMessage) {
	var alert Alert
	if err := json.Unmarshal(protocol.Unwrap(data), &alert); err != nil {
		slog.Debug("dashboard: bad alert payload", "error", err)
		return
	}
	l.mu.Lock()
	l.alerts = append([]Alert{alert}, l.alerts...)
	l.mu.Unlock()
	l.notify()
}

// refresh refetches the snapshot. Fetch failures keep the last snapshot; the
// next live event or poll tick tries again.
func (l *Live) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	data, err := l.fetch.Dashboard(ctx, l.eventID)
	if err != nil {
		slog.Warn("dashboard: refresh failed", "event", l.eventID, "error", err)
		return
	}

	l.mu.Lock()
	if data.LiveStats != nil {
		l.stats = data.LiveStats
	}
	if data.EntriesFlow != nil {
		l.flow = data.EntriesFlow
	}
	if data.Alerts != nil {
		l.alerts = data.Alerts
	}
	l.lastUpdate = time.Now()
	l.mu.Unlock()
	l.notify()
}

// Snapshot returns a copy of the current dashboard state.
func (l *Live) Snapshot() Data {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := Data{EventID: l.eventID, Timestamp: l.lastUpdate.UnixMilli()}
	if l.stats != nil {
		s := *l.stats
		out.LiveStats = &s
	}
	if l.flow != nil {
		f := *l.flow
		out.EntriesFlow = &f
	}
	out.Alerts = append([]Alert(nil), l.alerts...)
	return out
}

// AttendancePercent is scanned/total, rounded, 0 when totals are unknown.
func (l *Live) AttendancePercent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stats == nil || l.stats.TotalTickets == 0 {
		return 0
	}
	return int(float64(l.stats.TicketsScanned)/float64(l.stats.TotalTickets)*100 + 0.5)
}

// UnacknowledgedAlerts counts alerts not yet acknowledged.
func (l *Live) UnacknowledgedAlerts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, a := range l.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}

// Acknowledge marks the alert with id acknowledged, reporting whether it
// was found.
func (l *Live) Acknowledge(id string) bool {
	l.mu.Lock()
	found := false
	for i := range l.alerts {
		if l.alerts[i].ID == id {
			l.alerts[i].Acknowledged = true
			found = true
			break
		}
	}
	l.mu.Unlock()
	if found {
		l.notify()
	}
	return found
}

// SetPollInterval restarts the polling fallback with a new interval. Used
// when the configuration reloads while a dashboard is open.
func (l *Live) SetPollInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultPollInterval
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	l.feed.StopPolling(l.eventID)
	l.feed.StartPollingIfDisconnected(l.eventID, l.refresh, d)
}

// LastUpdate reports when the snapshot last changed.
func (l *Live) LastUpdate() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUpdate
}

// Subscribe registers a change-notification callback and returns its
// disposer. Callbacks must be non-blocking.
func (l *Live) Subscribe(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

func (l *Live) notify() {
	l.mu.Lock()
	cbs := make([]func(), 0, len(l.subs))
	for _, fn := range l.subs {
		cbs = append(cbs, fn)
	}
	l.mu.Unlock()
	for _, fn := range cbs {
		fn()
	}
}
