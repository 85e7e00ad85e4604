package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeFeed struct {
	mu       sync.Mutex
	joined   []string
	left     []string
	handlers map[string][]func(json.RawMessage)
	polling  map[string]bool
	disposed int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		handlers: make(map[string][]func(json.RawMessage)),
		polling:  make(map[string]bool),
	}
}

func (f *fakeFeed) JoinRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, roomID)
}

func (f *fakeFeed) LeaveRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, roomID)
}

func (f *fakeFeed) On(eventName string, cb func(json.RawMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[eventName] = append(f.handlers[eventName], cb)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.disposed++
	}
}

func (f *fakeFeed) StartPollingIfDisconnected(roomID string, _ func(), _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polling[roomID] = true
}

func (f *fakeFeed) StopPolling(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.polling, roomID)
}

func (f *fakeFeed) fire(event, payload string) {
	f.mu.Lock()
	cbs := append(([]func(json.RawMessage))(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(json.RawMessage(payload))
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  Data
	calls int
}

func (f *fakeFetcher) Dashboard(_ context.Context, eventID string) (Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d := f.data
	d.EventID = eventID
	return d, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestOpen_JoinsAndLoadsInitialSnapshot(t *testing.T) {
	feed := newFakeFeed()
	fetch := &fakeFetcher{data: Data{
		LiveStats: &LiveStats{EventID: "E1", TotalTickets: 100, TicketsScanned: 25},
		Alerts:    []Alert{{ID: "a1", Type: "info"}},
	}}

	l := Open(feed, fetch, "E1", time.Minute)
	defer l.Close()

	if len(feed.joined) != 1 || feed.joined[0] != "E1" {
		t.Errorf("room not joined: %v", feed.joined)
	}
	if !feed.polling["E1"] {
		t.Error("polling fallback not started")
	}
	if fetch.callCount() != 1 {
		t.Errorf("initial fetch count = %d", fetch.callCount())
	}
	if l.AttendancePercent() != 25 {
		t.Errorf("attendance = %d, want 25", l.AttendancePercent())
	}
}

func TestStatsUpdate_WrappedAndBare(t *testing.T) {
	feed := newFakeFeed()
	l := Open(feed, &fakeFetcher{}, "E1", time.Minute)
	defer l.Close()

	feed.fire("stats_update", `{"data":{"eventId":"E1","totalTickets":10,"ticketsScanned":5}}`)
	if got := l.Snapshot().LiveStats; got == nil || got.TicketsScanned != 5 {
		t.Fatalf("wrapped stats not applied: %+v", got)
	}

	feed.fire("stats_update", `{"eventId":"E1","totalTickets":10,"ticketsScanned":7}`)
	if got := l.Snapshot().LiveStats; got == nil || got.TicketsScanned != 7 {
		t.Fatalf("bare stats not applied: %+v", got)
	}

	// An array payload is malformed for stats; the snapshot must survive.
	feed.fire("stats_update", `[1,2,3]`)
	if got := l.Snapshot().LiveStats; got == nil || got.TicketsScanned != 7 {
		t.Error("array payload corrupted the snapshot")
	}
}

func TestScanAndSaleEventsTriggerRefetch(t *testing.T) {
	feed := newFakeFeed()
	fetch := &fakeFetcher{}
	l := Open(feed, fetch, "E1", time.Minute)
	defer l.Close()

	base := fetch.callCount()
	feed.fire("ticket_scanned", `{}`)
	feed.fire("ticket_sold", `{}`)
	if got := fetch.callCount(); got != base+2 {
		t.Errorf("refetches = %d, want %d", got, base+2)
	}
}

func TestAlerts_PrependAndAcknowledge(t *testing.T) {
	feed := newFakeFeed()
	l := Open(feed, &fakeFetcher{}, "E1", time.Minute)
	defer l.Close()

	feed.fire("alert", `{"id":"a1","type":"capacity","severity":"high"}`)
	feed.fire("alert", `{"id":"a2","type":"fraud","severity":"critical"}`)

	alerts := l.Snapshot().Alerts
	if len(alerts) != 2 || alerts[0].ID != "a2" {
		t.Fatalf("newest alert must come first: %+v", alerts)
	}
	if l.UnacknowledgedAlerts() != 2 {
		t.Errorf("unacked = %d, want 2", l.UnacknowledgedAlerts())
	}

	if !l.Acknowledge("a1") {
		t.Error("a1 should be found")
	}
	if l.Acknowledge("missing") {
		t.Error("unknown id should not acknowledge")
	}
	if l.UnacknowledgedAlerts() != 1 {
		t.Errorf("unacked = %d, want 1", l.UnacknowledgedAlerts())
	}
}

func TestSubscribe_NotifiedOnChange(t *testing.T) {
	feed := newFakeFeed()
	l := Open(feed, &fakeFetcher{}, "E1", time.Minute)
	defer l.Close()

	var mu sync.Mutex
	notified := 0
	dispose := l.Subscribe(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	feed.fire("alert", `{"id":"a1"}`)
	mu.Lock()
	n := notified
	mu.Unlock()
	if n != 1 {
		t.Errorf("notified = %d, want 1", n)
	}

	dispose()
	feed.fire("alert", `{"id":"a2"}`)
	mu.Lock()
	defer mu.Unlock()
	if notified != 1 {
		t.Error("disposed subscriber still notified")
	}
}

func TestSetPollInterval_RestartsPolling(t *testing.T) {
	feed := newFakeFeed()
	l := Open(feed, &fakeFetcher{}, "E1", time.Minute)
	defer l.Close()

	l.SetPollInterval(5 * time.Second)
	if !feed.polling["E1"] {
		t.Error("polling should be running after the interval change")
	}

	l.Close()
	l.SetPollInterval(time.Second)
	if feed.polling["E1"] {
		t.Error("a closed dashboard must not restart polling")
	}
}

func TestClose_TearsDownEverything(t *testing.T) {
	feed := newFakeFeed()
	l := Open(feed, &fakeFetcher{}, "E1", time.Minute)

	l.Close()
	l.Close() // idempotent

	if feed.disposed != 4 {
		t.Errorf("disposed listeners = %d, want 4", feed.disposed)
	}
	if len(feed.left) != 1 || feed.left[0] != "E1" {
		t.Errorf("room not left: %v", feed.left)
	}
	if feed.polling["E1"] {
		t.Error("polling not stopped")
	}
}
