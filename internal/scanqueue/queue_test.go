package scanqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gateline/internal/store"
	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

// fakeSubmitter records submitted payloads and fails the payloads listed in
// failing until they are removed.
type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []string
	failing   map[string]bool
	gate      chan struct{} // when set, Submit blocks until the gate closes
}

func (f *fakeSubmitter) Submit(_ context.Context, payload, _ string) (protocol.ScanResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[payload] {
		return protocol.ScanResult{}, errors.New("gateway unreachable")
	}
	f.submitted = append(f.submitted, payload)
	return protocol.ScanResult{Success: true, ScanType: protocol.ScanTypeFirst, Message: "ok"}, nil
}

func (f *fakeSubmitter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.submitted))
	copy(out, f.submitted)
	return out
}

func alwaysOnline() bool  { return true }
func alwaysOffline() bool { return false }

func TestEnqueue_PendingCountAndPersistence(t *testing.T) {
	kv := store.NewMemory()
	q := New(kv, "", &fakeSubmitter{}, alwaysOnline)

	q.Enqueue("QR-1", "gate-a")
	q.Enqueue("QR-2", "")
	if got := q.PendingCount(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	// Persisted before Enqueue returned: a fresh queue over the same store
	// sees both entries.
	q2 := New(kv, "", &fakeSubmitter{}, alwaysOnline)
	if got := q2.PendingCount(); got != 2 {
		t.Errorf("rehydrated pending = %d, want 2", got)
	}
	all := q2.All()
	if all[0].Payload != "QR-1" || all[1].Payload != "QR-2" {
		t.Errorf("rehydrated order wrong: %+v", all)
	}
	if all[0].ID == all[1].ID {
		t.Error("ids must be unique")
	}
}

func TestSync_AllSucceedInOrder(t *testing.T) {
	sub := &fakeSubmitter{}
	q := New(store.NewMemory(), "", sub, alwaysOnline)
	q.Enqueue("QR-1", "")
	q.Enqueue("QR-2", "")

	q.Sync(context.Background())

	if got := sub.calls(); len(got) != 2 || got[0] != "QR-1" || got[1] != "QR-2" {
		t.Fatalf("submissions out of order: %v", got)
	}
	if q.PendingCount() != 0 {
		t.Errorf("pending = %d after full sync", q.PendingCount())
	}
	for _, s := range q.All() {
		if !s.Synced || s.Result == nil {
			t.Errorf("entry %s not marked synced with result", s.ID)
		}
	}
}

func TestSync_PartialFailureThenResume(t *testing.T) {
	sub := &fakeSubmitter{failing: map[string]bool{"QR-2": true}}
	q := New(store.NewMemory(), "", sub, alwaysOnline)
	q.Enqueue("QR-1", "")
	q.Enqueue("QR-2", "")
	q.Enqueue("QR-3", "")

	q.Sync(context.Background())

	// QR-2 failed; QR-1 and QR-3 went through (failures never abort the batch).
	if got := q.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	pending := q.Pending()
	if pending[0].Payload != "QR-2" {
		t.Fatalf("wrong entry pending: %+v", pending)
	}

	// Transport recovers; a second pass completes the remainder without
	// resubmitting synced entries.
	sub.mu.Lock()
	sub.failing = nil
	sub.mu.Unlock()
	q.Sync(context.Background())

	if q.PendingCount() != 0 {
		t.Errorf("pending = %d after resume", q.PendingCount())
	}
	want := []string{"QR-1", "QR-3", "QR-2"}
	got := sub.calls()
	if len(got) != len(want) {
		t.Fatalf("submissions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("submissions = %v, want %v", got, want)
		}
	}
}

func TestSync_SingleFlight(t *testing.T) {
	gate := make(chan struct{})
	sub := &fakeSubmitter{gate: gate}
	q := New(store.NewMemory(), "", sub, alwaysOnline)
	q.Enqueue("QR-1", "")
	q.Enqueue("QR-2", "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); q.Sync(context.Background()) }()

	// Wait for the first pass to take the flag, then fire a second call.
	deadline := time.After(2 * time.Second)
	for !q.Syncing() {
		select {
		case <-deadline:
			t.Fatal("first sync never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	go func() { defer wg.Done(); q.Sync(context.Background()) }()

	close(gate)
	wg.Wait()

	// Exactly one pass ran: each entry submitted once.
	if got := sub.calls(); len(got) != 2 {
		t.Errorf("expected 2 submissions, got %v", got)
	}
}

func TestSync_NoOpWhileOffline(t *testing.T) {
	sub := &fakeSubmitter{}
	q := New(store.NewMemory(), "", sub, alwaysOffline)
	q.Enqueue("QR-1", "")

	q.Sync(context.Background())

	if len(sub.calls()) != 0 {
		t.Error("sync must not submit while offline")
	}
	if q.PendingCount() != 1 {
		t.Error("entry should remain pending")
	}
}

func TestClearSynced_KeepsPendingInOrder(t *testing.T) {
	sub := &fakeSubmitter{failing: map[string]bool{"QR-1": true, "QR-3": true}}
	q := New(store.NewMemory(), "", sub, alwaysOnline)
	q.Enqueue("QR-1", "")
	q.Enqueue("QR-2", "")
	q.Enqueue("QR-3", "")

	q.Sync(context.Background())
	q.ClearSynced()

	all := q.All()
	if len(all) != 2 || all[0].Payload != "QR-1" || all[1].Payload != "QR-3" {
		t.Errorf("unexpected queue after ClearSynced: %+v", all)
	}
}

func TestClearAll(t *testing.T) {
	kv := store.NewMemory()
	q := New(kv, "", &fakeSubmitter{}, alwaysOnline)
	q.Enqueue("QR-1", "")
	q.ClearAll()

	if q.PendingCount() != 0 || len(q.All()) != 0 {
		t.Error("queue should be empty")
	}
	if got := New(kv, "", &fakeSubmitter{}, alwaysOnline).PendingCount(); got != 0 {
		t.Errorf("cleared queue persisted %d entries", got)
	}
}

func TestRehydrate_CorruptSnapshotStartsEmpty(t *testing.T) {
	kv := store.NewMemory()
	if err := kv.Set(DefaultQueueKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	q := New(kv, "", &fakeSubmitter{}, alwaysOnline)
	if q.PendingCount() != 0 {
		t.Error("corrupt snapshot must yield an empty queue")
	}
}
