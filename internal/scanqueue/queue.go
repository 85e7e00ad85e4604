// Package scanqueue buffers ticket scans performed while the scanner is
// offline and replays them, in order, once connectivity returns.
package scanqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/gateline/internal/scan"
	"github.com/nextlevelbuilder/gateline/internal/store"
	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

// DefaultQueueKey is the store key the queue persists under.
const DefaultQueueKey = "offline_scan_queue"

// PendingScan is one buffered scan attempt. Once a submission for it
// succeeds the entry flips Synced exactly once and is never retried.
type PendingScan struct {
	ID           string               `json:"id"`
	Payload      string               `json:"qrCode"`
	EnqueuedAt   int64                `json:"timestamp"` // epoch millis
	LocationHint string               `json:"location,omitempty"`
	Synced       bool                 `json:"synced"`
	Result       *protocol.ScanResult `json:"result,omitempty"`
}

// OnlineFunc reports whether connectivity is currently available.
type OnlineFunc func() bool

// Queue is the offline scan queue. The in-memory slice is authoritative for
// the current process; the store holds a whole-queue snapshot for the next
// startup. Queue depth is human-scale, so whole-snapshot writes are fine.
type Queue struct {
	kv     store.KV
	key    string
	submit scan.Submitter
	online OnlineFunc

	mu      sync.Mutex
	scans   []PendingScan
	syncing bool
}

// New rehydrates the queue from kv under key (DefaultQueueKey when empty).
// A missing or unreadable snapshot starts an empty queue; rehydration never
// fails the caller.
func New(kv store.KV, key string, submit scan.Submitter, online OnlineFunc) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	q := &Queue{kv: kv, key: key, submit: submit, online: online}
	q.rehydrate()
	return q
}

func (q *Queue) rehydrate() {
	raw, ok, err := q.kv.Get(q.key)
	if err != nil {
		slog.Warn("scanqueue: load failed, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}
	var scans []PendingScan
	if err := json.Unmarshal([]byte(raw), &scans); err != nil {
		slog.Warn("scanqueue: corrupt snapshot, starting empty", "error", err)
		return
	}
	q.scans = scans
}

// Enqueue appends a scan with Synced=false and persists before returning.
// Empty payloads are accepted; the gateway validates on sync.
func (q *Queue) Enqueue(payload, locationHint string) PendingScan {
	now := time.Now()
	entry := PendingScan{
		ID:           fmt.Sprintf("scan_%d_%s", now.UnixMilli(), uuid.NewString()[:8]),
		Payload:      payload,
		EnqueuedAt:   now.UnixMilli(),
		LocationHint: locationHint,
	}

	q.mu.Lock()
	q.scans = append(q.scans, entry)
	q.persistLocked()
	q.mu.Unlock()

	slog.Info("scanqueue: queued offline scan", "scan", entry.ID)
	return entry
}

// Sync submits every unsynced entry, in enqueue order, one at a time. A
// failed submission leaves its entry pending for the next pass and never
// aborts the batch. At most one pass runs at a time: a second call while a
// pass is active is a no-op, as is a call while offline. Errors never
// escape; this runs from connectivity-restore triggers with no caller
// positioned to handle them.
func (q *Queue) Sync(ctx context.Context) {
	q.mu.Lock()
	if q.syncing || (q.online != nil && !q.online()) {
		q.mu.Unlock()
		return
	}
	var pending []string
	for _, s := range q.scans {
		if !s.Synced {
			pending = append(pending, s.ID)
		}
	}
	if len(pending) == 0 {
		q.mu.Unlock()
		return
	}
	q.syncing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.persistLocked()
		q.syncing = false
		q.mu.Unlock()
	}()

	slog.Info("scanqueue: sync started", "pending", len(pending))
	for _, id := range pending {
		entry, ok := q.get(id)
		if !ok || entry.Synced {
			continue
		}
		result, err := q.submit.Submit(ctx, entry.Payload, entry.LocationHint)
		if err != nil {
			slog.Warn("scanqueue: submit failed, will retry", "scan", id, "error", err)
			continue
		}
		q.markSynced(id, result)
	}
}

func (q *Queue) get(id string) (PendingScan, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range q.scans {
		if s.ID == id {
			return s, true
		}
	}
	return PendingScan{}, false
}

func (q *Queue) markSynced(id string, result protocol.ScanResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.scans {
		if q.scans[i].ID == id {
			q.scans[i].Synced = true
			q.scans[i].Result = &result
			return
		}
	}
}

// PendingCount returns the number of entries not yet successfully synced.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, s := range q.scans {
		if !s.Synced {
			n++
		}
	}
	return n
}

// Pending returns the unsynced entries in enqueue order.
func (q *Queue) Pending() []PendingScan {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PendingScan
	for _, s := range q.scans {
		if !s.Synced {
			out = append(out, s)
		}
	}
	return out
}

// All returns a copy of the full queue in enqueue order.
func (q *Queue) All() []PendingScan {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingScan, len(q.scans))
	copy(out, q.scans)
	return out
}

// Syncing reports whether a sync pass is in flight.
func (q *Queue) Syncing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.syncing
}

// ClearSynced drops every synced entry, keeping pending ones in order.
func (q *Queue) ClearSynced() {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.scans[:0]
	for _, s := range q.scans {
		if !s.Synced {
			kept = append(kept, s)
		}
	}
	q.scans = kept
	q.persistLocked()
}

// ClearAll empties the queue.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scans = nil
	q.persistLocked()
}

// persistLocked writes the whole queue snapshot. Store failures are logged;
// the in-memory queue stays authoritative for this session, so a later
// startup may lose entries written after the failure. Callers hold q.mu.
func (q *Queue) persistLocked() {
	data, err := json.Marshal(q.scans)
	if err != nil {
		slog.Error("scanqueue: marshal failed", "error", err)
		return
	}
	if err := q.kv.Set(q.key, string(data)); err != nil {
		slog.Error("scanqueue: persist failed, queue in-memory only", "error", err)
	}
}
