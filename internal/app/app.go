// Package app wires the client core together: store backend, credentials,
// offline scan queue, realtime channel and connectivity monitor.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/gateline/internal/config"
	"github.com/nextlevelbuilder/gateline/internal/credentials"
	"github.com/nextlevelbuilder/gateline/internal/netmon"
	"github.com/nextlevelbuilder/gateline/internal/realtime"
	"github.com/nextlevelbuilder/gateline/internal/scan"
	"github.com/nextlevelbuilder/gateline/internal/scanqueue"
	"github.com/nextlevelbuilder/gateline/internal/store"
	storefile "github.com/nextlevelbuilder/gateline/internal/store/file"
	storekeyring "github.com/nextlevelbuilder/gateline/internal/store/keyring"
	storeredis "github.com/nextlevelbuilder/gateline/internal/store/redis"
	storesqlite "github.com/nextlevelbuilder/gateline/internal/store/sqlite"
	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

// ScanDecision is the result of one gate-side scan attempt: either the
// gateway's verdict (online path) or a queued entry (offline path).
type ScanDecision struct {
	Outcome scan.Outcome
	Result  *protocol.ScanResult
	Queued  *scanqueue.PendingScan
}

// App owns the client core's components for one process.
type App struct {
	Config  config.Config
	Store   store.KV
	Creds   *credentials.Credentials
	Queue   *scanqueue.Queue
	Channel *realtime.Channel
	Monitor *netmon.Monitor

	submit scan.Submitter
	unsub  func()
}

// New assembles the core. submit is the gateway scan collaborator.
func New(cfg config.Config, submit scan.Submitter) (*App, error) {
	kv, err := OpenStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, kv, submit), nil
}

// NewWithStore assembles the core over an already-open store. The App takes
// ownership of kv.
func NewWithStore(cfg config.Config, kv store.KV, submit scan.Submitter) *App {
	creds := credentials.New(CredentialStore(cfg, kv))
	monitor := netmon.New(cfg.ProbeAddr, cfg.ProbeInterval.Std())
	queue := scanqueue.New(kv, cfg.QueueKey, submit, monitor.IsOnline)
	channel := realtime.New(realtime.Options{
		URL:                  cfg.SocketURL,
		Tokens:               creds,
		Dialer:               realtime.WSDialer{},
		MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
		ReconnectBaseDelay:   cfg.Reconnect.BaseDelay.Std(),
	})

	a := &App{
		Config:  cfg,
		Store:   kv,
		Creds:   creds,
		Queue:   queue,
		Channel: channel,
		Monitor: monitor,
		submit:  submit,
	}
	// The offline→online edge drives deferred sync.
	a.unsub = monitor.Subscribe(func(online bool) {
		if online {
			go queue.Sync(context.Background())
		}
	})
	return a
}

// CredentialStore returns the KV tokens live in: the OS credential manager
// when use_keyring is set, otherwise the main store.
func CredentialStore(cfg config.Config, kv store.KV) store.KV {
	if cfg.UseKeyring {
		return storekeyring.New()
	}
	return kv
}

// OpenStore selects a backend from the path shape: redis:// URLs, .db/.sqlite
// files, or a directory for the file store.
func OpenStore(path string) (store.KV, error) {
	switch {
	case strings.HasPrefix(path, "redis://"), strings.HasPrefix(path, "rediss://"):
		return storeredis.Open(path)
	case strings.HasSuffix(path, ".db"), strings.HasSuffix(path, ".sqlite"):
		return storesqlite.Open(path)
	case path == "":
		return nil, fmt.Errorf("app: empty store path")
	default:
		return storefile.Open(path)
	}
}

// Start begins connectivity monitoring.
func (a *App) Start() {
	a.Monitor.Start()
}

// Scan handles one gate-side scan: submitted directly when online, queued
// for deferred sync when offline. A direct attempt that dies on the wire is
// queued as well rather than lost.
func (a *App) Scan(ctx context.Context, payload, locationHint string) ScanDecision {
	if !a.Monitor.IsOnline() {
		entry := a.Queue.Enqueue(payload, locationHint)
		return ScanDecision{Outcome: scan.OutcomeOffline, Queued: &entry}
	}

	result, err := a.submit.Submit(ctx, payload, locationHint)
	if outcome := scan.Classify(result, err); outcome != scan.OutcomeOffline {
		return ScanDecision{Outcome: outcome, Result: &result}
	}
	entry := a.Queue.Enqueue(payload, locationHint)
	return ScanDecision{Outcome: scan.OutcomeOffline, Queued: &entry}
}

// Close releases every background resource.
func (a *App) Close() error {
	if a.unsub != nil {
		a.unsub()
	}
	a.Monitor.Stop()
	a.Channel.Disconnect()
	return a.Store.Close()
}
