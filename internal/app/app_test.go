package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/gateline/internal/config"
	"github.com/nextlevelbuilder/gateline/internal/scan"
	"github.com/nextlevelbuilder/gateline/internal/store/keyring"
	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "state")
	return cfg
}

func TestScan_OfflineQueues(t *testing.T) {
	calls := 0
	submit := scan.SubmitterFunc(func(context.Context, string, string) (protocol.ScanResult, error) {
		calls++
		return protocol.ScanResult{}, nil
	})
	a, err := New(testConfig(t), submit)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	// Monitor never started: state is offline.
	dec := a.Scan(context.Background(), "GATE1:tck_1:abcdefabcdef", "gate-a")
	if dec.Outcome != scan.OutcomeOffline || dec.Queued == nil {
		t.Fatalf("offline scan should queue, got %+v", dec)
	}
	if calls != 0 {
		t.Error("offline scan must not hit the gateway")
	}
	if a.Queue.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", a.Queue.PendingCount())
	}
}

func TestScan_OnlineSubmitsDirectly(t *testing.T) {
	submit := scan.SubmitterFunc(func(_ context.Context, payload, _ string) (protocol.ScanResult, error) {
		return protocol.ScanResult{Success: true, ScanType: protocol.ScanTypeFirst}, nil
	})
	a, err := New(testConfig(t), submit)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.Monitor.SetOnline(true)

	dec := a.Scan(context.Background(), "x", "")
	if dec.Outcome != scan.OutcomeAdmitted || dec.Result == nil {
		t.Fatalf("expected admitted, got %+v", dec)
	}
	if a.Queue.PendingCount() != 0 {
		t.Error("online scan must not queue")
	}
}

func TestScan_OnlineWireFailureFallsBackToQueue(t *testing.T) {
	submit := scan.SubmitterFunc(func(context.Context, string, string) (protocol.ScanResult, error) {
		return protocol.ScanResult{}, scan.ErrOffline
	})
	a, err := New(testConfig(t), submit)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.Monitor.SetOnline(true)

	dec := a.Scan(context.Background(), "x", "")
	if dec.Outcome != scan.OutcomeOffline || dec.Queued == nil {
		t.Fatalf("wire failure should queue, got %+v", dec)
	}
}

func TestConnectivityRestoreTriggersSync(t *testing.T) {
	done := make(chan string, 4)
	submit := scan.SubmitterFunc(func(_ context.Context, payload, _ string) (protocol.ScanResult, error) {
		done <- payload
		return protocol.ScanResult{Success: true, ScanType: protocol.ScanTypeFirst}, nil
	})
	a, err := New(testConfig(t), submit)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	a.Scan(context.Background(), "QR-1", "")
	a.Scan(context.Background(), "QR-2", "")

	a.Monitor.SetOnline(true)

	if got := <-done; got != "QR-1" {
		t.Errorf("first synced = %q, want QR-1", got)
	}
	if got := <-done; got != "QR-2" {
		t.Errorf("second synced = %q, want QR-2", got)
	}
}

func TestOpenStore_BackendSelection(t *testing.T) {
	dir := t.TempDir()

	kv, err := OpenStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	kv.Close()

	kv, err = OpenStore(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	kv.Close()

	// Redis connects lazily; Open must succeed without a server.
	kv, err = OpenStore("redis://localhost:6379/0")
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	kv.Close()

	if _, err := OpenStore(""); err == nil {
		t.Error("empty path must error")
	}
}

func TestCredentialStoreSelection(t *testing.T) {
	kv, err := OpenStore(filepath.Join(t.TempDir(), "files"))
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	cfg := config.Default()
	if got := CredentialStore(cfg, kv); got != kv {
		t.Error("tokens should live in the main store by default")
	}

	cfg.UseKeyring = true
	if _, ok := CredentialStore(cfg, kv).(*keyring.KV); !ok {
		t.Error("use_keyring should select the credential manager")
	}
}
