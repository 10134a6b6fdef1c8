package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/azminug/autorun/internal/accounts"
)

// fakeClassifier returns fixed online/offline sets.
type fakeClassifier struct {
	online  []string
	offline []string
	err     error
}

func (f *fakeClassifier) OnlineAccounts(ctx context.Context) ([]string, error) {
	return f.online, f.err
}

func (f *fakeClassifier) OfflineAccounts(ctx context.Context) ([]string, error) {
	return f.offline, f.err
}

func newTestStore(t *testing.T, contents string) *accounts.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return accounts.NewStore(path)
}

func TestReconcileScenario(t *testing.T) {
	// Remote: alice online (fresh heartbeat), bob offline (stale).
	store := newTestStore(t, `[
		{"username": "alice", "active": true},
		{"username": "bob", "active": false}
	]`)
	watcher := &fakeClassifier{online: []string{"alice"}, offline: []string{"bob"}}
	r := New(store, watcher, nil)

	setActive, setInactive, err := r.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if setActive != 1 || setInactive != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", setActive, setInactive)
	}

	list, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	for _, acc := range list {
		switch acc.Username {
		case "alice":
			if acc.Active {
				t.Error("alice should be cleared (online)")
			}
		case "bob":
			if !acc.Active {
				t.Error("bob should be flagged (offline)")
			}
		}
	}

	need, err := r.AccountsNeedingRestart(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(need) != 1 || need[0].Username != "bob" {
		t.Errorf("AccountsNeedingRestart = %v, want [bob]", need)
	}
}

func TestReconcileAsymmetry(t *testing.T) {
	// ghost is in the local file but unknown to the remote store: both its
	// current flag values must survive reconciliation untouched.
	store := newTestStore(t, `[
		{"username": "ghost-flagged", "active": true},
		{"username": "ghost-clear", "active": false}
	]`)
	watcher := &fakeClassifier{online: []string{"someone-else"}, offline: []string{"another"}}
	r := New(store, watcher, nil)

	setActive, setInactive, err := r.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if setActive != 0 || setInactive != 0 {
		t.Errorf("counts = (%d, %d), want (0, 0)", setActive, setInactive)
	}

	list, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !list[0].Active || list[1].Active {
		t.Errorf("flags changed for accounts absent from remote: %v", list)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := newTestStore(t, `[{"username": "bob", "active": false}]`)
	watcher := &fakeClassifier{offline: []string{"bob"}}
	r := New(store, watcher, nil)

	if _, _, err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	setActive, setInactive, err := r.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if setActive != 0 || setInactive != 0 {
		t.Errorf("second pass changed flags: (%d, %d)", setActive, setInactive)
	}

	if got := r.Stats().SyncCount; got != 2 {
		t.Errorf("sync count = %d, want 2", got)
	}
}

func TestReconcileAbortsOnRemoteError(t *testing.T) {
	store := newTestStore(t, `[{"username": "bob", "active": false}]`)
	watcher := &fakeClassifier{err: errors.New("store unreachable")}
	r := New(store, watcher, nil)

	if _, _, err := r.ReconcileOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	list, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Active {
		t.Error("flag changed despite remote error")
	}
	if r.Stats().SyncCount != 0 {
		t.Error("failed pass counted as a sync")
	}
}

func TestCaseInsensitiveMatching(t *testing.T) {
	store := newTestStore(t, `[{"username": "CoolGuy42", "active": false}]`)
	watcher := &fakeClassifier{offline: []string{"coolguy42"}}
	r := New(store, watcher, nil)

	if _, _, err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	list, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !list[0].Active {
		t.Error("mixed-case local username not matched against normalized remote name")
	}
	if list[0].Username != "CoolGuy42" {
		t.Errorf("stored spelling changed: %q", list[0].Username)
	}
}

func TestObserverHooks(t *testing.T) {
	store := newTestStore(t, `[{"username": "alice", "active": false}]`)
	r := New(store, &fakeClassifier{}, nil)

	r.HandleOffline("ALICE", nil)
	list, _ := store.Load()
	if !list[0].Active {
		t.Error("HandleOffline did not flag account")
	}

	r.HandleOnline("alice", nil)
	list, _ = store.Load()
	if list[0].Active {
		t.Error("HandleOnline did not clear flag")
	}
}
