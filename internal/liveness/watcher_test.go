package liveness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory remote.Store for watcher tests.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]json.RawMessage
	err      error
}

func (f *fakeStore) setAccount(name string, data json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accounts == nil {
		f.accounts = make(map[string]json.RawMessage)
	}
	f.accounts[name] = data
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]json.RawMessage, len(f.accounts))
	for k, v := range f.accounts {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for k, v := range f.accounts {
		if strings.EqualFold("accounts/"+k, path) {
			return v, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Set(ctx context.Context, path string, v interface{}) error    { return nil }
func (f *fakeStore) Update(ctx context.Context, path string, v interface{}) error { return nil }
func (f *fakeStore) Delete(ctx context.Context, path string) error                { return nil }
func (f *fakeStore) Push(ctx context.Context, path string, v interface{}) (string, error) {
	return "", nil
}

// rec builds an account record with the given presence fields.
func rec(inGame bool, status string, ts int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"presence": {"inGame": %t, "status": %q, "timestamp": %d}}`, inGame, status, ts))
}

func newTestWatcher(store *fakeStore, now time.Time) *Watcher {
	return New(store, Config{
		Now: func() time.Time { return now },
	})
}

func TestClassifyFailClosed(t *testing.T) {
	now := time.Unix(1_764_913_317, 0)
	w := newTestWatcher(&fakeStore{}, now)

	fresh := now.Unix() - 10
	stale := now.Unix() - 200

	tests := []struct {
		name string
		data json.RawMessage
		want bool
	}{
		{"empty record", nil, false},
		{"no presence object", json.RawMessage(`{"other": 1}`), false},
		{"malformed json", json.RawMessage(`{"presence": [1,2]}`), false},
		{"no indicator", rec(false, "idle", fresh), false},
		{"missing timestamp", json.RawMessage(`{"presence": {"inGame": true, "status": "online"}}`), false},
		{"stale heartbeat despite online status", rec(true, "online", stale), false},
		{"in game, fresh", rec(true, "", fresh), true},
		{"status online, fresh", rec(false, "online", fresh), true},
		{"status case-insensitive", rec(false, "Online", fresh), true},
		{"boundary exactly at timeout", rec(true, "online", now.Unix()-120), true},
		{"just past timeout", rec(true, "online", now.Unix()-121), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.classify(tt.data); got != tt.want {
				t.Errorf("classify(%s) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestFirstObservationFiresNoEdge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	store.setAccount("alice", rec(true, "online", now.Unix()-5))

	w := newTestWatcher(store, now)

	var fired int
	w.OnOnline(func(string, json.RawMessage) { fired++ })
	w.OnOffline(func(string, json.RawMessage) { fired++ })

	w.checkOnce(context.Background())

	if fired != 0 {
		t.Errorf("first observation fired %d callbacks, want 0", fired)
	}
}

func TestEdgeOnlyFiring(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	w := newTestWatcher(store, now)

	var got []string
	w.OnOnline(func(u string, _ json.RawMessage) { got = append(got, "online:"+u) })
	w.OnOffline(func(u string, _ json.RawMessage) { got = append(got, "offline:"+u) })

	online := rec(true, "online", now.Unix()-5)
	offline := rec(false, "offline", now.Unix()-500)

	// Classification sequence: online, online, offline, offline, online.
	for _, data := range []json.RawMessage{online, online, offline, offline, online} {
		store.setAccount("alice", data)
		w.checkOnce(context.Background())
	}

	want := []string{"offline:alice", "online:alice"}
	if len(got) != len(want) {
		t.Fatalf("fired %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("callback %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStatusChangeFiresAfterDirectional(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	w := newTestWatcher(store, now)

	var order []string
	w.OnOffline(func(u string, _ json.RawMessage) { order = append(order, "offline") })
	w.OnStatusChange(func(u string, online bool, _ json.RawMessage) {
		order = append(order, fmt.Sprintf("change:%t", online))
	})

	store.setAccount("alice", rec(true, "online", now.Unix()-5))
	w.checkOnce(context.Background())
	store.setAccount("alice", rec(false, "offline", now.Unix()-500))
	w.checkOnce(context.Background())

	want := []string{"offline", "change:false"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestFetchFailureRetainsState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	w := newTestWatcher(store, now)

	var edges []string
	w.OnOffline(func(u string, _ json.RawMessage) { edges = append(edges, "offline") })

	store.setAccount("alice", rec(true, "online", now.Unix()-5))
	w.checkOnce(context.Background())

	// A failed poll must not produce a spurious offline transition.
	store.setErr(errors.New("connection refused"))
	w.checkOnce(context.Background())
	if len(edges) != 0 {
		t.Fatalf("failed poll fired %v", edges)
	}

	// State from the last good cycle is retained, so the real flip still
	// registers as an edge.
	store.setErr(nil)
	store.setAccount("alice", rec(false, "offline", now.Unix()-500))
	w.checkOnce(context.Background())
	if len(edges) != 1 {
		t.Errorf("expected one offline edge after recovery, got %v", edges)
	}
}

func TestObserverPanicDoesNotBlockOthers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	w := newTestWatcher(store, now)

	var secondCalled bool
	w.OnOffline(func(string, json.RawMessage) { panic("bad observer") })
	w.OnOffline(func(string, json.RawMessage) { secondCalled = true })

	store.setAccount("alice", rec(true, "online", now.Unix()-5))
	w.checkOnce(context.Background())
	store.setAccount("alice", rec(false, "", 0))
	w.checkOnce(context.Background())

	if !secondCalled {
		t.Error("second observer not called after first panicked")
	}
}

func TestQueries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	store.setAccount("Alice", rec(true, "online", now.Unix()-10))
	store.setAccount("bob", rec(false, "offline", now.Unix()-200))

	w := newTestWatcher(store, now)

	online, err := w.OnlineAccounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0] != "alice" {
		t.Errorf("online = %v", online)
	}

	offline, err := w.OfflineAccounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(offline) != 1 || offline[0] != "bob" {
		t.Errorf("offline = %v", offline)
	}

	// Queries work without the poll loop running and normalize their input.
	isOnline, known, err := w.Status(context.Background(), "ALICE ")
	if err != nil {
		t.Fatal(err)
	}
	if !known || !isOnline {
		t.Errorf("Status(alice) = %v, %v", isOnline, known)
	}

	_, known, err = w.Status(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if known {
		t.Error("unknown account reported as known")
	}
}

func TestStartStop(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	store.setAccount("alice", rec(true, "online", now.Unix()-5))

	w := New(store, Config{
		PollInterval: 10 * time.Millisecond,
		Now:          func() time.Time { return now },
	})

	w.Start()
	defer w.Stop()

	// Initial synchronous check populates state immediately.
	w.mu.Lock()
	_, seen := w.prev["alice"]
	w.mu.Unlock()
	if !seen {
		t.Error("initial check did not record alice")
	}

	w.Stop()
	// Stop twice is safe.
	w.Stop()
}

func TestInfos(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeStore{}
	store.setAccount("Alice", rec(true, "online", now.Unix()-5))
	store.setAccount("bob", rec(false, "idle", now.Unix()-300))
	store.setAccount("carol", json.RawMessage(`{"other": 1}`))

	w := newTestWatcher(store, now)

	infos, err := w.Infos(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	alice := infos["alice"]
	if !alice.Online || alice.Status != "online" {
		t.Errorf("alice = %+v", alice)
	}
	if alice.LastSeen.Unix() != now.Unix()-5 {
		t.Errorf("alice.LastSeen = %v", alice.LastSeen)
	}

	bob := infos["bob"]
	if bob.Online || bob.Status != "idle" {
		t.Errorf("bob = %+v", bob)
	}

	carol := infos["carol"]
	if carol.Online || !carol.LastSeen.IsZero() {
		t.Errorf("carol = %+v", carol)
	}
}
