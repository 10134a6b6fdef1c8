package accounts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T, contents string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return NewStore(path)
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t, "")

	list, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %v", list)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	s := newTestStore(t, `{"not": "an array"}`)

	if _, err := s.Load(); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestPassthroughFieldsPreserved(t *testing.T) {
	s := newTestStore(t, `[
		{"username": "Alice", "active": false, "password": "hunter2", "slot": 3},
		{"username": "bob", "active": true}
	]`)

	found, err := s.SetActive("ALICE", true)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if !found {
		t.Fatal("alice not matched")
	}

	list, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}

	alice := list[0]
	if alice.Username != "Alice" {
		t.Errorf("stored spelling changed: %q", alice.Username)
	}
	if !alice.Active {
		t.Error("alice not flagged active")
	}
	if string(alice.Extra["password"]) != `"hunter2"` {
		t.Errorf("password field not preserved: %s", alice.Extra["password"])
	}
	if string(alice.Extra["slot"]) != "3" {
		t.Errorf("slot field not preserved: %s", alice.Extra["slot"])
	}
}

func TestSetActiveUnknownUsername(t *testing.T) {
	s := newTestStore(t, `[{"username": "alice", "active": false}]`)

	found, err := s.SetActive("ghost", true)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if found {
		t.Error("matched a username that does not exist")
	}
}

func TestSetActiveNoChangeSkipsWrite(t *testing.T) {
	s := newTestStore(t, `[{"username": "alice", "active": true}]`)

	before, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.SetActive("alice", true); err != nil {
		t.Fatal(err)
	}

	after, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("file rewritten although nothing changed")
	}
}

func TestActiveFilter(t *testing.T) {
	s := newTestStore(t, `[
		{"username": "alice", "active": false},
		{"username": "bob", "active": true},
		{"username": "carol", "active": true}
	]`)

	active, err := s.Active()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}
	if active[0].Username != "bob" || active[1].Username != "carol" {
		t.Errorf("active = %v", active)
	}
}

func TestConcurrentMutationsNoLostUpdate(t *testing.T) {
	s := newTestStore(t, `[
		{"username": "alice", "active": false},
		{"username": "bob", "active": false}
	]`)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.SetActive("alice", true)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.SetActive("bob", true)
		}()
	}
	wg.Wait()

	list, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}

	// Exactly one record per username, both flips applied.
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	seen := map[string]int{}
	for _, acc := range list {
		seen[acc.Username]++
		if !acc.Active {
			t.Errorf("%s lost its update", acc.Username)
		}
	}
	for name, n := range seen {
		if n != 1 {
			t.Errorf("%s appears %d times", name, n)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := Account{
		Username: "alice",
		Active:   true,
		Extra: map[string]json.RawMessage{
			"note": json.RawMessage(`"keep me"`),
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	var out Account
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Username != "alice" || !out.Active {
		t.Errorf("round trip lost owned fields: %+v", out)
	}
	if string(out.Extra["note"]) != `"keep me"` {
		t.Errorf("round trip lost extra field: %+v", out.Extra)
	}
}
