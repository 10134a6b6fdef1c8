// Package accounts manages the local flag file listing tracked accounts.
//
// The file is a JSON array of account objects. This subsystem owns exactly
// two of their fields, username and active; everything else (credentials,
// per-account settings written by other tooling) passes through untouched.
// active=true means the account is believed offline and should be restarted
// the next time the dispatcher picks it up.
//
// The file is shared with external tooling that may edit it between our
// writes, so every mutation is a whole-array read-modify-write under both an
// in-process mutex and a cross-process file lock, and the write itself is an
// atomic rename. Partial or field-level writes are not supported.
package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/azminug/autorun/internal/identity"
	"github.com/azminug/autorun/internal/util"
)

// Account is one flag file record. Extra holds every field this subsystem
// does not own, byte-preserved across load/save cycles.
type Account struct {
	Username string
	Active   bool
	Extra    map[string]json.RawMessage
}

// UnmarshalJSON splits the owned fields out of the raw object.
func (a *Account) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["username"]; ok {
		if err := json.Unmarshal(raw, &a.Username); err != nil {
			return fmt.Errorf("account username: %w", err)
		}
		delete(fields, "username")
	}
	if raw, ok := fields["active"]; ok {
		if err := json.Unmarshal(raw, &a.Active); err != nil {
			return fmt.Errorf("account active flag: %w", err)
		}
		delete(fields, "active")
	}

	a.Extra = fields
	return nil
}

// MarshalJSON reassembles the record, owned fields plus passthrough.
func (a Account) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(a.Extra)+2)
	for k, v := range a.Extra {
		fields[k] = v
	}

	username, err := json.Marshal(a.Username)
	if err != nil {
		return nil, err
	}
	active, err := json.Marshal(a.Active)
	if err != nil {
		return nil, err
	}
	fields["username"] = username
	fields["active"] = active

	return json.Marshal(fields)
}

// Matches reports whether this record belongs to the given username,
// comparing normalized forms.
func (a Account) Matches(username string) bool {
	return identity.Normalize(a.Username) == identity.Normalize(username)
}

// Store is the durable flag file.
type Store struct {
	path string

	mu    sync.Mutex
	flock *flock.Flock
}

// NewStore creates a store over the given file path. The file need not exist
// yet; a missing file reads as an empty list.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		flock: flock.New(path + ".lock"),
	}
}

// Path returns the underlying file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole account list.
func (s *Store) Load() ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flock.Lock(); err != nil {
		return nil, fmt.Errorf("locking accounts file: %w", err)
	}
	defer func() { _ = s.flock.Unlock() }()

	return s.load()
}

// load reads the file without taking locks. Callers hold both locks.
func (s *Store) load() ([]Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var list []Account
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing accounts file: %w", err)
	}
	return list, nil
}

// save writes the whole list atomically. Callers hold both locks.
func (s *Store) save(list []Account) error {
	if list == nil {
		list = []Account{}
	}
	if err := util.AtomicWriteJSON(s.path, list); err != nil {
		return fmt.Errorf("writing accounts file: %w", err)
	}
	return nil
}

// Mutate runs fn over the current list inside one locked read-modify-write.
// fn returns the new list and whether anything changed; an unchanged list is
// not rewritten. The file is re-read on every call because external tooling
// may have edited it since our last look.
func (s *Store) Mutate(fn func(list []Account) ([]Account, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flock.Lock(); err != nil {
		return fmt.Errorf("locking accounts file: %w", err)
	}
	defer func() { _ = s.flock.Unlock() }()

	list, err := s.load()
	if err != nil {
		return err
	}

	updated, changed := fn(list)
	if !changed {
		return nil
	}
	return s.save(updated)
}

// SetActive flips the active flag for one account, matching the username
// case-insensitively. Returns false if no record matches.
func (s *Store) SetActive(username string, active bool) (bool, error) {
	found := false
	err := s.Mutate(func(list []Account) ([]Account, bool) {
		for i := range list {
			if list[i].Matches(username) {
				found = true
				if list[i].Active == active {
					return list, false
				}
				list[i].Active = active
				return list, true
			}
		}
		return list, false
	})
	return found, err
}

// Active returns the records currently flagged for restart.
func (s *Store) Active() ([]Account, error) {
	list, err := s.Load()
	if err != nil {
		return nil, err
	}

	var out []Account
	for _, acc := range list {
		if acc.Active {
			out = append(out, acc)
		}
	}
	return out, nil
}
