package cmd

import (
	"testing"

	"github.com/azminug/autorun/internal/accounts"
)

func TestAccountsAddAndFlag(t *testing.T) {
	withTestConfig(t, "")

	if err := runAccountsAdd(nil, []string{"CoolGuy42"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// A second add of the same name (any spelling) is a no-op.
	if err := runAccountsAdd(nil, []string{"coolguy42"}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	list, err := accounts.NewStore(cfg.AccountsFile).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d accounts, want 1", len(list))
	}
	if list[0].Username != "CoolGuy42" {
		t.Errorf("stored spelling changed: %q", list[0].Username)
	}
	if list[0].Active {
		t.Error("new account should start unflagged")
	}

	if err := setAccountActive("coolguy42", true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	list, _ = accounts.NewStore(cfg.AccountsFile).Load()
	if !list[0].Active {
		t.Error("activate did not set the flag")
	}

	if err := setAccountActive("nobody", true); err == nil {
		t.Error("activating an untracked account should fail")
	}
}

func TestAccountsRemove(t *testing.T) {
	withTestConfig(t, "")

	if err := runAccountsAdd(nil, []string{"alice"}); err != nil {
		t.Fatal(err)
	}
	if err := runAccountsRemove(nil, []string{"ALICE"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	list, _ := accounts.NewStore(cfg.AccountsFile).Load()
	if len(list) != 0 {
		t.Errorf("account not removed: %+v", list)
	}

	if err := runAccountsRemove(nil, []string{"alice"}); err == nil {
		t.Error("removing an untracked account should fail")
	}
}

func TestAccountsAddRejectsBlank(t *testing.T) {
	withTestConfig(t, "")
	if err := runAccountsAdd(nil, []string{"   "}); err == nil {
		t.Error("blank username accepted")
	}
}
