package core_test

import (
	"path/filepath"
	"testing"

	"github.com/b5/squiggle/core"
)

func openTestAccounts(t *testing.T) *core.Accounts {
	t.Helper()
	dir := t.TempDir()
	accounts, err := core.OpenAccounts(filepath.Join(dir, "accounts.json"), filepath.Join(dir, "app_state.json"))
	if err != nil {
		t.Fatalf("open accounts: %v", err)
	}
	return accounts
}

func TestAccountsCreateSetsFirstAccountAsCurrent(t *testing.T) {
	accounts := openTestAccounts(t)

	acc, priv, err := accounts.Create(core.Profile{Username: "ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(priv) == 0 {
		t.Fatalf("expected a generated private key")
	}

	current, err := accounts.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != acc.ID {
		t.Fatalf("expected the first created account to become current")
	}
}

func TestAccountsSecondCreateDoesNotChangeCurrent(t *testing.T) {
	accounts := openTestAccounts(t)

	first, _, err := accounts.Create(core.Profile{Username: "first"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, _, err := accounts.Create(core.Profile{Username: "second"}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	current, err := accounts.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != first.ID {
		t.Fatalf("expected current account to remain the first one created")
	}
}

func TestAccountsSetCurrentPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	accountsPath := filepath.Join(dir, "accounts.json")
	appStatePath := filepath.Join(dir, "app_state.json")

	accounts, err := core.OpenAccounts(accountsPath, appStatePath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first, _, err := accounts.Create(core.Profile{Username: "first"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, _, err := accounts.Create(core.Profile{Username: "second"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := accounts.SetCurrent(second.ID); err != nil {
		t.Fatalf("set current: %v", err)
	}

	reopened, err := core.OpenAccounts(accountsPath, appStatePath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	current, err := reopened.Current()
	if err != nil {
		t.Fatalf("current after reopen: %v", err)
	}
	if current.ID != second.ID {
		t.Fatalf("expected current account %s to persist across reopen, got %s", second.ID, current.ID)
	}
	list := reopened.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 accounts after reopen, got %d", len(list))
	}
	foundFirst := false
	for _, acc := range list {
		if acc.ID == first.ID {
			foundFirst = true
		}
	}
	if !foundFirst {
		t.Fatalf("expected the first account to still be present after reopen")
	}
}

func TestAccountsSetCurrentRejectsUnknownID(t *testing.T) {
	accounts := openTestAccounts(t)
	if err := accounts.SetCurrent(mustUUID(t)); !core.IsKind(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown account id, got %v", err)
	}
}
