package core

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Account is a local identity: an ed25519 keypair plus the cached profile
// it last announced in any space.
type Account struct {
	ID      uuid.UUID         `json:"id"`
	Pubkey  []byte            `json:"pubkey"`
	Profile Profile           `json:"profile"`
	Author  ed25519.PrivateKey `json:"author,omitempty"`
}

// Accounts is the local identity roster, persisted at accounts.json with
// the current-user selection in app_state.json. Every
// write goes through a read-modify-write cycle under the write lock,
// using the same RWMutex-guarded-map discipline as the rest of this module.
type Accounts struct {
	mu            sync.RWMutex
	accountsPath  string
	appStatePath  string
	accounts      []Account
	currentID     uuid.UUID
}

type appState struct {
	CurrentSpaceID uuid.UUID `json:"current_space_id"`
	CurrentUserID  uuid.UUID `json:"current_user_id"`
}

// OpenAccounts loads the account roster from disk, creating an empty one if
// absent.
func OpenAccounts(accountsPath, appStatePath string) (*Accounts, error) {
	a := &Accounts{accountsPath: accountsPath, appStatePath: appStatePath}
	if err := a.reload(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Accounts) reload() error {
	accounts, err := readJSONFileOrDefault[[]Account](a.accountsPath, []Account{})
	if err != nil {
		return err
	}
	state, err := readJSONFileOrDefault[appState](a.appStatePath, appState{})
	if err != nil {
		return err
	}
	a.accounts = accounts
	a.currentID = state.CurrentUserID
	return nil
}

func (a *Accounts) persistLocked() error {
	if err := writeJSONFile(a.accountsPath, a.accounts); err != nil {
		return err
	}
	return writeJSONFile(a.appStatePath, appState{CurrentUserID: a.currentID})
}

// Create adds a freshly generated identity to the roster and returns it.
func (a *Accounts) Create(profile Profile) (*Account, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, WrapError(ErrIO, err, "generate identity")
	}
	acc := Account{ID: uuid.New(), Pubkey: pub, Profile: profile, Author: priv}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.reload(); err != nil {
		return nil, nil, err
	}
	a.accounts = append(a.accounts, acc)
	if a.currentID == uuid.Nil {
		a.currentID = acc.ID
	}
	if err := a.persistLocked(); err != nil {
		return nil, nil, err
	}
	return &acc, priv, nil
}

// List returns a snapshot of all known accounts.
func (a *Accounts) List() []Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Account, len(a.accounts))
	copy(out, a.accounts)
	return out
}

// Current returns the currently selected account, or NotFound if none is
// selected.
func (a *Accounts) Current() (*Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := range a.accounts {
		if a.accounts[i].ID == a.currentID {
			acc := a.accounts[i]
			return &acc, nil
		}
	}
	return nil, NewError(ErrNotFound, "no current account selected")
}

// SetCurrent selects id as the current account.
func (a *Accounts) SetCurrent(id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.reload(); err != nil {
		return err
	}
	found := false
	for _, acc := range a.accounts {
		if acc.ID == id {
			found = true
			break
		}
	}
	if !found {
		return NewError(ErrNotFound, "account %s not found", id)
	}
	a.currentID = id
	return a.persistLocked()
}

func readJSONFileOrDefault[T any](path string, def T) (T, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return def, nil
	}
	if err != nil {
		return def, WrapError(ErrIO, err, "read %s", path)
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return def, WrapError(ErrIO, err, "parse %s", path)
	}
	return v, nil
}

func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapError(ErrIO, err, "mkdir for %s", path)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return WrapError(ErrIO, err, "marshal %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return WrapError(ErrIO, err, "write %s", path)
	}
	return os.Rename(tmp, path)
}
