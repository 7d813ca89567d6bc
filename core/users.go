package core

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/b5/squiggle/internal/blankname"
)

// Profile is the content of a MutateUser event.
type Profile struct {
	Username    string   `json:"username"`
	Description string   `json:"description"`
	Picture     string   `json:"picture"`
	NodeIDs     []string `json:"node_ids"`
}

// User is the projection of the latest MutateUser/DeleteUser event for a
// given data id.
type User struct {
	ID        uuid.UUID
	Pubkey    ed25519.PublicKey
	CreatedAt time.Time
	Profile   Profile
	Deleted   bool
}

// Blankname derives the deterministic fallback label for the user's pubkey.
func (u User) Blankname() string { return blankname.From(u.Pubkey) }

// DisplayName returns Profile.Username if set, else the Blankname.
func (u User) DisplayName() string {
	if u.Profile.Username != "" {
		return u.Profile.Username
	}
	return u.Blankname()
}

// UserFromEvent resolves an Event's content HashLink into a User. content
// must already be resolvable (inlined or fetched from BlobStore).
func UserFromEvent(e *Event, resolve func(HashLink) ([]byte, error)) (*User, error) {
	id, ok := e.DataID()
	if !ok {
		return nil, NewError(ErrValidation, "user event %x missing id tag", e.ID[:4])
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, NewError(ErrValidation, "user event %x: invalid id tag %q", e.ID[:4], id)
	}
	u := &User{ID: uid, Pubkey: e.Pubkey, CreatedAt: time.Unix(e.CreatedAt, 0), Deleted: e.Kind.IsDelete()}
	if e.Kind.IsDelete() {
		return u, nil
	}
	content, err := resolve(e.Content)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &u.Profile); err != nil {
		return nil, WrapError(ErrValidation, err, "user event %x: invalid profile json", e.ID[:4])
	}
	return u, nil
}

// Users is the typed-entity facade for user accounts within a Space.
type Users struct{ space *Space }

func (s *Space) Users() *Users { return &Users{space: s} }

// Mutate signs and ingests a MutateUser event for id with the given
// profile, authored by author.
func (u *Users) Mutate(author ed25519.PrivateKey, id uuid.UUID, profile Profile) (*User, error) {
	content, err := json.Marshal(profile)
	if err != nil {
		return nil, WrapError(ErrIO, err, "marshal profile")
	}
	e, err := u.space.signAndIngest(author, KindMutateUser, id, nil, content)
	if err != nil {
		return nil, err
	}
	pub, _ := author.Public().(ed25519.PublicKey)
	return &User{ID: id, Pubkey: pub, CreatedAt: time.Unix(e.CreatedAt, 0), Profile: profile}, nil
}

// Delete ingests a DeleteUser event for id.
func (u *Users) Delete(author ed25519.PrivateKey, id uuid.UUID) error {
	_, err := u.space.signAndIngest(author, KindDeleteUser, id, nil, nil)
	return err
}

// Get returns the latest projection for id, comparing the most recent
// MutateUser and DeleteUser events and resolving whichever is newer.
func (u *Users) Get(id uuid.UUID) (*User, error) {
	mutated, mErr := u.space.Store.LatestOf(KindMutateUser, id.String())
	deleted, dErr := u.space.Store.LatestOf(KindDeleteUser, id.String())
	latest, err := pickLatest(mutated, mErr, deleted, dErr)
	if err != nil {
		return nil, err
	}
	return UserFromEvent(latest, u.space.resolveContent)
}

// List returns the latest User projection per id, newest first, skipping
// those whose latest event is a delete.
func (u *Users) List(offset, limit int) ([]*User, error) {
	events, err := u.space.Store.List(KindMutateUser, 0, offset+limit+64)
	if err != nil {
		return nil, err
	}
	var out []*User
	for _, e := range events {
		id, _ := e.DataID()
		uid, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		user, err := u.Get(uid)
		if err != nil || user == nil || user.Deleted {
			continue
		}
		out = append(out, user)
		if len(out) >= offset+limit {
			break
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
