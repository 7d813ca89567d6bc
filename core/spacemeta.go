package core

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/google/uuid"
)

// SpaceDetails is the content of a MutateSpace event: the space's own
// title/description, latest wins.
type SpaceDetails struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Secret      string    `json:"secret"` // hex-encoded space secret
}

// SpaceMeta is the typed-entity facade for a space's own metadata event.
type SpaceMeta struct{ space *Space }

func (s *Space) SpaceMeta() *SpaceMeta { return &SpaceMeta{space: s} }

// Mutate signs and ingests a MutateSpace event describing the space itself.
func (m *SpaceMeta) Mutate(author ed25519.PrivateKey, details SpaceDetails) (*Event, error) {
	content, err := json.Marshal(details)
	if err != nil {
		return nil, WrapError(ErrIO, err, "marshal space details")
	}
	return m.space.signAndIngest(author, KindMutateSpace, details.ID, nil, content)
}

// Delete ingests a DeleteSpace event.
func (m *SpaceMeta) Delete(author ed25519.PrivateKey) error {
	_, err := m.space.signAndIngest(author, KindDeleteSpace, m.space.ID, nil, nil)
	return err
}

// Latest returns the most recent MutateSpace event for this space, used by
// Sharing.Export to build space.json.
func (m *SpaceMeta) Latest() (*Event, error) {
	return m.space.Store.LatestOf(KindMutateSpace, m.space.ID.String())
}

// Get resolves the latest SpaceDetails, or NotFound if none has been
// written yet.
func (m *SpaceMeta) Get() (*SpaceDetails, error) {
	e, err := m.Latest()
	if err != nil {
		return nil, err
	}
	content, err := m.space.resolveContent(e.Content)
	if err != nil {
		return nil, err
	}
	var d SpaceDetails
	if err := json.Unmarshal(content, &d); err != nil {
		return nil, WrapError(ErrValidation, err, "space details json")
	}
	return &d, nil
}
