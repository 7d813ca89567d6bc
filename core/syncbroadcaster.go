package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// SyncBroadcaster republishes a space's local ingests onto its GossipBus
// topic and feeds received remote events back into the space's EventStore,
// deduplicating via EventStore's own idempotent Ingest.
type SyncBroadcaster struct {
	bus    GossipBus
	topic  string
	space  *Space
	log    *logrus.Entry
	cancel Unsubscribe
}

// spaceTopic derives the gossip topic name for a space's secret: one topic
// per space, derived from the space secret.
func spaceTopic(secret [32]byte) string {
	h := sha256.Sum256(append([]byte("squiggle/space/"), secret[:]...))
	return hex.EncodeToString(h[:])
}

// NewSyncBroadcaster subscribes space's topic on bus and starts relaying
// inbound events. bootstrap lists addresses to dial before the first publish.
func NewSyncBroadcaster(ctx context.Context, bus GossipBus, space *Space, bootstrap []string, log *logrus.Logger) (*SyncBroadcaster, error) {
	topic := spaceTopic(space.Secret)
	sb := &SyncBroadcaster{
		bus:   bus,
		topic: topic,
		space: space,
		log:   log.WithField("component", "sync").WithField("space", space.ID.String()),
	}

	cancel, err := bus.Subscribe(ctx, topic, bootstrap, sb.onMessage)
	if err != nil {
		return nil, err
	}
	sb.cancel = cancel
	return sb, nil
}

// onMessage decodes a remote event and ingests it, ignoring events already
// present or failing verification (a malformed event from a peer must never
// wedge the space).
func (sb *SyncBroadcaster) onMessage(data []byte) {
	e, err := DecodeEvent(data)
	if err != nil {
		sb.log.WithError(err).Warn("discarding malformed gossip payload")
		return
	}
	if err := sb.space.Store.Ingest(e); err != nil {
		if !IsKind(err, ErrInvalidSignature) && !IsKind(err, ErrValidation) {
			sb.log.WithError(err).WithField("event", e.IDHex()).Debug("ingest of gossiped event failed")
		}
		return
	}
}

// BroadcastEvent publishes a locally signed event to the space's topic.
// Publish failures are logged, not returned: a broadcast is best-effort and
// the event is already durably stored locally.
func (sb *SyncBroadcaster) BroadcastEvent(e *Event) {
	data, err := EncodeEvent(e)
	if err != nil {
		sb.log.WithError(err).Error("encode event for broadcast")
		return
	}
	if err := sb.bus.Publish(bgCtx, sb.topic, data); err != nil {
		sb.log.WithError(err).WithField("event", e.IDHex()).Debug("broadcast failed")
	}
}

// Close unsubscribes from the space's gossip topic.
func (sb *SyncBroadcaster) Close() {
	if sb.cancel != nil {
		sb.cancel()
	}
}
