package core

import (
	"context"
	"fmt"
	"sync"

	golibp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/sirupsen/logrus"
)

// GossipBus is the abstract topic-scoped best-effort broadcast a space
// publishes its events over. Libp2pGossipBus below is the concrete
// instance this module wires: a libp2p host plus GossipSub topics and
// mDNS discovery.
type GossipBus interface {
	// Subscribe joins topic, calling onMessage for every message received
	// from a peer (not self). bootstrap peers are dialed before returning.
	Subscribe(ctx context.Context, topic string, bootstrap []string, onMessage func(data []byte)) (Unsubscribe, error)
	// Publish broadcasts data on topic to current topic peers.
	Publish(ctx context.Context, topic string, data []byte) error
	Close() error
}

// Unsubscribe cancels a Subscribe call's subscription.
type Unsubscribe func()

// Libp2pGossipBus wraps a libp2p host and GossipSub router, one per node
// process, shared across all locally hosted spaces.
type Libp2pGossipBus struct {
	mu     sync.Mutex
	host   host.Host
	ps     *pubsub.PubSub
	topics map[string]*pubsub.Topic
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLibp2pGossipBus creates and bootstraps a libp2p host listening on
// listenAddr, with mDNS discovery tagged discoveryTag.
func NewLibp2pGossipBus(listenAddr, discoveryTag string, log *logrus.Logger) (*Libp2pGossipBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := golibp2p.New(golibp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		cancel()
		return nil, WrapError(ErrIO, err, "create libp2p host")
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, WrapError(ErrIO, err, "create gossipsub router")
	}

	bus := &Libp2pGossipBus{
		host:   h,
		ps:     ps,
		topics: make(map[string]*pubsub.Topic),
		log:    log.WithField("component", "gossip"),
		ctx:    ctx,
		cancel: cancel,
	}

	notifee := &mdnsNotifee{bus: bus}
	svc := mdns.NewMdnsService(h, discoveryTag, notifee)
	if err := svc.Start(); err != nil {
		bus.log.WithError(err).Warn("mdns discovery unavailable")
	}

	return bus, nil
}

type mdnsNotifee struct{ bus *Libp2pGossipBus }

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.bus.host.ID() {
		return
	}
	if err := n.bus.host.Connect(n.bus.ctx, info); err != nil {
		n.bus.log.WithError(err).WithField("peer", info.ID.String()).Debug("mdns connect failed")
	}
}

func (b *Libp2pGossipBus) Subscribe(ctx context.Context, topicName string, bootstrap []string, onMessage func(data []byte)) (Unsubscribe, error) {
	for _, addr := range bootstrap {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			b.log.WithError(err).WithField("addr", addr).Warn("invalid bootstrap address")
			continue
		}
		if err := b.host.Connect(ctx, *pi); err != nil {
			b.log.WithError(err).WithField("addr", addr).Warn("bootstrap dial failed")
		}
	}

	b.mu.Lock()
	topic, ok := b.topics[topicName]
	if !ok {
		var err error
		topic, err = b.ps.Join(topicName)
		if err != nil {
			b.mu.Unlock()
			return nil, WrapError(ErrIO, err, "join topic %s", topicName)
		}
		b.topics[topicName] = topic
	}
	b.mu.Unlock()

	sub, err := topic.Subscribe()
	if err != nil {
		return nil, WrapError(ErrIO, err, "subscribe topic %s", topicName)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		for {
			msg, err := sub.Next(subCtx)
			if err != nil {
				return
			}
			if msg.ReceivedFrom == b.host.ID() {
				continue
			}
			onMessage(msg.Data)
		}
	}()

	return func() {
		cancel()
		sub.Cancel()
	}, nil
}

func (b *Libp2pGossipBus) Publish(ctx context.Context, topicName string, data []byte) error {
	b.mu.Lock()
	topic, ok := b.topics[topicName]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("gossip: topic %s not joined", topicName)
	}
	if err := topic.Publish(ctx, data); err != nil {
		return WrapError(ErrIO, err, "publish to %s", topicName)
	}
	return nil
}

func (b *Libp2pGossipBus) Close() error {
	b.cancel()
	return b.host.Close()
}
