// Package announce publishes registry lifecycle events to a gossipsub
// topic so off-chain indexers can follow instance creation and outcomes.
package announce

import (
	"context"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"voting_registry/pkg/registry"
)

// DefaultTopic is the topic name announcements are published to
const DefaultTopic = "voting_instances"

// Topic abstracts a pubsub topic so tests can swap in a stub
type Topic interface {
	Publish(ctx context.Context, data []byte, opts ...pubsub.PubOpt) error
}

// Announcer publishes registry events. It implements registry.Observer;
// publishing is best-effort and never fails the originating operation.
type Announcer struct {
	topic  Topic
	sender peer.ID
	logger *zap.Logger
}

var _ registry.Observer = (*Announcer)(nil)

// NewAnnouncer creates an announcer publishing to the given topic
func NewAnnouncer(topic Topic, sender peer.ID, logger *zap.Logger) *Announcer {
	return &Announcer{
		topic:  topic,
		sender: sender,
		logger: logger,
	}
}

// InstanceCreated publishes a creation announcement
func (a *Announcer) InstanceCreated(ctx context.Context, ev registry.InstanceCreated) {
	a.publish(ctx, InstanceCreatedMessage, InstanceCreatedPayload{
		Identifier: ev.ID,
		Initiator:  ev.Initiator,
		Deadline:   ev.Deadline,
	})
}

// InstanceFinalized publishes a finalization announcement
func (a *Announcer) InstanceFinalized(ctx context.Context, ev registry.InstanceFinalized) {
	a.publish(ctx, InstanceFinalizedMessage, InstanceFinalizedPayload{
		Identifier: ev.ID,
		Status:     string(ev.Status),
		Tally:      ev.Tally,
	})
}

func (a *Announcer) publish(ctx context.Context, msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, a.sender, payload)
	if err != nil {
		a.logger.Warn("Building announcement failed",
			zap.String("type", string(msgType)),
			zap.Error(err))
		return
	}

	bytes, err := msg.Marshal()
	if err != nil {
		a.logger.Warn("Marshaling announcement failed",
			zap.String("type", string(msgType)),
			zap.Error(err))
		return
	}

	if err := a.topic.Publish(ctx, bytes); err != nil {
		a.logger.Warn("Publishing announcement failed",
			zap.String("type", string(msgType)),
			zap.Error(err))
	}
}
