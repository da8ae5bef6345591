package announce

import (
	"context"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
)

// JoinTopic creates a gossipsub router on the host and joins the named
// announcement topic
func JoinTopic(ctx context.Context, h host.Host, name string) (*pubsub.Topic, error) {
	gs, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("creating gossipsub: %w", err)
	}

	topic, err := gs.Join(name)
	if err != nil {
		return nil, fmt.Errorf("joining topic %s: %w", name, err)
	}

	return topic, nil
}
