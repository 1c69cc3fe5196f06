// Package bus carries chat and control events between instances. All
// cross-connection delivery funnels through Publish; an instance never
// writes directly to a connection it does not own.
package bus

import "context"

// Bus is the shared event fanout. Every instance subscribes to both the
// chat and control channels at startup. Delivery order is preserved per
// publisher; no ordering across publishers is guaranteed.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a subscription whose Messages channel yields
	// every payload published on the named channel, including this
	// instance's own publishes.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Close() error
}

type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
