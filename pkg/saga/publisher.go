package saga

import "context"

// Publisher sends an envelope to a topic, keyed by orderId. Implementations
// must not block on broker acknowledgement; delivery outcomes are observed
// asynchronously and never roll back a local commit.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *OrderEvent) error
}
