package gateway

import (
	"context"
	"time"
)

// Message is one claimed queue delivery. The receipt travels with the message
// so the worker can acknowledge exactly the delivery it processed.
type Message struct {
	ID           string
	Body         []byte
	ReceiveCount int
}

// JobQueue is an at-least-once work queue with visibility-timeout leases.
// A received message stays invisible to other consumers until either Delete
// acknowledges it or the lease lapses and the queue redelivers it. Delete is
// the single acknowledgment point: crashing before Delete means redelivery.
type JobQueue interface {
	// Send enqueues one job descriptor body.
	Send(ctx context.Context, body []byte) error

	// Receive long-polls for at most one message, waiting up to wait.
	// Returns (nil, nil) when no message arrived within the window.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)

	// Delete acknowledges a claimed message, destroying it.
	Delete(ctx context.Context, msg *Message) error

	// ExtendVisibility lengthens the lease on a claimed message.
	ExtendVisibility(ctx context.Context, msg *Message, d time.Duration) error

	// ApproximateDepth estimates pending plus in-flight messages; used by
	// the autoscaler when the metrics document is unreadable.
	ApproximateDepth(ctx context.Context) (int64, error)
}
