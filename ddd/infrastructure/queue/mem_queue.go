package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transcription-service/ddd/domain/gateway"
)

type memMessage struct {
	id           string
	body         []byte
	receiveCount int
	leaseExpiry  time.Time
	inflight     bool
}

// MemQueue is an in-memory gateway.JobQueue with the same visibility-timeout
// semantics as RedisQueue, for tests and local runs.
type MemQueue struct {
	mu         sync.Mutex
	messages   []*memMessage
	visibility time.Duration
	nextID     int
	now        func() time.Time
}

// NewMemQueue returns an empty queue with the given default lease.
func NewMemQueue(visibility time.Duration) *MemQueue {
	return &MemQueue{visibility: visibility, now: time.Now}
}

// SetClock overrides the queue's clock; test hook for lease expiry.
func (q *MemQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Send enqueues one message body.
func (q *MemQueue) Send(_ context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	stored := make([]byte, len(body))
	copy(stored, body)
	q.messages = append(q.messages, &memMessage{
		id:   fmt.Sprintf("mem-%d", q.nextID),
		body: stored,
	})
	return nil
}

// Receive claims the oldest visible message, or returns (nil, nil) without
// blocking the full wait when the queue is empty.
func (q *MemQueue) Receive(ctx context.Context, _ time.Duration) (*gateway.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, m := range q.messages {
		if m.inflight && now.Before(m.leaseExpiry) {
			continue
		}
		m.inflight = true
		m.leaseExpiry = now.Add(q.visibility)
		m.receiveCount++
		body := make([]byte, len(m.body))
		copy(body, m.body)
		return &gateway.Message{ID: m.id, Body: body, ReceiveCount: m.receiveCount}, nil
	}
	return nil, nil
}

// Delete acknowledges and destroys a claimed message.
func (q *MemQueue) Delete(_ context.Context, msg *gateway.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.messages {
		if m.id == msg.ID {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

// ExtendVisibility pushes a claimed message's lease out by d from now.
func (q *MemQueue) ExtendVisibility(_ context.Context, msg *gateway.Message, d time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if m.id == msg.ID {
			m.leaseExpiry = q.now().Add(d)
			return nil
		}
	}
	return nil
}

// ApproximateDepth counts all live messages, claimed or not.
func (q *MemQueue) ApproximateDepth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.messages)), nil
}
