package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemQueueLeaseHidesClaimedMessage(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(time.Hour)
	if err := q.Send(ctx, []byte("job-a")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	first, err := q.Receive(ctx, time.Second)
	if err != nil || first == nil {
		t.Fatalf("Receive() = %v, %v", first, err)
	}
	if first.ReceiveCount != 1 {
		t.Fatalf("ReceiveCount = %d, want 1", first.ReceiveCount)
	}

	// Claimed message is invisible while the lease holds.
	second, err := q.Receive(ctx, time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if second != nil {
		t.Fatalf("claimed message redelivered early: %+v", second)
	}
}

func TestMemQueueRedeliversAfterLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(time.Hour)
	if err := q.Send(ctx, []byte("job-b")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	now := time.Now()
	q.SetClock(func() time.Time { return now })

	first, _ := q.Receive(ctx, time.Second)
	if first == nil {
		t.Fatal("first Receive() returned nothing")
	}

	// Advance past the lease: the unacked message comes back.
	q.SetClock(func() time.Time { return now.Add(2 * time.Hour) })
	second, err := q.Receive(ctx, time.Second)
	if err != nil || second == nil {
		t.Fatalf("Receive() after expiry = %v, %v", second, err)
	}
	if second.ID != first.ID || second.ReceiveCount != 2 {
		t.Fatalf("redelivery = %+v, want same message with count 2", second)
	}
}

func TestMemQueueDeleteIsTheAckPoint(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(time.Hour)
	if err := q.Send(ctx, []byte("job-c")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msg, _ := q.Receive(ctx, time.Second)
	if err := q.Delete(ctx, msg); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	depth, _ := q.ApproximateDepth(ctx)
	if depth != 0 {
		t.Fatalf("depth after ack = %d, want 0", depth)
	}

	now := time.Now()
	q.SetClock(func() time.Time { return now.Add(3 * time.Hour) })
	if again, _ := q.Receive(ctx, time.Second); again != nil {
		t.Fatalf("deleted message came back: %+v", again)
	}
}

func TestMemQueueExtendVisibility(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(time.Hour)
	if err := q.Send(ctx, []byte("job-d")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	now := time.Now()
	q.SetClock(func() time.Time { return now })
	msg, _ := q.Receive(ctx, time.Second)

	if err := q.ExtendVisibility(ctx, msg, 5*time.Hour); err != nil {
		t.Fatalf("ExtendVisibility() error = %v", err)
	}

	// Past the original lease but inside the extension: still hidden.
	q.SetClock(func() time.Time { return now.Add(2 * time.Hour) })
	if again, _ := q.Receive(ctx, time.Second); again != nil {
		t.Fatalf("extended message redelivered: %+v", again)
	}
}
