package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// RedisQueue implements gateway.JobQueue with visibility-timeout semantics
// on redis primitives:
//
//	<key>:pending   LIST  message IDs awaiting delivery
//	<key>:inflight  LIST  message IDs claimed but unacknowledged
//	<key>:leases    ZSET  message ID -> lease expiry (unix seconds)
//	<key>:msg:<id>  HASH  body, receive_count
//
// Receive moves an ID from pending to inflight atomically (BLMOVE) and
// registers a lease. Expired leases are swept back to pending before each
// poll, which is what makes delivery at-least-once: a worker crash after
// claim redelivers the message once its lease lapses.
type RedisQueue struct {
	client     *redis.Client
	key        string
	visibility time.Duration
}

// NewRedisQueue binds the queue to its base key. visibility is the default
// lease granted on claim; it must exceed the worst-case job duration.
func NewRedisQueue(client *redis.Client, key string, visibility time.Duration) *RedisQueue {
	return &RedisQueue{client: client, key: key, visibility: visibility}
}

func (q *RedisQueue) pendingKey() string  { return q.key + ":pending" }
func (q *RedisQueue) inflightKey() string { return q.key + ":inflight" }
func (q *RedisQueue) leasesKey() string   { return q.key + ":leases" }
func (q *RedisQueue) msgKey(id string) string {
	return fmt.Sprintf("%s:msg:%s", q.key, id)
}

// Send enqueues one message body.
func (q *RedisQueue) Send(ctx context.Context, body []byte) error {
	id := uuid.NewString()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.msgKey(id), "body", body, "receive_count", 0)
	pipe.LPush(ctx, q.pendingKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("enqueue: %w", err))
	}
	return nil
}

// Receive claims at most one message, blocking up to wait. Returns (nil, nil)
// when nothing arrived within the window.
func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (*gateway.Message, error) {
	q.reclaimExpired(ctx)

	id, err := q.client.BLMove(ctx, q.pendingKey(), q.inflightKey(), "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errno.Classify(errno.ErrTransientInfra, fmt.Errorf("poll: %w", err))
	}

	expiry := float64(time.Now().Add(q.visibility).Unix())
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, q.leasesKey(), redis.Z{Score: expiry, Member: id})
	countCmd := pipe.HIncrBy(ctx, q.msgKey(id), "receive_count", 1)
	bodyCmd := pipe.HGet(ctx, q.msgKey(id), "body")
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errno.Classify(errno.ErrTransientInfra, fmt.Errorf("claim %s: %w", id, err))
	}

	body, err := bodyCmd.Bytes()
	if err != nil {
		// Body hash gone but the ID survived; drop the husk.
		q.dropMessage(ctx, id)
		return nil, nil
	}

	return &gateway.Message{
		ID:           id,
		Body:         body,
		ReceiveCount: int(countCmd.Val()),
	}, nil
}

// Delete acknowledges a claimed message, removing every trace of it.
func (q *RedisQueue) Delete(ctx context.Context, msg *gateway.Message) error {
	if err := q.dropMessage(ctx, msg.ID); err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("ack %s: %w", msg.ID, err))
	}
	return nil
}

// ExtendVisibility pushes the lease expiry out by d from now.
func (q *RedisQueue) ExtendVisibility(ctx context.Context, msg *gateway.Message, d time.Duration) error {
	expiry := float64(time.Now().Add(d).Unix())
	err := q.client.ZAdd(ctx, q.leasesKey(), redis.Z{Score: expiry, Member: msg.ID}).Err()
	if err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("extend %s: %w", msg.ID, err))
	}
	return nil
}

// ApproximateDepth counts pending plus in-flight messages.
func (q *RedisQueue) ApproximateDepth(ctx context.Context) (int64, error) {
	pipe := q.client.Pipeline()
	pendingCmd := pipe.LLen(ctx, q.pendingKey())
	inflightCmd := pipe.LLen(ctx, q.inflightKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errno.Classify(errno.ErrTransientInfra, fmt.Errorf("depth: %w", err))
	}
	return pendingCmd.Val() + inflightCmd.Val(), nil
}

// reclaimExpired requeues in-flight messages whose lease lapsed and adopts
// a lease for orphaned inflight entries (claimed by a process that died
// between the move and the lease registration). Best-effort: failures are
// logged and the poll proceeds.
func (q *RedisQueue) reclaimExpired(ctx context.Context) {
	now := time.Now().Unix()
	expired, err := q.client.ZRangeByScore(ctx, q.leasesKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		logger.Warn("lease sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, id := range expired {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.leasesKey(), id)
		pipe.LRem(ctx, q.inflightKey(), 0, id)
		pipe.LPush(ctx, q.pendingKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("lease reclaim failed", map[string]interface{}{
				"message_id": id,
				"error":      err.Error(),
			})
			continue
		}
		logger.Info("message lease expired, requeued", map[string]interface{}{"message_id": id})
	}

	inflight, err := q.client.LRange(ctx, q.inflightKey(), 0, -1).Result()
	if err != nil {
		return
	}
	for _, id := range inflight {
		if err := q.client.ZScore(ctx, q.leasesKey(), id).Err(); errors.Is(err, redis.Nil) {
			// No lease on record: grant one now so the message redelivers
			// after at most one visibility period instead of never.
			expiry := float64(time.Now().Add(q.visibility).Unix())
			_ = q.client.ZAdd(ctx, q.leasesKey(), redis.Z{Score: expiry, Member: id}).Err()
		}
	}
}

func (q *RedisQueue) dropMessage(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.inflightKey(), 0, id)
	pipe.ZRem(ctx, q.leasesKey(), id)
	pipe.Del(ctx, q.msgKey(id))
	_, err := pipe.Exec(ctx)
	return err
}
