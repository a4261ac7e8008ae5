package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	readyKey      = "dte:queue:ready"
	delayedKey    = "dte:queue:delayed"
	processingKey = "dte:queue:processing"
	deadlinesKey  = "dte:queue:processing:deadlines"
	deadKey       = "dte:queue:dead"
	lockKeyPrefix = "dte:lock:document:"
)

const defaultVisibilityTimeout = 10 * time.Minute

// RedisQueue is the production queue: a ready list, a delayed sorted set
// scored by ready-time, a processing list for in-flight deliveries and a
// dead-letter list. Delivery is at-least-once; a job sits on the processing
// list until acked, and deliveries whose visibility deadline passes are
// swept back onto the ready list so a crashed worker cannot strand them.
type RedisQueue struct {
	client     *redis.Client
	lockTTL    time.Duration
	visibility time.Duration
	retention  RetentionPolicy
}

func NewRedisQueue(client *redis.Client, lockTTL, visibility time.Duration, retention RetentionPolicy) *RedisQueue {
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}
	return &RedisQueue{
		client:     client,
		lockTTL:    lockTTL,
		visibility: visibility,
		retention:  retention,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, readyKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) EnqueueAfter(ctx context.Context, job *Job, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	readyAt := time.Now().Add(delay)
	err = q.client.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule delayed job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		logger.Warn("Failed to promote delayed jobs", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := q.reclaimExpired(ctx); err != nil {
		logger.Warn("Failed to reclaim expired deliveries", map[string]interface{}{
			"error": err.Error(),
		})
	}

	payload, err := q.client.LMove(ctx, readyKey, processingKey, "RIGHT", "LEFT").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		// A poison entry would wedge the head of the processing list; drop
		// it to the dead list instead.
		q.client.LRem(ctx, processingKey, 1, payload)
		q.client.LPush(ctx, deadKey, payload)
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	job.delivered = []byte(payload)

	deadline := time.Now().Add(q.visibility).UnixMilli()
	if err := q.client.HSet(ctx, deadlinesKey, job.ID, deadline).Err(); err != nil {
		// The sweep adopts deliveries without a deadline, so the job is not
		// lost; it just becomes reclaimable one window later.
		logger.Warn("Failed to record delivery deadline", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
	return &job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	if err := q.removeDelivery(ctx, job); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, job *Job, reason string) error {
	if err := q.removeDelivery(ctx, job); err != nil {
		return fmt.Errorf("failed to remove job from processing: %w", err)
	}
	if !q.retention.KeepFailed {
		return nil
	}

	entry, err := json.Marshal(map[string]interface{}{
		"job":    job,
		"reason": reason,
		"at":     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}
	if err := q.client.LPush(ctx, deadKey, entry).Err(); err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}
	return nil
}

// removeDelivery drops the in-flight entry and its deadline. It removes the
// payload as delivered, not a re-marshal of the (possibly mutated) job.
func (q *RedisQueue) removeDelivery(ctx context.Context, job *Job) error {
	payload := job.delivered
	if payload == nil {
		var err error
		payload, err = json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
	}
	if err := q.client.LRem(ctx, processingKey, 1, payload).Err(); err != nil {
		return err
	}
	return q.client.HDel(ctx, deadlinesKey, job.ID).Err()
}

// AcquireDocumentLock takes the per-document lock with SET NX. The TTL keeps
// a crashed worker from holding a document hostage forever.
func (q *RedisQueue) AcquireDocumentLock(ctx context.Context, documentID uint) (bool, error) {
	key := fmt.Sprintf("%s%d", lockKeyPrefix, documentID)
	ok, err := q.client.SetNX(ctx, key, "locked", q.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire document lock: %w", err)
	}
	return ok, nil
}

func (q *RedisQueue) ReleaseDocumentLock(ctx context.Context, documentID uint) error {
	key := fmt.Sprintf("%s%d", lockKeyPrefix, documentID)
	return q.client.Del(ctx, key).Err()
}

// promoteDue moves delayed jobs whose ready-time has passed onto the ready
// list. Safe to run from every worker; ZRem decides which worker wins a
// given member.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 100,
	}).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // another worker promoted it first
		}
		if err := q.client.LPush(ctx, readyKey, member).Err(); err != nil {
			return err
		}
	}
	return nil
}

// reclaimExpired returns in-flight deliveries whose visibility deadline has
// passed to the ready list. A worker that dies after LMove never acks; this
// sweep is what keeps delivery at-least-once across worker restarts. The
// worker's terminal-state check makes the redelivery safe.
func (q *RedisQueue) reclaimExpired(ctx context.Context) error {
	entries, err := q.client.LRange(ctx, processingKey, 0, 99).Result()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()

	for _, entry := range entries {
		var job Job
		if err := json.Unmarshal([]byte(entry), &job); err != nil {
			continue // Dequeue shunts poison entries to the dead list
		}

		deadline, err := q.client.HGet(ctx, deadlinesKey, job.ID).Int64()
		if err == redis.Nil {
			// Delivered by a worker that died between LMove and the deadline
			// write. Adopt it so the next sweep can reclaim it.
			q.client.HSetNX(ctx, deadlinesKey, job.ID, time.Now().Add(q.visibility).UnixMilli())
			continue
		}
		if err != nil {
			return err
		}
		if deadline > now {
			continue
		}

		removed, err := q.client.LRem(ctx, processingKey, 1, entry).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // acked or reclaimed by another worker first
		}
		q.client.HDel(ctx, deadlinesKey, job.ID)
		if err := q.client.LPush(ctx, readyKey, entry).Err(); err != nil {
			return err
		}
		logger.Warn("Reclaimed stranded in-flight job", map[string]interface{}{
			"job_id": job.ID,
		})
	}
	return nil
}
