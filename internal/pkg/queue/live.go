package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"
)

const (
	keyPrefix      = "jobs:"
	terminalTTL    = 24 * time.Hour // broker-side purge of finished records
	promoteBatch   = 100
	defaultTimeout = 5 * time.Second
)

// LiveQueue is the redis-backed broker. Waiting jobs live in one list
// per kind and priority, job records in a hash per id, retries in a
// delayed zset scored by ready-time, and running jobs in an active zset
// scored by stall deadline.
type LiveQueue struct {
	client          *redis.Client
	defaultAttempts int
	defaultBackoff  time.Duration
	stallTimeout    time.Duration
	closeOnce       sync.Once
}

func NewLiveQueue(client *redis.Client, defaultAttempts, defaultBackoffMS, stallTimeoutSeconds int) *LiveQueue {
	if defaultAttempts <= 0 {
		defaultAttempts = 3
	}
	if defaultBackoffMS <= 0 {
		defaultBackoffMS = 5000
	}
	if stallTimeoutSeconds <= 0 {
		stallTimeoutSeconds = 600
	}
	return &LiveQueue{
		client:          client,
		defaultAttempts: defaultAttempts,
		defaultBackoff:  time.Duration(defaultBackoffMS) * time.Millisecond,
		stallTimeout:    time.Duration(stallTimeoutSeconds) * time.Second,
	}
}

func waitingKey(kind Kind, priority Priority) string {
	return fmt.Sprintf("%swaiting:%s:%s", keyPrefix, kind, priority)
}

func jobKey(id string) string {
	return keyPrefix + "job:" + id
}

func delayedKey(kind Kind) string {
	return fmt.Sprintf("%sdelayed:%s", keyPrefix, kind)
}

func activeKey(kind Kind) string {
	return fmt.Sprintf("%sactive:%s", keyPrefix, kind)
}

func normalizePriority(p Priority) Priority {
	switch p {
	case PriorityLow, PriorityHigh:
		return p
	default:
		return PriorityNormal
	}
}

// Submit queues the job durably. If the broker errors, the job is
// dropped loudly and a synthetic id is returned so the calling request
// path never fails on broker unavailability.
func (q *LiveQueue) Submit(ctx context.Context, kind Kind, payload interface{}, opts Options) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	id := ulid.Make().String()
	priority := normalizePriority(opts.Priority)
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = q.defaultAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = q.defaultBackoff
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), map[string]interface{}{
		"kind":             string(kind),
		"payload":          string(data),
		"priority":         string(priority),
		"state":            StateWaiting,
		"progress":         0,
		"attempts_made":    0,
		"attempts_allowed": attempts,
		"backoff_ms":       backoff.Milliseconds(),
		"created_at":       time.Now().UnixMilli(),
	})
	pipe.LPush(ctx, waitingKey(kind, priority), id)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Queue: broker unavailable, dropping %s job %s: %v", kind, id, err)
		return id, nil
	}

	return id, nil
}

// Status resolves a job record. Unknown ids (expired, or broker
// unreachable) report state "unknown" rather than an error.
func (q *LiveQueue) Status(ctx context.Context, jobID string) (*Status, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil || len(fields) == 0 {
		return &Status{State: StateUnknown}, nil
	}

	progress, _ := strconv.Atoi(fields["progress"])
	status := &Status{
		State:    fields["state"],
		Progress: progress,
		Error:    fields["error"],
	}
	if raw := fields["result"]; raw != "" {
		status.Result = json.RawMessage(raw)
	}
	return status, nil
}

// Metrics returns the broker counters, all zero when redis is down.
func (q *LiveQueue) Metrics(ctx context.Context) (*Metrics, error) {
	m := &Metrics{}
	for _, kind := range Kinds {
		for _, p := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
			n, err := q.client.LLen(ctx, waitingKey(kind, p)).Result()
			if err != nil {
				return &Metrics{}, nil
			}
			m.Waiting += n
		}
		if n, err := q.client.ZCard(ctx, activeKey(kind)).Result(); err == nil {
			m.Active += n
		}
		if n, err := q.client.ZCard(ctx, delayedKey(kind)).Result(); err == nil {
			m.Delayed += n
		}
	}
	m.Completed = q.counter(ctx, keyPrefix+"completed")
	m.Failed = q.counter(ctx, keyPrefix+"failed")
	m.Total = m.Waiting + m.Active + m.Completed + m.Failed + m.Delayed + m.Paused
	return m, nil
}

func (q *LiveQueue) counter(ctx context.Context, key string) int64 {
	n, err := q.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return n
}

// Healthy performs a single readiness probe, no retry.
func (q *LiveQueue) Healthy(ctx context.Context) bool {
	return q.client.Ping(ctx).Err() == nil
}

// Shutdown is idempotent and safe even if the broker was never reachable.
func (q *LiveQueue) Shutdown() error {
	var err error
	q.closeOnce.Do(func() {
		err = q.client.Close()
	})
	return err
}

// Dequeue blocks up to timeout for the next job of the given kind,
// scanning priorities high to low. Returns (nil, nil) on timeout.
func (q *LiveQueue) Dequeue(ctx context.Context, kind Kind, timeout time.Duration) (*Job, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	result, err := q.client.BRPop(ctx, timeout,
		waitingKey(kind, PriorityHigh),
		waitingKey(kind, PriorityNormal),
		waitingKey(kind, PriorityLow),
	).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	id := result[1]
	fields, err := q.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		// Record expired between push and pop; skip it
		return nil, nil
	}

	made, err := q.client.HIncrBy(ctx, jobKey(id), "attempts_made", 1).Result()
	if err != nil {
		return nil, err
	}
	allowed, _ := strconv.Atoi(fields["attempts_allowed"])

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "state", StateActive, "progress", 0, "error", "")
	pipe.ZAdd(ctx, activeKey(kind), &redis.Z{
		Score:  float64(time.Now().Add(q.stallTimeout).UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return &Job{
		ID:              id,
		Kind:            kind,
		Payload:         json.RawMessage(fields["payload"]),
		Priority:        Priority(fields["priority"]),
		AttemptsMade:    int(made),
		AttemptsAllowed: allowed,
	}, nil
}

// Progress records a monotonically non-decreasing progress value for
// the current attempt. Lower values are ignored.
func (q *LiveQueue) Progress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	current, err := q.client.HGet(ctx, jobKey(jobID), "progress").Int()
	if err == nil && progress <= current {
		return nil
	}
	return q.client.HSet(ctx, jobKey(jobID), "progress", progress).Err()
}

// Complete marks the job done and schedules the record for broker-side
// purge after the retention window.
func (q *LiveQueue) Complete(ctx context.Context, job *Job, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		data = []byte("{}")
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), "state", StateCompleted, "progress", 100, "result", string(data))
	pipe.ZRem(ctx, activeKey(job.Kind), job.ID)
	pipe.Incr(ctx, keyPrefix+"completed")
	pipe.Expire(ctx, jobKey(job.ID), terminalTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Fail records the error. With attempts remaining the job re-enters the
// delayed zset with exponential backoff; otherwise it is terminal.
func (q *LiveQueue) Fail(ctx context.Context, job *Job, errMsg string) error {
	if job.AttemptsMade < job.AttemptsAllowed {
		delay := q.retryDelay(ctx, job)
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, jobKey(job.ID), "state", StateWaiting, "error", errMsg)
		pipe.ZRem(ctx, activeKey(job.Kind), job.ID)
		pipe.ZAdd(ctx, delayedKey(job.Kind), &redis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: job.ID,
		})
		_, err := pipe.Exec(ctx)
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), "state", StateFailed, "error", errMsg)
	pipe.ZRem(ctx, activeKey(job.Kind), job.ID)
	pipe.Incr(ctx, keyPrefix+"failed")
	pipe.Expire(ctx, jobKey(job.ID), terminalTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *LiveQueue) retryDelay(ctx context.Context, job *Job) time.Duration {
	backoffMS, err := q.client.HGet(ctx, jobKey(job.ID), "backoff_ms").Int64()
	if err != nil || backoffMS <= 0 {
		backoffMS = q.defaultBackoff.Milliseconds()
	}
	delay := time.Duration(backoffMS) * time.Millisecond
	// Exponential: first retry waits backoff, second 2x, then 4x...
	for i := 1; i < job.AttemptsMade; i++ {
		delay *= 2
	}
	return delay
}

// PromoteDelayed moves jobs whose backoff has elapsed back into their
// waiting list.
func (q *LiveQueue) PromoteDelayed(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	for _, kind := range Kinds {
		ids, err := q.client.ZRangeByScore(ctx, delayedKey(kind), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: promoteBatch,
		}).Result()
		if err != nil {
			return err
		}
		for _, id := range ids {
			if removed, err := q.client.ZRem(ctx, delayedKey(kind), id).Result(); err != nil || removed == 0 {
				continue
			}
			priority, err := q.client.HGet(ctx, jobKey(id), "priority").Result()
			if err != nil {
				continue // record expired, nothing to requeue
			}
			q.client.LPush(ctx, waitingKey(kind, normalizePriority(Priority(priority))), id)
		}
	}
	return nil
}

// RequeueStalled fails jobs whose active deadline passed without
// completion; the normal retry policy then governs redelivery.
func (q *LiveQueue) RequeueStalled(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	for _, kind := range Kinds {
		ids, err := q.client.ZRangeByScore(ctx, activeKey(kind), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: promoteBatch,
		}).Result()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fields, err := q.client.HGetAll(ctx, jobKey(id)).Result()
			if err != nil || len(fields) == 0 {
				q.client.ZRem(ctx, activeKey(kind), id)
				continue
			}
			made, _ := strconv.Atoi(fields["attempts_made"])
			allowed, _ := strconv.Atoi(fields["attempts_allowed"])
			job := &Job{ID: id, Kind: kind, AttemptsMade: made, AttemptsAllowed: allowed}
			log.Printf("Queue: job %s stalled, requeueing (attempt %d/%d)", id, made, allowed)
			if err := q.Fail(ctx, job, "stalled: exceeded max runtime without progress"); err != nil {
				return err
			}
		}
	}
	return nil
}
