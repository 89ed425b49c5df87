package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// NullQueue is the transparent fallback used when the broker is
// disabled or unreachable at startup. Submissions return synthetic ids
// and are logged, not persisted: availability of the calling path is
// deliberately prioritized over durability of the job.
type NullQueue struct {
	closeOnce sync.Once
}

func NewNullQueue() *NullQueue {
	return &NullQueue{}
}

func (q *NullQueue) Submit(ctx context.Context, kind Kind, payload interface{}, opts Options) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	id := ulid.Make().String()
	log.Printf("Queue: broker disabled, %s job %s accepted but not queued (%d payload bytes)",
		kind, id, len(data))
	return id, nil
}

func (q *NullQueue) Status(ctx context.Context, jobID string) (*Status, error) {
	return &Status{State: StateUnknown}, nil
}

func (q *NullQueue) Metrics(ctx context.Context) (*Metrics, error) {
	return &Metrics{}, nil
}

// Healthy always reports true: there is no broker to be unhealthy.
func (q *NullQueue) Healthy(ctx context.Context) bool {
	return true
}

func (q *NullQueue) Shutdown() error {
	q.closeOnce.Do(func() {})
	return nil
}

// Dequeue waits out the timeout and reports no work.
func (q *NullQueue) Dequeue(ctx context.Context, kind Kind, timeout time.Duration) (*Job, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
	}
	return nil, nil
}

func (q *NullQueue) Progress(ctx context.Context, jobID string, progress int) error {
	return nil
}

func (q *NullQueue) Complete(ctx context.Context, job *Job, result interface{}) error {
	return nil
}

func (q *NullQueue) Fail(ctx context.Context, job *Job, errMsg string) error {
	return nil
}

func (q *NullQueue) PromoteDelayed(ctx context.Context) error {
	return nil
}

func (q *NullQueue) RequeueStalled(ctx context.Context) error {
	return nil
}
