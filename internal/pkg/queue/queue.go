package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Kind identifies the handler a job is dispatched to.
type Kind string

const (
	KindMemory  Kind = "memory_processing"
	KindPodcast Kind = "podcast_generation"
)

// Kinds lists every kind the broker tracks.
var Kinds = []Kind{KindMemory, KindPodcast}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Job states as reported by Status.
const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateUnknown   = "unknown"
)

// Options control scheduling at submission time only. Zero values fall
// back to the queue defaults.
type Options struct {
	Priority Priority
	Attempts int
	Backoff  time.Duration
}

// Job is one dequeued unit of work.
type Job struct {
	ID              string
	Kind            Kind
	Payload         json.RawMessage
	Priority        Priority
	AttemptsMade    int
	AttemptsAllowed int
}

// Status is the caller-visible view of a submitted job.
type Status struct {
	State    string          `json:"state"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Metrics are the broker counters polled by operational tooling.
type Metrics struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
	Paused    int64 `json:"paused"`
	Total     int64 `json:"total"`
}

// Queue is the single capability interface every component talks to.
// Two implementations exist: LiveQueue (redis-backed) and NullQueue
// (in-memory no-op fallback), selected once at startup. Callers never
// branch on broker availability.
type Queue interface {
	// Producer side
	Submit(ctx context.Context, kind Kind, payload interface{}, opts Options) (string, error)
	Status(ctx context.Context, jobID string) (*Status, error)
	Metrics(ctx context.Context) (*Metrics, error)
	Healthy(ctx context.Context) bool
	Shutdown() error

	// Worker side
	Dequeue(ctx context.Context, kind Kind, timeout time.Duration) (*Job, error)
	Progress(ctx context.Context, jobID string, progress int) error
	Complete(ctx context.Context, job *Job, result interface{}) error
	Fail(ctx context.Context, job *Job, errMsg string) error
	PromoteDelayed(ctx context.Context) error
	RequeueStalled(ctx context.Context) error
}
