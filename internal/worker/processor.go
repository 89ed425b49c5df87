package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/pubsub"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
)

// Handler executes one job attempt. report forwards a 0-100 progress
// value; it is fire-and-forget and must never fail the job. The
// returned value is stored as the job result on success.
type Handler func(ctx context.Context, job *queue.Job, report func(progress int)) (interface{}, error)

type registration struct {
	kind        queue.Kind
	concurrency int
	handler     Handler
}

// Processor runs N blocking dequeue-execute loops per registered kind.
// Retry and backoff on failure belong to the broker, not to handlers.
type Processor struct {
	q             queue.Queue
	publisher     *pubsub.Publisher // optional
	registrations []registration

	popTimeout     time.Duration
	healthInterval time.Duration
	backlogWarn    int64
}

func NewProcessor(q queue.Queue, publisher *pubsub.Publisher, healthIntervalSeconds int, backlogWarnThreshold int64) *Processor {
	if healthIntervalSeconds <= 0 {
		healthIntervalSeconds = 60
	}
	if backlogWarnThreshold <= 0 {
		backlogWarnThreshold = 100
	}
	return &Processor{
		q:              q,
		publisher:      publisher,
		popTimeout:     5 * time.Second,
		healthInterval: time.Duration(healthIntervalSeconds) * time.Second,
		backlogWarn:    backlogWarnThreshold,
	}
}

// Register binds a handler and its concurrency limit to a job kind.
func (p *Processor) Register(kind queue.Kind, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	p.registrations = append(p.registrations, registration{
		kind:        kind,
		concurrency: concurrency,
		handler:     handler,
	})
}

// Start blocks until ctx is cancelled and all workers have drained.
func (p *Processor) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for _, reg := range p.registrations {
		log.Printf("Processor: starting %d workers for %s", reg.concurrency, reg.kind)
		for i := 0; i < reg.concurrency; i++ {
			wg.Add(1)
			go func(reg registration, workerID int) {
				defer wg.Done()
				p.runWorker(ctx, reg, workerID)
			}(reg, i)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runMaintenance(ctx)
	}()

	wg.Wait()
}

func (p *Processor) runWorker(ctx context.Context, reg registration, workerID int) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %s/%d shutting down", reg.kind, workerID)
			return
		default:
			job, err := p.q.Dequeue(ctx, reg.kind, p.popTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Worker %s/%d: failed to pop job: %v", reg.kind, workerID, err)
				time.Sleep(time.Second)
				continue
			}
			if job == nil {
				continue // timeout, keep waiting
			}

			log.Printf("Worker %s/%d: processing job %s (attempt %d/%d)",
				reg.kind, workerID, job.ID, job.AttemptsMade, job.AttemptsAllowed)
			p.execute(ctx, reg.handler, job)
		}
	}
}

func (p *Processor) execute(ctx context.Context, handler Handler, job *queue.Job) {
	report := func(progress int) {
		// Fire-and-forget: a progress failure never aborts the job
		if err := p.q.Progress(ctx, job.ID, progress); err != nil {
			log.Printf("Worker: failed to report progress for job %s: %v", job.ID, err)
		}
		p.broadcast(ctx, job, queue.StateActive, progress, "")
	}

	result, err := p.runHandler(ctx, handler, job, report)
	if err != nil {
		log.Printf("Worker: job %s failed: %v", job.ID, err)
		if ferr := p.q.Fail(ctx, job, err.Error()); ferr != nil {
			log.Printf("Worker: failed to record failure for job %s: %v", job.ID, ferr)
		}
		p.broadcast(ctx, job, queue.StateFailed, 0, err.Error())
		return
	}

	if cerr := p.q.Complete(ctx, job, result); cerr != nil {
		log.Printf("Worker: failed to record completion for job %s: %v", job.ID, cerr)
		return
	}
	p.broadcast(ctx, job, queue.StateCompleted, 100, "")
}

// runHandler isolates handler panics so one bad job cannot take a
// worker loop down with it.
func (p *Processor) runHandler(ctx context.Context, handler Handler, job *queue.Job, report func(int)) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job, report)
}

func (p *Processor) broadcast(ctx context.Context, job *queue.Job, state string, progress int, errMsg string) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		JobID:    job.ID,
		Kind:     string(job.Kind),
		State:    state,
		Progress: progress,
		Error:    errMsg,
	}); err != nil {
		log.Printf("Worker: failed to publish progress for job %s: %v", job.ID, err)
	}
}

// runMaintenance promotes due retries, requeues stalled jobs, and logs
// queue health on a fixed interval.
func (p *Processor) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(p.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.q.PromoteDelayed(ctx); err != nil {
				log.Printf("Processor: failed to promote delayed jobs: %v", err)
			}
			if err := p.q.RequeueStalled(ctx); err != nil {
				log.Printf("Processor: failed to requeue stalled jobs: %v", err)
			}
			p.logHealth(ctx)
		}
	}
}

func (p *Processor) logHealth(ctx context.Context) {
	m, err := p.q.Metrics(ctx)
	if err != nil {
		log.Printf("Processor: failed to read queue metrics: %v", err)
		return
	}
	log.Printf("Queue health: waiting=%d active=%d delayed=%d completed=%d failed=%d",
		m.Waiting, m.Active, m.Delayed, m.Completed, m.Failed)
	if backlog := m.Waiting + m.Delayed; backlog > p.backlogWarn {
		log.Printf("Queue health WARNING: backlog %d exceeds threshold %d", backlog, p.backlogWarn)
	}
}
