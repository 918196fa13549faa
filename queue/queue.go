package queue

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"visa-assessor/metrics"
)

// Task is one background write. Run is retried on error up to the queue's
// retry budget; the final failure is logged and counted, never surfaced to
// the request that enqueued it.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a bounded fire-and-forget executor for persistence side effects.
// Enqueue never blocks the caller: a full queue drops the task.
type Queue struct {
	tasks      chan Task
	workers    int
	maxRetries int
	baseDelay  time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a queue with the given capacity, worker count and per-task
// retry budget.
func New(size, workers, maxRetries int) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		tasks:      make(chan Task, size),
		workers:    workers,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop drains nothing: it cancels in-flight work and waits for workers to
// exit. Pending tasks are abandoned, mirroring the best-effort contract.
func (q *Queue) Stop() {
	q.once.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		close(q.tasks)
		q.wg.Wait()
	})
}

// Enqueue hands a task to the queue. Returns false when the queue is full
// and the task was dropped.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) bool {
	select {
	case q.tasks <- Task{Name: name, Run: run}:
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		return true
	default:
		metrics.QueueDroppedTotal.Inc()
		log.WithField("task", name).Warn("background queue full, dropping task")
		return false
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(q.tasks)))
			q.run(ctx, task)
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	delay := q.baseDelay
	var err error
	for attempt := 0; attempt <= q.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = task.Run(ctx); err == nil {
			return
		}
		log.WithField("task", task.Name).WithField("attempt", attempt+1).
			Warnf("background task failed: %v", err)
	}
	metrics.PersistFailuresTotal.WithLabelValues(task.Name).Inc()
	log.WithField("task", task.Name).Errorf("background task gave up after %d attempts: %v", q.maxRetries+1, err)
}
