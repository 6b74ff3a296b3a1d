package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue in process memory.
// Tasks are handed out in FIFO order once their ScheduledFor time has passed.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	order   []string
	signal  chan struct{}
	closed  bool
	pollGap time.Duration
}

// NewQueue creates an empty in-memory queue
func NewQueue() *Queue {
	return &Queue{
		tasks:   make(map[string]*domain.Task),
		signal:  make(chan struct{}, 1),
		pollGap: 100 * time.Millisecond,
	}
}

func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}
	stored := *task
	if _, exists := q.tasks[task.ID]; !exists {
		q.order = append(q.order, task.ID)
	}
	q.tasks[task.ID] = &stored

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)

	for {
		if task := q.claim(); task != nil {
			return task, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		// Wake up periodically so delayed retries become visible
		wait = min(wait, q.pollGap)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// claim marks the first ready task as processing
func (q *Queue) claim() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		task := q.tasks[id]
		if task.IsReady() {
			task.MarkProcessing()
			out := *task
			return &out
		}
	}
	return nil
}

func (q *Queue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	task.MarkCompleted()
	q.drop(taskID)
	return nil
}

func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	task.Fail(reason)
	if task.Status == domain.TaskStatusFailed {
		q.drop(taskID)
	}
	return nil
}

// drop removes a finished task from the dispatch order; its record stays for GetTask
func (q *Queue) drop(taskID string) {
	for i, id := range q.order {
		if id == taskID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	out := *task
	return &out, nil
}

func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &driven.QueueStats{}
	for _, task := range q.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
