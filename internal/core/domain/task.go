package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeReconcileIndex reconciles one index against its collection
	TaskTypeReconcileIndex TaskType = "reconcile_index"
	// TaskTypeReconcileAll reconciles every registered index
	TaskTypeReconcileAll TaskType = "reconcile_all"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers.
// Payloads never carry vector store credentials; workers use the configured default connection.
type Task struct {
	ID string `json:"id"`

	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For reconcile_index: {"index_name": "handbook"}
	// For reconcile_all: {} (empty)
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for retries with backoff)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.NewString(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewReconcileIndexTask creates a task to reconcile a single index
func NewReconcileIndexTask(indexName string) *Task {
	return NewTask(TaskTypeReconcileIndex, map[string]string{
		"index_name": indexName,
	})
}

// NewReconcileAllTask creates a task to reconcile every index
func NewReconcileAllTask() *Task {
	return NewTask(TaskTypeReconcileAll, nil)
}

// IndexName extracts the index_name from the payload (for reconcile_index tasks)
func (t *Task) IndexName() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["index_name"]
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// 1s, 2s, 4s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}

// Fail applies a processing failure: retry with backoff while attempts remain, otherwise fail
func (t *Task) Fail(reason string) {
	if t.CanRetry() {
		t.Retry(reason)
		return
	}
	t.MarkFailed(reason)
}

// ScheduledTask represents a recurring task configuration
type ScheduledTask struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     TaskType      `json:"type"`
	Interval time.Duration `json:"interval"`
	Enabled  bool          `json:"enabled"`

	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   time.Time  `json:"next_run"`
	LastError string     `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Interval: interval,
		Enabled:  interval > 0,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun records a trigger and calculates the next run time
func (s *ScheduledTask) UpdateNextRun(lastError string) {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
	s.LastError = lastError
}

// DefaultSchedules returns the recurring tasks for a reconcile interval.
// A zero interval yields a disabled schedule.
func DefaultSchedules(reconcileInterval time.Duration) []*ScheduledTask {
	return []*ScheduledTask{
		NewScheduledTask("reconcile-all", "Registry Reconciliation", TaskTypeReconcileAll, reconcileInterval),
	}
}
