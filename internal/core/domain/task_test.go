package domain

import (
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	payload := map[string]string{"key": "value"}

	task := NewTask(TaskTypeReconcileIndex, payload)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeReconcileIndex {
		t.Errorf("expected type %s, got %s", TaskTypeReconcileIndex, task.Type)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if task.ScheduledFor.IsZero() {
		t.Error("expected ScheduledFor to be set")
	}
}

func TestNewTask_UniqueIDs(t *testing.T) {
	a := NewReconcileAllTask()
	b := NewReconcileAllTask()
	if a.ID == b.ID {
		t.Error("expected unique task IDs")
	}
}

func TestNewReconcileIndexTask(t *testing.T) {
	task := NewReconcileIndexTask("handbook")

	if task.Type != TaskTypeReconcileIndex {
		t.Errorf("expected type %s, got %s", TaskTypeReconcileIndex, task.Type)
	}
	if task.IndexName() != "handbook" {
		t.Errorf("expected index name handbook, got %s", task.IndexName())
	}
}

func TestTask_IndexName_NilPayload(t *testing.T) {
	task := NewReconcileAllTask()
	if task.IndexName() != "" {
		t.Errorf("expected empty index name, got %s", task.IndexName())
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewReconcileAllTask()

	if !task.IsReady() {
		t.Error("new task should be ready")
	}

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing {
		t.Errorf("expected processing, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", task.Attempts)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}
	if task.IsReady() {
		t.Error("processing task should not be ready")
	}

	task.MarkCompleted()
	if task.Status != TaskStatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestTask_RetryBackoff(t *testing.T) {
	task := NewReconcileAllTask()
	task.MarkProcessing()

	before := time.Now()
	task.Retry("vector store down")

	if task.Status != TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.Error != "vector store down" {
		t.Errorf("expected error message to be kept, got %q", task.Error)
	}
	// Attempts=1 -> 2s backoff
	if task.ScheduledFor.Before(before.Add(2 * time.Second)) {
		t.Error("expected ScheduledFor to be pushed back by the backoff")
	}
	if task.IsReady() {
		t.Error("task should not be ready during backoff")
	}
}

func TestTask_RetryBackoffCap(t *testing.T) {
	task := NewReconcileAllTask()
	task.Attempts = 20

	task.Retry("again")

	if task.ScheduledFor.After(time.Now().Add(5*time.Minute + time.Second)) {
		t.Error("expected backoff to be capped at 5 minutes")
	}
}

func TestTask_Fail(t *testing.T) {
	task := NewReconcileAllTask()
	task.MaxAttempts = 2

	task.MarkProcessing()
	task.Fail("first")
	if task.Status != TaskStatusPending {
		t.Errorf("expected retry after first failure, got %s", task.Status)
	}

	task.MarkProcessing()
	task.Fail("second")
	if task.Status != TaskStatusFailed {
		t.Errorf("expected failed after max attempts, got %s", task.Status)
	}
	if task.Error != "second" {
		t.Errorf("expected last error, got %q", task.Error)
	}
}

func TestScheduledTask(t *testing.T) {
	st := NewScheduledTask("reconcile-all", "Reconcile", TaskTypeReconcileAll, time.Hour)

	if !st.Enabled {
		t.Error("expected schedule with positive interval to be enabled")
	}
	if st.IsDue() {
		t.Error("new schedule should not be due yet")
	}

	st.NextRun = time.Now().Add(-time.Second)
	if !st.IsDue() {
		t.Error("expected schedule to be due")
	}

	st.UpdateNextRun("boom")
	if st.LastRun == nil {
		t.Error("expected LastRun to be set")
	}
	if st.LastError != "boom" {
		t.Errorf("expected last error boom, got %q", st.LastError)
	}
	if st.IsDue() {
		t.Error("schedule should not be due right after running")
	}
}

func TestDefaultSchedules(t *testing.T) {
	schedules := DefaultSchedules(0)
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	if schedules[0].Enabled {
		t.Error("zero interval should disable the schedule")
	}

	schedules = DefaultSchedules(30 * time.Minute)
	if !schedules[0].Enabled || schedules[0].Type != TaskTypeReconcileAll {
		t.Error("expected enabled reconcile_all schedule")
	}
}
