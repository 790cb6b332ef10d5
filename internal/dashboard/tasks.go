package dashboard

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Purpose names what an outstanding request is for. At most one task runs
// per purpose.
type Purpose string

const (
	PurposeCatalog  Purpose = "catalog"
	PurposeDetail   Purpose = "detail"
	PurposeAccept   Purpose = "accept"
	PurposeReject   Purpose = "reject"
	PurposeDownload Purpose = "download"
)

// Task is one cancellable request. ID is used to correlate log lines.
type Task struct {
	ID      ulid.ULID
	Purpose Purpose

	cancel context.CancelFunc
}

// Tasks tracks the latest task per purpose. A task that has been replaced
// or cancelled is no longer current and its result must be dropped.
type Tasks struct {
	mu     sync.Mutex
	active map[Purpose]*Task
}

func NewTasks() *Tasks {
	return &Tasks{active: make(map[Purpose]*Task)}
}

// Start cancels any task already running for p and registers a new one.
func (t *Tasks) Start(parent context.Context, p Purpose) (*Task, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	task := &Task{ID: ulid.Make(), Purpose: p, cancel: cancel}

	t.mu.Lock()
	if prev := t.active[p]; prev != nil {
		prev.cancel()
	}
	t.active[p] = task
	t.mu.Unlock()
	return task, ctx
}

// TryStart registers a new task only when none is running for p.
func (t *Tasks) TryStart(parent context.Context, p Purpose) (*Task, context.Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[p] != nil {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	task := &Task{ID: ulid.Make(), Purpose: p, cancel: cancel}
	t.active[p] = task
	return task, ctx, true
}

// Current reports whether task is still the latest one for its purpose.
func (t *Tasks) Current(task *Task) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[task.Purpose] == task
}

// Done releases task. It is safe to call after the task was superseded.
func (t *Tasks) Done(task *Task) {
	task.cancel()
	t.mu.Lock()
	if t.active[task.Purpose] == task {
		delete(t.active, task.Purpose)
	}
	t.mu.Unlock()
}

func (t *Tasks) Running(p Purpose) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[p] != nil
}

// Cancel stops the task running for p, if any.
func (t *Tasks) Cancel(p Purpose) {
	t.mu.Lock()
	if task := t.active[p]; task != nil {
		task.cancel()
		delete(t.active, p)
	}
	t.mu.Unlock()
}

// CancelAll stops every outstanding task.
func (t *Tasks) CancelAll() {
	t.mu.Lock()
	for p, task := range t.active {
		task.cancel()
		delete(t.active, p)
	}
	t.mu.Unlock()
}
