package generate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskState is the observable lifecycle of a background task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Finished reports whether the state is terminal.
func (s TaskState) Finished() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// Task is a handle on work running in its own goroutine.
type Task struct {
	id     string
	kind   string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    TaskState
	err      error
	started  time.Time
	finished time.Time
}

// TaskInfo is a point-in-time copy of a task's state.
type TaskInfo struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	State      TaskState `json:"state"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// StartTask runs fn in a new goroutine with a context derived from ctx.
// A panic in fn fails the task instead of crashing the process.
func StartTask(ctx context.Context, kind string, fn func(ctx context.Context) error) *Task {
	runCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		id:     uuid.NewString(),
		kind:   kind,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  TaskPending,
	}

	go func() {
		defer cancel()
		t.setRunning()

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("task panicked",
						zap.String("task_id", t.id),
						zap.String("kind", kind),
						zap.Any("panic", r),
					)
					err = fmt.Errorf("generate: task %s panicked: %v", kind, r)
				}
			}()
			err = fn(runCtx)
		}()
		t.finish(err)
	}()
	return t
}

func (t *Task) setRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TaskRunning
	t.started = time.Now().UTC()
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.finished = time.Now().UTC()
	if err != nil {
		t.state = TaskFailed
	} else {
		t.state = TaskSucceeded
	}
	t.mu.Unlock()
	close(t.done)
}

// ID returns the task's unique id.
func (t *Task) ID() string { return t.id }

// Kind returns the label the task was started with.
func (t *Task) Kind() string { return t.kind }

// State returns the current state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the task's error once it has finished.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done, returning the task's
// error in the first case and ctx's in the second.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks the task to stop. Work observes it at its next context check.
func (t *Task) Cancel() {
	t.cancel()
}

// Info returns a snapshot of the task's state.
func (t *Task) Info() TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := TaskInfo{
		ID:         t.id,
		Kind:       t.kind,
		State:      t.state,
		StartedAt:  t.started,
		FinishedAt: t.finished,
	}
	if t.err != nil {
		info.Error = t.err.Error()
	}
	return info
}
