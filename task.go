package asqlite

import (
	"sync"
	"sync/atomic"
)

// Task lifecycle states. Transitions go Waiting -> Canceled (caller wins the
// race) or Waiting -> Done (worker wins); both are terminal.
const (
	taskStateWaiting int32 = iota
	taskStateCanceled
	taskStateDone
)

// taskContext is the shared cancellation token for one submitted operation.
// The caller and the worker race on state with compare-and-swap; whoever
// moves it out of Waiting first decides the task's fate.
type taskContext struct {
	id    int
	state atomic.Int32
}

// cancel tries to move the task from Waiting to Canceled. It reports whether
// this call won the race.
func (c *taskContext) cancel() bool {
	return c.state.CompareAndSwap(taskStateWaiting, taskStateCanceled)
}

// isCanceled reports whether the task was canceled before dispatch.
func (c *taskContext) isCanceled() bool {
	return c.state.Load() == taskStateCanceled
}

// markDone moves the task from Waiting to Done. A lost race means the task
// was canceled in the meantime; the operation's effects already happened
// either way, only result delivery changes.
func (c *taskContext) markDone() bool {
	return c.state.CompareAndSwap(taskStateWaiting, taskStateDone)
}

// Task is the caller-side handle for one submitted operation. Its completion
// function runs during Engine.Poll, exactly once.
type Task struct {
	ctx *taskContext
	fn  CompletionFunc
}

// Cancel requests cancellation. It returns true if the operation had not yet
// started on the worker and will now resolve with a cancellation error, and
// false if the operation already ran (or the task was canceled before).
// Canceling never blocks and never interrupts a running statement.
func (t *Task) Cancel() bool {
	return t.ctx.cancel()
}

// taskRegistry owns the pending tasks, keyed by slab id. Tasks leave the
// registry exactly once, when their response arrives.
type taskRegistry struct {
	mu    sync.Mutex
	tasks slab[*Task]
}

// create registers a new task and returns its context and handle.
func (r *taskRegistry) create(fn CompletionFunc) (*taskContext, *Task) {
	ctx := &taskContext{}
	task := &Task{ctx: ctx, fn: fn}
	r.mu.Lock()
	ctx.id = r.tasks.insert(task)
	r.mu.Unlock()
	return ctx, task
}

// take removes and returns the task registered under id.
func (r *taskRegistry) take(id int) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks.remove(id)
}

// pending reports the number of unresolved tasks.
func (r *taskRegistry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks.len()
}
