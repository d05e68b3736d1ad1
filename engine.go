package asqlite

import (
	"log/slog"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Result is what a completed task delivers to its completion function.
// Err is set on failure; exactly one of the remaining fields carries the
// payload, depending on the operation.
type Result struct {
	Err      error
	Conn     *Conn
	Tx       *Tx
	Affected int64
	Rows     Rows
	Columns  Columns
}

// CompletionFunc receives a task's result. It runs on the goroutine calling
// Engine.Poll, never on the worker.
type CompletionFunc func(Result)

// Engine is the front end of the dispatch machinery. It owns the task
// registry and the two unbounded queues connecting it to the single worker
// goroutine. Submissions are safe from any goroutine; results are delivered
// only through Poll.
type Engine struct {
	cfg    *Config
	logger *slog.Logger
	tasks  taskRegistry

	reqIn   chan<- request
	respOut <-chan response
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// New starts the engine and its worker goroutine. A nil cfg loads the
// environment configuration; a nil logger falls back to slog.Default.
func New(cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = LoadConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	reqIn, reqOut := unbounded[request]()
	respIn, respOut := unbounded[response]()

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		reqIn:   reqIn,
		respOut: respOut,
		done:    make(chan struct{}),
	}

	w := &worker{
		cfg:    cfg,
		logger: logger,
		driver: &sqlite3.SQLiteDriver{},
		out:    respIn,
	}

	go func() {
		defer close(e.done)
		// Keep the request pump drainable after the worker stops listening.
		defer func() {
			go func() {
				for range reqOut {
				}
			}()
		}()
		defer close(respIn)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("worker panicked", "panic", r)
			}
		}()
		w.run(reqOut)
	}()

	return e
}

// Open asynchronously opens (creating if necessary) the database at path.
// On success the result carries a *Conn.
func (e *Engine) Open(path string, fn CompletionFunc) *Task {
	return e.submit(request{op: opOpen, path: path}, fn)
}

// Poll delivers pending results by running their completion functions on the
// calling goroutine. It returns once no result has arrived for the remainder
// of the timeout window, so an idle engine blocks for at most timeout.
func (e *Engine) Poll(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)
		select {
		case resp, ok := <-e.respOut:
			timer.Stop()
			if !ok {
				return
			}
			e.handle(resp)
		case <-timer.C:
			return
		}
	}
}

// Close stops the worker, closes every pooled connection, and discards any
// results that were never polled. It is idempotent; tasks submitted after
// Close resolve immediately with an internal error.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.reqIn <- request{op: opQuit}
	close(e.reqIn)
	e.mu.Unlock()

	<-e.done
	for resp := range e.respOut {
		if resp.backup != nil {
			if err := resp.backup.release(); err != nil {
				e.logger.Error("can't release backup at shutdown", "error", err)
			}
		}
	}
	return nil
}

// submit registers a task and enqueues its request. FIFO submission order is
// the worker's execution order.
func (e *Engine) submit(req request, fn CompletionFunc) *Task {
	ctx, task := e.tasks.create(fn)
	req.ctx = ctx
	if !e.send(req) {
		e.logger.Error("can't submit task, engine is closed", "task_id", ctx.id)
		ctx.markDone()
		e.resolve(ctx.id, Result{Err: errInternal("engine is closed")})
	}
	return task
}

// send enqueues a request unless the engine is closed.
func (e *Engine) send(req request) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.reqIn <- req
	return true
}

func (e *Engine) handle(resp response) {
	if resp.kind == respBackup {
		e.handleBackup(resp)
		return
	}

	var res Result
	if resp.err != nil {
		e.resolve(resp.ctx.id, Result{Err: resp.err})
		return
	}
	switch resp.kind {
	case respOpen:
		res.Conn = &Conn{engine: e, id: resp.connID, path: resp.path}
	case respExec:
		res.Affected = resp.affected
	case respFetch:
		res.Rows = resp.rows
		res.Columns = resp.columns
	case respTxStarted:
		res.Tx = &Tx{engine: e, connID: resp.connID, state: &txState{}}
	case respTxCommitted, respTxRolledBack:
	case respCanceled:
		res.Err = errTaskCanceled()
	default:
		res.Err = errInternal("unhandled response kind %d", int(resp.kind))
	}
	e.resolve(resp.ctx.id, res)
}

// handleBackup advances a backup: report progress for an executed step, then
// either finish or enqueue the next step. The state machine thus alternates
// between worker (copy) and bridge (progress) until the source is drained.
func (e *Engine) handleBackup(resp response) {
	if resp.err != nil {
		e.resolve(resp.ctx.id, Result{Err: resp.err})
		return
	}
	b := resp.backup
	if b.steps > 0 && b.progress != nil {
		b.progress(b.pageCount, b.remaining)
	}
	if b.done {
		var res Result
		if err := b.release(); err != nil {
			res.Err = errEngine(err)
		}
		e.resolve(resp.ctx.id, res)
		return
	}
	if !e.send(request{op: opBackupStep, ctx: resp.ctx, backup: b}) {
		if err := b.release(); err != nil {
			e.logger.Error("can't release backup at shutdown", "error", err)
		}
		e.resolve(resp.ctx.id, Result{Err: errInternal("engine is closed")})
	}
}

// resolve removes the task and runs its completion function. A response for
// an unknown task id is a logged diagnostic.
func (e *Engine) resolve(id int, res Result) {
	task, ok := e.tasks.take(id)
	if !ok {
		e.logger.Error("can't resolve task, no task registered", "task_id", id)
		return
	}
	if task.fn != nil {
		task.fn(res)
	}
}
