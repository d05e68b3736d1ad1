package asqlite

import "sync"

// Conn is the caller-side handle for one pooled connection. All its methods
// submit work to the worker; none touch the database directly.
type Conn struct {
	engine *Engine
	id     int
	path   string
	once   sync.Once
}

// Path returns the database path the connection was opened on.
func (c *Conn) Path() string { return c.path }

// Exec runs a statement with optional positional parameters. On success the
// result carries the affected row count.
func (c *Conn) Exec(sql string, params Row, fn CompletionFunc) *Task {
	return c.engine.submit(request{
		op:     opExec,
		connID: c.id,
		sql:    sql,
		params: params,
	}, fn)
}

// Fetch runs a query and delivers all its rows and column names at once.
func (c *Conn) Fetch(sql string, params Row, fn CompletionFunc) *Task {
	return c.engine.submit(request{
		op:     opFetch,
		connID: c.id,
		sql:    sql,
		params: params,
	}, fn)
}

// BatchInsert prepares sql once and executes it for every parameter row,
// all inside one transaction. On success the result carries the total
// affected row count; on any failure no row is applied.
func (c *Conn) BatchInsert(sql string, rows Rows, fn CompletionFunc) *Task {
	return c.engine.submit(request{
		op:     opBatchInsert,
		connID: c.id,
		sql:    sql,
		rows:   rows,
	}, fn)
}

// Transaction starts a transaction on a dedicated connection to the same
// database. On success the result carries a *Tx. An in-memory database
// cannot be shared across connections, so transactions require a
// file-backed database.
func (c *Conn) Transaction(fn CompletionFunc) *Task {
	return c.engine.submit(request{op: opBeginTx, path: c.path}, fn)
}

// Backup starts an incremental online backup of this connection's database
// into the file at dst, copying stepPages pages at a time (a non-positive
// value uses the configured default). After every step, progress (if not
// nil) receives the source page count and the pages still to copy. The task
// resolves when the copy finishes or fails.
func (c *Conn) Backup(dst string, stepPages int, progress ProgressFunc, fn CompletionFunc) *Task {
	return c.engine.submit(request{
		op: opBeginBackup,
		backupReq: backupRequest{
			src:       c.path,
			dst:       dst,
			stepPages: stepPages,
			progress:  progress,
		},
	}, fn)
}

// Close releases the connection. It is fire-and-forget and idempotent;
// operations already queued on this connection still run first.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.engine.send(request{op: opCloseConn, connID: c.id})
	})
}
