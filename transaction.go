package asqlite

import "sync/atomic"

// Transaction states. Active is the only state that accepts operations;
// Committed and RolledBack are terminal.
const (
	txActive int32 = iota
	txCommitted
	txRolledBack
)

// txState tracks one transaction's lifecycle. The worker validates and
// advances it; being the sole consumer of the request queue makes the
// check-then-store below race-free.
type txState struct {
	v atomic.Int32
}

func (s *txState) isActive() bool { return s.v.Load() == txActive }

func (s *txState) commit()   { s.v.Store(txCommitted) }
func (s *txState) rollback() { s.v.Store(txRolledBack) }

// Tx is the caller-side handle for a transaction running on its own
// dedicated connection. Statements executed through it are isolated from
// the parent connection until Commit. After Commit or Rollback the handle
// and its connection are dead; further use fails.
type Tx struct {
	engine *Engine
	connID int
	state  *txState
}

// Exec runs a statement inside the transaction.
func (tx *Tx) Exec(sql string, params Row, fn CompletionFunc) *Task {
	return tx.engine.submit(request{
		op:     opExec,
		connID: tx.connID,
		sql:    sql,
		params: params,
	}, fn)
}

// Fetch runs a query inside the transaction and delivers its rows.
func (tx *Tx) Fetch(sql string, params Row, fn CompletionFunc) *Task {
	return tx.engine.submit(request{
		op:     opFetch,
		connID: tx.connID,
		sql:    sql,
		params: params,
	}, fn)
}

// Commit commits the transaction and closes its connection. Committing a
// transaction that already ended fails with ErrInvalidTransaction.
func (tx *Tx) Commit(fn CompletionFunc) *Task {
	return tx.engine.submit(request{
		op:     opCommit,
		connID: tx.connID,
		tx:     tx.state,
	}, fn)
}

// Rollback discards the transaction and closes its connection. Rolling back
// a transaction that already ended fails with ErrInvalidTransaction.
func (tx *Tx) Rollback(fn CompletionFunc) *Task {
	return tx.engine.submit(request{
		op:     opRollback,
		connID: tx.connID,
		tx:     tx.state,
	}, fn)
}
