package asqlite

// requestOp selects the operation a request asks the worker to perform.
type requestOp int

const (
	opOpen requestOp = iota
	opExec
	opFetch
	opBatchInsert
	opBeginTx
	opCommit
	opRollback
	opBeginBackup
	opBackupStep
	opCloseConn
	opQuit
)

// request travels from the bridge to the worker. Which fields are populated
// depends on op; ctx is nil only for opCloseConn and opQuit, the two
// fire-and-forget operations.
type request struct {
	op        requestOp
	ctx       *taskContext
	connID    int
	sql       string
	path      string
	params    Row
	rows      Rows
	tx        *txState
	backupReq backupRequest
	backup    *backupState
}

// responseKind tags the result a response delivers.
type responseKind int

const (
	respOpen responseKind = iota
	respExec
	respFetch
	respTxStarted
	respTxCommitted
	respTxRolledBack
	respBackup
	respCanceled
)

// response travels from the worker back to the bridge and resolves the task
// identified by ctx. A respBackup with a live, unfinished state makes the
// bridge enqueue the next step instead of resolving.
type response struct {
	kind     responseKind
	ctx      *taskContext
	err      *Error
	connID   int
	path     string
	affected int64
	rows     Rows
	columns  Columns
	backup   *backupState
}
