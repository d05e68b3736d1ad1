package asqlite

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// worker is the single consumer of the request queue. It owns the connection
// pool and every driver connection in it; no other goroutine ever touches
// the database. Responses go out through the unbounded response queue.
type worker struct {
	cfg    *Config
	logger *slog.Logger
	driver *sqlite3.SQLiteDriver
	pool   slab[*sqlite3.SQLiteConn]
	out    chan<- response
}

// run processes requests in submission order until the quit sentinel or the
// closing of the request queue, then closes every pooled connection.
func (w *worker) run(in <-chan request) {
	defer w.closePool()
	for req := range in {
		if req.op == opQuit {
			return
		}
		w.dispatch(req)
	}
}

// dispatch handles one request: fire-and-forget closes first, then the
// cancellation check at the dispatch boundary, then execution. The task
// context is marked Done after execution, so cancellation only wins while
// the request is still queued.
func (w *worker) dispatch(req request) {
	if req.op == opCloseConn {
		w.closeConn(req.connID)
		return
	}
	if req.ctx.isCanceled() {
		if req.backup != nil {
			if err := req.backup.release(); err != nil {
				w.logger.Error("can't release canceled backup", "error", err)
			}
		}
		w.out <- response{kind: respCanceled, ctx: req.ctx}
		return
	}
	resp := w.execute(req)
	resp.ctx = req.ctx
	req.ctx.markDone()
	w.out <- resp
}

func (w *worker) execute(req request) response {
	switch req.op {
	case opOpen:
		return w.open(req)
	case opExec:
		return w.exec(req)
	case opFetch:
		return w.fetch(req)
	case opBatchInsert:
		return w.batchInsert(req)
	case opBeginTx:
		return w.beginTransaction(req)
	case opCommit:
		return w.commit(req)
	case opRollback:
		return w.rollback(req)
	case opBeginBackup:
		return w.beginBackup(req)
	case opBackupStep:
		return w.backupStep(req)
	}
	return response{err: errInternal("unhandled operation %d", int(req.op))}
}

// openConn opens one driver-level connection with the configured pragmas.
func (w *worker) openConn(path string) (*sqlite3.SQLiteConn, error) {
	dc, err := w.driver.Open(w.cfg.dsn(path))
	if err != nil {
		return nil, err
	}
	sc, ok := dc.(*sqlite3.SQLiteConn)
	if !ok {
		dc.Close()
		return nil, errInternal("driver returned %T", dc)
	}
	return sc, nil
}

func (w *worker) getConn(id int) (*sqlite3.SQLiteConn, *Error) {
	conn, ok := w.pool.get(id)
	if !ok {
		return nil, errInvalidConnection(id)
	}
	return conn, nil
}

func (w *worker) open(req request) response {
	conn, err := w.openConn(req.path)
	if err != nil {
		return response{kind: respOpen, err: asError(err)}
	}
	id := w.pool.insert(conn)
	w.logger.Debug("connection opened", "conn_id", id, "path", req.path)
	return response{kind: respOpen, connID: id, path: req.path}
}

func (w *worker) exec(req request) response {
	conn, werr := w.getConn(req.connID)
	if werr != nil {
		return response{kind: respExec, err: werr}
	}
	res, err := conn.ExecContext(context.Background(), req.sql, namedValues(req.params))
	if err != nil {
		return response{kind: respExec, err: errEngine(err)}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return response{kind: respExec, err: errEngine(err)}
	}
	return response{kind: respExec, affected: affected}
}

func (w *worker) fetch(req request) response {
	conn, werr := w.getConn(req.connID)
	if werr != nil {
		return response{kind: respFetch, err: werr}
	}
	rows, err := conn.QueryContext(context.Background(), req.sql, namedValues(req.params))
	if err != nil {
		return response{kind: respFetch, err: errEngine(err)}
	}
	defer rows.Close()

	columns := Columns(rows.Columns())
	var decls []string
	if dt, ok := rows.(interface{ DeclTypes() []string }); ok {
		decls = dt.DeclTypes()
	}

	var out Rows
	dest := make([]driver.Value, len(columns))
	for {
		err := rows.Next(dest)
		if err == io.EOF {
			break
		}
		if err != nil {
			return response{kind: respFetch, err: errEngine(err)}
		}
		row := make(Row, len(dest))
		for i, dv := range dest {
			decl := ""
			if i < len(decls) {
				decl = decls[i]
			}
			row[i] = valueFromDriver(dv, decl)
		}
		out = append(out, row)
	}
	return response{kind: respFetch, rows: out, columns: columns}
}

// batchInsert prepares the statement once and executes it for every
// parameter row inside one connection-level transaction. Any failing row
// rolls the whole batch back.
func (w *worker) batchInsert(req request) response {
	conn, werr := w.getConn(req.connID)
	if werr != nil {
		return response{kind: respExec, err: werr}
	}
	tx, err := conn.BeginTx(context.Background(), driver.TxOptions{})
	if err != nil {
		return response{kind: respExec, err: errEngine(err)}
	}
	stmt, err := conn.Prepare(req.sql)
	if err != nil {
		tx.Rollback()
		return response{kind: respExec, err: errEngine(err)}
	}

	var affected int64
	for _, row := range req.rows {
		res, err := stmt.(driver.StmtExecContext).ExecContext(context.Background(), namedValues(row))
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return response{kind: respExec, err: errEngine(err)}
		}
		n, err := res.RowsAffected()
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return response{kind: respExec, err: errEngine(err)}
		}
		affected += n
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return response{kind: respExec, err: errEngine(err)}
	}
	return response{kind: respExec, affected: affected}
}

// beginTransaction opens a dedicated connection for the transaction so its
// uncommitted writes stay invisible to the parent connection.
func (w *worker) beginTransaction(req request) response {
	conn, err := w.openConn(req.path)
	if err != nil {
		return response{kind: respTxStarted, err: asError(err)}
	}
	if _, err := conn.ExecContext(context.Background(), "BEGIN TRANSACTION", nil); err != nil {
		conn.Close()
		return response{kind: respTxStarted, err: errEngine(err)}
	}
	id := w.pool.insert(conn)
	w.logger.Debug("transaction started", "conn_id", id, "path", req.path)
	return response{kind: respTxStarted, connID: id, path: req.path}
}

func (w *worker) commit(req request) response {
	if !req.tx.isActive() {
		return response{kind: respTxCommitted, err: errInvalidTransaction()}
	}
	conn, werr := w.getConn(req.connID)
	if werr != nil {
		return response{kind: respTxCommitted, err: werr}
	}
	if _, err := conn.ExecContext(context.Background(), "COMMIT", nil); err != nil {
		return response{kind: respTxCommitted, err: errEngine(err)}
	}
	req.tx.commit()
	w.releaseConn(req.connID)
	return response{kind: respTxCommitted, connID: req.connID}
}

func (w *worker) rollback(req request) response {
	if !req.tx.isActive() {
		return response{kind: respTxRolledBack, err: errInvalidTransaction()}
	}
	conn, werr := w.getConn(req.connID)
	if werr != nil {
		return response{kind: respTxRolledBack, err: werr}
	}
	if _, err := conn.ExecContext(context.Background(), "ROLLBACK", nil); err != nil {
		return response{kind: respTxRolledBack, err: errEngine(err)}
	}
	req.tx.rollback()
	w.releaseConn(req.connID)
	return response{kind: respTxRolledBack, connID: req.connID}
}

// beginBackup opens private source and destination connections and
// establishes the copy cursor. The connections belong to the backup state,
// not the pool, until release.
func (w *worker) beginBackup(req request) response {
	src, err := w.openConn(req.backupReq.src)
	if err != nil {
		return response{kind: respBackup, err: asError(err)}
	}
	dst, err := w.openConn(req.backupReq.dst)
	if err != nil {
		src.Close()
		return response{kind: respBackup, err: asError(err)}
	}
	bk, err := dst.Backup("main", src, "main")
	if err != nil {
		dst.Close()
		src.Close()
		return response{kind: respBackup, err: errEngine(err)}
	}
	state := &backupState{
		bk:        bk,
		src:       src,
		dst:       dst,
		stepPages: w.cfg.stepPages(req.backupReq.stepPages),
		progress:  req.backupReq.progress,
	}
	w.logger.Debug("backup started", "src", req.backupReq.src, "dst", req.backupReq.dst)
	return response{kind: respBackup, backup: state}
}

func (w *worker) backupStep(req request) response {
	b := req.backup
	if err := b.step(); err != nil {
		if relErr := b.release(); relErr != nil {
			w.logger.Error("can't release failed backup", "error", relErr)
		}
		return response{kind: respBackup, err: errEngine(err)}
	}
	return response{kind: respBackup, backup: b}
}

// closeConn is fire-and-forget: an unknown id is a logged diagnostic, not
// a failure anyone could observe.
func (w *worker) closeConn(id int) {
	conn, ok := w.pool.remove(id)
	if !ok {
		w.logger.Error("can't close connection, invalid id", "conn_id", id)
		return
	}
	if err := conn.Close(); err != nil {
		w.logger.Error("can't close connection", "conn_id", id, "error", err)
	}
}

func (w *worker) releaseConn(id int) {
	conn, ok := w.pool.remove(id)
	if !ok {
		return
	}
	if err := conn.Close(); err != nil {
		w.logger.Error("can't close connection", "conn_id", id, "error", err)
	}
}

// closePool closes every remaining connection at shutdown. SQLite rolls
// back any still-open transaction when its connection closes.
func (w *worker) closePool() {
	for _, conn := range w.pool.drain() {
		if err := conn.Close(); err != nil {
			w.logger.Error("can't close pooled connection", "error", err)
		}
	}
}
