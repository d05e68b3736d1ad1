package asqlite

import (
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ProgressFunc receives backup progress after each executed step:
// the total page count of the source and the pages still to copy.
type ProgressFunc func(pageCount, remaining int)

// backupRequest carries the parameters of a backup submission to the worker.
type backupRequest struct {
	src       string
	dst       string
	stepPages int
	progress  ProgressFunc
}

// backupState is the in-flight backup. The worker creates it, each step
// message carries it back and forth between worker and bridge, and exactly
// one side releases it. It owns two private connections for the duration of
// the copy; they never enter the pool.
type backupState struct {
	bk        *sqlite3.SQLiteBackup
	src       *sqlite3.SQLiteConn
	dst       *sqlite3.SQLiteConn
	stepPages int
	steps     int
	pageCount int
	remaining int
	done      bool
	progress  ProgressFunc
}

// step copies the next stepPages pages and refreshes the progress counters.
func (b *backupState) step() error {
	done, err := b.bk.Step(b.stepPages)
	if err != nil {
		return err
	}
	b.steps++
	b.pageCount = b.bk.PageCount()
	b.remaining = b.bk.Remaining()
	b.done = done
	return nil
}

// release tears the backup down: cursor first, then the destination
// connection, then the source. The destination file is only consistent
// after the cursor finishes.
func (b *backupState) release() error {
	var first error
	if b.bk != nil {
		if err := b.bk.Finish(); err != nil && first == nil {
			first = fmt.Errorf("finish backup: %w", err)
		}
		b.bk = nil
	}
	if b.dst != nil {
		if err := b.dst.Close(); err != nil && first == nil {
			first = fmt.Errorf("close backup destination: %w", err)
		}
		b.dst = nil
	}
	if b.src != nil {
		if err := b.src.Close(); err != nil && first == nil {
			first = fmt.Errorf("close backup source: %w", err)
		}
		b.src = nil
	}
	return first
}
