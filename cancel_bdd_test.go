package asqlite_test

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/VsevolodSauta/asqlite"
)

var _ = Describe("Task Cancellation", func() {
	var (
		engine *asqlite.Engine
		db     *asqlite.Conn
	)

	poll := func(cond func() bool) {
		deadline := time.Now().Add(5 * time.Second)
		for !cond() {
			Expect(time.Now().Before(deadline)).To(BeTrue(), "timed out polling")
			engine.Poll(10 * time.Millisecond)
		}
	}

	exec := func(sql string, params asqlite.Row) {
		done := false
		db.Exec(sql, params, func(res asqlite.Result) {
			Expect(res.Err).NotTo(HaveOccurred())
			done = true
		})
		poll(func() bool { return done })
	}

	count := func(table string) int64 {
		var n int64
		done := false
		db.Fetch("SELECT COUNT(*) FROM "+table, nil, func(res asqlite.Result) {
			Expect(res.Err).NotTo(HaveOccurred())
			n = res.Rows[0][0].Int64()
			done = true
		})
		poll(func() bool { return done })
		return n
	}

	// busyBatch parks a large insert in front of the queue so that the
	// next submission is guaranteed to still be waiting when canceled.
	busyBatch := func() {
		rows := make(asqlite.Rows, 0, 5000)
		for i := 0; i < 5000; i++ {
			rows = append(rows, asqlite.Row{asqlite.Text(fmt.Sprintf("filler-%d", i))})
		}
		db.BatchInsert("INSERT INTO filler (v) VALUES (?1)", rows,
			func(res asqlite.Result) {
				Expect(res.Err).NotTo(HaveOccurred())
			})
	}

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine = asqlite.New(nil, logger)

		db = nil
		engine.Open(":memory:", func(res asqlite.Result) {
			Expect(res.Err).NotTo(HaveOccurred())
			db = res.Conn
		})
		poll(func() bool { return db != nil })

		exec("CREATE TABLE filler (v TEXT)", nil)
		exec("CREATE TABLE marker (v TEXT)", nil)
	})

	AfterEach(func() {
		engine.Close()
	})

	Describe("Cancelling a waiting task", func() {
		Context("when the worker is busy with an earlier request", func() {
			It("should resolve with a cancellation error and leave no side effect", func() {
				// Given: A queue with a long-running batch ahead of the marker insert
				busyBatch()
				resolved := false
				var taskErr error
				task := db.Exec("INSERT INTO marker VALUES ('never')", nil,
					func(res asqlite.Result) {
						taskErr = res.Err
						resolved = true
					})

				// When: The marker task is canceled before the worker reaches it
				Expect(task.Cancel()).To(BeTrue())

				// Then: The task resolves exactly once with a cancellation error
				poll(func() bool { return resolved })
				var e *asqlite.Error
				Expect(errors.As(taskErr, &e)).To(BeTrue())
				Expect(e.Code).To(Equal(asqlite.ErrTaskCanceled))

				// Then: The canceled statement never executed
				Expect(count("marker")).To(BeZero())
			})

			It("should report a lost race for a second cancel", func() {
				busyBatch()
				resolved := false
				task := db.Exec("INSERT INTO marker VALUES ('never')", nil,
					func(res asqlite.Result) { resolved = true })

				Expect(task.Cancel()).To(BeTrue())
				Expect(task.Cancel()).To(BeFalse())
				poll(func() bool { return resolved })
			})
		})
	})

	Describe("Cancelling a finished task", func() {
		Context("when the operation already ran", func() {
			It("should be a no-op that reports false", func() {
				// Given: A completed insert
				resolved := false
				task := db.Exec("INSERT INTO marker VALUES ('kept')", nil,
					func(res asqlite.Result) {
						Expect(res.Err).NotTo(HaveOccurred())
						resolved = true
					})
				poll(func() bool { return resolved })

				// When: The caller cancels after completion
				// Then: Cancellation reports a lost race and the row stays
				Expect(task.Cancel()).To(BeFalse())
				Expect(count("marker")).To(Equal(int64(1)))
			})
		})
	})

	Describe("Resolution", func() {
		It("should run the completion function exactly once", func() {
			busyBatch()
			calls := 0
			task := db.Exec("INSERT INTO marker VALUES ('once')", nil,
				func(res asqlite.Result) { calls++ })
			task.Cancel()

			poll(func() bool { return calls > 0 })
			engine.Poll(50 * time.Millisecond)
			Expect(calls).To(Equal(1))
		})
	})
})
