// Package storage persists locations and forecasts in a local SQLite file.
//
// All access goes through an Engine: one goroutine owns the connection for
// its whole life and runs jobs from a priority queue, lowest priority value
// first and in submission order within a priority. Callers never touch the
// connection; they submit statements and wait on a Ticket, or read rows from
// a Cursor fed by the worker.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"strings"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultResultBuffer = 64

// Engine serializes every read and write to the store through one worker.
type Engine struct {
	path   string
	logger *log.Logger
	buffer int
	hook   func(*job)

	mu     sync.Mutex
	queue  jobQueue
	seq    uint64
	closed bool
	wake   chan struct{}

	done     chan struct{}
	closeErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for failed jobs and lifecycle events.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithResultBuffer sets how many rows the worker may run ahead of a reader.
func WithResultBuffer(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.buffer = n
		}
	}
}

// withJobHook runs fn on the worker right before each job executes.
func withJobHook(fn func(*job)) Option {
	return func(e *Engine) { e.hook = fn }
}

// Open starts the worker for the database at path. When the file does not
// exist yet the schema is created before any submitted job runs.
func Open(path string, opts ...Option) (*Engine, error) {
	e := &Engine{
		path:   path,
		logger: log.Default(),
		buffer: defaultResultBuffer,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	ready := make(chan error, 1)
	go e.run(needsSchema(path), ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return e, nil
}

func needsSchema(path string) bool {
	if path == "" || path == ":memory:" || strings.Contains(path, "mode=memory") {
		return true
	}
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func openConnection(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	// The worker is the only user; one connection keeps pragmas and
	// in-memory databases alive across jobs.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

func closeConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (e *Engine) run(createTables bool, ready chan<- error) {
	defer close(e.done)

	db, err := openConnection(e.path)
	if err != nil {
		ready <- err
		return
	}
	if createTables {
		if err := createSchema(db); err != nil {
			_ = closeConnection(db)
			ready <- fmt.Errorf("create schema: %w", err)
			return
		}
		e.logger.Printf("INFO: created schema in %s", e.path)
	}
	ready <- nil

	for {
		j := e.next()
		if j.stop {
			break
		}
		if e.hook != nil {
			e.hook(j)
		}
		e.execute(db, j)
	}

	e.closeErr = closeConnection(db)
	e.logger.Printf("INFO: storage worker stopped")
}

// next blocks until a job is queued and pops the most urgent one.
func (e *Engine) next() *job {
	for {
		e.mu.Lock()
		if e.queue.Len() > 0 {
			j := e.queue.pop()
			e.mu.Unlock()
			return j
		}
		e.mu.Unlock()
		<-e.wake
	}
}

func (e *Engine) enqueue(j *job) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.seq++
	j.seq = e.seq
	if j.stop {
		e.closed = true
	}
	e.queue.push(j)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

func (e *Engine) execute(db *gorm.DB, j *job) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("storage job panicked: %v", r)
			}
		}()
		if j.isQuery() {
			err = stream(db, j)
		} else {
			err = exec(db, j.stmts)
		}
	}()

	if err != nil {
		e.logger.Printf("ERROR: storage job %d (priority %d) failed: %v", j.seq, j.priority, err)
	}
	if j.isQuery() {
		j.send(message{err: err, last: true})
		return
	}
	j.ticket.finish(err)
}

func exec(db *gorm.DB, stmts []Statement) error {
	if len(stmts) == 1 {
		return db.Exec(stmts[0].SQL, stmts[0].Args...).Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i, st := range stmts {
			if err := tx.Exec(st.SQL, st.Args...).Error; err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func stream(db *gorm.DB, j *job) error {
	st := j.stmts[0]
	rows, err := db.Raw(st.SQL, st.Args...).Rows()
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if !j.send(message{row: values}) {
			return nil
		}
	}
	return rows.Err()
}

// send delivers m unless the reader has abandoned the cursor.
func (j *job) send(m message) bool {
	select {
	case j.results <- m:
		return true
	case <-j.abandon:
		return false
	}
}

// Submit queues a statement that returns no rows. It does not wait for the
// statement to run; the returned Ticket reports its outcome.
func (e *Engine) Submit(priority int, query string, args ...any) (*Ticket, error) {
	return e.SubmitTx(priority, Statement{SQL: query, Args: args})
}

// SubmitTx queues several statements as one job run inside a transaction.
func (e *Engine) SubmitTx(priority int, stmts ...Statement) (*Ticket, error) {
	if len(stmts) == 0 {
		return nil, errors.New("storage: empty job")
	}
	t := newTicket()
	if err := e.enqueue(&job{priority: priority, stmts: stmts, ticket: t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Query queues a read. Rows are streamed to the returned Cursor as the
// worker produces them.
func (e *Engine) Query(priority int, query string, args ...any) (*Cursor, error) {
	c, ch := newCursor(e.buffer)
	j := &job{
		priority: priority,
		stmts:    []Statement{{SQL: query, Args: args}},
		results:  ch,
		abandon:  c.abandon,
	}
	if err := e.enqueue(j); err != nil {
		return nil, err
	}
	return c, nil
}

// Shutdown queues the stop job behind everything already accepted. Later
// submissions fail with ErrClosed.
func (e *Engine) Shutdown() error {
	return e.enqueue(&job{priority: math.MaxInt, stop: true})
}

// Done is closed once the worker has released the connection.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the worker has stopped.
func (e *Engine) Wait() error {
	<-e.done
	return e.closeErr
}

// Close shuts the engine down and waits for the worker.
func (e *Engine) Close() error {
	if err := e.Shutdown(); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return e.Wait()
}
