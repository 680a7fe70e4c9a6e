package storage

import (
	"fmt"
	"strconv"
	"sync"
)

// Row is one result row as returned by the driver. Values are int64, float64,
// string, []byte or nil.
type Row []any

// Int64 returns column i as an integer. Reals are truncated.
func (r Row) Int64(i int) int64 {
	switch v := r[i].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Int returns column i as an int.
func (r Row) Int(i int) int {
	return int(r.Int64(i))
}

// Float64 returns column i as a float.
func (r Row) Float64(i int) float64 {
	switch v := r[i].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	}
	return 0
}

// String returns column i as text.
func (r Row) String(i int) string {
	switch v := r[i].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// message is what the worker writes on a query's result channel. A message
// with last set is the end-of-results marker; err is the job error, if any.
type message struct {
	row  Row
	err  error
	last bool
}

// Cursor is a single-pass sequence of rows produced by one query job.
// Every query owns its channel so concurrent cursors never see each other's
// rows. A cursor that is not read to the end must be closed.
type Cursor struct {
	ch      <-chan message
	abandon chan struct{}
	once    sync.Once

	row      Row
	err      error
	finished bool
}

func newCursor(buffer int) (*Cursor, chan message) {
	ch := make(chan message, buffer)
	return &Cursor{
		ch:      ch,
		abandon: make(chan struct{}),
	}, ch
}

// Next blocks until the next row or the end of results arrives.
func (c *Cursor) Next() bool {
	if c.finished {
		return false
	}
	m := <-c.ch
	if m.last {
		c.finished = true
		c.err = m.err
		c.row = nil
		return false
	}
	c.row = m.row
	return true
}

// Row returns the row loaded by the last successful call to Next.
func (c *Cursor) Row() Row {
	return c.row
}

// Err returns the error the job finished with.
func (c *Cursor) Err() error {
	return c.err
}

// Close abandons the remaining rows. The worker stops streaming to this
// cursor instead of waiting for a reader.
func (c *Cursor) Close() {
	c.once.Do(func() { close(c.abandon) })
	c.finished = true
}

// All drains the cursor.
func (c *Cursor) All() ([]Row, error) {
	defer c.Close()
	var rows []Row
	for c.Next() {
		rows = append(rows, c.Row())
	}
	return rows, c.Err()
}

// Ticket tracks a submitted write job.
type Ticket struct {
	done chan struct{}
	err  error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the job has run.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the job has run and returns its error.
func (t *Ticket) Wait() error {
	<-t.done
	return t.err
}
