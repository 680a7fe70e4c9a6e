package storage

import "container/heap"

// Job priorities. Lower values are served first.
const (
	PriorityHigh   = 1
	PriorityNormal = 2
	PriorityLow    = 3
)

// Statement is a single SQL statement with its bound parameters.
type Statement struct {
	SQL  string
	Args []any
}

type job struct {
	priority int
	seq      uint64
	stmts    []Statement

	// Set for query jobs only.
	results chan<- message
	abandon <-chan struct{}

	ticket *Ticket
	stop   bool
}

func (j *job) isQuery() bool {
	return j.results != nil
}

// jobQueue is a min-heap ordered by (priority, seq), which makes it stable:
// jobs sharing a priority come out in the order they were pushed.
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *jobQueue) Push(x any) { *q = append(*q, x.(*job)) }

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return j
}

func (q *jobQueue) push(j *job) { heap.Push(q, j) }

func (q *jobQueue) pop() *job { return heap.Pop(q).(*job) }
