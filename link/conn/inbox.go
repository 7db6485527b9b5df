package conn

import "sync"

// inbox is the inbound queue between the connection actor and the
// application. It is the only state shared with callers of Poll.
type inbox struct {
	mu       sync.Mutex
	payloads []string
	lastSeq  uint64 // sequence of the last pushed payload
}

// push appends the payload of the data frame with sequence seq.
// Sequences must ascend, anything else is rejected.
func (q *inbox) push(seq uint64, payload string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if seq <= q.lastSeq {
		return false
	}
	q.lastSeq = seq
	q.payloads = append(q.payloads, payload)
	return true
}

// drain returns all queued payloads in delivery order and empties the queue
func (q *inbox) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.payloads
	q.payloads = nil
	return out
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.payloads)
}
