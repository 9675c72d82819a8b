package shm

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Queue is an in-process channel. Producers publish through PublishInfo and
// PublishData; the consumer side implements Channel. When the backlog reaches
// the queue depth the oldest unit is dropped, matching the segment ring.
type Queue struct {
	id   string
	opts Options

	mu      sync.Mutex
	info    []byte
	pending [][]byte
	scratch []byte
	dropped uint64
	closed  bool
}

func NewQueue(opts Options) (*Queue, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Queue{
		id:      uuid.NewString(),
		opts:    opts,
		scratch: make([]byte, 0, opts.MaxPayloadSize),
	}, nil
}

func (q *Queue) ID() string {
	return q.id
}

func (q *Queue) Options() Options {
	return q.opts
}

// Dropped returns how many units were discarded because the backlog was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) PublishInfo(b []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.info = append([]byte(nil), b...)
	return nil
}

func (q *Queue) PublishData(b []byte) error {
	if len(b) > q.opts.MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooBig, len(b), q.opts.MaxPayloadSize)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if len(q.pending) >= q.opts.QueueDepth {
		q.pending = q.pending[1:]
		q.dropped++
	}
	q.pending = append(q.pending, append([]byte(nil), b...))
	return nil
}

func (q *Queue) BytesWaiting() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return uint32(len(q.pending))
}

func (q *Queue) ReadInfoPacket() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if q.info == nil {
		return nil, ErrNoInfo
	}
	return append([]byte(nil), q.info...), nil
}

func (q *Queue) ReadDataPacket() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if len(q.pending) == 0 {
		return nil, ErrEmpty
	}
	next := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.scratch = append(q.scratch[:0], next...)
	return q.scratch, nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
	return nil
}
