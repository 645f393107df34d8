// Package memqueue provides an in-process implementation of queue.Service.
//
// It models the lease semantics of a hosted queue: dequeued messages are
// hidden until their visibility deadline, every dequeue and every visibility
// update issues a fresh pop receipt, and calls carrying an outdated receipt
// fail with queue.ErrStaleHandle. It is intended for local runs and tests.
package memqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/slackmgr/orderqueue/queue"
)

// ErrQueueNotFound is returned when an operation is issued before
// EnsureExists has created the queue.
var ErrQueueNotFound = errors.New("queue does not exist")

// Option is a functional option for configuring a [Queue].
type Option func(*Queue)

// WithClock sets the clock used for visibility deadlines. Defaults to
// [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) {
		q.clock = clock
	}
}

type entry struct {
	id           int64
	body         string
	receipt      string
	visibleAt    time.Time
	dequeueCount int64
}

// Queue is an in-memory queue. It is safe for concurrent use.
type Queue struct {
	name  string
	clock func() time.Time

	mu       sync.Mutex
	exists   bool
	nextID   int64
	messages []*entry
}

// New creates an in-memory queue with the given name. The queue must be
// created with EnsureExists before use.
func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name:  name,
		clock: time.Now,
	}

	for _, o := range opts {
		o(q)
	}

	return q
}

// Name returns the queue name supplied to [New].
func (q *Queue) Name() string {
	return q.name
}

// EnsureExists creates the queue. It is idempotent.
func (q *Queue) EnsureExists(_ context.Context, _ *queue.RequestOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.exists = true

	return nil
}

// Enqueue appends a message that is immediately visible.
func (q *Queue) Enqueue(ctx context.Context, body string, _ *queue.RequestOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.exists {
		return ErrQueueNotFound
	}

	q.nextID++

	q.messages = append(q.messages, &entry{
		id:        q.nextID,
		body:      body,
		visibleAt: q.clock(),
	})

	return nil
}

// Dequeue leases the oldest visible message, or returns (nil, nil) if none
// is visible.
//
//nolint:nilnil
func (q *Queue) Dequeue(ctx context.Context, visibility time.Duration, _ *queue.RequestOptions) (*queue.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.exists {
		return nil, ErrQueueNotFound
	}

	now := q.clock()

	for _, e := range q.messages {
		if e.visibleAt.After(now) {
			continue
		}

		e.receipt = uuid.NewString()
		e.visibleAt = now.Add(visibility)
		e.dequeueCount++

		return &queue.Message{
			ID:           strconv.FormatInt(e.id, 10),
			Body:         e.body,
			Handle:       formatHandle(e.id, e.receipt),
			VisibleAt:    e.visibleAt,
			DequeueCount: e.dequeueCount,
		}, nil
	}

	return nil, nil
}

// ExtendVisibility moves the deadline of a leased message to now plus
// visibility and rotates its pop receipt.
func (q *Queue) ExtendVisibility(ctx context.Context, handle string, visibility time.Duration, _ *queue.RequestOptions) (queue.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return queue.Receipt{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.lookup(handle)
	if err != nil {
		return queue.Receipt{}, err
	}

	e.receipt = uuid.NewString()
	e.visibleAt = q.clock().Add(visibility)

	return queue.Receipt{
		Handle:    formatHandle(e.id, e.receipt),
		VisibleAt: e.visibleAt,
	}, nil
}

// Delete removes a leased message.
func (q *Queue) Delete(ctx context.Context, handle string, _ *queue.RequestOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.lookup(handle)
	if err != nil {
		return err
	}

	for i, m := range q.messages {
		if m == e {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			break
		}
	}

	return nil
}

// Len returns the number of messages in the queue, visible or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.messages)
}

// Visible returns the number of messages that can currently be dequeued.
func (q *Queue) Visible() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	n := 0

	for _, e := range q.messages {
		if !e.visibleAt.After(now) {
			n++
		}
	}

	return n
}

// lookup must be called with q.mu held.
func (q *Queue) lookup(handle string) (*entry, error) {
	if !q.exists {
		return nil, ErrQueueNotFound
	}

	id, receipt, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}

	for _, e := range q.messages {
		if e.id != id {
			continue
		}

		if e.receipt == "" || e.receipt != receipt {
			return nil, fmt.Errorf("message %d has been leased again: %w", id, queue.ErrStaleHandle)
		}

		return e, nil
	}

	return nil, fmt.Errorf("message %d does not exist: %w", id, queue.ErrStaleHandle)
}

func formatHandle(id int64, receipt string) string {
	return strconv.FormatInt(id, 10) + ":" + receipt
}

func parseHandle(handle string) (int64, string, error) {
	idStr, receipt, ok := strings.Cut(handle, ":")
	if !ok || receipt == "" {
		return 0, "", fmt.Errorf("malformed message handle %q", handle)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed message handle %q: %w", handle, err)
	}

	return id, receipt, nil
}
