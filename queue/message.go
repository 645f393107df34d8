package queue

import (
	"context"
	"errors"
	"time"
)

// ErrStaleHandle is returned by [Service.ExtendVisibility] and
// [Service.Delete] when the delivery handle is no longer valid: the message
// was already deleted, or its lease lapsed and it was leased again.
var ErrStaleHandle = errors.New("stale message handle")

// Message is a leased queue message.
type Message struct {
	// ID is the service-assigned message id.
	ID string

	// Body is the opaque payload, here a decimal order id.
	Body string

	// Handle is the delivery token used to extend or delete this lease.
	// It is not the payload and is only valid for the current lease.
	Handle string

	// VisibleAt is the current invisibility deadline.
	VisibleAt time.Time

	// DequeueCount is the delivery attempt number, when the service reports it.
	DequeueCount int64
}

// Receipt is the result of a successful visibility extension. Some services
// rotate the delivery handle on every update; callers must use the returned
// Handle for subsequent calls.
type Receipt struct {
	Handle    string
	VisibleAt time.Time
}

// Service is the queue service consumed by [Consumer] and [Producer].
type Service interface {
	// EnsureExists creates the queue if it does not exist. It is idempotent.
	EnsureExists(ctx context.Context, opts *RequestOptions) error

	// Enqueue adds a message with the given body.
	Enqueue(ctx context.Context, body string, opts *RequestOptions) error

	// Dequeue leases one message, hiding it for the visibility duration.
	// It returns (nil, nil) when no message is available.
	Dequeue(ctx context.Context, visibility time.Duration, opts *RequestOptions) (*Message, error)

	// ExtendVisibility resets the invisibility deadline of a leased message
	// to now plus visibility.
	ExtendVisibility(ctx context.Context, handle string, visibility time.Duration, opts *RequestOptions) (Receipt, error)

	// Delete removes a leased message permanently.
	Delete(ctx context.Context, handle string, opts *RequestOptions) error
}

// Processor performs the unit of work for one message body. It may be
// called more than once for the same body and must be idempotent.
type Processor interface {
	Process(ctx context.Context, body string) error
}

// ProcessorFunc adapts an ordinary function to the [Processor] interface.
type ProcessorFunc func(ctx context.Context, body string) error

// Process calls f(ctx, body).
func (f ProcessorFunc) Process(ctx context.Context, body string) error {
	return f(ctx, body)
}
