package queue

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy governs how transient failures of a queue operation are
// retried. Attempts are spaced by a fixed Backoff interval.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Backoff is the pause between consecutive attempts.
	Backoff time.Duration
}

// RequestOptions are attached to every queue operation.
type RequestOptions struct {
	Retry RetryPolicy

	// Timeout bounds a single operation, including its retries.
	// Zero means no explicit timeout.
	Timeout time.Duration
}

// DefaultRequestOptions returns the conservative defaults: 10 attempts with
// a linear 2 second backoff, and an explicit 30 second timeout per call.
func DefaultRequestOptions() *RequestOptions {
	return &RequestOptions{
		Retry: RetryPolicy{
			MaxAttempts: 10,
			Backoff:     2 * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}

func (o *RequestOptions) validate() error {
	if o == nil {
		return nil
	}

	if o.Retry.MaxAttempts < 0 || o.Retry.MaxAttempts > 100 {
		return errors.New("retry max attempts must be between 0 and 100")
	}

	if o.Retry.Backoff < 0 {
		return errors.New("retry backoff must be non-negative")
	}

	if o.Timeout < 0 {
		return errors.New("request timeout must be non-negative")
	}

	return nil
}

// Attempts returns the effective number of attempts allowed by the policy.
func (o *RequestOptions) Attempts() int {
	if o == nil || o.Retry.MaxAttempts < 1 {
		return 1
	}

	return o.Retry.MaxAttempts
}

// BackoffInterval returns the pause between attempts.
func (o *RequestOptions) BackoffInterval() time.Duration {
	if o == nil {
		return 0
	}

	return o.Retry.Backoff
}

// WithTimeout derives a context bounded by the request timeout. The returned
// cancel function must always be called.
func (o *RequestOptions) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o == nil || o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, o.Timeout)
}

// Retry runs fn under the request options: bounded by the request timeout
// and retried on failure according to the retry policy.
//
// ErrStaleHandle, context errors and errors wrapped with [Permanent] are
// returned immediately. Otherwise the error of the last attempt is returned,
// even when the timeout ends the wait for the next one.
func Retry(ctx context.Context, opts *RequestOptions, fn func(ctx context.Context) error) error {
	ctx, cancel := opts.WithTimeout(ctx)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return err
	}

	var last error

	operation := func() (struct{}, error) {
		last = fn(ctx)
		if last != nil && !isRetryable(last) {
			return struct{}{}, backoff.Permanent(last)
		}

		return struct{}{}, last
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.BackoffInterval())),
		backoff.WithMaxTries(uint(opts.Attempts())), //nolint:gosec // Attempts is at least 1
		backoff.WithMaxElapsedTime(opts.maxElapsed()),
	)
	if err != nil && last != nil {
		return last
	}

	return err
}

// maxElapsed bounds a whole retry sequence. The request timeout normally
// ends it first; the floor only applies to calls without one.
func (o *RequestOptions) maxElapsed() time.Duration {
	if o == nil {
		return time.Hour
	}

	return max(o.Timeout, time.Hour)
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrStaleHandle) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var p *backoff.PermanentError
	return !errors.As(err, &p)
}

// Permanent wraps err so that [Retry] returns it without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
