package queue

import (
	"errors"
	"fmt"
	"time"
)

// maxVisibilityTimeout is the longest lease any supported backend grants.
const maxVisibilityTimeout = 12 * time.Hour

// Option is a functional option for configuring a [Consumer].
type Option func(*Options)

// Options holds the resolved configuration for a [Consumer].
// All fields are set to sensible defaults by [NewConsumer]; use With*
// functions to override individual values.
type Options struct {
	visibilityTimeout time.Duration
	extensionWindow   time.Duration
	renewalInterval   time.Duration
	pollBackoff       time.Duration
	errorBackoff      time.Duration
	maxLeaseExtension time.Duration
	requestOptions    *RequestOptions
	metrics           *Metrics
}

func newOptions() *Options {
	return &Options{
		visibilityTimeout: 60 * time.Second,
		renewalInterval:   45 * time.Second,
		pollBackoff:       5 * time.Second,
		errorBackoff:      5 * time.Second,
		requestOptions:    DefaultRequestOptions(),
	}
}

// window returns the duration granted by each heartbeat renewal.
func (o *Options) window() time.Duration {
	if o.extensionWindow > 0 {
		return o.extensionWindow
	}

	return o.visibilityTimeout
}

func (o *Options) validate() error {
	if o.visibilityTimeout < time.Second || o.visibilityTimeout > maxVisibilityTimeout {
		return fmt.Errorf("visibility timeout must be between 1 second and %s", maxVisibilityTimeout)
	}

	if o.extensionWindow < 0 || o.extensionWindow > maxVisibilityTimeout {
		return fmt.Errorf("extension window must be between 0 and %s", maxVisibilityTimeout)
	}

	if o.renewalInterval <= 0 {
		return errors.New("renewal interval must be greater than zero")
	}

	if o.renewalInterval >= o.visibilityTimeout {
		return errors.New("renewal interval must be shorter than the visibility timeout")
	}

	if o.renewalInterval >= o.window() {
		return errors.New("renewal interval must be shorter than the extension window")
	}

	if o.pollBackoff < 0 {
		return errors.New("poll backoff must be non-negative")
	}

	if o.errorBackoff < 0 {
		return errors.New("error backoff must be non-negative")
	}

	if o.maxLeaseExtension < 0 {
		return errors.New("max lease extension must be non-negative")
	}

	if o.maxLeaseExtension > 0 && o.maxLeaseExtension < o.visibilityTimeout {
		return errors.New("max lease extension must not be shorter than the visibility timeout")
	}

	if err := o.requestOptions.validate(); err != nil {
		return fmt.Errorf("invalid request options: %w", err)
	}

	return nil
}

// WithVisibilityTimeout sets the initial invisibility window requested when
// a message is leased. Must be between 1 second and 12 hours. Default: 60s.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.visibilityTimeout = d
	}
}

// WithExtensionWindow sets the invisibility window granted by each heartbeat
// renewal, counted from the time of the renewal call. Zero means the same as
// the visibility timeout. Default: 0.
func WithExtensionWindow(d time.Duration) Option {
	return func(o *Options) {
		o.extensionWindow = d
	}
}

// WithRenewalInterval sets how often the heartbeat extends the lease of the
// message being processed. It must be strictly shorter than both the
// visibility timeout and the extension window, with enough margin to absorb
// a late tick. Default: 45s.
func WithRenewalInterval(d time.Duration) Option {
	return func(o *Options) {
		o.renewalInterval = d
	}
}

// WithPollBackoff sets the pause after an empty dequeue. Default: 5s.
func WithPollBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.pollBackoff = d
	}
}

// WithErrorBackoff sets the pause after a dequeue that failed even after
// retries. Default: 5s.
func WithErrorBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.errorBackoff = d
	}
}

// WithMaxLeaseExtension caps the total time a single lease may be kept alive
// by the heartbeat. Once reached, renewals stop and the lease lapses.
// Zero disables the cap. Default: 0.
func WithMaxLeaseExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxLeaseExtension = d
	}
}

// WithRequestOptions sets the retry policy and timeout attached to every
// queue operation issued by the consumer.
func WithRequestOptions(r *RequestOptions) Option {
	return func(o *Options) {
		o.requestOptions = r
	}
}

// WithMetrics enables Prometheus instrumentation of the consumer.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.metrics = m
	}
}
