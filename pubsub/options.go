package pubsub

import (
	"errors"
	"time"
)

// MaxAckDeadline is the longest ack deadline Pub/Sub accepts. It bounds the
// visibility timeout and extension window of a Pub/Sub consumer.
const MaxAckDeadline = 600 * time.Second

type Option func(*Options)

type Options struct {
	publisherDelayThreshold time.Duration
	publisherCountThreshold int
	publisherByteThreshold  int
	subscriptionAckDeadline time.Duration
	exactlyOnceDelivery     bool
	pullTimeout             time.Duration
	pubsubClient            pubsubClient
}

func newOptions() *Options {
	return &Options{
		publisherDelayThreshold: 10 * time.Millisecond,
		publisherCountThreshold: 100,
		publisherByteThreshold:  1e6, // 1 MB
		subscriptionAckDeadline: time.Minute,
		exactlyOnceDelivery:     true,
		pullTimeout:             10 * time.Second,
	}
}

func (o *Options) validatePublisher() error {
	if o.publisherDelayThreshold < 0 {
		return errors.New("publisher delay threshold must be non-negative")
	}

	if o.publisherCountThreshold <= 0 {
		return errors.New("publisher count threshold must be greater than zero")
	}

	if o.publisherByteThreshold <= 0 {
		return errors.New("publisher byte threshold must be greater than zero")
	}

	return nil
}

func (o *Options) validateSubscriber() error {
	if o.subscriptionAckDeadline < 10*time.Second || o.subscriptionAckDeadline > MaxAckDeadline {
		return errors.New("subscription ack deadline must be between 10 seconds and 10 minutes")
	}

	if o.pullTimeout < time.Second || o.pullTimeout > time.Minute {
		return errors.New("pull timeout must be between 1 second and 1 minute")
	}

	return nil
}

func WithPublisherDelayThreshold(d time.Duration) Option {
	return func(o *Options) {
		o.publisherDelayThreshold = d
	}
}

func WithPublisherCountThreshold(n int) Option {
	return func(o *Options) {
		o.publisherCountThreshold = n
	}
}

func WithPublisherByteThreshold(n int) Option {
	return func(o *Options) {
		o.publisherByteThreshold = n
	}
}

// WithSubscriptionAckDeadline sets the default ack deadline used when
// EnsureExists creates the subscription. Every leased message has its
// deadline set explicitly, so this only matters for messages pulled by
// other clients. Defaults to 1 minute.
func WithSubscriptionAckDeadline(d time.Duration) Option {
	return func(o *Options) {
		o.subscriptionAckDeadline = d
	}
}

// WithExactlyOnceDelivery controls whether EnsureExists creates the
// subscription with exactly-once delivery. It is enabled by default because
// Pub/Sub only rejects expired ack ids on such subscriptions; without it a
// lost lease can not be detected.
func WithExactlyOnceDelivery(enabled bool) Option {
	return func(o *Options) {
		o.exactlyOnceDelivery = enabled
	}
}

// WithPullTimeout bounds a single pull. A pull that times out with no
// message is reported as an empty queue. Defaults to 10 seconds.
func WithPullTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.pullTimeout = d
	}
}

// WithPubSubClient sets a custom pubsubClient implementation for testing.
func WithPubSubClient(client pubsubClient) Option {
	return func(o *Options) {
		o.pubsubClient = client
	}
}
