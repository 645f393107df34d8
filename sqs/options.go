package sqs

import (
	"errors"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [New] and applied before [Client.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
// All fields are set to sensible defaults by [New]; use With* functions to
// override individual values.
type Options struct {
	sqsReceiveWaitTimeSeconds int32
	messageGroupID            string
	endpoint                  string
	sqsClient                 sqsClient // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		sqsReceiveWaitTimeSeconds: 20,
		messageGroupID:            "orders",
	}
}

func (o *Options) validate() error {
	if o.sqsReceiveWaitTimeSeconds < 0 || o.sqsReceiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if o.messageGroupID == "" || len(o.messageGroupID) > 128 {
		return errors.New("SQS message group ID must be between 1 and 128 characters")
	}

	return nil
}

// WithSqsReceiveWaitTimeSeconds sets the long-poll wait duration for each
// ReceiveMessage API call. Longer values reduce empty responses and API costs.
// Zero disables long polling. Must be between 0 and 20 seconds. Default: 20.
func WithSqsReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.sqsReceiveWaitTimeSeconds = seconds
	}
}

// WithMessageGroupID sets the MessageGroupId used when sending to a FIFO
// queue. It is ignored for standard queues. Default: "orders".
func WithMessageGroupID(id string) Option {
	return func(o *Options) {
		o.messageGroupID = id
	}
}

// WithEndpoint overrides the SQS endpoint URL, for example to target a local
// emulator. Default: the regional AWS endpoint.
func WithEndpoint(url string) Option {
	return func(o *Options) {
		o.endpoint = url
	}
}

// WithSQSClient replaces the default AWS SQS client with a custom
// implementation of the internal sqsClient interface. This option is
// intended for testing with mock or stub clients.
func WithSQSClient(client sqsClient) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
