//nolint:paralleltest // Tests need access to unexported functions
package pubsub

import (
	"testing"
	"time"
)

func TestNewOptions_Defaults(t *testing.T) {
	opts := newOptions()

	if opts.publisherDelayThreshold != 10*time.Millisecond {
		t.Errorf("expected publisherDelayThreshold to be 10ms, got %v", opts.publisherDelayThreshold)
	}

	if opts.publisherCountThreshold != 100 {
		t.Errorf("expected publisherCountThreshold to be 100, got %d", opts.publisherCountThreshold)
	}

	if opts.publisherByteThreshold != 1e6 {
		t.Errorf("expected publisherByteThreshold to be 1MB, got %d", opts.publisherByteThreshold)
	}

	if opts.subscriptionAckDeadline != time.Minute {
		t.Errorf("expected subscriptionAckDeadline to be 1m, got %v", opts.subscriptionAckDeadline)
	}

	if !opts.exactlyOnceDelivery {
		t.Error("expected exactlyOnceDelivery to be enabled by default")
	}

	if opts.pullTimeout != 10*time.Second {
		t.Errorf("expected pullTimeout to be 10s, got %v", opts.pullTimeout)
	}

	if opts.pubsubClient != nil {
		t.Error("expected pubsubClient to be nil by default")
	}
}

func TestValidatePublisher(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr string
	}{
		{name: "defaults", opt: func(*Options) {}},
		{name: "zero delay threshold", opt: WithPublisherDelayThreshold(0)},
		{name: "negative delay threshold", opt: WithPublisherDelayThreshold(-time.Millisecond), wantErr: "publisher delay threshold must be non-negative"},
		{name: "zero count threshold", opt: WithPublisherCountThreshold(0), wantErr: "publisher count threshold must be greater than zero"},
		{name: "negative count threshold", opt: WithPublisherCountThreshold(-1), wantErr: "publisher count threshold must be greater than zero"},
		{name: "zero byte threshold", opt: WithPublisherByteThreshold(0), wantErr: "publisher byte threshold must be greater than zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions()
			tt.opt(opts)

			err := opts.validatePublisher()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSubscriber(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr string
	}{
		{name: "defaults", opt: func(*Options) {}},
		{name: "minimum ack deadline", opt: WithSubscriptionAckDeadline(10 * time.Second)},
		{name: "maximum ack deadline", opt: WithSubscriptionAckDeadline(10 * time.Minute)},
		{name: "ack deadline too low", opt: WithSubscriptionAckDeadline(9 * time.Second), wantErr: "subscription ack deadline must be between 10 seconds and 10 minutes"},
		{name: "ack deadline too high", opt: WithSubscriptionAckDeadline(11 * time.Minute), wantErr: "subscription ack deadline must be between 10 seconds and 10 minutes"},
		{name: "pull timeout too low", opt: WithPullTimeout(500 * time.Millisecond), wantErr: "pull timeout must be between 1 second and 1 minute"},
		{name: "pull timeout too high", opt: WithPullTimeout(2 * time.Minute), wantErr: "pull timeout must be between 1 second and 1 minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions()
			tt.opt(opts)

			err := opts.validateSubscriber()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWithExactlyOnceDelivery(t *testing.T) {
	opts := newOptions()
	WithExactlyOnceDelivery(false)(opts)

	if opts.exactlyOnceDelivery {
		t.Error("expected exactlyOnceDelivery to be disabled")
	}
}

func TestWithPubSubClient(t *testing.T) {
	opts := newOptions()
	mockClient := newMockPubSubClient()

	WithPubSubClient(mockClient)(opts)

	if opts.pubsubClient != mockClient {
		t.Error("expected pubsubClient to be set")
	}
}
