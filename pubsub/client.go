package pubsub

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/slackmgr/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Project IDs may contain colons for domain-prefixed projects (e.g., google.com:my-project).
// Topic and subscription names must start with a letter, followed by 2-254 word characters, dots, underscores, or hyphens.
var (
	topicNameRegex        = regexp.MustCompile(`^projects\/([a-z][a-z0-9-:.]{5,29})\/topics\/([a-zA-Z][\w._-]{2,254})$`)
	subscriptionNameRegex = regexp.MustCompile(`^projects\/([a-z][a-z0-9-:.]{5,29})\/subscriptions\/([a-zA-Z][\w._-]{2,254})$`)
)

// Client is a queue.Service backed by a Pub/Sub topic and one pull
// subscription on it.
type Client struct {
	gcpClient    *pubsub.Client
	client       pubsubClient
	publisher    pubsubPublisher
	subscriber   subscriptionAdmin
	topic        string
	subscription string
	opts         *Options
	logger       types.Logger
	initialized  atomic.Bool
}

// New creates a client for the given project, topic and subscription IDs.
// The subscription may be empty for a client that only enqueues.
func New(c *pubsub.Client, project, topic, subscription string, logger types.Logger, opts ...Option) (*Client, error) {
	if c == nil {
		return nil, errors.New("pub/sub client cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	topicName := fmt.Sprintf("projects/%s/topics/%s", project, topic)
	logger = logger.WithField("plugin", "pubsub").WithField("topic", topicName)

	subscriptionName := ""
	if subscription != "" {
		subscriptionName = fmt.Sprintf("projects/%s/subscriptions/%s", project, subscription)
		logger = logger.WithField("subscription", subscriptionName)
	}

	return &Client{
		gcpClient:    c,
		topic:        topicName,
		subscription: subscriptionName,
		opts:         options,
		logger:       logger,
	}, nil
}

func (c *Client) Init() (*Client, error) {
	if c.initialized.Load() {
		return c, nil
	}

	if !topicNameRegex.MatchString(c.topic) {
		return nil, fmt.Errorf("invalid pub/sub topic name %q", c.topic)
	}

	if err := c.opts.validatePublisher(); err != nil {
		return nil, fmt.Errorf("invalid pub/sub publisher options: %w", err)
	}

	// Use injected client for testing, otherwise wrap the real GCP client.
	if c.opts.pubsubClient != nil {
		c.client = c.opts.pubsubClient
	} else {
		c.client = newRealPubSubClient(c.gcpClient)
	}

	c.publisher = c.client.Publisher(c.topic)

	c.publisher.SetDelayThreshold(c.opts.publisherDelayThreshold)
	c.publisher.SetCountThreshold(c.opts.publisherCountThreshold)
	c.publisher.SetByteThreshold(c.opts.publisherByteThreshold)

	if c.subscription != "" {
		if !subscriptionNameRegex.MatchString(c.subscription) {
			return nil, fmt.Errorf("invalid pub/sub subscription name %q", c.subscription)
		}

		if err := c.opts.validateSubscriber(); err != nil {
			return nil, fmt.Errorf("invalid pub/sub subscriber options: %w", err)
		}

		c.subscriber = c.client.SubscriptionAdmin()
	}

	c.initialized.Store(true)

	return c, nil
}

func (c *Client) Name() string {
	return c.topic
}

// Close stops the publisher, flushing any pending messages.
func (c *Client) Close() {
	if c.publisher != nil {
		c.publisher.Stop()
	}
}

// EnsureExists creates the topic and, if configured, the subscription.
// Resources that already exist are left unchanged.
func (c *Client) EnsureExists(ctx context.Context, opts *queue.RequestOptions) error {
	if !c.initialized.Load() {
		return errors.New("pub/sub client not initialized")
	}

	err := queue.Retry(ctx, opts, func(ctx context.Context) error {
		_, err := c.client.TopicAdmin().CreateTopic(ctx, &pubsubpb.Topic{Name: c.topic})
		return ignoreAlreadyExists(err)
	})
	if err != nil {
		return fmt.Errorf("failed to create pub/sub topic %s: %w", c.topic, err)
	}

	if c.subscription == "" {
		return nil
	}

	sub := &pubsubpb.Subscription{
		Name:                      c.subscription,
		Topic:                     c.topic,
		AckDeadlineSeconds:        deadlineSeconds(c.opts.subscriptionAckDeadline),
		EnableExactlyOnceDelivery: c.opts.exactlyOnceDelivery,
	}

	err = queue.Retry(ctx, opts, func(ctx context.Context) error {
		_, err := c.subscriber.CreateSubscription(ctx, sub)
		return ignoreAlreadyExists(err)
	})
	if err != nil {
		return fmt.Errorf("failed to create pub/sub subscription %s: %w", c.subscription, err)
	}

	c.logger.Debug("Pub/Sub topic and subscription exist")

	return nil
}

// Enqueue publishes a message and waits for the server to accept it.
func (c *Client) Enqueue(ctx context.Context, body string, opts *queue.RequestOptions) error {
	if !c.initialized.Load() {
		return errors.New("pub/sub client not initialized")
	}

	if body == "" {
		return errors.New("body cannot be empty")
	}

	err := queue.Retry(ctx, opts, func(ctx context.Context) error {
		msg := &pubsub.Message{Data: []byte(body)}

		_, err := c.publisher.Publish(ctx, msg).Get(ctx)

		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to publish message to pub/sub topic %s: %w", c.topic, err)
	}

	return nil
}

// Dequeue pulls one message and sets its ack deadline to the visibility
// duration. It returns (nil, nil) when no message arrives within the pull
// timeout.
//
//nolint:nilnil
func (c *Client) Dequeue(ctx context.Context, visibility time.Duration, opts *queue.RequestOptions) (*queue.Message, error) {
	if err := c.checkSubscriber(); err != nil {
		return nil, err
	}

	seconds, err := ackDeadlineSeconds(visibility)
	if err != nil {
		return nil, err
	}

	var received *pubsubpb.ReceivedMessage

	err = queue.Retry(ctx, opts, func(ctx context.Context) error {
		pullCtx, cancel := context.WithTimeout(ctx, c.opts.pullTimeout)
		defer cancel()

		resp, err := c.subscriber.Pull(pullCtx, &pubsubpb.PullRequest{
			Subscription: c.subscription,
			MaxMessages:  1,
		})
		if err != nil {
			if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded) {
				return nil
			}

			return classify(err)
		}

		if len(resp.GetReceivedMessages()) > 0 {
			received = resp.GetReceivedMessages()[0]
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pull message from pub/sub subscription %s: %w", c.subscription, err)
	}

	if received == nil {
		return nil, nil
	}

	ackID := received.GetAckId()

	err = queue.Retry(ctx, opts, func(ctx context.Context) error {
		return mapAckError(c.subscriber.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
			Subscription:       c.subscription,
			AckIds:             []string{ackID},
			AckDeadlineSeconds: seconds,
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set ack deadline of pulled message: %w", err)
	}

	msg := received.GetMessage()

	return &queue.Message{
		ID:           msg.GetMessageId(),
		Body:         string(msg.GetData()),
		Handle:       ackID,
		VisibleAt:    time.Now().Add(visibility),
		DequeueCount: int64(received.GetDeliveryAttempt()),
	}, nil
}

// ExtendVisibility resets the ack deadline of a leased message. The ack id
// does not change.
func (c *Client) ExtendVisibility(ctx context.Context, handle string, visibility time.Duration, opts *queue.RequestOptions) (queue.Receipt, error) {
	if err := c.checkSubscriber(); err != nil {
		return queue.Receipt{}, err
	}

	seconds, err := ackDeadlineSeconds(visibility)
	if err != nil {
		return queue.Receipt{}, err
	}

	err = queue.Retry(ctx, opts, func(ctx context.Context) error {
		return mapAckError(c.subscriber.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
			Subscription:       c.subscription,
			AckIds:             []string{handle},
			AckDeadlineSeconds: seconds,
		}))
	})
	if err != nil {
		return queue.Receipt{}, fmt.Errorf("failed to modify ack deadline: %w", err)
	}

	return queue.Receipt{
		Handle:    handle,
		VisibleAt: time.Now().Add(visibility),
	}, nil
}

// Delete acknowledges a leased message.
func (c *Client) Delete(ctx context.Context, handle string, opts *queue.RequestOptions) error {
	if err := c.checkSubscriber(); err != nil {
		return err
	}

	err := queue.Retry(ctx, opts, func(ctx context.Context) error {
		return mapAckError(c.subscriber.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
			Subscription: c.subscription,
			AckIds:       []string{handle},
		}))
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}

	return nil
}

func (c *Client) checkSubscriber() error {
	if !c.initialized.Load() {
		return errors.New("pub/sub client not initialized")
	}

	if c.subscriber == nil {
		return errors.New("pub/sub client subscription is not configured")
	}

	return nil
}

func ignoreAlreadyExists(err error) error {
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}

	return classify(err)
}

// mapAckError maps the errors Pub/Sub returns for expired or unknown ack
// ids to queue.ErrStaleHandle.
func mapAckError(err error) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %w", queue.ErrStaleHandle, err)
	default:
		return classify(err)
	}
}

// classify marks errors that retrying cannot fix as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition:
		return queue.Permanent(err)
	default:
		return err
	}
}

func ackDeadlineSeconds(visibility time.Duration) (int32, error) {
	if visibility < 0 || visibility > MaxAckDeadline {
		return 0, fmt.Errorf("visibility %v is outside the ack deadline range of 0 to %v", visibility, MaxAckDeadline)
	}

	return deadlineSeconds(visibility), nil
}

// deadlineSeconds rounds d up to whole seconds.
func deadlineSeconds(d time.Duration) int32 {
	return int32((d + time.Second - 1) / time.Second)
}
