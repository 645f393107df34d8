package sqs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/ratelimit"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/slackmgr/types"
)

// Client is an SQS implementation of [queue.Service].
//
// Both standard and FIFO queues are supported. The queue type is derived
// from the name: names ending in ".fifo" are FIFO queues.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Client struct {
	client      sqsClient
	queueName   string
	awsCfg      *aws.Config
	opts        *Options
	logger      types.Logger
	initialized bool

	mu       sync.RWMutex
	queueURL string
}

// New creates a Client for the named SQS queue.
//
// Functional options may be passed to override defaults (see With* functions).
// The logger is automatically enriched with "plugin" and "queue_name" fields.
//
// New does not connect to AWS. Call [Client.Init] to construct the SQS client.
func New(awsCfg *aws.Config, queueName string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "sqs").
		WithField("queue_name", queueName)

	return &Client{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		logger:    logger,
	}
}

// Init validates options and constructs the SQS client. It returns the
// receiver so that initialization can be chained with [New]:
//
//	client, err := sqs.New(&awsCfg, "orders", logger).Init(ctx)
//
// The queue URL is not resolved here, since the queue may not exist yet.
// It is resolved by [Client.EnsureExists] or by the first queue operation.
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(_ context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.queueName == "" {
		return nil, errors.New("SQS queue name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	// Use injected client if provided (for testing), otherwise create real client
	if c.opts.sqsClient != nil {
		c.client = c.opts.sqsClient
	} else {
		if c.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			if c.opts.endpoint != "" {
				o.BaseEndpoint = aws.String(c.opts.endpoint)
			}
		})
	}

	c.initialized = true

	return c, nil
}

// Name returns the SQS queue name supplied to [New].
func (c *Client) Name() string {
	return c.queueName
}

func (c *Client) isFifo() bool {
	return strings.HasSuffix(c.queueName, ".fifo")
}

// EnsureExists creates the queue if it does not exist and records its URL.
func (c *Client) EnsureExists(ctx context.Context, opts *queue.RequestOptions) error {
	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	ctx, cancel := opts.WithTimeout(ctx)
	defer cancel()

	input := &sqs.CreateQueueInput{
		QueueName: aws.String(c.queueName),
	}

	if c.isFifo() {
		input.Attributes = map[string]string{
			string(sqstypes.QueueAttributeNameFifoQueue): "true",
		}
	}

	output, err := c.client.CreateQueue(ctx, input, withRequestOptions(opts))
	if err != nil {
		// The queue exists with different attributes. That is fine for our purposes.
		var exists *sqstypes.QueueNameExists
		if errors.As(err, &exists) {
			_, err = c.resolveQueueURL(ctx, opts)
			return err
		}

		return fmt.Errorf("failed to create SQS queue %s: %w", c.queueName, err)
	}

	c.setQueueURL(aws.ToString(output.QueueUrl))

	c.logger.Debug("SQS queue exists")

	return nil
}

// Enqueue sends body to the queue.
//
// For FIFO queues the message group ID is set by [WithMessageGroupID] and the
// deduplication ID is a SHA-256 hash of the body, so a retried send of the
// same order within the 5-minute deduplication window is discarded by SQS.
func (c *Client) Enqueue(ctx context.Context, body string, opts *queue.RequestOptions) error {
	if body == "" {
		return errors.New("body cannot be empty")
	}

	ctx, cancel := opts.WithTimeout(ctx)
	defer cancel()

	queueURL, err := c.resolveQueueURL(ctx, opts)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: &body,
	}

	if c.isFifo() {
		input.MessageGroupId = aws.String(c.opts.messageGroupID)
		input.MessageDeduplicationId = aws.String(hash(c.queueName, body))
	}

	output, err := c.client.SendMessage(ctx, input, withRequestOptions(opts))
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	c.logger.WithField("message_id", aws.ToString(output.MessageId)).Debug("SQS message sent")

	return nil
}

// Dequeue receives at most one message and hides it for visibility. It
// returns (nil, nil) when the long poll ends without a message.
//
//nolint:nilnil
func (c *Client) Dequeue(ctx context.Context, visibility time.Duration, opts *queue.RequestOptions) (*queue.Message, error) {
	ctx, cancel := opts.WithTimeout(ctx)
	defer cancel()

	queueURL, err := c.resolveQueueURL(ctx, opts)
	if err != nil {
		return nil, err
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:                    &queueURL,
		MaxNumberOfMessages:         1,
		VisibilityTimeout:           visibilitySeconds(visibility),
		WaitTimeSeconds:             c.opts.sqsReceiveWaitTimeSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	}

	c.logger.WithField("wait_time", c.opts.sqsReceiveWaitTimeSeconds).Debug("Reading SQS queue")

	output, err := c.client.ReceiveMessage(ctx, input, withRequestOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to receive SQS message: %w", err)
	}

	if len(output.Messages) == 0 {
		return nil, nil
	}

	m := output.Messages[0]

	msg := &queue.Message{
		ID:        aws.ToString(m.MessageId),
		Body:      aws.ToString(m.Body),
		Handle:    aws.ToString(m.ReceiptHandle),
		VisibleAt: time.Now().Add(visibility),
	}

	if s, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			msg.DequeueCount = n
		}
	}

	c.logger.WithField("message_id", msg.ID).Debug("SQS message received")

	return msg, nil
}

// ExtendVisibility hides the message for visibility from now. SQS keeps the
// receipt handle, so the returned receipt carries the same handle.
func (c *Client) ExtendVisibility(ctx context.Context, handle string, visibility time.Duration, opts *queue.RequestOptions) (queue.Receipt, error) {
	ctx, cancel := opts.WithTimeout(ctx)
	defer cancel()

	queueURL, err := c.resolveQueueURL(ctx, opts)
	if err != nil {
		return queue.Receipt{}, err
	}

	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &queueURL,
		ReceiptHandle:     &handle,
		VisibilityTimeout: visibilitySeconds(visibility),
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input, withRequestOptions(opts)); err != nil {
		return queue.Receipt{}, fmt.Errorf("failed to extend SQS message visibility: %w", mapError(err))
	}

	return queue.Receipt{
		Handle:    handle,
		VisibleAt: time.Now().Add(visibility),
	}, nil
}

// Delete removes the message identified by handle.
func (c *Client) Delete(ctx context.Context, handle string, opts *queue.RequestOptions) error {
	ctx, cancel := opts.WithTimeout(ctx)
	defer cancel()

	queueURL, err := c.resolveQueueURL(ctx, opts)
	if err != nil {
		return err
	}

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &queueURL,
		ReceiptHandle: &handle,
	}

	if _, err := c.client.DeleteMessage(ctx, input, withRequestOptions(opts)); err != nil {
		return fmt.Errorf("failed to delete SQS message: %w", mapError(err))
	}

	c.logger.Debug("SQS message deleted")

	return nil
}

func (c *Client) resolveQueueURL(ctx context.Context, opts *queue.RequestOptions) (string, error) {
	if !c.initialized {
		return "", errors.New("SQS client not initialized")
	}

	c.mu.RLock()
	queueURL := c.queueURL
	c.mu.RUnlock()

	if queueURL != "" {
		return queueURL, nil
	}

	resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)}, withRequestOptions(opts))
	if err != nil {
		return "", fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	queueURL = aws.ToString(resp.QueueUrl)
	c.setQueueURL(queueURL)

	return queueURL, nil
}

func (c *Client) setQueueURL(queueURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queueURL = queueURL
}

// withRequestOptions installs a per-call retryer that follows the retry
// policy: opts.Attempts() attempts spaced by a fixed backoff.
func withRequestOptions(opts *queue.RequestOptions) func(*sqs.Options) {
	return func(o *sqs.Options) {
		o.Retryer = retry.NewStandard(func(so *retry.StandardOptions) {
			so.MaxAttempts = opts.Attempts()
			so.Backoff = linearBackoff(opts.BackoffInterval())
			so.RateLimiter = ratelimit.None
		})
	}
}

// linearBackoff implements retry.BackoffDelayer with a constant delay.
type linearBackoff time.Duration

func (b linearBackoff) BackoffDelay(int, error) (time.Duration, error) {
	return time.Duration(b), nil
}

// mapError translates SQS errors caused by an outdated receipt handle into
// queue.ErrStaleHandle.
func mapError(err error) error {
	if isStaleHandle(err) {
		return fmt.Errorf("%w: %w", queue.ErrStaleHandle, err)
	}

	return err
}

func isStaleHandle(err error) bool {
	var invalid *sqstypes.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		return true
	}

	var notInflight *sqstypes.MessageNotInflight
	if errors.As(err, &notInflight) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ReceiptHandleIsInvalid", "AWS.SimpleQueueService.MessageNotInflight":
			return true
		case "InvalidParameterValue":
			// Expired receipt handles are reported as an invalid parameter.
			return strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "receipt handle")
		}
	}

	return false
}

// visibilitySeconds rounds up to whole seconds, the resolution of the SQS API.
func visibilitySeconds(d time.Duration) int32 {
	return int32(math.Ceil(d.Seconds()))
}

func hash(input ...string) string {
	h := sha256.New()

	for _, s := range input {
		h.Write([]byte(s))
		h.Write([]byte{0}) // null byte delimiter to prevent hash collisions
	}

	bs := h.Sum(nil)

	return base64.URLEncoding.EncodeToString(bs)
}
