package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slackmgr/types"
)

// Outcome describes the result of one consumer iteration.
type Outcome int

const (
	// OutcomeEmpty means no message was available.
	OutcomeEmpty Outcome = iota

	// OutcomeCompleted means the message was processed and deleted.
	OutcomeCompleted

	// OutcomeFailed means the processor failed; the message was left to
	// reappear when its lease lapses.
	OutcomeFailed

	// OutcomeAbandoned means the message was processed but the delete call
	// found the lease already gone. The message may be delivered again.
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Consumer leases messages one at a time, keeps each lease alive with a
// heartbeat while the processor runs, and deletes the message only after
// the processor succeeds.
//
// A Consumer holds a single processing slot. Run several consumers (or
// processes) to consume concurrently; the queue service arbitrates leases.
type Consumer struct {
	svc       Service
	processor Processor
	opts      *Options
	logger    types.Logger
}

// NewConsumer creates a Consumer reading from svc and handing message bodies
// to processor. Functional options override the defaults (see With*
// functions); they are validated here.
func NewConsumer(svc Service, processor Processor, logger types.Logger, opts ...Option) (*Consumer, error) {
	if svc == nil {
		return nil, errors.New("queue service cannot be nil")
	}

	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer options: %w", err)
	}

	return &Consumer{
		svc:       svc,
		processor: processor,
		opts:      options,
		logger:    logger.WithField("component", "consumer"),
	}, nil
}

// Run consumes messages until ctx is cancelled, at which point it returns
// ctx.Err(). Processing failures never stop the loop. A dequeue that fails
// after exhausting the retry policy is logged and retried after the error
// backoff.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Consumer started")
	defer c.logger.Info("Consumer exited")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := c.RunOnce(ctx)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Errorf("Error reading queue: %v", err)

			if err := sleep(ctx, c.opts.errorBackoff); err != nil {
				return err
			}
		case outcome == OutcomeEmpty:
			if err := sleep(ctx, c.opts.pollBackoff); err != nil {
				return err
			}
		}
	}
}

// RunOnce performs a single iteration of the consumer loop without any
// backoff: it leases at most one message and, if one was leased, processes
// it to completion. A non-nil error is only returned when the dequeue
// itself failed.
func (c *Consumer) RunOnce(ctx context.Context) (Outcome, error) {
	msg, err := c.svc.Dequeue(ctx, c.opts.visibilityTimeout, c.opts.requestOptions)
	if err != nil {
		return OutcomeEmpty, fmt.Errorf("failed to dequeue message: %w", err)
	}

	if msg == nil {
		c.opts.metrics.emptyPoll()
		c.logger.Info("No orders found. Hitting the snooze button...")
		return OutcomeEmpty, nil
	}

	c.opts.metrics.lease()

	return c.handle(ctx, msg), nil
}

func (c *Consumer) handle(ctx context.Context, msg *Message) Outcome {
	logger := c.logger.WithField("message_id", msg.ID)

	if msg.DequeueCount > 1 {
		logger = logger.WithField("dequeue_count", msg.DequeueCount)
	}

	l := newLease(msg, time.Now())

	// The heartbeat starts before any work so that a slow first tick can
	// never race the initial window.
	hb := startHeartbeat(ctx, c.svc, l, c.opts, logger)

	logger.Debug("Message leased, processing")

	started := time.Now()
	err := c.process(ctx, msg.Body)
	elapsed := time.Since(started)

	hb.Stop()

	if err != nil {
		c.opts.metrics.process(resultError, elapsed)
		logger.Errorf("Failed to process message, leaving it to reappear after its lease lapses: %v", err)
		return OutcomeFailed
	}

	c.opts.metrics.process(resultOK, elapsed)

	if l.IsStale() {
		logger.Error("Message was processed but is no longer owned by this consumer, abandoning it")
		return OutcomeAbandoned
	}

	if l.IsLost() {
		logger.Warn("Lease was lost during processing, attempting delete anyway")
	}

	// Delete must complete regardless of the caller's context state.
	deleteCtx := context.WithoutCancel(ctx)

	if err := c.svc.Delete(deleteCtx, l.Handle(), c.opts.requestOptions); err != nil {
		if errors.Is(err, ErrStaleHandle) {
			c.opts.metrics.deleted(resultStale)
			logger.Errorf("Message was processed but is no longer owned by this consumer, abandoning it: %v", err)
		} else {
			c.opts.metrics.deleted(resultError)
			logger.Errorf("Failed to delete processed message: %v", err)
		}

		return OutcomeAbandoned
	}

	c.opts.metrics.deleted(resultOK)
	logger.WithField("renewals", l.Renewals()).Debug("Message deleted")

	return OutcomeCompleted
}

// process invokes the processor, converting a panic into an error so that
// the heartbeat is always stopped.
func (c *Consumer) process(ctx context.Context, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()

	return c.processor.Process(ctx, body)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
