// Package orders contains the sample order processor run by processorders.
//
// A message body is a decimal order id. [Processor] skips orders that its
// [Ledger] already lists, performs the work for the others, and marks them
// once the work is done. Marking after the work keeps delivery at least once:
// a crash before the mark means the order is redelivered and worked again.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slackmgr/types"
)

// WorkFunc performs the work for one order.
type WorkFunc func(ctx context.Context, orderID int) error

// Option is a functional option for configuring a [Processor].
type Option func(*Processor)

// WithWorkDuration sets how long the default work takes. Defaults to 500ms.
func WithWorkDuration(d time.Duration) Option {
	return func(p *Processor) {
		p.workDuration = d
	}
}

// WithWork replaces the default work, which only waits for the work duration.
func WithWork(work WorkFunc) Option {
	return func(p *Processor) {
		p.work = work
	}
}

// Processor implements queue.Processor for order messages.
type Processor struct {
	ledger       Ledger
	work         WorkFunc
	workDuration time.Duration
	logger       types.Logger
}

// NewProcessor creates a Processor that records handled orders in ledger.
func NewProcessor(ledger Ledger, logger types.Logger, opts ...Option) (*Processor, error) {
	if ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	p := &Processor{
		ledger:       ledger,
		workDuration: 500 * time.Millisecond,
		logger:       logger.WithField("component", "processor"),
	}

	for _, o := range opts {
		o(p)
	}

	if p.workDuration < 0 {
		return nil, errors.New("work duration must be non-negative")
	}

	if p.work == nil {
		p.work = p.simulateWork
	}

	return p, nil
}

// Process handles one order message. It returns an error when the body is
// not an order id, when the ledger cannot be read, or when the work fails;
// the message is then left on the queue.
func (p *Processor) Process(ctx context.Context, body string) error {
	orderID, err := ParseOrderID(body)
	if err != nil {
		return err
	}

	key := strconv.Itoa(orderID)
	logger := p.logger.WithField("order_id", orderID)

	done, err := p.ledger.Processed(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to look up order %d: %w", orderID, err)
	}

	if done {
		logger.Infof("Order %d already processed, skipping", orderID)
		return nil
	}

	logger.Infof("Processing order %d...", orderID)

	if err := p.work(ctx, orderID); err != nil {
		return fmt.Errorf("order %d: %w", orderID, err)
	}

	marked, err := p.ledger.MarkProcessed(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to mark order %d as processed: %w", orderID, err)
	}

	if !marked {
		logger.Debug("Order was marked by another consumer while it was processed")
	}

	logger.Info("Complete.")

	return nil
}

// Reset removes the marks of orders first to first+count-1, so that placing
// them again gets them processed again.
func Reset(ctx context.Context, ledger Ledger, first, count int) error {
	for id := first; id < first+count; id++ {
		if err := ledger.Forget(ctx, strconv.Itoa(id)); err != nil {
			return fmt.Errorf("failed to reset order %d: %w", id, err)
		}
	}

	return nil
}

// ParseOrderID parses a message body as a decimal order id.
func ParseOrderID(body string) (int, error) {
	orderID, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q: %w", body, err)
	}

	if orderID < 0 {
		return 0, fmt.Errorf("invalid order id %q: must be non-negative", body)
	}

	return orderID, nil
}

func (p *Processor) simulateWork(ctx context.Context, _ int) error {
	if p.workDuration == 0 {
		return nil
	}

	timer := time.NewTimer(p.workDuration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
