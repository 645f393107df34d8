package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/slackmgr/types"
	"golang.org/x/time/rate"
)

// ProducerOption is a functional option for configuring a [Producer].
type ProducerOption func(*Producer)

// Producer places orders on the queue, one message per order id.
type Producer struct {
	svc            Service
	requestOptions *RequestOptions
	limiter        *rate.Limiter
	metrics        *Metrics
	logger         types.Logger
}

// NewProducer creates a Producer that enqueues to svc. By default every
// enqueue uses [DefaultRequestOptions] and sends are not rate limited.
func NewProducer(svc Service, logger types.Logger, opts ...ProducerOption) *Producer {
	p := &Producer{
		svc:            svc,
		requestOptions: DefaultRequestOptions(),
		logger:         logger.WithField("component", "producer"),
	}

	for _, o := range opts {
		o(p)
	}

	return p
}

// WithProducerRequestOptions sets the retry policy and timeout attached to
// every enqueue.
func WithProducerRequestOptions(r *RequestOptions) ProducerOption {
	return func(p *Producer) {
		p.requestOptions = r
	}
}

// WithSendRate limits enqueues to r per second with the given burst.
// A non-positive rate disables limiting.
func WithSendRate(r float64, burst int) ProducerOption {
	return func(p *Producer) {
		if r <= 0 {
			p.limiter = nil
			return
		}

		p.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithProducerMetrics enables Prometheus instrumentation of the producer.
func WithProducerMetrics(m *Metrics) ProducerOption {
	return func(p *Producer) {
		p.metrics = m
	}
}

// Run enqueues count orders with ids first, first+1, ... in ascending order.
// The body of each message is the decimal order id. A send that fails after
// exhausting the retry policy aborts the run.
func (p *Producer) Run(ctx context.Context, first, count int) error {
	if count < 0 {
		return errors.New("order count must be non-negative")
	}

	if err := p.requestOptions.validate(); err != nil {
		return fmt.Errorf("invalid request options: %w", err)
	}

	for id := first; id < first+count; id++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := p.svc.Enqueue(ctx, strconv.Itoa(id), p.requestOptions); err != nil {
			return fmt.Errorf("failed to place order %d: %w", id, err)
		}

		p.metrics.enqueue()
		p.logger.Infof("Order %d placed", id)
	}

	return nil
}
