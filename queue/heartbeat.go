package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/slackmgr/types"
)

// heartbeat keeps one leased message invisible while it is being processed.
//
// It runs in its own goroutine and periodically extends the message's
// visibility. It never deletes the message and knows nothing about the work
// being done. If an extension fails the lease is presumed lost and the
// heartbeat exits; it does not retry beyond the request's retry policy.
type heartbeat struct {
	svc          Service
	lease        *lease
	interval     time.Duration
	window       time.Duration
	maxExtension time.Duration
	reqOpts      *RequestOptions
	metrics      *Metrics
	logger       types.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// startHeartbeat starts renewing l every opts.renewalInterval until Stop is
// called or ctx is cancelled. Stop must be called on every exit path.
func startHeartbeat(ctx context.Context, svc Service, l *lease, opts *Options, logger types.Logger) *heartbeat {
	h := &heartbeat{
		svc:          svc,
		lease:        l,
		interval:     opts.renewalInterval,
		window:       opts.window(),
		maxExtension: opts.maxLeaseExtension,
		reqOpts:      opts.requestOptions,
		metrics:      opts.metrics,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	go h.run(ctx)

	return h
}

func (h *heartbeat) run(ctx context.Context) {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			// A tick and a stop may be ready at the same time; stop wins.
			select {
			case <-h.stopCh:
				return
			default:
			}

			if !h.renew(ctx) {
				return
			}
		}
	}
}

// renew extends the lease once. It returns false when the heartbeat should
// give up on the lease.
func (h *heartbeat) renew(ctx context.Context) bool {
	if h.maxExtension > 0 && time.Since(h.lease.acquiredAt)+h.window > h.maxExtension {
		h.logger.WithField("max_lease_extension", h.maxExtension).Error("Message has reached the maximum lease extension, letting the lease lapse")
		h.metrics.renewal(renewalLimit)
		return false
	}

	h.logger.Info("Still working...")

	receipt, err := h.svc.ExtendVisibility(ctx, h.lease.Handle(), h.window, h.reqOpts)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}

		stale := errors.Is(err, ErrStaleHandle)
		h.lease.markLost(stale)

		if stale {
			h.logger.Errorf("Lease is no longer owned by this consumer, stopping renewals: %v", err)
			h.metrics.renewal(renewalStale)
		} else {
			h.logger.Errorf("Failed to extend message visibility, stopping renewals: %v", err)
			h.metrics.renewal(renewalError)
		}

		return false
	}

	h.lease.renewed(receipt)
	h.metrics.renewal(renewalOK)

	h.logger.WithField("visible_at", receipt.VisibleAt).Debug("Message visibility extended")

	return true
}

// Stop cancels all future renewals and blocks until an in-flight renewal,
// if any, has returned. It is safe to call more than once.
func (h *heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})

	<-h.doneCh
}
