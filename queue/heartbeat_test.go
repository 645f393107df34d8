//nolint:testpackage // Tests need access to unexported functions
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heartbeatOptions(opts ...Option) *Options {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return o
}

func TestHeartbeat_RenewsEveryInterval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		var windows []time.Duration

		svc := &mockService{
			extendVisibilityFunc: func(_ context.Context, handle string, visibility time.Duration, _ *RequestOptions) (Receipt, error) {
				calls.Add(1)
				windows = append(windows, visibility)
				return Receipt{Handle: handle, VisibleAt: time.Now().Add(visibility)}, nil
			},
		}

		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(), newMockLogger())

		time.Sleep(44 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(0), calls.Load(), "no renewal before the first interval")

		time.Sleep(2 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(1), calls.Load())

		time.Sleep(90 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(3), calls.Load())

		hb.Stop()

		assert.Equal(t, 3, l.Renewals())
		assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second, 60 * time.Second}, windows)
	})
}

func TestHeartbeat_UsesExtensionWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var got time.Duration

		svc := &mockService{
			extendVisibilityFunc: func(_ context.Context, handle string, visibility time.Duration, _ *RequestOptions) (Receipt, error) {
				got = visibility
				return Receipt{Handle: handle}, nil
			},
		}

		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(WithExtensionWindow(2*time.Minute)), newMockLogger())

		time.Sleep(46 * time.Second)
		hb.Stop()

		assert.Equal(t, 2*time.Minute, got)
	})
}

func TestHeartbeat_StopBeforeFirstTick(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32

		svc := &mockService{
			extendVisibilityFunc: func(_ context.Context, handle string, _ time.Duration, _ *RequestOptions) (Receipt, error) {
				calls.Add(1)
				return Receipt{Handle: handle}, nil
			},
		}

		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(), newMockLogger())

		hb.Stop()
		hb.Stop() // idempotent

		time.Sleep(10 * time.Minute)
		synctest.Wait()

		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestHeartbeat_StopWaitsForInFlightRenewal(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		release := make(chan struct{})

		svc := &mockService{
			extendVisibilityFunc: func(_ context.Context, _ string, visibility time.Duration, _ *RequestOptions) (Receipt, error) {
				calls.Add(1)
				<-release
				return Receipt{Handle: "rotated", VisibleAt: time.Now().Add(visibility)}, nil
			},
		}

		l := newLease(&Message{ID: "1", Handle: "original"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(), newMockLogger())

		time.Sleep(45 * time.Second)
		synctest.Wait()
		require.Equal(t, int32(1), calls.Load(), "renewal should be in flight")

		var stopped atomic.Bool
		go func() {
			hb.Stop()
			stopped.Store(true)
		}()

		synctest.Wait()
		assert.False(t, stopped.Load(), "Stop must block while a renewal is in flight")

		close(release)
		synctest.Wait()
		assert.True(t, stopped.Load())

		// The rotated handle from the in-flight renewal is captured before Stop returns.
		assert.Equal(t, "rotated", l.Handle())

		time.Sleep(5 * time.Minute)
		synctest.Wait()
		assert.Equal(t, int32(1), calls.Load(), "no renewal after Stop has returned")
	})
}

func TestHeartbeat_RotatesHandle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var seen []string
		n := 0

		svc := &mockService{
			extendVisibilityFunc: func(_ context.Context, handle string, _ time.Duration, _ *RequestOptions) (Receipt, error) {
				seen = append(seen, handle)
				n++
				return Receipt{Handle: fmt.Sprintf("h%d", n)}, nil
			},
		}

		l := newLease(&Message{ID: "1", Handle: "h0"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(), newMockLogger())

		time.Sleep(136 * time.Second)
		hb.Stop()

		assert.Equal(t, []string{"h0", "h1", "h2"}, seen)
		assert.Equal(t, "h3", l.Handle())
	})
}

func TestHeartbeat_EmptyReceiptHandleKeepsCurrent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		svc := &mockService{
			extendVisibilityFunc: func(context.Context, string, time.Duration, *RequestOptions) (Receipt, error) {
				return Receipt{}, nil
			},
		}

		l := newLease(&Message{ID: "1", Handle: "same"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(), newMockLogger())

		time.Sleep(46 * time.Second)
		hb.Stop()

		assert.Equal(t, "same", l.Handle())
		assert.Equal(t, 1, l.Renewals())
	})
}

func TestHeartbeat_StaleHandleStopsRenewals(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32

		svc := &mockService{
			extendVisibilityFunc: func(context.Context, string, time.Duration, *RequestOptions) (Receipt, error) {
				calls.Add(1)
				return Receipt{}, fmt.Errorf("gone: %w", ErrStaleHandle)
			},
		}

		metrics := NewMetrics()
		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(WithMetrics(metrics)), newMockLogger())

		time.Sleep(10 * time.Minute)
		synctest.Wait()
		hb.Stop()

		assert.Equal(t, int32(1), calls.Load(), "a failed renewal must not be retried by the heartbeat")
		assert.True(t, l.IsLost())
		assert.True(t, l.IsStale())
		assert.InDelta(t, 1, counterValue(t, metrics.renewals.WithLabelValues(renewalStale)), 0)
	})
}

func TestHeartbeat_ErrorStopsRenewals(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32

		svc := &mockService{
			extendVisibilityFunc: func(context.Context, string, time.Duration, *RequestOptions) (Receipt, error) {
				calls.Add(1)
				return Receipt{}, errors.New("service unavailable")
			},
		}

		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, heartbeatOptions(), newMockLogger())

		time.Sleep(10 * time.Minute)
		synctest.Wait()
		hb.Stop()

		assert.Equal(t, int32(1), calls.Load())
		assert.True(t, l.IsLost())
		assert.False(t, l.IsStale())
	})
}

func TestHeartbeat_MaxLeaseExtension(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32

		svc := &mockService{
			extendVisibilityFunc: func(_ context.Context, handle string, _ time.Duration, _ *RequestOptions) (Receipt, error) {
				calls.Add(1)
				return Receipt{Handle: handle}, nil
			},
		}

		// Ticks at 45s, 90s, 135s, 180s. With a 60s window the lease would
		// reach 105s, 150s, 195s, 240s. Only the first two fit under 3 minutes.
		opts := heartbeatOptions(WithMaxLeaseExtension(3 * time.Minute))
		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(t.Context(), svc, l, opts, newMockLogger())

		time.Sleep(10 * time.Minute)
		synctest.Wait()
		hb.Stop()

		assert.Equal(t, int32(2), calls.Load())
		assert.False(t, l.IsLost())
	})
}

func TestHeartbeat_ContextCancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		l := newLease(&Message{ID: "1", Handle: "h"}, time.Now())
		hb := startHeartbeat(ctx, &mockService{}, l, heartbeatOptions(), newMockLogger())

		cancel()
		synctest.Wait()

		select {
		case <-hb.doneCh:
		default:
			t.Fatal("heartbeat did not exit after context cancellation")
		}

		hb.Stop()
	})
}
