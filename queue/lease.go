package queue

import (
	"sync"
	"time"
)

// lease binds the consumer to one leased message. The heartbeat renews it;
// the consumer reads the latest handle once the heartbeat has stopped.
type lease struct {
	acquiredAt time.Time

	mu       sync.Mutex
	handle   string
	renewals int
	lost     bool
	stale    bool
}

func newLease(msg *Message, now time.Time) *lease {
	return &lease{
		acquiredAt: now,
		handle:     msg.Handle,
	}
}

func (l *lease) Handle() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.handle
}

// renewed records a successful extension. The handle is replaced only if
// the service returned one.
func (l *lease) renewed(r Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.Handle != "" {
		l.handle = r.Handle
	}

	l.renewals++
}

// markLost records a failed renewal. stale means the service reported that
// the handle no longer owns the message.
func (l *lease) markLost(stale bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lost = true
	l.stale = stale
}

// IsLost returns true if a renewal failed and the lease is presumed gone.
func (l *lease) IsLost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lost
}

// IsStale returns true if the lease was lost because another consumer now
// owns the message.
func (l *lease) IsStale() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.stale
}

func (l *lease) Renewals() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.renewals
}
