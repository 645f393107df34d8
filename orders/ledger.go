package orders

import (
	"context"
	"errors"
	"sync"
)

// Ledger records which orders have been handled, so that a redelivered
// message does not repeat the work. The DynamoDB client in package dynamodb
// implements it.
type Ledger interface {
	// Processed reports whether key has been marked.
	Processed(ctx context.Context, key string) (bool, error)

	// MarkProcessed marks key and reports whether it was not marked before.
	MarkProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes the mark for key.
	Forget(ctx context.Context, key string) error
}

// MemoryLedger is an in-process [Ledger]. Marks never expire and are lost
// when the process exits. It is safe for concurrent use.
type MemoryLedger struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		keys: make(map[string]struct{}),
	}
}

func (l *MemoryLedger) Processed(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.keys[key]

	return ok, nil
}

func (l *MemoryLedger) MarkProcessed(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.keys[key]; ok {
		return false, nil
	}

	l.keys[key] = struct{}{}

	return true, nil
}

func (l *MemoryLedger) Forget(_ context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.keys, key)

	return nil
}

// Len returns the number of marked keys.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.keys)
}
