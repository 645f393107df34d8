//nolint:testpackage // Mock must be in queue package to access unexported types
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slackmgr/types"
)

// mockService is a mock implementation of the Service interface for testing.
type mockService struct {
	ensureExistsFunc     func(ctx context.Context, opts *RequestOptions) error
	enqueueFunc          func(ctx context.Context, body string, opts *RequestOptions) error
	dequeueFunc          func(ctx context.Context, visibility time.Duration, opts *RequestOptions) (*Message, error)
	extendVisibilityFunc func(ctx context.Context, handle string, visibility time.Duration, opts *RequestOptions) (Receipt, error)
	deleteFunc           func(ctx context.Context, handle string, opts *RequestOptions) error
}

func (m *mockService) EnsureExists(ctx context.Context, opts *RequestOptions) error {
	if m.ensureExistsFunc != nil {
		return m.ensureExistsFunc(ctx, opts)
	}
	return nil
}

func (m *mockService) Enqueue(ctx context.Context, body string, opts *RequestOptions) error {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, body, opts)
	}
	return nil
}

//nolint:nilnil // An empty queue is reported as (nil, nil)
func (m *mockService) Dequeue(ctx context.Context, visibility time.Duration, opts *RequestOptions) (*Message, error) {
	if m.dequeueFunc != nil {
		return m.dequeueFunc(ctx, visibility, opts)
	}
	return nil, nil
}

func (m *mockService) ExtendVisibility(ctx context.Context, handle string, visibility time.Duration, opts *RequestOptions) (Receipt, error) {
	if m.extendVisibilityFunc != nil {
		return m.extendVisibilityFunc(ctx, handle, visibility, opts)
	}
	return Receipt{Handle: handle, VisibleAt: time.Now().Add(visibility)}, nil
}

func (m *mockService) Delete(ctx context.Context, handle string, opts *RequestOptions) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, handle, opts)
	}
	return nil
}

// eventLog records the order of calls observed by mocks.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

func (l *eventLog) count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.events {
		if e == event {
			n++
		}
	}

	return n
}

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(_ string, _ any) types.Logger { return m }

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(_ map[string]any) types.Logger { return m }
func (m *mockLogger) Debug(_ string)                           {}
func (m *mockLogger) Debugf(_ string, _ ...any)                {}
func (m *mockLogger) Info(_ string)                            {}
func (m *mockLogger) Infof(_ string, _ ...any)                 {}
func (m *mockLogger) Warn(_ string)                            {}
func (m *mockLogger) Warnf(_ string, _ ...any)                 {}
func (m *mockLogger) Error(_ string)                           {}
func (m *mockLogger) Errorf(_ string, _ ...any)                {}
func (m *mockLogger) Fatal(_ string)                           {}
func (m *mockLogger) Fatalf(_ string, _ ...any)                {}

//nolint:ireturn // Returns interface for convenience in tests
func newMockLogger() types.Logger {
	return &mockLogger{}
}

// recordingLogger captures formatted messages at every level.
type recordingLogger struct {
	mu       sync.Mutex
	messages *[]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{messages: &[]string{}}
}

func (r *recordingLogger) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	*r.messages = append(*r.messages, msg)
}

func (r *recordingLogger) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range *r.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}

	return false
}

//nolint:ireturn // Must return interface to implement types.Logger
func (r *recordingLogger) WithField(_ string, _ any) types.Logger { return r }

//nolint:ireturn // Must return interface to implement types.Logger
func (r *recordingLogger) WithFields(_ map[string]any) types.Logger { return r }
func (r *recordingLogger) Debug(msg string)                         { r.record(msg) }
func (r *recordingLogger) Debugf(format string, args ...any)        { r.record(fmt.Sprintf(format, args...)) }
func (r *recordingLogger) Info(msg string)                          { r.record(msg) }
func (r *recordingLogger) Infof(format string, args ...any)         { r.record(fmt.Sprintf(format, args...)) }
func (r *recordingLogger) Warn(msg string)                          { r.record(msg) }
func (r *recordingLogger) Warnf(format string, args ...any)         { r.record(fmt.Sprintf(format, args...)) }
func (r *recordingLogger) Error(msg string)                         { r.record(msg) }
func (r *recordingLogger) Errorf(format string, args ...any)        { r.record(fmt.Sprintf(format, args...)) }
func (r *recordingLogger) Fatal(msg string)                         { r.record(msg) }
func (r *recordingLogger) Fatalf(format string, args ...any)        { r.record(fmt.Sprintf(format, args...)) }
