// Package queuetest holds behavioural tests shared by every queue.Service
// implementation. Each test expects an existing, empty queue and leaves it
// empty when it passes.
package queuetest

import (
	"context"
	"testing"
	"time"

	"github.com/slackmgr/orderqueue/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const visibility = time.Minute

func requestOptions() *queue.RequestOptions {
	return &queue.RequestOptions{
		Retry:   queue.RetryPolicy{MaxAttempts: 3, Backoff: 100 * time.Millisecond},
		Timeout: 30 * time.Second,
	}
}

// TestEmptyQueue verifies that dequeuing from an empty queue returns no
// message and no error.
func TestEmptyQueue(t *testing.T, svc queue.Service) {
	t.Helper()

	ctx := context.Background()

	msg, err := svc.Dequeue(ctx, visibility, requestOptions())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

// TestEnqueueDequeueDelete runs one message through its full lifecycle and
// verifies that a leased message is hidden from other dequeues.
func TestEnqueueDequeueDelete(t *testing.T, svc queue.Service) {
	t.Helper()

	ctx := context.Background()
	opts := requestOptions()

	require.NoError(t, svc.Enqueue(ctx, "1000", opts))

	msg, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "1000", msg.Body)
	assert.NotEmpty(t, msg.Handle)
	assert.GreaterOrEqual(t, msg.DequeueCount, int64(1))

	hidden, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	assert.Nil(t, hidden, "a leased message must not be delivered again while its lease holds")

	require.NoError(t, svc.Delete(ctx, msg.Handle, opts))

	after, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	assert.Nil(t, after)
}

// TestExtendVisibility renews a lease twice and deletes the message with the
// handle returned by the last renewal.
func TestExtendVisibility(t *testing.T, svc queue.Service) {
	t.Helper()

	ctx := context.Background()
	opts := requestOptions()

	require.NoError(t, svc.Enqueue(ctx, "1001", opts))

	msg, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	require.NotNil(t, msg)

	handle := msg.Handle

	for range 2 {
		receipt, err := svc.ExtendVisibility(ctx, handle, visibility, opts)
		require.NoError(t, err)
		require.NotEmpty(t, receipt.Handle)
		assert.False(t, receipt.VisibleAt.Before(msg.VisibleAt.Add(-time.Second)))

		handle = receipt.Handle
	}

	hidden, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	assert.Nil(t, hidden)

	require.NoError(t, svc.Delete(ctx, handle, opts))
}

// TestDeletedHandleIsStale verifies that a handle can not be used after its
// message was deleted. Services that accept repeated deletes, such as SQS,
// do not pass this test.
func TestDeletedHandleIsStale(t *testing.T, svc queue.Service) {
	t.Helper()

	ctx := context.Background()
	opts := requestOptions()

	require.NoError(t, svc.Enqueue(ctx, "1002", opts))

	msg, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	require.NotNil(t, msg)

	require.NoError(t, svc.Delete(ctx, msg.Handle, opts))

	err = svc.Delete(ctx, msg.Handle, opts)
	require.ErrorIs(t, err, queue.ErrStaleHandle)

	_, err = svc.ExtendVisibility(ctx, msg.Handle, visibility, opts)
	require.ErrorIs(t, err, queue.ErrStaleHandle)
}

// TestRotatedHandleIsStale verifies that, on services that rotate handles on
// every update, the handle replaced by a renewal can no longer be used.
func TestRotatedHandleIsStale(t *testing.T, svc queue.Service) {
	t.Helper()

	ctx := context.Background()
	opts := requestOptions()

	require.NoError(t, svc.Enqueue(ctx, "1003", opts))

	msg, err := svc.Dequeue(ctx, visibility, opts)
	require.NoError(t, err)
	require.NotNil(t, msg)

	receipt, err := svc.ExtendVisibility(ctx, msg.Handle, visibility, opts)
	require.NoError(t, err)
	require.NotEqual(t, msg.Handle, receipt.Handle)

	err = svc.Delete(ctx, msg.Handle, opts)
	require.ErrorIs(t, err, queue.ErrStaleHandle)

	require.NoError(t, svc.Delete(ctx, receipt.Handle, opts))
}

// TestFirstInFirstOut verifies that messages are leased in the order they
// were enqueued. Only services with ordered delivery pass this test.
func TestFirstInFirstOut(t *testing.T, svc queue.Service) {
	t.Helper()

	ctx := context.Background()
	opts := requestOptions()

	for _, body := range []string{"2000", "2001", "2002"} {
		require.NoError(t, svc.Enqueue(ctx, body, opts))
	}

	for _, want := range []string{"2000", "2001", "2002"} {
		msg, err := svc.Dequeue(ctx, visibility, opts)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, want, msg.Body)

		require.NoError(t, svc.Delete(ctx, msg.Handle, opts))
	}
}
