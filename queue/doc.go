// Package queue implements an at-least-once order queue on top of a hosted
// queue service: a producer that places orders and a consumer loop that
// leases one message at a time, keeps it hidden with a visibility heartbeat
// while it is processed, and deletes it only after processing succeeds.
//
// # Service
//
// [Service] is the contract a queue backend must satisfy. Backends live in
// sibling packages (sqs, postgres, pubsub, memqueue). Every operation takes
// an explicit [RequestOptions] carrying the retry policy and per-call
// timeout; there is no process-wide retry state.
//
// # Consumer
//
// [Consumer] runs the lease loop:
//
//	consumer, err := queue.NewConsumer(svc, processor, logger,
//	    queue.WithVisibilityTimeout(60*time.Second),
//	    queue.WithRenewalInterval(45*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	return consumer.Run(ctx)
//
// When the queue is empty the loop sleeps for the poll backoff and tries
// again. When a message is leased, a heartbeat goroutine is started before
// the processor runs and is stopped before the message is deleted, on every
// exit path.
//
// # Delivery Semantics
//
// Delivery is at-least-once. A failed processor call does not delete the
// message: its lease lapses and the service redelivers it. If the process
// dies while holding a lease, the heartbeat dies with it and the message
// reappears once the last granted window elapses. Processors must therefore
// be idempotent.
//
// # Producer
//
// [Producer] enqueues a contiguous range of decimal order ids, one message
// per id, in ascending order.
package queue
