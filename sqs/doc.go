// Package sqs provides an Amazon SQS implementation of the order queue
// service.
//
// # Client
//
// [Client] implements [github.com/slackmgr/orderqueue/queue.Service] on top
// of an SQS queue. Leases map onto SQS visibility timeouts: Dequeue receives a
// single message with the requested visibility timeout, ExtendVisibility
// calls ChangeMessageVisibility, and Delete calls DeleteMessage. The receipt
// handle returned by ReceiveMessage is the lease handle; SQS does not rotate
// it on visibility changes.
//
// Create a client with [New] and initialise it with [Client.Init]:
//
//	client, err := sqs.New(&awsCfg, "orders", logger,
//	    sqs.WithSqsReceiveWaitTimeSeconds(10),
//	).Init(ctx)
//
// Then hand it to a consumer:
//
//	consumer, err := queue.NewConsumer(client, processor, logger)
//	err = consumer.Run(ctx)
//
// # Retries
//
// Every call installs a per-call AWS retryer derived from the
// [github.com/slackmgr/orderqueue/queue.RequestOptions] passed with it: the
// retry policy's attempt count and a constant backoff between attempts.
// Client-side retry quotas are disabled so that the policy alone decides.
//
// # Stale Handles
//
// When SQS reports that a receipt handle is invalid or that the message is no
// longer in flight, ExtendVisibility and Delete return an error wrapping
// [github.com/slackmgr/orderqueue/queue.ErrStaleHandle]. This happens when the
// lease lapsed and the message was received again by another consumer.
//
// # FIFO Queues
//
// Queue names ending in ".fifo" are treated as FIFO queues. EnsureExists
// creates them with the FifoQueue attribute, and Enqueue sets the message
// group ID configured by [WithMessageGroupID] and a deduplication ID derived
// from a SHA-256 hash of the body. A send that is retried after a transient
// failure is therefore deduplicated by SQS.
package sqs
