// Package dynamodb provides a DynamoDB-backed idempotency ledger for order
// processing.
//
// # Overview
//
// A queue with at-least-once delivery may hand the same order to a consumer
// more than once. The ledger records every key that has been handled, so a
// redelivery can be recognised and skipped. It records only the fact that a
// key was handled, never a processing result.
//
// Every marker is one item keyed by the partition key "pk":
//
//   - pk:           the key, e.g. an order id
//   - processed_at: the time the key was marked (RFC 3339)
//   - ttl:          expiry as a Unix timestamp
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need:
//
//	ledger := dynamodb.New(&awsCfg, tableName, dynamodb.WithTimeToLive(24*time.Hour))
//
//	if err := ledger.Connect(); err != nil {
//	    return err
//	}
//
//	if err := ledger.Init(ctx, false); err != nil {
//	    return err
//	}
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Marking and Forgetting
//
// [Client.Processed] is a strongly consistent read of the marker.
// [Client.MarkProcessed] writes the marker with a conditional PutItem and
// reports false if an unexpired marker already exists. [Client.Forget]
// deletes a marker, so that a key that is placed again is processed again.
//
// # TTL Behaviour
//
// Markers expire after 24 hours by default, configurable via
// [WithTimeToLive]. The table must have TTL enabled on the ttl attribute.
// DynamoDB removes expired items lazily; an expired item that still exists
// does not block a new marker.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines once
// [Client.Connect] has returned.
package dynamodb
