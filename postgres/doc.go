// Package postgres provides a PostgreSQL-backed implementation of
// queue.Service, storing each queue as one table.
//
// It uses pgx v5 with connection pooling (pgxpool). Leasing is done with a
// single UPDATE over a FOR UPDATE SKIP LOCKED subquery, so any number of
// consumers can share a queue without leasing the same message twice.
//
// # Usage
//
// Create a client using [New] with functional options, call [Client.Connect]
// to establish the connection pool, and then [Client.Init] to create the
// queue table:
//
//	client := postgres.New("orders", logger,
//	    postgres.WithHost("localhost"),
//	    postgres.WithUser("postgres"),
//	    postgres.WithPassword("secret"),
//	    postgres.WithDatabase("orderqueue"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// [WithConnectionString] replaces the individual connection options with a
// complete connection string.
//
// # Queue Table
//
// The table is named after the queue, so the queue name must be a valid
// unquoted identifier. Each row holds the message body, its current pop
// receipt, the visibility deadline, the dequeue count and an expiry time.
//
// # Pop Receipts
//
// Every dequeue and every visibility extension writes a fresh pop receipt.
// Handles have the form "<id>:<receipt>", and an update or delete whose
// receipt no longer matches the row fails with queue.ErrStaleHandle. A
// consumer must therefore use the handle returned by the latest extension.
//
// # Retries
//
// Each operation runs under queue.Retry with the request options passed by
// the caller. Errors that a retry cannot fix (syntax and undefined object
// errors, data exceptions, authentication failures) are returned at once.
//
// # TTL and Cleanup
//
// Messages expire [WithMessageTimeToLive] after they are enqueued (7 days by
// default). Expired messages are never leased. A background goroutine
// started by [Client.Init] deletes them periodically; its interval defaults
// to 1 hour and can be changed with [WithTTLCleanupInterval] or disabled with
// [WithTTLCleanupDisabled].
//
// # Schema Validation
//
// When [Client.Init] is called with skipSchemaValidation set to false, it
// queries information_schema.columns and verifies that every expected column
// exists with the correct data type and nullability.
//
// # SSL
//
// SSL behaviour is controlled by [WithSSLMode] using the [SSLMode] constants.
// The default is [SSLModePrefer].
package postgres
