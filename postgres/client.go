package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/slackmgr/types"
)

var errNotConnected = errors.New("client is not connected")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a queue.Service backed by a single PostgreSQL table.
type Client struct {
	conn      pool
	opts      *options
	logger    types.Logger
	cancelTTL context.CancelFunc
}

// New creates a client for the queue with the given name. The name is used
// as the table name and must be a valid unquoted identifier.
func New(queueName string, logger types.Logger, opts ...Option) *Client {
	o := newOptions(queueName)
	for _, opt := range opts {
		opt(o)
	}

	logger = logger.WithField("plugin", "postgres").WithField("queue_name", queueName)

	return &Client{opts: o, logger: logger}
}

// Name returns the queue name.
func (c *Client) Name() string {
	return c.opts.table
}

func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMinIdleConnections != nil {
		config.MinIdleConns = *c.opts.poolMinIdleConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	if c.opts.poolMaxConnectionLifetimeJitter != nil {
		config.MaxConnLifetimeJitter = *c.opts.poolMaxConnectionLifetimeJitter
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping Postgres db: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.cancelTTL != nil {
		c.cancelTTL()
		c.cancelTTL = nil
	}

	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the queue table if needed, verifies its schema and starts the
// background cleanup of expired messages.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := c.createTable(ctx); err != nil {
		return err
	}

	if !skipSchemaValidation {
		if err := c.verifySchema(ctx); err != nil {
			return err
		}
	}

	if c.cancelTTL == nil && c.opts.ttlCleanupInterval != nil {
		ttlCtx, cancel := context.WithCancel(context.Background())
		c.cancelTTL = cancel

		//nolint:contextcheck // Intentionally using a new context: the TTL goroutine must outlive the Init call.
		go c.runTTLCleanup(ttlCtx)
	}

	c.logger.Info("Postgres queue initialized")

	return nil
}

// EnsureExists creates the queue table and its indexes if they do not exist.
func (c *Client) EnsureExists(ctx context.Context, opts *queue.RequestOptions) error {
	if c.conn == nil {
		return errNotConnected
	}

	return queue.Retry(ctx, opts, func(ctx context.Context) error {
		return classify(c.createTable(ctx))
	})
}

// DropQueue drops the queue table and every message in it.
func (c *Client) DropQueue(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop table transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop table transaction: %w", err)
	}

	return nil
}

// Enqueue inserts a message that is immediately visible.
func (c *Client) Enqueue(ctx context.Context, body string, opts *queue.RequestOptions) error {
	if c.conn == nil {
		return errNotConnected
	}

	param1 := body
	param2 := c.opts.messageTimeToLive.Seconds()

	sql := fmt.Sprintf("INSERT INTO %s (body, visible_at, inserted_at, expires_at) VALUES ($1, NOW(), NOW(), NOW() + make_interval(secs => $2))", c.opts.table)

	err := queue.Retry(ctx, opts, func(ctx context.Context) error {
		_, err := c.conn.Exec(ctx, sql, param1, param2)
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message to Postgres db: %w", err)
	}

	return nil
}

// Dequeue leases the oldest visible message. Concurrent consumers skip rows
// locked by each other, so a message is leased by at most one of them.
//
//nolint:nilnil
func (c *Client) Dequeue(ctx context.Context, visibility time.Duration, opts *queue.RequestOptions) (*queue.Message, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	param1 := uuid.NewString()
	param2 := visibility.Seconds()

	sql := fmt.Sprintf("UPDATE %s SET pop_receipt = $1, visible_at = NOW() + make_interval(secs => $2), dequeue_count = dequeue_count + 1 WHERE id = (SELECT id FROM %s WHERE visible_at <= NOW() AND expires_at > NOW() ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED) RETURNING id, body, visible_at, dequeue_count", c.opts.table, c.opts.table)

	var (
		id           int64
		body         string
		visibleAt    time.Time
		dequeueCount int32
		found        bool
	)

	err := queue.Retry(ctx, opts, func(ctx context.Context) error {
		err := c.conn.QueryRow(ctx, sql, param1, param2).Scan(&id, &body, &visibleAt, &dequeueCount)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}

		found = err == nil

		return classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue message from Postgres db: %w", err)
	}

	if !found {
		return nil, nil
	}

	return &queue.Message{
		ID:           strconv.FormatInt(id, 10),
		Body:         body,
		Handle:       formatHandle(id, param1),
		VisibleAt:    visibleAt,
		DequeueCount: int64(dequeueCount),
	}, nil
}

// ExtendVisibility moves the deadline of a leased message and rotates its
// pop receipt. The returned receipt carries the new handle.
//
// Retries also match the new receipt, so an attempt that committed before
// its response was lost is not mistaken for a stale handle.
func (c *Client) ExtendVisibility(ctx context.Context, handle string, visibility time.Duration, opts *queue.RequestOptions) (queue.Receipt, error) {
	if c.conn == nil {
		return queue.Receipt{}, errNotConnected
	}

	id, receipt, err := parseHandle(handle)
	if err != nil {
		return queue.Receipt{}, err
	}

	param1 := id
	param2 := receipt
	param3 := uuid.NewString()
	param4 := visibility.Seconds()

	sql := fmt.Sprintf("UPDATE %s SET pop_receipt = $3, visible_at = NOW() + make_interval(secs => $4) WHERE id = $1 AND pop_receipt IN ($2, $3) RETURNING visible_at", c.opts.table)

	var visibleAt time.Time

	err = queue.Retry(ctx, opts, func(ctx context.Context) error {
		err := c.conn.QueryRow(ctx, sql, param1, param2, param3, param4).Scan(&visibleAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("message %d: %w", id, queue.ErrStaleHandle)
		}

		return classify(err)
	})
	if err != nil {
		return queue.Receipt{}, fmt.Errorf("failed to extend visibility in Postgres db: %w", err)
	}

	return queue.Receipt{
		Handle:    formatHandle(id, param3),
		VisibleAt: visibleAt,
	}, nil
}

// Delete removes a leased message.
func (c *Client) Delete(ctx context.Context, handle string, opts *queue.RequestOptions) error {
	if c.conn == nil {
		return errNotConnected
	}

	id, receipt, err := parseHandle(handle)
	if err != nil {
		return err
	}

	param1 := id
	param2 := receipt

	sql := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND pop_receipt = $2", c.opts.table)

	err = queue.Retry(ctx, opts, func(ctx context.Context) error {
		tag, err := c.conn.Exec(ctx, sql, param1, param2)
		if err != nil {
			return classify(err)
		}

		if tag.RowsAffected() == 0 {
			return fmt.Errorf("message %d: %w", id, queue.ErrStaleHandle)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete message from Postgres db: %w", err)
	}

	return nil
}

func (c *Client) createTable(ctx context.Context) error {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	return nil
}

func (c *Client) verifySchema(ctx context.Context) error {
	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query, c.opts.table)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifyCurrentDatabaseVersion(infoRows); err != nil {
		return fmt.Errorf("failed to verify current database version: %w", err)
	}

	return nil
}

func (c *Client) runTTLCleanup(ctx context.Context) {
	ticker := time.NewTicker(*c.opts.ttlCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.deleteExpiredRows(ctx)
		}
	}
}

func (c *Client) deleteExpiredRows(ctx context.Context) {
	tag, err := c.conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE expires_at < NOW()", c.opts.table))
	if err != nil {
		c.logger.Errorf("Failed to delete expired messages: %v", err)
		return
	}

	if n := tag.RowsAffected(); n > 0 {
		c.logger.WithField("count", n).Debug("Deleted expired messages")
	}
}

// classify marks errors that retrying cannot fix as permanent: malformed
// SQL, missing tables or columns, bad data and failed authentication.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "28", "42":
			return queue.Permanent(err)
		}
	}

	return err
}

func formatHandle(id int64, receipt string) string {
	return strconv.FormatInt(id, 10) + ":" + receipt
}

func parseHandle(handle string) (int64, string, error) {
	idStr, receipt, ok := strings.Cut(handle, ":")
	if !ok || receipt == "" {
		return 0, "", fmt.Errorf("malformed message handle %q", handle)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed message handle %q: %w", handle, err)
	}

	return id, receipt, nil
}
