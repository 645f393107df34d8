// Package backend builds the queue service and the idempotency ledger
// selected by the configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/slackmgr/orderqueue/dynamodb"
	"github.com/slackmgr/orderqueue/internal/config"
	"github.com/slackmgr/orderqueue/memqueue"
	"github.com/slackmgr/orderqueue/orders"
	"github.com/slackmgr/orderqueue/postgres"
	"github.com/slackmgr/orderqueue/pubsub"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/slackmgr/orderqueue/sqs"
	"github.com/slackmgr/types"
)

type namedService interface {
	queue.Service
	Name() string
}

// Service is an open queue service. Close releases its connections.
type Service struct {
	namedService

	closers []func(ctx context.Context) error
}

// Close releases the resources held by the service, in reverse order of
// acquisition.
func (s *Service) Close(ctx context.Context) error {
	var errs []error

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.closers = nil

	return errors.Join(errs...)
}

// Open connects to the queue service named by cfg.Backend. The queue itself
// is not created; call EnsureExists for that.
func Open(ctx context.Context, cfg *config.Config, logger types.Logger) (*Service, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return &Service{namedService: memqueue.New(cfg.Queue.Name)}, nil
	case config.BackendSQS:
		return openSQS(ctx, cfg, logger)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.BackendPubSub:
		return openPubSub(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openSQS(ctx context.Context, cfg *config.Config, logger types.Logger) (*Service, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []sqs.Option{
		sqs.WithSqsReceiveWaitTimeSeconds(cfg.SQS.WaitTimeSeconds),
	}

	if cfg.SQS.Endpoint != "" {
		opts = append(opts, sqs.WithEndpoint(cfg.SQS.Endpoint))
	}

	client, err := sqs.New(&awsCfg, cfg.Queue.Name, logger, opts...).Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQS client: %w", err)
	}

	return &Service{namedService: client}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger types.Logger) (*Service, error) {
	client := postgres.New(cfg.Queue.Name, logger, postgres.WithConnectionString(cfg.Postgres.DSN))

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	if err := client.Init(ctx, false); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	return &Service{
		namedService: client,
		closers:      []func(context.Context) error{client.Close},
	}, nil
}

func openPubSub(ctx context.Context, cfg *config.Config, logger types.Logger) (*Service, error) {
	gcpClient, err := gpubsub.NewClient(ctx, cfg.PubSub.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	subscription := cfg.PubSub.Subscription
	if subscription == "" {
		subscription = cfg.Queue.Name
	}

	client, err := pubsub.New(gcpClient, cfg.PubSub.Project, cfg.Queue.Name, subscription, logger)
	if err == nil {
		client, err = client.Init()
	}

	if err != nil {
		_ = gcpClient.Close()
		return nil, fmt.Errorf("failed to initialize Pub/Sub client: %w", err)
	}

	return &Service{
		namedService: client,
		closers: []func(context.Context) error{
			func(context.Context) error { return gcpClient.Close() },
			func(context.Context) error { client.Close(); return nil },
		},
	}, nil
}

// OpenLedger returns the DynamoDB ledger when idempotency.dynamodb_table is
// set, and an in-memory ledger otherwise.
//
//nolint:ireturn // Both ledgers satisfy orders.Ledger
func OpenLedger(ctx context.Context, cfg *config.Config) (orders.Ledger, error) {
	if cfg.Idempotency.DynamoDBTable == "" {
		return orders.NewMemoryLedger(), nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var opts []dynamodb.Option
	if cfg.Idempotency.TTL > 0 {
		opts = append(opts, dynamodb.WithTimeToLive(cfg.Idempotency.TTL))
	}

	ledger := dynamodb.New(&awsCfg, cfg.Idempotency.DynamoDBTable, opts...)

	if err := ledger.Connect(); err != nil {
		return nil, err
	}

	if err := ledger.Init(ctx, false); err != nil {
		return nil, err
	}

	return ledger, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}
