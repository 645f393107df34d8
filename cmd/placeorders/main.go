// Command placeorders places a range of orders on the order queue, one
// message per order id.
package main

import (
	"context"
	"fmt"

	"github.com/slackmgr/orderqueue/internal/backend"
	"github.com/slackmgr/orderqueue/internal/cli"
	"github.com/slackmgr/orderqueue/internal/config"
	"github.com/slackmgr/orderqueue/orders"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/slackmgr/types"
)

func main() {
	cli.Main(cli.NewCommand("placeorders", "Place orders on the order queue", run))
}

func run(ctx context.Context, cfg *config.Config, logger types.Logger) error {
	svc, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := svc.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Errorf("Failed to close queue service: %s", err)
		}
	}()

	requestOptions := cfg.RequestOptions()

	if err := svc.EnsureExists(ctx, requestOptions); err != nil {
		return fmt.Errorf("failed to create queue %s: %w", svc.Name(), err)
	}

	// Order ids repeat between runs, so the marks left by earlier runs are
	// cleared before the orders are placed again.
	if cfg.Idempotency.DynamoDBTable != "" {
		ledger, err := backend.OpenLedger(ctx, cfg)
		if err != nil {
			return err
		}

		if err := orders.Reset(ctx, ledger, cfg.Producer.FirstOrder, cfg.Producer.Count); err != nil {
			return err
		}
	}

	producer := queue.NewProducer(svc, logger,
		queue.WithProducerRequestOptions(requestOptions),
		queue.WithSendRate(cfg.Producer.Rate, cfg.Producer.Burst),
	)

	if err := producer.Run(ctx, cfg.Producer.FirstOrder, cfg.Producer.Count); err != nil {
		return err
	}

	logger.Infof("Placed %d orders on queue %s", cfg.Producer.Count, svc.Name())

	return nil
}
