// Command processorders consumes the order queue. Each order is leased,
// kept hidden by a visibility heartbeat while it is processed, and deleted
// once processing succeeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slackmgr/orderqueue/internal/backend"
	"github.com/slackmgr/orderqueue/internal/cli"
	"github.com/slackmgr/orderqueue/internal/config"
	"github.com/slackmgr/orderqueue/orders"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/slackmgr/types"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cli.Main(cli.NewCommand("processorders", "Process orders from the order queue", run))
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

	// An in-memory queue is private to this process, so it is filled here.
	if cfg.Backend == config.BackendMemory {
		producer := queue.NewProducer(svc, logger, queue.WithProducerRequestOptions(requestOptions))

		if err := producer.Run(ctx, cfg.Producer.FirstOrder, cfg.Producer.Count); err != nil {
			return err
		}
	}

	ledger, err := backend.OpenLedger(ctx, cfg)
	if err != nil {
		return err
	}

	processor, err := orders.NewProcessor(ledger, logger, orders.WithWorkDuration(cfg.Processor.WorkDuration))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := queue.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	consumer, err := queue.NewConsumer(svc, processor, logger, append(cfg.ConsumerOptions(), queue.WithMetrics(metrics))...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	if cfg.Metrics.Address != "" {
		server := newMetricsServer(cfg.Metrics.Address, registry)

		g.Go(func() error {
			logger.Infof("Serving metrics on %s", cfg.Metrics.Address)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
