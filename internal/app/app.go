package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/juliakaiko/orderservice/internal/broker"
	"github.com/juliakaiko/orderservice/internal/buyerclient"
	"github.com/juliakaiko/orderservice/internal/domain/buyer"
	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/order"
	"github.com/juliakaiko/orderservice/internal/handler"
	"github.com/juliakaiko/orderservice/internal/settlement"
	"github.com/juliakaiko/orderservice/internal/storage/postgres"
	"github.com/juliakaiko/orderservice/pkg/health"
	"github.com/juliakaiko/orderservice/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the payment outcome
// consumers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	brokers := cfg.KafkaBrokers()
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Strings("brokers", brokers),
		zap.String("request_topic", cfg.Kafka.RequestTopic),
		zap.String("outcome_topic", cfg.Kafka.OutcomeTopic),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddReadinessCheck("kafka", 5*time.Second, func(ctx context.Context) error {
		return broker.Ping(ctx, brokers)
	}, health.WithThresholds(5, 1))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Buyer directory, cached in Redis when configured.
	client, err := buyerclient.New(buyerclient.Options{
		BaseURL:        cfg.Buyer.BaseURL,
		Timeout:        cfg.Buyer.Timeout,
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create buyer client")
	}
	var buyers buyer.Directory = client
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		// Cache failures degrade to direct lookups; redis is not a readiness
		// dependency.
		buyers = buyerclient.NewCachedDirectory(client, buyerclient.NewRedisCache(rdb), cfg.Buyer.CacheTTL)
	}

	// Settlement producer.
	metrics, err := settlement.NewMetrics(m.MeterProvider().Meter("github.com/juliakaiko/orderservice/settlement"))
	if err != nil {
		return errors.Wrap(err, "create settlement metrics")
	}
	writer, err := broker.NewWriter(broker.WriterConfig{
		Brokers:      brokers,
		Topic:        cfg.Kafka.RequestTopic,
		WriteTimeout: cfg.Kafka.PublishTimeout,
	})
	if err != nil {
		return errors.Wrap(err, "create kafka writer")
	}
	publisher := settlement.NewPublisher(writer, settlement.PublisherOptions{
		Source:         cfg.ServiceName,
		Timeout:        cfg.Kafka.PublishTimeout,
		Metrics:        metrics,
		TracerProvider: m.TracerProvider(),
	})
	defer func() {
		// In-flight sends finish before the writer and the pool go away.
		publisher.Close()
		if err := writer.Close(); err != nil {
			lg.Error("Close kafka writer", zap.Error(err))
		}
	}()

	// Repositories and domain services.
	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	orderService := order.NewService(orderRepo, catalogRepo, buyers, publisher)
	lineItemService := order.NewLineItemService(orderRepo, orderRepo, catalogRepo)
	catalogService := catalog.NewService(catalogRepo)

	// Settlement consumer.
	reconciler := settlement.NewReconciler(orderService, metrics, m.TracerProvider())
	consumer := settlement.NewConsumer(func() (settlement.MessageReader, error) {
		return broker.NewReader(broker.ReaderConfig{
			Brokers: brokers,
			Topic:   cfg.Kafka.OutcomeTopic,
			GroupID: cfg.Kafka.GroupID,
		})
	}, reconciler, settlement.ConsumerOptions{
		Workers:         cfg.Kafka.Workers,
		RedeliveryDelay: cfg.Kafka.RedeliveryDelay,
		MaxAttempts:     cfg.Kafka.MaxAttempts,
	})

	// HTTP: health endpoints + API routes on one server.
	router := handler.New(orderService, lineItemService, catalogService).Routes()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.ForwardAuthorization(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(cfg.ServiceName, m),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := consumer.Run(gctx); err != nil {
			return errors.Wrap(err, "settlement consumer")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}
