package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/JulesNsenda/chakucart/internal/config"
	"github.com/JulesNsenda/chakucart/internal/database"
	"github.com/JulesNsenda/chakucart/internal/events"
	idemmemory "github.com/JulesNsenda/chakucart/internal/idempotency/memory"
	idempostgres "github.com/JulesNsenda/chakucart/internal/idempotency/postgres"
	"github.com/JulesNsenda/chakucart/internal/orders/adapters"
	httpadapter "github.com/JulesNsenda/chakucart/internal/orders/adapters/http"
	"github.com/JulesNsenda/chakucart/internal/orders/adapters/memory"
	orderspostgres "github.com/JulesNsenda/chakucart/internal/orders/adapters/postgres"
	ordersredis "github.com/JulesNsenda/chakucart/internal/orders/adapters/redis"
	ordersapp "github.com/JulesNsenda/chakucart/internal/orders/app"
	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	ordersmetrics "github.com/JulesNsenda/chakucart/internal/orders/metrics"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/telemetry"
)

const meterName = "github.com/JulesNsenda/chakucart"

func main() {
	if err := run(); err != nil {
		slog.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.Telemetry.Level()).With("service", cfg.Service.Name)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := otel.GetMeterProvider().Meter(meterName)
	checks := map[string]httpadapter.Check{}

	st, err := openStore(ctx, cfg, logger, meter)
	if err != nil {
		return err
	}
	defer st.close()
	if st.ping != nil {
		checks["database"] = st.ping
	}

	locker, lockerPing, closeLocker, err := openLocker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()
	if lockerPing != nil {
		checks["redis"] = lockerPing
	}

	bus, closeBus, err := openEventBus(ctx, cfg, logger, meter)
	if err != nil {
		return err
	}
	defer closeBus()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gw, err := gateway.New(gateway.Config{
		BaseURL:           cfg.Gateway.BaseURL,
		SecretKey:         cfg.Gateway.SecretKey,
		Currency:          cfg.Gateway.Currency,
		Timeout:           cfg.Gateway.Timeout,
		PreAuthCurrencies: cfg.Gateway.PreAuthCurrencies,
	}, gateway.WithMetrics(gateway.NewMetrics(registry)), gateway.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create payment gateway client: %w", err)
	}

	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}

	deps := commands.Dependencies{
		Orders:    adapters.NewObservableRepository(st.orders, st.dbMetrics, orderMetrics),
		Customers: st.customers,
		Gateway:   gw,
		Locker:    locker,
		Events:    bus,
		Logger:    logger,
		Settings: commands.PaymentSettings{
			Currency:            cfg.Gateway.Currency,
			ProviderFeePercent:  cfg.Gateway.ProviderFeePercent,
			GoodsSubaccount:     cfg.Gateway.GoodsSubaccount,
			DeliverySubaccount:  cfg.Gateway.DeliverySubaccount,
			CardLinkAmountUnits: cfg.Gateway.CardLinkAmount,
			CallbackURL:         cfg.Gateway.CallbackURL,
		},
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
	service := ordersapp.NewService(deps, st.idempotency, logger, orderMetrics)

	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	router := httpadapter.NewRouter(httpadapter.NewHandler(service, logger), httpadapter.RouterConfig{
		Logger:         logger,
		Metrics:        httpMetrics,
		Checks:         checks,
		MetricsPath:    cfg.HTTP.MetricsPath,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(router, cfg.Service.Name),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "store", cfg.Store.Driver, "events", cfg.Events.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		purgeIdempotencyKeys(gctx, st.idempotency, cfg.Idempotency, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})

	return g.Wait()
}

// purgeIdempotencyKeys expires stored responses older than the retention window until ctx ends.
func purgeIdempotencyKeys(ctx context.Context, idem ports.IdempotencyStore, cfg config.IdempotencyConfig, logger *slog.Logger) {
	purger, ok := idem.(ports.IdempotencyPurger)
	if !ok {
		return
	}

	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := purger.Purge(ctx, now.Add(-cfg.TTL))
			if err != nil {
				logger.WarnContext(ctx, "idempotency purge failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.InfoContext(ctx, "expired idempotency keys", "removed", removed)
			}
		}
	}
}

type store struct {
	orders      ports.OrderRepository
	customers   ports.CustomerRepository
	idempotency ports.IdempotencyStore
	dbMetrics   *database.Metrics
	ping        httpadapter.Check
	close       func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, meter metric.Meter) (*store, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory order store; data is lost on restart")
		return &store{
			orders:      memory.NewRepository(),
			customers:   memory.NewCustomerRepository(),
			idempotency: idemmemory.NewStore(),
			close:       func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath, "embedded", cfg.Database.MigrationsPath == "")
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed successfully")
	}

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create database metrics: %w", err)
	}
	if err := database.RegisterPoolStats(meter, pool.Stat); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool stats: %w", err)
	}

	return &store{
		orders:      orderspostgres.NewRepository(pool),
		customers:   adapters.NewObservableCustomerRepository(orderspostgres.NewCustomerRepository(pool), dbMetrics),
		idempotency: idempostgres.NewStore(pool),
		dbMetrics:   dbMetrics,
		ping: func(ctx context.Context) error {
			return database.CheckHealth(ctx, pool)
		},
		close: pool.Close,
	}, nil
}

func openLocker(cfg *config.Config, logger *slog.Logger) (ports.Locker, httpadapter.Check, func(), error) {
	if !cfg.Redis.Enabled {
		logger.Info("using in-process order locks")
		return memory.NewLocker(), nil, func() {}, nil
	}

	client, err := ordersredis.NewClient(cfg.Redis.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create redis client: %w", err)
	}
	locker := ordersredis.NewLocker(client, cfg.Redis.LockTTL, ordersredis.WithLogger(logger))
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing redis client", "error", err)
		}
	}
	return locker, locker.Ping, closeFn, nil
}

func openEventBus(ctx context.Context, cfg *config.Config, logger *slog.Logger, meter metric.Meter) (ports.EventBus, func(), error) {
	eventMetrics, err := events.NewMetrics(meter)
	if err != nil {
		return nil, nil, fmt.Errorf("create event metrics: %w", err)
	}

	if cfg.Events.Driver != config.EventsDriverPubSub {
		return adapters.NewObservableEventBus(events.NewNoopEventBus(logger), eventMetrics), func() {}, nil
	}

	bus, err := events.NewPubSubEventBus(ctx, cfg.Events.GCPProjectID, cfg.Events.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub event bus: %w", err)
	}
	closeFn := func() {
		if err := bus.Close(); err != nil {
			logger.Warn("closing pubsub client", "error", err)
		}
	}
	return adapters.NewObservableEventBus(bus, eventMetrics), closeFn, nil
}
