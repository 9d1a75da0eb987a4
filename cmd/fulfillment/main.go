package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/commercekit/fulfillment/configs"
	"github.com/commercekit/fulfillment/pkg/httpx"
	"github.com/commercekit/fulfillment/pkg/idempotency"
	"github.com/commercekit/fulfillment/pkg/logging"
	"github.com/commercekit/fulfillment/pkg/shutdown"
	"github.com/commercekit/fulfillment/pkg/tracing"

	"github.com/commercekit/fulfillment/internal/analytics"
	cartapp "github.com/commercekit/fulfillment/internal/cart/application"
	carthttp "github.com/commercekit/fulfillment/internal/cart/infrastructure/http"
	cartpg "github.com/commercekit/fulfillment/internal/cart/infrastructure/postgres"
	catalogpg "github.com/commercekit/fulfillment/internal/catalog/infrastructure/postgres"
	"github.com/commercekit/fulfillment/internal/events"
	eventskafka "github.com/commercekit/fulfillment/internal/events/kafka"
	"github.com/commercekit/fulfillment/internal/observers"
	orderapp "github.com/commercekit/fulfillment/internal/order/application"
	orderhttp "github.com/commercekit/fulfillment/internal/order/infrastructure/http"
	orderpg "github.com/commercekit/fulfillment/internal/order/infrastructure/postgres"
	storage "github.com/commercekit/fulfillment/internal/storage/postgres"
)

func main() {
	configDir := flag.String("config", "./configs", "config directory")
	flag.Parse()

	cfg, err := configs.Load(*configDir)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.App.LogLevel, cfg.App.LogFile)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		tp, err := tracing.Init(ctx, cfg.App.Name, cfg.Telemetry.OTLPEndpoint, log)
		if err != nil {
			log.Error("otel init failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// Postgres
	pool, err := storage.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := storage.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	defer rdb.Close()

	// Stores
	catalog := catalogpg.NewRepository(log, pool)
	carts := cartpg.NewStore(log, pool)
	orders := orderpg.NewRepository(log, pool, catalog, carts)
	sales := analytics.NewStore(log, pool)

	// Event bus and observers
	bus := events.NewBus(log)
	bus.Attach(
		observers.NewNotifier(log, observers.NewLogMailer(log), observers.NewRedisDirectory(rdb)),
		observers.NewAnalytics(log, sales, catalog),
		observers.NewInventoryWatcher(log, catalog, catalog, cfg.Inventory.LowStockThreshold),
	)
	if cfg.Kafka.Enabled {
		writer := eventskafka.NewWriter(cfg.Kafka.Brokers)
		defer writer.Close()
		bus.Attach(observers.NewStream(log, writer, cfg.Kafka.Topic))
	}

	// Application services
	pricing := pricingFromConfig(cfg, log)
	workflow := orderapp.NewWorkflow(log, orders, carts, catalog, pricing, bus)
	cartSvc := cartapp.NewService(log, carts, catalog)
	idem := idempotency.NewStore(rdb, cfg.Idempotency.TTL)

	// HTTP server
	auth := httpx.NewAuth(cfg.Security.JWTSecret, cfg.Security.Issuer)
	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(log))
	r.Use(httpx.Metrics)
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Mount("/", orderhttp.NewHandler(log, workflow, idem, sales).Routes())
		r.Mount("/shopping", carthttp.NewHandler(log, cartSvc).Routes())
	})

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("http listening", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	bus.Drain()
	log.Info("fulfillment shutdown complete")
}

func pricingFromConfig(cfg configs.Config, log *slog.Logger) orderapp.PricingPolicy {
	p := orderapp.DefaultPricingPolicy()
	if v, err := decimal.NewFromString(cfg.Pricing.FreeShippingOver); err == nil {
		p.FreeShippingOver = v
	} else {
		log.Error("bad pricing.free_shipping_over, using default", "err", err)
	}
	if v, err := decimal.NewFromString(cfg.Pricing.ShippingFee); err == nil {
		p.ShippingFee = v
	} else {
		log.Error("bad pricing.shipping_fee, using default", "err", err)
	}
	if v, err := decimal.NewFromString(cfg.Pricing.TaxRate); err == nil {
		p.TaxRate = v
	} else {
		log.Error("bad pricing.tax_rate, using default", "err", err)
	}
	return p
}
