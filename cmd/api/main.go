package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/storefront-checkout/internal/config"
	"github.com/ariefcatur/storefront-checkout/internal/httpx"
	"github.com/ariefcatur/storefront-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/storefront-checkout/internal/kafka"
	"github.com/ariefcatur/storefront-checkout/internal/memstore"
	"github.com/ariefcatur/storefront-checkout/internal/orders"
	"github.com/ariefcatur/storefront-checkout/internal/postgres"
	"github.com/ariefcatur/storefront-checkout/internal/pricing"
	"github.com/ariefcatur/storefront-checkout/internal/redisx"
	"github.com/ariefcatur/storefront-checkout/internal/telemetry"
)

var version = "dev"

type catalogStore interface {
	orders.Store
	httpx.Catalog
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("service", cfg.ServiceName)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, version, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer", "err", err)
		os.Exit(1)
	}

	policy, err := pricing.NewPolicy(cfg.Pricing.ShippingThreshold, cfg.Pricing.ShippingCost,
		cfg.Pricing.TaxRate, cfg.Pricing.GiftThreshold, cfg.Pricing.Coupons)
	if err != nil {
		log.Error("pricing policy", "err", err)
		os.Exit(1)
	}

	// Store
	var store catalogStore
	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New()
		seedDemoCatalog(mem)
		store = mem
		log.Warn("using in-memory store; data is lost on exit")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("db schema", "err", err)
			os.Exit(1)
		}
		store = postgres.NewStore(db)
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	m := orders.NewManager(store, inventory.NewLedger(log), policy,
		orders.WithPublisher(prod),
		orders.WithLogger(log),
		orders.WithServiceName(cfg.ServiceName),
	)

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Orders:  m,
		Catalog: store,
		Timeout: cfg.RequestTimeout,
		Log:     log,
	}

	// Redis is optional: without it checkout runs with no idempotency keys
	// and no status cache.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	if err := redisx.Ping(pingCtx, rdb); err != nil {
		log.Warn("redis unavailable, cache and idempotency disabled", "addr", cfg.RedisAddr, "err", err)
	} else {
		oh.Cache = redisx.NewStatusCache(rdb)
		oh.Idem = redisx.NewIdempotency(rdb)
	}
	cancelPing()
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	prod.Close()
	prod.WaitClosed()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown", "err", err)
	}
}
