package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/storefront-checkout/internal/config"
	kafkax "github.com/ariefcatur/storefront-checkout/internal/kafka"
	"github.com/ariefcatur/storefront-checkout/internal/orders"
	"github.com/ariefcatur/storefront-checkout/internal/projector"
	"github.com/ariefcatur/storefront-checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("service", cfg.ServiceName+"-projector")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Error("redis", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	svc := &projector.Service{
		Cache: redisx.NewStatusCache(rdb),
		Dedup: redisx.NewDedup(rdb, "projector"),
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.Topics, cfg.ProjectorJobs, log)
	log.Info("projector started", "group", cfg.ProjectorGroup, "topics", orders.Topics, "workers", cfg.ProjectorJobs)
	if err := cons.Start(ctx, svc.Handle); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("projector stopped")
}
