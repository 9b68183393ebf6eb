package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/db"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/jobs"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/server"
)

func main() {
	runOnce := flag.String("run-once", "", "run a job once and exit (reconcile, expire-orders)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mitra backend", "port", cfg.AppPort, "log_level", cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDSN, cfg.LogLevel)
	if err != nil {
		fatal("connect database", err)
	}
	if err := db.Migrate(gdb); err != nil {
		fatal("migrate database", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	// With redis every instance relays every user's events; without it
	// events only reach sockets held by this process.
	var notifier realtime.Notifier = hub
	rdb := realtime.NewRedis(&cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, notifications stay local", "error", err)
	} else {
		notifier = realtime.NewRedisNotifier(rdb)
		go realtime.Relay(ctx, rdb, hub)
	}
	defer rdb.Close()

	svc := server.NewServices(gdb, notifier)
	runner := jobs.NewJobRunner(gdb, svc.Ledger, svc.Orders,
		time.Duration(cfg.OrderPendingTTLHours)*time.Hour)

	if *runOnce != "" {
		switch *runOnce {
		case "reconcile":
			runner.ReconcileSnapshots()
		case "expire-orders":
			runner.ExpireStaleOrders()
		default:
			fatal("run-once", errors.New("unknown job "+*runOnce))
		}
		return
	}

	scheduler, err := jobs.NewScheduler(&cfg, runner)
	if err != nil {
		fatal("create scheduler", err)
	}
	scheduler.Start()

	provider := identity.NewJWTProvider(cfg.JWTSecret, cfg.JWTExpiresMin)
	app := server.New(server.Deps{
		Config:     &cfg,
		DB:         gdb,
		Provider:   provider,
		Hub:        hub,
		Notifier:   notifier,
		RequestLog: true,
	}, svc)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	scheduler.Stop()

	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("bye")
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
