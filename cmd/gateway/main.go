package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/config"
	"github.com/ariefcatur/go-order-settlement/internal/gateway"
	"github.com/ariefcatur/go-order-settlement/internal/httpx"
	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadGateway()

	log, err := logging.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	telemetry.Setup()

	if err := run(cfg, log); err != nil {
		log.Fatal("gateway_exit", zap.Error(err))
	}
}

func run(cfg config.GatewayConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	sched := gateway.NewTimerScheduler()
	sim := &gateway.Simulator{
		Table:         gateway.NewStatusTable(),
		Scheduler:     sched,
		Notifier:      &gateway.HTTPNotifier{URL: cfg.WebhookURL, Client: &http.Client{Timeout: cfg.WebhookTimeout}},
		Delay:         cfg.SettleDelay,
		SuccessRate:   cfg.SuccessRate,
		NotifyTimeout: cfg.WebhookTimeout,
		Log:           log,
		Metrics:       m,
	}

	router := httpx.NewRouter(log, m)
	router.Handle("/metrics", metrics.Handler(reg))
	(&gateway.Handler{Sim: sim}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gateway_listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("webhook_url", cfg.WebhookURL),
			zap.Duration("delay", cfg.SettleDelay),
			zap.Float64("success_rate", cfg.SuccessRate),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting_down", zap.Int("pending_settlements", sched.Pending()))
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		// timer yang belum jalan dibuang; settlement tetap PENDING
		sched.Stop()
		return err
	})
	return g.Wait()
}
