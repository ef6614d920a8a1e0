package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/cart"
	"github.com/ariefcatur/go-order-settlement/internal/config"
	"github.com/ariefcatur/go-order-settlement/internal/httpx"
	"github.com/ariefcatur/go-order-settlement/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-settlement/internal/kafka"
	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/memory"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payments"
	"github.com/ariefcatur/go-order-settlement/internal/postgres"
	"github.com/ariefcatur/go-order-settlement/internal/projection"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	telemetry.Setup()

	if err := run(cfg, log); err != nil {
		log.Fatal("api_exit", zap.Error(err))
	}
}

type stores struct {
	catalog  orders.Catalog
	ledger   orders.Ledger
	carts    cart.Store
	orders   orders.Store
	payments payments.Store
	seed     func(context.Context, []orders.Product) error
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithContext(ctx, log)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	var (
		st      stores
		cache   *redisx.StatusCache
		idem    *redisx.Idempotency
		dedup   *redisx.Dedup
		closers []func()
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	switch cfg.StorageDriver {
	case config.DriverMemory:
		catalog := memory.NewCatalog()
		st = stores{
			catalog:  catalog,
			ledger:   catalog,
			carts:    memory.NewCarts(),
			orders:   memory.NewOrderStore(),
			payments: memory.NewPaymentStore(),
			seed: func(_ context.Context, ps []orders.Product) error {
				catalog.Seed(ps)
				return nil
			},
		}
	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.MigrationsURL, cfg.PostgresDSN); err != nil {
			return err
		}
		// DB
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		closers = append(closers, db.Close)

		// Redis
		rdb := redisx.New(cfg.RedisAddr)
		closers = append(closers, func() { _ = rdb.Close() })
		if err := redisx.Ping(ctx, rdb); err != nil {
			return err
		}

		inv := &inventory.PGRepo{DB: db}
		st = stores{
			catalog:  inv,
			ledger:   inv,
			carts:    &cart.RedisStore{RDB: rdb},
			orders:   &orders.PGStore{DB: db},
			payments: &payments.PGStore{DB: db},
			seed:     inv.Seed,
		}
		cache = &redisx.StatusCache{RDB: rdb}
		idem = &redisx.Idempotency{RDB: rdb}
		dedup = &redisx.Dedup{RDB: rdb, Service: cfg.ServiceName + "-projector"}
	default:
		return errors.New("unknown STORAGE_DRIVER " + cfg.StorageDriver)
	}

	if cfg.ProductsSeed != "" {
		ps, err := inventory.LoadSeed(cfg.ProductsSeed)
		if err != nil {
			return err
		}
		if err := st.seed(ctx, ps); err != nil {
			return err
		}
		log.Info("products_seeded", zap.Int("count", len(ps)))
	}

	g, gctx := errgroup.WithContext(ctx)

	// Kafka producers
	var orderEvents, paymentEvents *orders.Emitter
	if cfg.EventsEnabled() {
		po := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
		pp := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentEvents, 1024, log)
		// ditutup lewat closers setelah HTTP server selesai drain
		po.Start(context.WithoutCancel(ctx))
		pp.Start(context.WithoutCancel(ctx))
		closers = append(closers, func() {
			po.Close() // tutup inbox -> flush & close writer
			pp.Close()
			po.WaitClosed()
			pp.WaitClosed()
		})
		orderEvents = &orders.Emitter{Pub: po, Producer: cfg.ServiceName}
		paymentEvents = &orders.Emitter{Pub: pp, Producer: cfg.ServiceName}

		if cache != nil {
			proj := &projection.Service{Cache: cache, Dedup: dedup}
			cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderEvents, cfg.ProjectorWorkers, log)
			g.Go(func() error {
				log.Info("projector_started", zap.String("group", cfg.ProjectorGroup), zap.Int("workers", cfg.ProjectorWorkers))
				return cons.Start(gctx, proj.HandleOrderEvent)
			})
		}
	}

	orderSvc := &orders.Service{
		Catalog: st.catalog,
		Ledger:  st.ledger,
		Carts:   st.carts,
		Store:   st.orders,
		Events:  orderEvents,
		Metrics: m,
	}
	coord := &payments.Coordinator{
		Orders:          orderSvc,
		Store:           st.payments,
		Gateway:         &payments.HTTPGateway{BaseURL: cfg.GatewayURL, Client: &http.Client{Timeout: cfg.GatewayTimeout}},
		Events:          paymentEvents,
		Metrics:         m,
		DispatchTimeout: cfg.GatewayTimeout,
	}
	recon := &payments.Reconciler{
		Store:   st.payments,
		Orders:  orderSvc,
		Events:  paymentEvents,
		Metrics: m,
	}

	router := httpx.NewRouter(log, m)
	router.Handle("/metrics", metrics.Handler(reg))
	(&httpx.CartHandler{
		Carts:   &cart.Service{Store: st.carts, Catalog: st.catalog, Ledger: st.ledger},
		Catalog: st.catalog,
	}).Register(router)
	oh := &httpx.OrdersHandler{Orders: orderSvc, Payments: coord}
	ph := &httpx.PaymentsHandler{Coordinator: coord, Reconciler: recon}
	// hindari typed-nil interface kalau Redis tidak dipakai
	if cache != nil {
		oh.Cache, ph.Cache = cache, cache
	}
	if idem != nil {
		oh.Idem = idem
	}
	oh.Register(router)
	ph.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.Info("http_listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting_down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
