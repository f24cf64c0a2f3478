package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/memorialkit/handler"
	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/billing"
	"github.com/dmitrymomot/memorialkit/pkg/config"
	"github.com/dmitrymomot/memorialkit/pkg/docstore"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/pkg/httpserver"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
	"github.com/dmitrymomot/memorialkit/pkg/metrics"
	"github.com/dmitrymomot/memorialkit/pkg/mongo"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/ratelimit"
	"github.com/dmitrymomot/memorialkit/pkg/redis"
	"github.com/dmitrymomot/memorialkit/pkg/session"
	"github.com/dmitrymomot/memorialkit/svc/api"
	"github.com/dmitrymomot/memorialkit/svc/memorial"
	"github.com/dmitrymomot/memorialkit/svc/subscription"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

// closer releases a backend after the server has stopped.
type closer func(context.Context) error

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(logger.RequestIDExtractor(middleware.GetReqID)),
	)
	logger.SetAsDefault(log)

	catalog, err := plan.Load(ctx, cfg.API.Plans.Source())
	if err != nil {
		return fmt.Errorf("load plan catalog: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	checks := make(map[string]httpserver.CheckFunc)
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](context.Background()); err != nil {
				log.Error("failed to release backend", logger.Error(err))
			}
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.StoreBackend, checks)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	limitStore, closeLimitStore, err := openLimitStore(ctx, cfg.API.RateLimit.Backend, checks)
	if err != nil {
		return err
	}
	closers = append(closers, closeLimitStore)

	profiles, err := cfg.API.RateLimit.Profiles()
	if err != nil {
		return fmt.Errorf("rate limit profiles: %w", err)
	}
	limiter, err := ratelimit.New(limitStore, profiles,
		ratelimit.WithLogger(log),
		ratelimit.WithRecorder(m),
	)
	if err != nil {
		return err
	}

	var paddleCfg billing.PaddleConfig
	if err := config.Load(&paddleCfg); err != nil {
		return err
	}
	gateway, err := billing.NewPaddleGateway(paddleCfg)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(cfg.API.Session)
	if err != nil {
		return err
	}

	evaluator := entitlement.NewEvaluator(catalog, store, store,
		entitlement.WithRemediator(store),
		entitlement.WithRecorder(m),
		entitlement.WithLogger(log),
	)
	orchestrator := billing.NewOrchestrator(catalog, store, gateway,
		billing.WithTimeout(cfg.API.Billing.Timeout),
		billing.WithRecorder(m),
		billing.WithLogger(log),
	)

	memorialOpts := []memorial.ServiceOption{memorial.WithLogger(log)}
	if cfg.API.UseSessionSnapshots() {
		memorialOpts = append(memorialOpts, memorial.WithSessionSnapshots())
	}
	memorials := memorial.NewService(evaluator, store, memorialOpts...)
	subscriptions := subscription.NewService(catalog, store, evaluator, orchestrator,
		subscription.WithLogger(log),
	)

	errorHandler := handler.NewErrorHandler(log)
	router := api.Router(api.RouterOptions{
		Log:          log,
		Sessions:     sessions,
		Metrics:      m,
		Checks:       checks,
		Memorials:    api.NewMemorialModule(memorials, limiter, errorHandler),
		Subscription: api.NewSubscriptionModule(subscriptions, limiter, errorHandler),
		Billing:      api.NewBillingModule(subscriptions, gateway, limiter, errorHandler, cfg.API.Checkout),
	})

	server := httpserver.NewFromConfig(cfg.API.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(addr string) {
			log.Info("serving memorialkit",
				slog.String("addr", addr),
				slog.String("store", cfg.StoreBackend),
				slog.String("rate_limit_store", cfg.API.RateLimit.Backend),
			)
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, router)
	})
	return g.Wait()
}

func openStore(ctx context.Context, backend string, checks map[string]httpserver.CheckFunc) (account.Store, closer, error) {
	switch backend {
	case backendMemory, "":
		return docstore.NewMemory(), func(context.Context) error { return nil }, nil
	case backendMongo:
		var mcfg mongo.Config
		if err := config.Load(&mcfg); err != nil {
			return nil, nil, err
		}
		client, err := mongo.New(ctx, mcfg)
		if err != nil {
			return nil, nil, err
		}
		store := mongo.NewStore(client.Database(mcfg.Database), mcfg.OperationTimeout)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		checks["mongo"] = mongo.Healthcheck(client)
		return store, client.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func openLimitStore(ctx context.Context, backend string, checks map[string]httpserver.CheckFunc) (ratelimit.Store, closer, error) {
	switch backend {
	case backendMemory, "":
		s := ratelimit.NewMemoryStore()
		return s, func(context.Context) error { return s.Close() }, nil
	case backendRedis:
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = redis.Healthcheck(client)
		return ratelimit.NewRedisStore(client), func(context.Context) error { return client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", backend)
	}
}
