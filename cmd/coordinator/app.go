package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"campuscart/internal/events"
	"campuscart/internal/general/config"
	"campuscart/internal/general/jwt"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/metrics"
	"campuscart/internal/general/postgres"
	"campuscart/internal/general/rabbitmq"
	"campuscart/internal/general/redis"
	"campuscart/internal/general/websocket"
	"campuscart/internal/handler"
	"campuscart/internal/service/chats"
	"campuscart/internal/service/fleet"
	"campuscart/internal/service/rides"
)

// run wires the coordinator and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	log := logger.New("cart-coordinator")
	ctx = log.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "failed to load configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "db_connection_failed", "failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	redisClient, err := redis.NewClient(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "redis_connection_failed", "failed to connect to Redis", err, nil)
		return err
	}
	defer redisClient.Close()
	presence := redis.NewPresence(redisClient)

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.AccessTTL())
	bus := events.NewBus()
	stats := metrics.New()

	uow := postgres.NewUnitOfWork(pool)
	rideRepo := postgres.NewRideRepo(pool)
	rideEventRepo := postgres.NewRideEventRepo(pool)
	cartRepo := postgres.NewCartRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	threadRepo := postgres.NewThreadRepo(pool)

	rideSvc := rides.New(log, uow, rideRepo, rideEventRepo, userRepo, threadRepo, bus, stats)
	fleetSvc := fleet.New(log, uow, cartRepo, userRepo, rideRepo)
	chatSvc := chats.New(log, uow, userRepo, threadRepo, bus, stats)

	// bridge in-process events to RabbitMQ for out-of-process observers
	go rabbitmq.NewRelay(rmq, bus, log).Run(ctx)

	hub := websocket.New(log, jwtManager, presence, rideRepo, threadRepo, bus, stats)

	mux := http.NewServeMux()
	handler.New(log, jwtManager, rideSvc, fleetSvc, chatSvc, presence, hub).RegisterRoutes(mux)
	mux.Handle("GET /metrics", stats.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           withConcurrencyLimit(cfg.HTTP.MaxConcurrency, stats.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("cart coordinator started on port %d", cfg.HTTP.Port),
		map[string]any{"port": cfg.HTTP.Port, "max_concurrent": cfg.HTTP.MaxConcurrency},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info(ctx, "shutdown_started", "draining connections", nil)
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_shutdown_failed", "failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.HTTP.Port})
			return err
		}
	}
	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
