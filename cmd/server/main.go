package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/config"
	"github.com/iliyamo/event-seating-planner/internal/database"
	"github.com/iliyamo/event-seating-planner/internal/handler"
	"github.com/iliyamo/event-seating-planner/internal/logging"
	"github.com/iliyamo/event-seating-planner/internal/metrics"
	"github.com/iliyamo/event-seating-planner/internal/middleware"
	"github.com/iliyamo/event-seating-planner/internal/queue"
	"github.com/iliyamo/event-seating-planner/internal/repository"
	"github.com/iliyamo/event-seating-planner/internal/router"
	"github.com/iliyamo/event-seating-planner/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(""); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.IsDev(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Redis is optional: without it the cache and the rate limiter pass through.
	var rdb *redis.Client
	if rc, err := config.NewRedisClient(ctx, config.LoadRedisConfig()); err != nil {
		log.Warn("redis unavailable; cache and rate limiting disabled", zap.Error(err))
	} else {
		rdb = rc
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	runs := repository.NewRunRepo(db, events)

	var pub service.Publisher
	if cfg.AMQPURL != "" {
		pub = service.NewAMQPPublisher(cfg.AMQPURL, cfg.Optimizer.Queue, log.Named("queue"))
	} else {
		log.Warn("RABBITMQ_URL not set; background optimization disabled")
	}
	opt := service.NewOptimizer(events, runs, pub, cfg.Optimizer.Budget(), rec, log.Named("optimizer"))

	if pub != nil && cfg.Optimizer.WorkerEnabled {
		consumer := &queue.Consumer{
			URL:    cfg.AMQPURL,
			Queue:  cfg.Optimizer.Queue,
			Handle: opt.Process,
			Log:    log.Named("queue"),
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("optimization worker stopped", zap.Error(err))
			}
		}()
	}

	httpLog := log.Named("http")
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(httpLog))

	router.Register(e, router.Deps{
		JWTSecret:    cfg.JWTSecret,
		Auth:         handler.NewAuthHandler(cfg, users, tokens, httpLog),
		Events:       handler.NewEventHandler(events, httpLog),
		Optimization: handler.NewOptimizationHandler(events, runs, opt, httpLog),
		Cache:        middleware.NewRedisCache(config.LoadCacheConfig(), rdb, httpLog),
		RateLimit:    middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, httpLog).Middleware(),
		Gatherer:     reg,
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
