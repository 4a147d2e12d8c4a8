package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/health"
	"github.com/transitwatch/verifier/internal/logging"
	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/service"
	"github.com/transitwatch/verifier/internal/storage/postgres"
	"github.com/transitwatch/verifier/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ReadWorkerConfig()
	if err != nil {
		panic(err)
	}

	env, err := config.LoadEnv()
	if err != nil {
		panic(err)
	}
	env.Override(&cfg.Database, &cfg.Redis)

	logger := logging.NewLogger(logging.LogFormat(cfg.LogFormat))

	var redisOptions asynq.RedisConnOpt
	if cfg.Redis.URI != "" {
		redisOptions, err = asynq.ParseRedisURI(cfg.Redis.URI)
		if err != nil {
			panic(err)
		}
	} else {
		redisOptions = asynq.RedisClientOpt{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Username: cfg.Redis.User,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}
	client := asynq.NewClient(redisOptions)
	defer func() {
		_ = client.Close()
	}()

	db, err := postgres.NewPostgresBackend(ctx, cfg.Database.DSN, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize database: %v", err))
	}

	registry := metrics.NewRegistry(logger)
	engineMetrics := metrics.NewEngineMetrics()
	engineMetrics.Register(registry)

	publishService, err := service.NewPublishService(db, client, cfg.Engine.Reward, engineMetrics)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize publish service: %v", err))
	}
	trustService, err := service.NewTrustService(db, cfg.Engine.Trust, engineMetrics)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize trust service: %v", err))
	}
	sweepService, err := service.NewSweepService(db)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize sweep service: %v", err))
	}
	notifyService := service.NewNotifyService(cfg.Notification.GatewayURL)

	workerService, err := service.NewWorkerService(db, publishService, trustService, notifyService)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize worker service: %v", err))
	}

	trustWorker := service.NewTrustWorker(trustService, cfg.Engine.TrustRecomputeInterval)
	trustWorker.Start(ctx)
	defer trustWorker.Stop()

	sweepWorker := service.NewSweepWorker(sweepService, cfg.Engine.ExpirySweepInterval)
	sweepWorker.Start(ctx)
	defer sweepWorker.Stop()

	if cfg.MetricsPort != 0 {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", registry.Handler())
			if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.MetricsPort), metricsMux); err != nil {
				logger.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	if cfg.HealthPort != 0 {
		healthServer := health.New(cfg.HealthPort)
		go func() {
			if err := healthServer.Start(ctx, logger); err != nil {
				logger.Errorf("health server stopped: %v", err)
			}
		}()
	}

	srv := asynq.NewServer(
		redisOptions,
		asynq.Config{
			Logger:      logger,
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	workerService.Register(mux)

	if err := srv.Run(mux); err != nil {
		panic(fmt.Errorf("could not run server: %w", err))
	}
}
