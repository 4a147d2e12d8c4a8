package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/api"
	netconfig "github.com/transitwatch/verifier/internal/config"
	"github.com/transitwatch/verifier/internal/logging"
	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/service"
	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/storage/postgres"
)

func main() {
	ctx := context.Background()

	cfg, err := config.ReadVerifierConfig()
	if err != nil {
		panic(err)
	}

	env, err := config.LoadEnv()
	if err != nil {
		panic(err)
	}
	env.Override(&cfg.Database, &cfg.Redis)
	if env.JWTSecret != "" {
		cfg.Server.JWTSecret = env.JWTSecret
	}

	logger := logging.NewLogger(logging.LogFormat(cfg.LogFormat))

	redisStorage, err := storage.NewRedisStorage(cfg.Redis)
	if err != nil {
		panic(err)
	}

	var redisConnOpt asynq.RedisConnOpt
	if cfg.Redis.URI != "" {
		redisConnOpt, err = asynq.ParseRedisURI(cfg.Redis.URI)
		if err != nil {
			panic(err)
		}
	} else {
		redisConnOpt = asynq.RedisClientOpt{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Username: cfg.Redis.User,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}

	client := asynq.NewClient(redisConnOpt)
	defer func() {
		if err := client.Close(); err != nil {
			fmt.Println("fail to close asynq client,", err)
		}
	}()

	db, err := postgres.NewPostgresBackend(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	var network *netconfig.NetworkData
	if cfg.NetworkFile != "" {
		network, err = netconfig.LoadNetworkData(cfg.NetworkFile)
		if err != nil {
			logger.Fatalf("Failed to load network data: %v", err)
		}
	}

	registry := metrics.NewRegistry(logger)
	engineMetrics := metrics.NewEngineMetrics()
	engineMetrics.Register(registry)

	publishService, err := service.NewPublishService(db, client, cfg.Engine.Reward, engineMetrics)
	if err != nil {
		logger.Fatalf("Failed to initialize publish service: %v", err)
	}
	reportService, err := service.NewReportService(db, redisStorage, cfg.Engine, network, publishService, engineMetrics)
	if err != nil {
		logger.Fatalf("Failed to initialize report service: %v", err)
	}
	moderationService, err := service.NewModerationService(db, publishService, engineMetrics)
	if err != nil {
		logger.Fatalf("Failed to initialize moderation service: %v", err)
	}
	authService := service.NewAuthService(cfg.Server.JWTSecret)

	server := api.NewServer(
		*cfg,
		reportService,
		moderationService,
		authService,
		registry,
	)
	if err := server.StartServer(); err != nil {
		panic(err)
	}
}
