package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-redis/redis/v8"

	"travel-agent/handler"
	"travel-agent/internal/config"
	"travel-agent/internal/integrations/amadeus"
	"travel-agent/internal/integrations/diseasesh"
	"travel-agent/internal/integrations/mockcabs"
	"travel-agent/internal/integrations/openai"
	"travel-agent/internal/integrations/paramstore"
	"travel-agent/internal/repository"
	"travel-agent/internal/textparse"
	"travel-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	store, err := newMemoryStore(cfg, awsCfg)
	if err != nil {
		slog.Error("failed to create memory store", "backend", cfg.MemoryBackend, "err", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(ssmClient, cfg.ParamPrefix, openai.WithBaseURL(cfg.OpenAIBaseURL))
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	amadeusClient, err := amadeus.NewClient(ssmClient, cfg.ParamPrefix,
		amadeus.WithBaseURL(cfg.AmadeusBaseURL),
		amadeus.WithRateLimit(cfg.AmadeusRPS),
	)
	if err != nil {
		slog.Error("failed to create Amadeus client", "err", err)
		os.Exit(1)
	}

	var cabs usecase.CabSearcher = amadeusClient
	if cfg.CabProvider == config.CabProviderMock {
		cabs = mockcabs.New()
	}

	health := diseasesh.NewClient(diseasesh.WithBaseURL(cfg.DiseaseBaseURL), diseasesh.WithLogger(logger))

	// ---- Dialogue ----
	engine, err := usecase.NewEngine(usecase.Providers{
		Flights:   amadeusClient,
		Hotels:    amadeusClient,
		Cabs:      cabs,
		Health:    health,
		Locations: amadeusClient,
	}, openaiClient, cfg.OpenAIModel, textparse.NewDateParser())
	if err != nil {
		slog.Error("failed to create dialogue engine", "err", err)
		os.Exit(1)
	}

	chatService, err := usecase.NewChatService(engine, store, cfg.MaxMessageLength)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("travel agent ready",
		"memory_backend", cfg.MemoryBackend,
		"cab_provider", cfg.CabProvider,
		"model", cfg.OpenAIModel,
	)
	lambda.Start(h.Handle)
}

func newMemoryStore(cfg config.Config, awsCfg aws.Config) (usecase.MemoryStore, error) {
	if cfg.MemoryBackend == config.BackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s, err := repository.NewRedisStore(rdb, cfg.MemoryTTL())
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	c, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.MemoryTTL())
	if err != nil {
		return nil, err
	}
	return c, nil
}
