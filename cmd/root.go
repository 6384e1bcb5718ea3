package cmd

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"entrevia/internal/auth"
	feat "entrevia/internal/features"
	"entrevia/internal/handler"
	"entrevia/internal/repo"
	"entrevia/internal/service"
	rediscache "entrevia/internal/utils/redis"
	"entrevia/pkg/database/client"
	logging "entrevia/pkg/logger/pkg"
	rabbitmq "entrevia/pkg/rabbit/pkg"
	redispkg "entrevia/pkg/redis/pkg"
)

func Execute() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	viper.SetConfigFile("./config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("config file not loaded, using environment only: %v", err)
	}
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.sseport", "8081")
	viper.SetDefault("worker.pool_size", 2)
	viper.SetDefault("worker.queue_capacity", 64)
	viper.SetDefault("worker.job_timeout_seconds", 30)

	if err := logging.InitLogger(&logging.Config{
		Level:  viper.GetString("log.level"),
		Pretty: viper.GetBool("log.pretty"),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	logger := logging.Logger(ctx)
	defer logger.Sync()

	if viper.GetBool("tracing.enabled") {
		tracer.Start(tracer.WithService(viper.GetString("tracing.service")))
		defer tracer.Stop()
	}

	dbConfig := client.ReadConfig()
	db, err := client.Open("mysql_entrevia", dbConfig)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	repository, err := repo.New(db)
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	cache := buildCache(logger)
	broker := rabbitmq.New(rabbitmq.ReadConfig())

	openaiConfig := service.ReadOpenAIConfig()
	openaiClient := service.NewOpenAI(openaiConfig)

	var providers []service.Provider
	var transcriber service.Transcriber
	if openaiClient.Enabled() {
		providers = append(providers, openaiClient)
		transcriber = openaiClient
	}
	if groqConfig := service.ReadGroqConfig(); groqConfig.APIKey != "" {
		providers = append(providers, service.NewGroq(groqConfig))
	}
	if geminiConfig := service.ReadGeminiConfig(); geminiConfig.APIKey != "" {
		gemini, err := service.NewGemini(ctx, geminiConfig)
		if err != nil {
			logger.Warn("Gemini client unavailable", zap.Error(err))
		} else {
			providers = append(providers, gemini)
		}
	}
	if len(providers) == 0 {
		logger.Warn("No AI providers configured, AI endpoints will fail")
	}

	router := service.NewRouter(service.ReadRouterConfig(), providers, transcriber)
	synth := service.NewSynthesizer(service.ReadTTSConfig(), openaiClient, cache)

	pool := feat.NewPrewarmPool(
		viper.GetInt("worker.pool_size"),
		viper.GetInt("worker.queue_capacity"),
		viper.GetInt("worker.job_timeout_seconds"),
		synth, logger)
	pool.Start()
	defer pool.Stop()

	svc := feat.NewService(feat.ReadLimits(), repository, router, synth, pool)

	creditConfig := feat.ReadCreditConfig()
	processor := feat.NewCreditProcessor(creditConfig, repository, broker)

	sweeper := feat.NewSweeper(feat.ReadSweeperConfig(), repository, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start session sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	go startWorker(ctx, logger, broker, processor)
	startSSE()

	h := handler.New(svc, processor, creditConfig)
	startHTTP(logger, h, auth.ReadConfig())
}

func buildCache(logger *zap.Logger) *rediscache.Cache {
	config := redispkg.ReadConfig()
	if config.Address == "" {
		logger.Warn("Redis not configured, caching disabled")
		return rediscache.NewCache(nil, config.Namespace)
	}
	redisClient, err := redispkg.New(config)
	if err != nil {
		logger.Warn("Redis unreachable, caching disabled", zap.Error(err))
		return rediscache.NewCache(nil, config.Namespace)
	}
	return rediscache.NewCache(redisClient, config.Namespace)
}
