package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crystal-ball/internal/advisor"
	"crystal-ball/internal/bot"
	"crystal-ball/internal/cache"
	"crystal-ball/internal/collector"
	"crystal-ball/internal/config"
	"crystal-ball/internal/db"
	"crystal-ball/internal/decisions"
	"crystal-ball/internal/features"
	"crystal-ball/internal/handler"
	"crystal-ball/internal/indicator"
	"crystal-ball/internal/job"
	"crystal-ball/internal/ml/registry"
	"crystal-ball/internal/pipeline"
	"crystal-ball/internal/provider"
	"crystal-ball/internal/repository"
	"crystal-ball/internal/sentiment"
	"crystal-ball/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "crystal-ball/docs"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	initPostgresFunc    = db.InitPostgres
	initRedisFunc       = cache.InitRedis
	initTracerFunc      = tracing.InitTracer
	newMarketSourceFunc = func(tracer trace.Tracer) collector.MarketSource {
		return provider.NewCoinGeckoProvider(tracer)
	}
	newReferenceSourceFunc = func(tracer trace.Tracer) collector.ReferenceSource {
		return provider.NewStooqProvider(tracer)
	}
	newNewsSourceFunc = func(tracer trace.Tracer) collector.NewsSource {
		return provider.NewRSSProvider(tracer)
	}
	startJobsFunc = func(ctx context.Context, starters ...func(context.Context)) {
		for _, start := range starters {
			go start(ctx)
		}
	}
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Crystal Ball API
// @version         1.0
// @description     Next-day BTC direction calls from market, reference and news data.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories
	marketRepo := repository.NewMarketRepository(db.Pool, tracer)
	indicatorRepo := indicator.NewRepository(db.Pool, tracer)
	newsRepo := sentiment.NewRepository(db.Pool, tracer)
	featureRepo := features.NewRepository(db.Pool, tracer)
	decisionRepo := decisions.NewRepository(db.Pool, tracer)
	registryRepo := registry.NewRepository(db.Pool, tracer)
	decisionCache := cache.NewDecisionCache(cache.Client)

	// Upstream sources
	marketSource := newMarketSourceFunc(tracer)
	referenceSource := newReferenceSourceFunc(tracer)
	newsSource := newNewsSourceFunc(tracer)

	var llm sentiment.BatchLLMScorer
	if cfg.OpenAIAPIKey != "" {
		llm = sentiment.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	scorer := sentiment.NewScorer(llm, 0)

	collectorService := collector.NewService(
		tracer,
		marketSource,
		referenceSource,
		newsSource,
		scorer,
		marketRepo,
		newsRepo,
		collector.Config{
			MarketDays: cfg.MarketDays,
			FeedURLs:   cfg.NewsFeedURLs,
			MaxPerFeed: cfg.MaxPerFeed,
		},
	)

	pipelineService := pipeline.NewService(
		tracer,
		marketRepo,
		indicatorRepo,
		newsRepo,
		featureRepo,
		registryRepo,
		decisionRepo,
		decisionCache,
		cfg.DecisionThreshold,
	)

	// Background jobs (started below, once the bot announcer is known)
	collectorJob := job.NewCollectorJob(tracer, collectorService, time.Duration(cfg.CollectPollSecs)*time.Second)
	pipelineJob := job.NewDailyPipelineJob(tracer, pipelineService, cfg.PipelineHourUTC)
	resolverJob := job.NewOutcomeResolverJob(tracer, pipelineService, time.Duration(cfg.ResolvePollSecs)*time.Second, cfg.ResolveBatchSize)

	// Advisor answers free-form questions about the current call. Without
	// an OpenAI key the bot still serves /prediction and /history.
	var explainer bot.Explainer
	if cfg.OpenAIAPIKey != "" {
		conversationRepo := repository.NewConversationRepository(db.Pool, tracer)
		explainer = advisor.NewAdvisorService(
			tracer,
			advisor.NewOpenAIClient(cfg.OpenAIAPIKey),
			decisionRepo,
			featureRepo,
			conversationRepo,
			cfg.OpenAIModel,
			20,
		)
	}

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	notifier := startTelegramBotFunc(decisionRepo, decisionCache, explainer)
	if notifier != nil {
		pipelineJob.SetAnnouncer(notifier)
	}

	// Background jobs (stopped by ctx cancel)
	startJobsFunc(ctx, collectorJob.Start, pipelineJob.Start, resolverJob.Start)

	// Create handlers and routes
	h := handler.New(tracer, decisionRepo, featureRepo, decisionCache)
	h.SetPipelineRunner(pipelineService)
	h.SetModelRegistry(registryRepo)
	h.SetSeriesReaders(newsRepo, indicatorRepo)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("crystal-ball"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
