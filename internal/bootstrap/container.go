package bootstrap

import (
	"context"
	"log"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/controller"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/implementation"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/pkg/cache"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/extraction"
	"ai-tutor-be/pkg/filecontext"
	llmOllama "ai-tutor-be/pkg/llm/ollama"
	llmOpenai "ai-tutor-be/pkg/llm/openai"
	"ai-tutor-be/pkg/prompt"
	"ai-tutor-be/pkg/retrieval"
	"ai-tutor-be/pkg/stream"
	"ai-tutor-be/pkg/window"

	pktNats "ai-tutor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	TutorController      controller.ITutorController
	CurriculumController controller.ICurriculumController

	// Background Services (Exposed for main.go to run)
	UsageConsumerService service.IUsageConsumerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Cache store: Redis in front, in-memory fallback when unreachable
	var cacheStore cache.Store
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory cache store", err)
		cacheStore = cache.NewMemoryStore()
	} else {
		cacheStore = cache.NewRedisStore(rdb)
	}

	ttlPolicy := cache.TTLPolicy{
		Small:  cfg.Tuning.TTLSmall,
		Medium: cfg.Tuning.TTLMedium,
		Large:  cfg.Tuning.TTLLarge,
		Huge:   cfg.Tuning.TTLHuge,
	}

	// 3. AI Providers
	embeddingProvider := embedding.NewOllamaProvider(
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OllamaModel,
	)
	log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)

	// Auxiliary model for query expansion, local and cheap
	expander := llmOllama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)

	streamProvider := llmOpenai.NewOpenAIProvider(
		cfg.Keys.OpenAI,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Tuning.MaxRetries,
	)
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Domain Components
	curriculumRepo := implementation.NewCurriculumChunkRepository(db)
	engine := retrieval.NewEngine(curriculumRepo, embeddingProvider, expander, cfg.Tuning, sysLogger)

	extractor := extraction.NewHTTPExtractor(cfg.Ai.ExtractorBaseURL)
	resolver := filecontext.NewResolver(cacheStore, extractor, engine, ttlPolicy, sysLogger)

	optimizer, err := window.NewOptimizer(cfg.Tuning.HistoryTokenBudget, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize window optimizer: %v", err)
	}

	prompts := prompt.NewBuilder()
	orchestrator := stream.NewOrchestrator(streamProvider, cfg.Tuning.ModelCallTimeout, sysLogger)

	// 5. Services
	tutorService := service.NewTutorService(
		resolver,
		engine,
		optimizer,
		prompts,
		orchestrator,
		pubSub,
		cfg,
		sysLogger,
	)
	curriculumService := service.NewCurriculumService(curriculumRepo, embeddingProvider, sysLogger)
	usageConsumerService := service.NewUsageConsumerService(
		pubSub,
		cfg.Keys.UsageTopic,
		natsPub,
		sysLogger,
	)

	// 6. Controllers
	return &Container{
		TutorController:      controller.NewTutorController(tutorService, cfg.Tuning.DisconnectGrace, sysLogger),
		CurriculumController: controller.NewCurriculumController(curriculumService),

		UsageConsumerService: usageConsumerService,

		Logger: sysLogger,
	}
}
