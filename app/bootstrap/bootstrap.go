package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/aihub/curation-go/app/controllers"
	"github.com/aihub/curation-go/app/middleware"
	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/database"
	"github.com/aihub/curation-go/internal/events"
	"github.com/aihub/curation-go/internal/gateway"
	"github.com/aihub/curation-go/internal/knowledge"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/repository"
	"github.com/aihub/curation-go/internal/services"
	"github.com/aihub/curation-go/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App 持有需要在退出时清理的生命周期资源
type App struct {
	cleanupTasks []func() error
	reclaimStop  chan struct{}
}

// Init 装配配置、日志、数据库、外部依赖与业务服务。
// Milvus与Kafka按配置可选，缺席时对应能力退化而非启动失败。
func Init() (*App, error) {
	// .env缺失不是错误
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	if err := logger.InitLogger(cfg.Server.Env, config.LogLevel()); err != nil {
		return nil, err
	}

	app := &App{reclaimStop: make(chan struct{})}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		logger.Sync()
		return nil
	})

	// PostgreSQL
	db, err := database.InitDB()
	if err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)

	// Redis缓存，失败时审核队列缓存退化为直查
	redisClient, err := database.InitRedis()
	if err != nil {
		logger.Warn("redis unavailable, review queue cache disabled", zap.Error(err))
		redisClient = nil
	} else {
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	}

	// MinIO对象存储
	objectStore, err := storage.InitObjectStore()
	if err != nil {
		return nil, err
	}

	// AI网关
	provider, err := gateway.NewProvider(cfg.AI)
	if err != nil {
		return nil, err
	}
	gw := gateway.NewGateway(provider, cfg.Review.ChunkCharBudget, cfg.Review.FallbackConfidence)
	logger.Info("ai gateway initialized", zap.String("provider", gw.ProviderName()))

	// 嵌入与向量库
	embedder := knowledge.NewChunkEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)
	var vectorStore knowledge.VectorStore = &knowledge.NoopVectorStore{}
	if cfg.Milvus.Enabled {
		store, err := knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:          cfg.Milvus.Address,
			Username:         cfg.Milvus.Username,
			Password:         cfg.Milvus.Password,
			CollectionPrefix: cfg.Milvus.Collection,
			VectorSize:       cfg.Milvus.VectorSize,
			Distance:         cfg.Milvus.Distance,
			Database:         cfg.Milvus.Database,
			UseTLS:           cfg.Milvus.TLS,
		})
		if err != nil {
			logger.Warn("milvus unavailable, embeddings will be marked failed", zap.Error(err))
		} else {
			vectorStore = store
		}
	}

	// Kafka审计事件，可选
	if cfg.Kafka.Enabled {
		if err := events.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("kafka unavailable, workflow events disabled", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return events.GetProducer().Close()
			})
		}
	}
	producer := events.GetProducer()

	// 仓库
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	recordRepo := repository.NewVectorRecordRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	kbRepo := repository.NewKnowledgeBaseRepository(db)
	userRepo := repository.NewUserRepository(db)

	// 服务
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiresIn)*time.Second)
	userService := services.NewUserService(userRepo, jwtService)
	workflowService := services.NewWorkflowService(docRepo, chunkRepo, queueRepo, producer)
	kbService := services.NewKnowledgeBaseService(kbRepo)
	queueService := services.NewCurationQueueService(queueRepo, kbRepo)
	parsers := knowledge.NewParserRegistry()
	docService := services.NewDocumentService(
		docRepo, chunkRepo, kbRepo, workflowService, gw, objectStore, parsers, vectorStore, cfg.FileUpload)
	reviewCache := services.NewReviewQueueCache(redisClient, time.Duration(cfg.Review.QueueCacheTTLSecs)*time.Second)
	chunkService := services.NewChunkReviewService(
		docRepo, chunkRepo, recordRepo, gw, embedder, vectorStore, producer, reviewCache,
		services.ChunkReviewOptions{
			EnrichDelay:       time.Duration(cfg.Review.EnrichDelayMillis) * time.Millisecond,
			EnrichTimeout:     time.Duration(cfg.Review.EnrichTimeoutSecs) * time.Second,
			DefaultConfidence: cfg.Review.DefaultConfidence,
		})

	middleware.InitAuth(jwtService, userService)
	controllers.SetRegistry(&controllers.Registry{
		Users:     userService,
		Documents: docService,
		Chunks:    chunkService,
		Workflow:  workflowService,
		Queue:     queueService,
		KBs:       kbService,
	})

	app.startEnrichingReclaimer(chunkService, time.Duration(cfg.Review.EnrichTimeoutSecs)*time.Second)

	logger.Info("application bootstrap completed", zap.String("env", cfg.Server.Env))
	return app, nil
}

// startEnrichingReclaimer 定时回收滞留在enriching的分块。
// 扫描间隔取超时的一半，不低于1分钟。
func (a *App) startEnrichingReclaimer(chunks *services.ChunkReviewService, timeout time.Duration) {
	interval := timeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reclaimed, err := chunks.ReclaimStuckEnriching(context.Background())
				if err != nil {
					logger.Error("enriching reclaim sweep failed", zap.Error(err))
					continue
				}
				if reclaimed > 0 {
					logger.Info("reclaimed stuck enriching chunks", zap.Int64("count", reclaimed))
				}
			case <-a.reclaimStop:
				return
			}
		}
	}()
}

// Shutdown 逆序执行清理任务
func (a *App) Shutdown() {
	close(a.reclaimStop)

	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("cleanup task failed: %v", err)
		}
	}
}
