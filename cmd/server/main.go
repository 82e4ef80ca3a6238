// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-theme-go/internal/chunker"
	"doc-theme-go/internal/config"
	"doc-theme-go/internal/handler"
	"doc-theme-go/internal/middleware"
	"doc-theme-go/internal/model"
	"doc-theme-go/internal/pipeline"
	"doc-theme-go/internal/repository"
	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/database"
	"doc-theme-go/pkg/embedding"
	"doc-theme-go/pkg/es"
	"doc-theme-go/pkg/kafka"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/ocr"
	"doc-theme-go/pkg/storage"
	"doc-theme-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、对象存储与索引
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.DocumentRecord{}); err != nil {
		log.Fatal("迁移文档元数据表失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)
	defer kafka.CloseProducer()

	// 4. 初始化 Repository
	documentRepo := repository.NewDocumentRepository(database.DB)
	historyRepo := repository.NewQueryHistoryRepository(database.RDB, cfg.Query.HistorySize)

	// 5. 初始化能力客户端与 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.Token.Secret, cfg.Token.ExpireMinutes)
	ocrClient := ocr.NewClient(cfg.OCR)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	vectorService := service.NewVectorService(embeddingClient, es.ESClient,
		cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions, cfg.Embedding.Model)
	answerService := service.NewAnswerService(llmClient)
	themeService := service.NewThemeService(llmClient)
	queryService := service.NewQueryService(vectorService, answerService, themeService,
		documentRepo, historyRepo, cfg.Query.SearchLimit)
	documentService := service.NewDocumentService(vectorService, documentRepo, llmClient, cfg.MinIO.BucketName)

	// 6. 初始化文档摄取管道 (Processor)
	docChunker := chunker.New(ocrClient, cfg.Ingest.ScannedTextThreshold)
	processor := pipeline.NewProcessor(docChunker, vectorService, documentRepo, cfg.MinIO.BucketName)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	uploadHandler := handler.NewUploadHandler(processor, vectorService, cfg.Ingest.MaxFileSize)
	queryHandler := handler.NewQueryHandler(queryService, jwtManager)
	documentHandler := handler.NewDocumentHandler(documentService)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", documentHandler.Health)
		apiV1.POST("/upload", uploadHandler.Upload)

		query := apiV1.Group("/query")
		{
			query.POST("", queryHandler.Query)
			query.GET("/history", queryHandler.History)
			query.GET("/websocket-token", queryHandler.GetWebsocketToken)
		}

		documents := apiV1.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.DELETE("/:docId", documentHandler.Delete)
			documents.DELETE("", documentHandler.Clear)
		}
	}
	// WebSocket 流式查询放在根路径，升级请求不经过 /api/v1 分组
	r.GET("/query/stream/:token", queryHandler.Stream)

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
