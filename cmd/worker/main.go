package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"omniscribe/internal/config"
	"omniscribe/internal/database"
	"omniscribe/internal/i18n"
	"omniscribe/internal/messaging"
	"omniscribe/internal/metrics"
	"omniscribe/internal/renderer"
	"omniscribe/internal/storage"
	"omniscribe/internal/store"
	"omniscribe/internal/tasks"
	"omniscribe/internal/transcript"
	"omniscribe/internal/uploads"
	"omniscribe/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	documentStore := store.New(db)
	fileService := uploads.NewService(documentStore, storageClient)
	service := transcript.NewService(
		documentStore,
		asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		renderer.NewRodEngine(),
		fileService,
		messaging.NewService(documentStore),
		i18n.New(cfg.Transcript.ServerLanguage),
		cfg.Transcript,
		logger,
	)

	// 渲染并发由服务内的信号量把关；这里给队列留出富余，
	// 超额出队的任务会以重试信号回流队列。
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2 * cfg.Transcript.MaxRenderJobs,
		Queues: map[string]int{
			tasks.QueueWork: 1,
		},
	})

	transcriptHandler := worker.NewTranscriptTaskHandler(service, redisClient, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeTranscriptGenerate, transcriptHandler)

	logger.Info("worker service started", slog.String("redis_addr", redisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
