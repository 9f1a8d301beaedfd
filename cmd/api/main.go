package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"omniscribe/internal/api"
	"omniscribe/internal/auth"
	"omniscribe/internal/config"
	"omniscribe/internal/database"
	"omniscribe/internal/i18n"
	"omniscribe/internal/messaging"
	"omniscribe/internal/renderer"
	"omniscribe/internal/storage"
	"omniscribe/internal/store"
	"omniscribe/internal/transcript"
	"omniscribe/internal/uploads"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready")

	if err := db.AutoMigrate(
		&database.User{},
		&database.Visitor{},
		&database.Room{},
		&database.Message{},
		&database.Upload{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Println("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	publicKeyPEM, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("read auth public key: %v", err)
	}
	authService, err := auth.NewAuthService(publicKeyPEM)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	documentStore := store.New(db)
	fileService := uploads.NewService(documentStore, storageClient)
	service := transcript.NewService(
		documentStore,
		asynqClient,
		renderer.NewRodEngine(),
		fileService,
		messaging.NewService(documentStore),
		i18n.New(cfg.Transcript.ServerLanguage),
		cfg.Transcript,
		logger,
	)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, service, documentStore, fileService, authService, redisClient, logger, cfg.API.AllowedOrigins)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
