package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"omniscribe/internal/api/middleware"
	"omniscribe/internal/auth"
	"omniscribe/internal/store"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	service TranscriptRequester,
	st store.Store,
	presign FilePresigner,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	allowedOrigins []string,
) {
	transcriptHandler := NewTranscriptHandler(service, st, presign, logger)
	wsHandler := NewWsHandler(redisClient, authService, logger, allowedOrigins)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		omnichannel := v1.Group("/omnichannel")
		omnichannel.Use(authMiddleware)
		{
			omnichannel.POST("/rooms/:rid/transcript", transcriptHandler.RequestTranscript)
			omnichannel.GET("/transcripts/:fileID/download", transcriptHandler.DownloadTranscript)
		}
	}
}
