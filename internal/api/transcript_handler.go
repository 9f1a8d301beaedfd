package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"omniscribe/internal/api/middleware"
	"omniscribe/internal/database"
	"omniscribe/internal/store"
	"omniscribe/internal/transcript"
)

// TranscriptRequester 是请求入口对核心流程的依赖面。
type TranscriptRequester interface {
	RequestTranscript(ctx context.Context, rid string, userID uint, source string) error
}

// FilePresigner 为已生成的转录文件签发限时下载链接。
type FilePresigner interface {
	PresignDownload(ctx context.Context, upload *database.Upload, duration time.Duration) (string, error)
}

// TranscriptHandler 负责处理与转录相关的 API 请求。
type TranscriptHandler struct {
	service TranscriptRequester
	store   store.Store
	presign FilePresigner
	logger  *slog.Logger
}

// NewTranscriptHandler 构造 TranscriptHandler。
func NewTranscriptHandler(service TranscriptRequester, st store.Store, presign FilePresigner, logger *slog.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		service: service,
		store:   st,
		presign: presign,
		logger:  logger,
	}
}

const downloadLinkTTL = 15 * time.Minute

// RequestTranscript 为一个已关闭的 Omnichannel 房间请求生成转录。
// 重复请求幂等（已有待处理请求时同样返回 202）。
func (h *TranscriptHandler) RequestTranscript(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	rid := c.Param("rid")
	if rid == "" {
		BadRequest(c, "missing room id")
		return
	}

	err := h.service.RequestTranscript(c.Request.Context(), rid, userID, "api")
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	case errors.Is(err, transcript.ErrRoomNotFound):
		NotFound(c, "room not found")
	case errors.Is(err, transcript.ErrRoomStillOpen):
		Conflict(c, "room is still open")
	case errors.Is(err, transcript.ErrInvalidRoomState):
		Unprocessable(c, "room has no serving agent or visitor")
	default:
		middleware.LoggerFromContext(c).Error("request transcript failed",
			slog.String("rid", rid),
			slog.Any("error", err),
		)
		Internal(c, "failed to request transcript")
	}
}

// DownloadTranscript 返回已生成转录文件的限时下载链接。
func (h *TranscriptHandler) DownloadTranscript(c *gin.Context) {
	if _, ok := middleware.UserIDFromContext(c); !ok {
		AbortUnauthorized(c)
		return
	}

	fileID := c.Param("fileID")
	upload, err := h.store.FindUploadByFileID(c.Request.Context(), fileID)
	if err != nil {
		if store.IsNotFound(err) {
			NotFound(c, "transcript file not found")
			return
		}
		Internal(c, "failed to query transcript file")
		return
	}

	url, err := h.presign.PresignDownload(c.Request.Context(), upload, downloadLinkTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign transcript download failed",
			slog.String("file_id", fileID),
			slog.Any("error", err),
		)
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_id": upload.FileID,
		"name":    upload.Name,
		"url":     url,
	})
}
