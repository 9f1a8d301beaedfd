package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"omniscribe/internal/database"
	"omniscribe/internal/errcode"
	"omniscribe/internal/metrics"
	"omniscribe/internal/tasks"
	"omniscribe/internal/transcript"
)

// TranscriptService 是任务处理器对核心流程的依赖面。
type TranscriptService interface {
	WorkOnPdf(ctx context.Context, payload tasks.TranscriptGeneratePayload) (*database.Upload, error)
}

// TranscriptTaskHandler 负责消费转录生成任务。
type TranscriptTaskHandler struct {
	service     TranscriptService
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewTranscriptTaskHandler 创建任务处理器。
func NewTranscriptTaskHandler(service TranscriptService, redisClient *redis.Client, logger *slog.Logger) *TranscriptTaskHandler {
	return &TranscriptTaskHandler{
		service:     service,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
// 准入限流返回普通错误触发队列重投；其余失败均为终态（SkipRetry），
// 用户侧的失败通知已由核心流程完成，这里只追加实时推送。
func (h *TranscriptTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.TranscriptGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal transcript payload: %v: %w", err, asynq.SkipRetry)
	}

	details := payload.Details
	log = log.With(
		slog.String("rid", details.RID),
		slog.Uint64("user_id", uint64(details.UserID)),
		slog.String("from", details.From),
	)
	log.Info("Starting transcript generation task...")

	start := time.Now()
	upload, err := h.service.WorkOnPdf(ctx, payload)
	if errors.Is(err, transcript.ErrRetryLater) {
		metrics.TranscriptJobRejected()
		log.Info("render job limit reached, requeueing task")
		return err
	}
	if err != nil {
		notify := TranscriptNotifyMessage{
			Status:       "error",
			RID:          details.RID,
			ErrorCode:    errcode.SystemError,
			ErrorMessage: strings.TrimSpace(err.Error()),
		}
		if pubErr := h.publishTranscriptNotify(ctx, details.UserID, notify); pubErr != nil {
			log.Error("publish transcript error notification failed", slog.Any("error", pubErr))
		}
		return fmt.Errorf("generate transcript: %v: %w", err, asynq.SkipRetry)
	}

	metrics.TranscriptGenerated()
	metrics.ObserveTranscriptJob(time.Since(start))

	notify := TranscriptNotifyMessage{
		Status:    "completed",
		RID:       details.RID,
		FileID:    upload.FileID,
		FileName:  upload.Name,
		ErrorCode: errcode.OK,
	}
	if err := h.publishTranscriptNotify(ctx, details.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
	}

	log.Info("Transcript generation task completed successfully.")
	return nil
}

func (h *TranscriptTaskHandler) publishTranscriptNotify(ctx context.Context, userID uint, notify TranscriptNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
