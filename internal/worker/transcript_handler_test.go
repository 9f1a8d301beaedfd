package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"omniscribe/internal/database"
	"omniscribe/internal/tasks"
	"omniscribe/internal/transcript"
)

type fakeTranscriptService struct {
	upload   *database.Upload
	err      error
	payloads []tasks.TranscriptGeneratePayload
}

func (f *fakeTranscriptService) WorkOnPdf(_ context.Context, payload tasks.TranscriptGeneratePayload) (*database.Upload, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return f.upload, nil
}

// 通知通道不可达时只记录日志，不影响任务结果。
func newTestHandler(service TranscriptService) *TranscriptTaskHandler {
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTranscriptTaskHandler(service, redisClient, logger)
}

func newTestTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := tasks.NewTranscriptGenerateTask("room-1", 1, "api")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestProcessTask_Success(t *testing.T) {
	service := &fakeTranscriptService{
		upload: &database.Upload{FileID: "file-1", Name: "transcript.pdf"},
	}
	handler := newTestHandler(service)

	if err := handler.ProcessTask(context.Background(), newTestTask(t)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if len(service.payloads) != 1 {
		t.Fatalf("expected one invocation, got %d", len(service.payloads))
	}
	details := service.payloads[0].Details
	if details.RID != "room-1" || details.UserID != 1 || details.From != "api" {
		t.Fatalf("payload not forwarded intact: %+v", details)
	}
}

func TestProcessTask_RetrySignalPropagatesPlainError(t *testing.T) {
	service := &fakeTranscriptService{err: transcript.ErrRetryLater}
	handler := newTestHandler(service)

	err := handler.ProcessTask(context.Background(), newTestTask(t))
	if !errors.Is(err, transcript.ErrRetryLater) {
		t.Fatalf("expected retry signal, got %v", err)
	}
	// 重试信号不可标记为终态，否则队列不会重投。
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("retry signal must not carry SkipRetry")
	}
}

func TestProcessTask_TerminalFailureSkipsRetry(t *testing.T) {
	service := &fakeTranscriptService{err: errors.New("render crashed")}
	handler := newTestHandler(service)

	err := handler.ProcessTask(context.Background(), newTestTask(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("terminal failure must carry SkipRetry, got %v", err)
	}
}

func TestProcessTask_MalformedPayloadSkipsRetry(t *testing.T) {
	service := &fakeTranscriptService{}
	handler := newTestHandler(service)

	task := asynq.NewTask(tasks.TypeTranscriptGenerate, []byte("{not json"))
	err := handler.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must be terminal, got %v", err)
	}
	if len(service.payloads) != 0 {
		t.Fatal("service must not run on malformed payload")
	}
}
