// Package transcript implements the omnichannel transcript workflow:
// request intake with deduplication, queue hand-off, and the
// concurrency-limited PDF generation job.
package transcript

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"omniscribe/internal/config"
	"omniscribe/internal/database"
	"omniscribe/internal/i18n"
	"omniscribe/internal/renderer"
	"omniscribe/internal/store"
	"omniscribe/internal/tasks"
	"omniscribe/internal/uploads"
)

// TaskQueue 是任务队列的最小依赖面，由 asynq.Client 实现。
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RenderEngine 把转录数据渲染为 PDF 字节流。
type RenderEngine interface {
	RenderToStream(data *renderer.TranscriptData) (io.ReadCloser, error)
}

// FileService 提供文件内容读取、生成文档上传与文件消息投递。
type FileService interface {
	GetFileBuffer(ctx context.Context, upload *database.Upload) ([]byte, error)
	UploadFile(ctx context.Context, params uploads.UploadFileParams) (*database.Upload, error)
	SendFileMessage(ctx context.Context, rid string, sender *database.User, upload *database.Upload, msg string) error
}

// Messenger 提供私聊房间与文本消息投递。
type Messenger interface {
	CreateDirectMessage(ctx context.Context, to, from uint) (*database.Room, error)
	SendMessage(ctx context.Context, sender *database.User, rid, msg string) error
}

// Translator 提供服务端语言与用户语言的字符串翻译。
type Translator interface {
	TranslateToServerLanguage(key string) string
	Translate(key, lang string) string
}

// Service 编排转录请求入口与后台生成任务。
// jobs 信号量是唯一的共享可变状态：入场 TryAcquire、任何退出路径 Release。
type Service struct {
	store      store.Store
	queue      TaskQueue
	engine     RenderEngine
	files      FileService
	messenger  Messenger
	translator Translator
	settings   config.TranscriptConfig
	logger     *slog.Logger
	jobs       *semaphore.Weighted
}

// NewService 构造转录服务，渲染并发上限取自配置（默认 25）。
func NewService(
	st store.Store,
	queue TaskQueue,
	engine RenderEngine,
	files FileService,
	messenger Messenger,
	translator Translator,
	settings config.TranscriptConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      st,
		queue:      queue,
		engine:     engine,
		files:      files,
		messenger:  messenger,
		translator: translator,
		settings:   settings,
		logger:     logger,
		jobs:       semaphore.NewWeighted(int64(settings.MaxRenderJobs)),
	}
}

// RequestTranscript 校验房间状态并投递一个转录生成任务。
// 房间已有待处理请求时静默返回（并发重复请求幂等），标记先于入队，
// 保证同一房间不会产生重复队列条目。
func (s *Service) RequestTranscript(ctx context.Context, rid string, userID uint, source string) error {
	room, err := s.store.FindRoomByRID(ctx, rid)
	if err != nil {
		if store.IsNotFound(err) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("find room %q: %w", rid, err)
	}

	if room.Open {
		return ErrRoomStillOpen
	}
	if room.ServedByID == nil || room.VisitorID == nil {
		return ErrInvalidRoomState
	}

	marked, err := s.store.MarkTranscriptRequested(ctx, rid)
	if err != nil {
		return fmt.Errorf("mark transcript requested for %q: %w", rid, err)
	}
	if !marked {
		s.logger.Info("transcript already requested, skipping",
			slog.String("rid", rid),
			slog.Uint64("user_id", uint64(userID)),
		)
		return nil
	}

	task, err := tasks.NewTranscriptGenerateTask(rid, userID, source)
	if err != nil {
		return fmt.Errorf("build transcript task: %w", err)
	}
	if _, err := s.queue.EnqueueContext(ctx, task); err != nil {
		// 入队失败时回滚标记，允许后续重试；回滚失败只记录。
		if unsetErr := s.store.UnsetTranscriptRequested(ctx, rid); unsetErr != nil {
			s.logger.Error("unset transcript requested after enqueue failure",
				slog.String("rid", rid),
				slog.Any("error", unsetErr),
			)
		}
		return fmt.Errorf("enqueue transcript task: %w", err)
	}

	return nil
}

// WorkOnPdf 执行一次转录生成任务。
// 达到并发上限时立即返回 ErrRetryLater（队列重投）；
// 其余错误为终态，已在内部完成失败通知。
func (s *Service) WorkOnPdf(ctx context.Context, payload tasks.TranscriptGeneratePayload) (*database.Upload, error) {
	if !s.jobs.TryAcquire(1) {
		return nil, ErrRetryLater
	}
	defer s.jobs.Release(1)

	details := payload.Details
	log := s.logger.With(
		slog.String("rid", details.RID),
		slog.Uint64("user_id", uint64(details.UserID)),
	)

	upload, err := s.generate(ctx, details, log)
	if err != nil {
		log.Error("transcript generation failed", slog.Any("error", err))
		s.notifyFailure(ctx, details, err, log)
		return nil, err
	}

	log.Info("transcript generated", slog.String("file_id", upload.FileID))
	return upload, nil
}

func (s *Service) generate(ctx context.Context, details tasks.TranscriptDetails, log *slog.Logger) (*database.Upload, error) {
	room, err := s.store.FindRoomByRID(ctx, details.RID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room %q: %w", details.RID, err)
	}
	if room.ServedByID == nil || room.VisitorID == nil {
		return nil, ErrInvalidRoomState
	}

	messages, err := s.store.FindTranscriptMessages(ctx, details.RID)
	if err != nil {
		return nil, fmt.Errorf("find transcript messages: %w", err)
	}

	visitor, err := s.store.FindVisitorByID(ctx, *room.VisitorID)
	if err != nil {
		return nil, fmt.Errorf("find visitor %d: %w", *room.VisitorID, err)
	}
	agent, err := s.store.FindUserByID(ctx, *room.ServedByID)
	if err != nil {
		return nil, fmt.Errorf("find agent %d: %w", *room.ServedByID, err)
	}

	// 附件解析与本地化文案解析互不依赖，各分支全部跑完再检查错误。
	var (
		resolved []renderer.TranscriptMessage
		labels   renderer.Labels
		title    string
	)
	var group errgroup.Group
	group.Go(func() error {
		var resolveErr error
		resolved, resolveErr = s.resolveMessages(ctx, messages, log)
		return resolveErr
	})
	group.Go(func() error {
		labels = renderer.Labels{
			Agent:       s.translator.TranslateToServerLanguage(i18n.KeyAgent),
			Customer:    s.translator.TranslateToServerLanguage(i18n.KeyCustomer),
			Date:        s.translator.TranslateToServerLanguage(i18n.KeyDate),
			Time:        s.translator.TranslateToServerLanguage(i18n.KeyTime),
			Unsupported: s.translator.TranslateToServerLanguage(i18n.KeyUnsupportedAttach),
		}
		title = s.translator.TranslateToServerLanguage(i18n.KeyTranscript)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// 访客既无姓名也无用户名时退回本地化的 "Visitor"。
	visitorName := visitor.DisplayName()
	if visitorName == "" {
		visitorName = s.translator.TranslateToServerLanguage(i18n.KeyVisitor)
	}

	now := time.Now().In(s.settings.Location())
	data := &renderer.TranscriptData{
		SiteName: s.settings.SiteName,
		Title:    title,
		Visitor:  visitorName,
		Agent:    agent.DisplayName(),
		Date:     now.Format(s.settings.DateFormat),
		Labels:   labels,
		Messages: resolved,
	}

	stream, err := s.engine.RenderToStream(data)
	if err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	// 渲染源按有界文档处理：先读尽字节流，再进入上传。
	buffer, readErr := io.ReadAll(stream)
	closeErr := stream.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read render stream: %w", readErr)
	}
	if closeErr != nil {
		log.Warn("close render stream", slog.Any("error", closeErr))
	}

	systemUser, err := s.store.FindUserByUsername(ctx, s.settings.SystemUsername)
	if err != nil {
		return nil, fmt.Errorf("find system account %q: %w", s.settings.SystemUsername, err)
	}

	filename := transcriptFilename(title, s.settings.SiteName, now, visitorName)
	upload, err := s.files.UploadFile(ctx, uploads.UploadFileParams{
		UserID:      systemUser.ID,
		RID:         details.RID,
		Name:        filename,
		ContentType: "application/pdf",
		Buffer:      buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("upload transcript: %w", err)
	}

	if err := s.store.SetTranscriptFile(ctx, details.RID, upload.FileID); err != nil {
		return nil, fmt.Errorf("set transcript file on room: %w", err)
	}

	s.deliver(ctx, details, systemUser, upload, log)
	return upload, nil
}

// deliver 把生成的文档同时投递到原房间与请求者的私聊。
// 两路投递并发执行且都会跑完；任何一路失败只记录，不回滚已送达的一路。
func (s *Service) deliver(ctx context.Context, details tasks.TranscriptDetails, systemUser *database.User, upload *database.Upload, log *slog.Logger) {
	requester, err := s.store.FindUserByID(ctx, details.UserID)
	if err != nil {
		log.Error("find transcript requester for delivery", slog.Any("error", err))
		return
	}

	dm, err := s.messenger.CreateDirectMessage(ctx, requester.ID, systemUser.ID)
	if err != nil {
		log.Error("create direct message for delivery", slog.Any("error", err))
		return
	}

	roomMsg := s.translator.TranslateToServerLanguage(i18n.KeyConversationLead)
	dmMsg := fmt.Sprintf(s.translator.Translate(i18n.KeyGenerated, requester.Language), upload.Name)

	var group errgroup.Group
	group.Go(func() error {
		return s.files.SendFileMessage(ctx, details.RID, systemUser, upload, roomMsg)
	})
	group.Go(func() error {
		return s.files.SendFileMessage(ctx, dm.RID, systemUser, upload, dmMsg)
	})
	if err := group.Wait(); err != nil {
		log.Error("transcript delivery incomplete", slog.Any("error", err))
	}
}

// notifyFailure 清除待处理标记并私聊告知请求者失败原因。
// 房间或请求者已不存在时静默跳过；通知自身的失败只记录，不再上抛。
func (s *Service) notifyFailure(ctx context.Context, details tasks.TranscriptDetails, cause error, log *slog.Logger) {
	if err := s.store.UnsetTranscriptRequested(ctx, details.RID); err != nil {
		if !store.IsNotFound(err) {
			log.Error("unset transcript requested after failure", slog.Any("error", err))
		}
	}

	if _, err := s.store.FindRoomByRID(ctx, details.RID); err != nil {
		if !store.IsNotFound(err) {
			log.Error("find room for failure notification", slog.Any("error", err))
		}
		return
	}

	requester, err := s.store.FindUserByID(ctx, details.UserID)
	if err != nil {
		if !store.IsNotFound(err) {
			log.Error("find requester for failure notification", slog.Any("error", err))
		}
		return
	}

	systemUser, err := s.store.FindUserByUsername(ctx, s.settings.SystemUsername)
	if err != nil {
		log.Error("find system account for failure notification", slog.Any("error", err))
		return
	}

	dm, err := s.messenger.CreateDirectMessage(ctx, requester.ID, systemUser.ID)
	if err != nil {
		log.Error("create direct message for failure notification", slog.Any("error", err))
		return
	}

	msg := fmt.Sprintf(s.translator.Translate(i18n.KeyGenerationFailed, requester.Language), cause.Error())
	if err := s.messenger.SendMessage(ctx, systemUser, dm.RID, msg); err != nil {
		log.Error("send failure notification", slog.Any("error", err))
	}
}

// transcriptFilename 生成确定性的文件名：
// {本地化的 Transcript}_{站点名}_{ISO 日期}_{访客名}.pdf
func transcriptFilename(transcriptWord, siteName string, now time.Time, visitorName string) string {
	name := fmt.Sprintf("%s_%s_%s_%s.pdf",
		transcriptWord,
		siteName,
		now.Format("2006-01-02"),
		visitorName,
	)
	return strings.ReplaceAll(name, " ", "_")
}
