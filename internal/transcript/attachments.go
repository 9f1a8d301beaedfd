package transcript

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"path/filepath"
	"regexp"

	"golang.org/x/sync/errgroup"

	"omniscribe/internal/database"
	"omniscribe/internal/renderer"
	"omniscribe/internal/store"
)

// titleLinkPattern 从 /file-upload/{fileId}/{fileName} 形式的链接里提取文件 ID。
var titleLinkPattern = regexp.MustCompile(`^/file-upload/([^/]+)/`)

// 单条消息内并发解析附件的上限，避免对对象存储过度扇出。
const attachmentFanout = 10

// resolveMessages 并发解析每条消息的附件。
// 结果按下标写回，消息的时间顺序不受各附件完成顺序影响；
// 单个附件的任何失败都降级为占位符，绝不让整个任务失败。
func (s *Service) resolveMessages(ctx context.Context, messages []database.Message, log *slog.Logger) ([]renderer.TranscriptMessage, error) {
	resolved := make([]renderer.TranscriptMessage, len(messages))

	var group errgroup.Group
	group.SetLimit(attachmentFanout)
	for i, message := range messages {
		i, message := i, message
		group.Go(func() error {
			resolved[i] = s.resolveMessage(ctx, message, log)
			return nil
		})
	}
	// 分支不会返回错误，Wait 仅用于等待全部完成。
	_ = group.Wait()

	return resolved, nil
}

func (s *Service) resolveMessage(ctx context.Context, message database.Message, log *slog.Logger) renderer.TranscriptMessage {
	attachments, err := database.ParseAttachments(json.RawMessage(message.Attachments))
	if err != nil {
		log.Error("parse message attachments",
			slog.Uint64("message_id", uint64(message.ID)),
			slog.Any("error", err),
		)
		attachments = nil
	}

	out := renderer.TranscriptMessage{
		Sender: message.SenderUsername,
		Time:   message.Ts.In(s.settings.Location()).Format(s.settings.TimeAndDateFormat),
	}

	for _, attachment := range attachments {
		if attachment.Type != "file" {
			log.Info("skipping non-file attachment",
				slog.Uint64("message_id", uint64(message.ID)),
				slog.String("attachment_type", attachment.Type),
			)
			continue
		}
		out.Attachments = append(out.Attachments, s.resolveAttachment(ctx, message, attachment, log))
	}

	// 消息正文为空时退回第一个附件的描述。
	body := message.Msg
	if body == "" && len(attachments) > 0 {
		body = attachments[0].Description
	}
	out.Body = body

	return out
}

// resolveAttachment 按策略解析单个附件：
// 类型不受支持或文件/内容缺失时一律返回 nil buffer 占位符。
func (s *Service) resolveAttachment(ctx context.Context, message database.Message, attachment database.Attachment, log *slog.Logger) renderer.TranscriptAttachment {
	placeholder := renderer.TranscriptAttachment{Name: attachment.Title}

	mimeType := mime.TypeByExtension(filepath.Ext(attachment.Title))
	if !renderer.IsMimeTypeValid(mimeType) {
		log.Error("attachment mime type not supported, keeping placeholder",
			slog.Uint64("message_id", uint64(message.ID)),
			slog.String("title", attachment.Title),
			slog.String("mime_type", mimeType),
		)
		return placeholder
	}

	upload := s.locateUpload(ctx, message.RID, attachment, log)
	if upload == nil {
		return placeholder
	}

	buffer, err := s.files.GetFileBuffer(ctx, upload)
	if err != nil {
		log.Error("fetch attachment buffer, keeping placeholder",
			slog.String("file_id", upload.FileID),
			slog.Any("error", err),
		)
		return placeholder
	}

	resolvedMime := upload.ContentType
	if resolvedMime == "" {
		resolvedMime = mimeType
	}
	return renderer.TranscriptAttachment{
		Name:     attachment.Title,
		MimeType: resolvedMime,
		Buffer:   buffer,
	}
}

// locateUpload 先按附件标题匹配房间内的上传文件名，
// 失败时从 title_link 提取文件 ID 作为回退。
func (s *Service) locateUpload(ctx context.Context, rid string, attachment database.Attachment, log *slog.Logger) *database.Upload {
	upload, err := s.store.FindRoomUploadByName(ctx, rid, attachment.Title)
	if err == nil {
		return upload
	}
	if !store.IsNotFound(err) {
		log.Error("find upload by name", slog.String("title", attachment.Title), slog.Any("error", err))
		return nil
	}

	match := titleLinkPattern.FindStringSubmatch(attachment.TitleLink)
	if match == nil {
		log.Error("attachment file not found, keeping placeholder",
			slog.String("title", attachment.Title),
		)
		return nil
	}

	upload, err = s.store.FindUploadByFileID(ctx, match[1])
	if err != nil {
		if !store.IsNotFound(err) {
			log.Error("find upload by file id", slog.String("file_id", match[1]), slog.Any("error", err))
		} else {
			log.Error("attachment file not found, keeping placeholder",
				slog.String("title", attachment.Title),
				slog.String("file_id", match[1]),
			)
		}
		return nil
	}
	return upload
}
