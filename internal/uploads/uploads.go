// Package uploads implements the file service used by the transcript
// workflow: buffer retrieval for existing uploads, storing generated
// documents, and posting file messages into rooms.
package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"

	"omniscribe/internal/database"
	"omniscribe/internal/store"
)

// BlobStore 是对象存储的最小依赖面，由 storage.Client 实现。
type BlobStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GetObjectBytes(ctx context.Context, objectKey string) ([]byte, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// Service 组合元数据存储与对象存储，提供文件层操作。
type Service struct {
	store store.Store
	blobs BlobStore
}

// NewService 构造文件服务。
func NewService(st store.Store, blobs BlobStore) *Service {
	return &Service{store: st, blobs: blobs}
}

// GetFileBuffer 读取上传文件的完整二进制内容。
func (s *Service) GetFileBuffer(ctx context.Context, upload *database.Upload) ([]byte, error) {
	data, err := s.blobs.GetObjectBytes(ctx, upload.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("get file buffer %q: %w", upload.FileID, err)
	}
	return data, nil
}

// UploadFileParams 描述一次新文件写入。
type UploadFileParams struct {
	UserID      uint
	RID         string
	Name        string
	ContentType string
	Buffer      []byte
}

// UploadFile 将二进制内容写入对象存储并登记元数据，返回 Upload 记录。
func (s *Service) UploadFile(ctx context.Context, params UploadFileParams) (*database.Upload, error) {
	fileID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s/%s", params.RID, fileID, params.Name)

	reader := bytes.NewReader(params.Buffer)
	if _, err := s.blobs.UploadFile(ctx, objectKey, reader, int64(len(params.Buffer)), params.ContentType); err != nil {
		return nil, fmt.Errorf("upload object %q: %w", objectKey, err)
	}

	upload := &database.Upload{
		FileID:      fileID,
		Name:        params.Name,
		Size:        int64(len(params.Buffer)),
		ContentType: params.ContentType,
		RID:         params.RID,
		UserID:      params.UserID,
		ObjectKey:   objectKey,
	}
	if err := s.store.CreateUpload(ctx, upload); err != nil {
		// 元数据落库失败时回收已写入的对象，避免留下孤儿文件。
		if delErr := s.blobs.DeleteObject(ctx, objectKey); delErr != nil {
			return nil, fmt.Errorf("create upload record %q: %w (orphaned object %q: %v)", fileID, err, objectKey, delErr)
		}
		return nil, fmt.Errorf("create upload record %q: %w", fileID, err)
	}
	return upload, nil
}

// SendFileMessage 以 sender 的身份把文件投递到房间，并附带一条说明消息。
func (s *Service) SendFileMessage(ctx context.Context, rid string, sender *database.User, upload *database.Upload, msg string) error {
	attachment := database.Attachment{
		Title:     upload.Name,
		TitleLink: fmt.Sprintf("/file-upload/%s/%s", upload.FileID, upload.Name),
		Type:      "file",
	}
	raw, err := database.MarshalAttachments([]database.Attachment{attachment})
	if err != nil {
		return fmt.Errorf("marshal file attachment: %w", err)
	}

	message := &database.Message{
		RID:            rid,
		SenderID:       fmt.Sprintf("%d", sender.ID),
		SenderUsername: sender.Username,
		Msg:            msg,
		Ts:             time.Now().UTC(),
		Attachments:    datatypes.JSON(raw),
		FileID:         upload.FileID,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return fmt.Errorf("send file message to %q: %w", rid, err)
	}
	return nil
}

// PresignDownload 生成上传文件的限时下载链接。
func (s *Service) PresignDownload(ctx context.Context, upload *database.Upload, duration time.Duration) (string, error) {
	return s.blobs.GeneratePresignedURL(ctx, upload.ObjectKey, duration)
}
