package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"omniscribe/internal/database"
	"omniscribe/internal/store"
)

type fakeBlobStore struct {
	objects   map[string][]byte
	uploadErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (b *fakeBlobStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	b.objects[objectName] = data
	return &minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func (b *fakeBlobStore) GetObjectBytes(_ context.Context, objectKey string) ([]byte, error) {
	data, ok := b.objects[objectKey]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (b *fakeBlobStore) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + objectKey + "?signed", nil
}

func (b *fakeBlobStore) DeleteObject(_ context.Context, objectKey string) error {
	delete(b.objects, objectKey)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeBlobStore, store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.Message{}, &database.Upload{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	blobs := newFakeBlobStore()
	st := store.New(db)
	return NewService(st, blobs), blobs, st
}

func TestUploadFile_RoundTrip(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	upload, err := svc.UploadFile(ctx, UploadFileParams{
		UserID:      9,
		RID:         "room-1",
		Name:        "Transcript_Acme_2026-02-01_Carol.pdf",
		ContentType: "application/pdf",
		Buffer:      []byte("%PDF-1.4 body"),
	})
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if upload.FileID == "" {
		t.Fatal("upload must carry a generated file id")
	}
	if !strings.HasPrefix(upload.ObjectKey, "uploads/room-1/"+upload.FileID+"/") {
		t.Fatalf("unexpected object key %q", upload.ObjectKey)
	}

	buffer, err := svc.GetFileBuffer(ctx, upload)
	if err != nil {
		t.Fatalf("GetFileBuffer: %v", err)
	}
	if string(buffer) != "%PDF-1.4 body" {
		t.Fatalf("buffer = %q", buffer)
	}

	// 元数据必须可以按文件 ID 与房间内文件名检索。
	if _, err := st.FindUploadByFileID(ctx, upload.FileID); err != nil {
		t.Fatalf("FindUploadByFileID: %v", err)
	}
	found, err := st.FindRoomUploadByName(ctx, "room-1", upload.Name)
	if err != nil {
		t.Fatalf("FindRoomUploadByName: %v", err)
	}
	if found.FileID != upload.FileID {
		t.Fatalf("file id mismatch: %q vs %q", found.FileID, upload.FileID)
	}
}

func TestUploadFile_BlobFailureSkipsRecord(t *testing.T) {
	svc, blobs, st := newTestService(t)
	blobs.uploadErr = errors.New("bucket unavailable")

	_, err := svc.UploadFile(context.Background(), UploadFileParams{
		RID: "room-err", Name: "doc.pdf", Buffer: []byte("x"),
	})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if _, err := st.FindRoomUploadByName(context.Background(), "room-err", "doc.pdf"); !store.IsNotFound(err) {
		t.Fatalf("no record must be created when the blob write fails, got %v", err)
	}
}

func TestUploadFile_RecordFailureCleansUpObject(t *testing.T) {
	// 只迁移 Message 表：对象写入成功后元数据落库必然失败。
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	blobs := newFakeBlobStore()
	svc := NewService(store.New(db), blobs)

	_, err = svc.UploadFile(context.Background(), UploadFileParams{
		RID: "room-orphan", Name: "doc.pdf", Buffer: []byte("x"),
	})
	if err == nil {
		t.Fatal("expected record creation to fail")
	}
	if len(blobs.objects) != 0 {
		t.Fatalf("orphaned objects left behind: %v", blobs.objects)
	}
}

func TestSendFileMessage(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	sender := &database.User{Model: gorm.Model{ID: 9}, Username: "omniscribe.bot"}
	upload := &database.Upload{FileID: "file-msg-1", Name: "transcript.pdf"}
	if err := svc.SendFileMessage(ctx, "room-send", sender, upload, "here you go"); err != nil {
		t.Fatalf("SendFileMessage: %v", err)
	}

	messages, err := st.FindTranscriptMessages(ctx, "room-send")
	if err != nil {
		t.Fatalf("find messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	message := messages[0]
	if message.Msg != "here you go" || message.SenderUsername != "omniscribe.bot" {
		t.Fatalf("unexpected message %+v", message)
	}
	if message.FileID != "file-msg-1" {
		t.Fatalf("message file id = %q", message.FileID)
	}

	attachments, err := database.ParseAttachments(json.RawMessage(message.Attachments))
	if err != nil {
		t.Fatalf("parse attachments: %v", err)
	}
	if len(attachments) != 1 || attachments[0].Type != "file" {
		t.Fatalf("unexpected attachments %+v", attachments)
	}
	if attachments[0].TitleLink != "/file-upload/file-msg-1/transcript.pdf" {
		t.Fatalf("title link = %q", attachments[0].TitleLink)
	}
}

func TestPresignDownload(t *testing.T) {
	svc, _, _ := newTestService(t)

	url, err := svc.PresignDownload(context.Background(), &database.Upload{ObjectKey: "uploads/r/f/n.pdf"}, 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignDownload: %v", err)
	}
	if !strings.Contains(url, "uploads/r/f/n.pdf") {
		t.Fatalf("url = %q", url)
	}
}
