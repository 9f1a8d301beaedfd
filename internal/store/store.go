package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"omniscribe/internal/database"
)

// 关闭 Omnichannel 房间时写入的系统消息类型，转录时需要排除。
const closeMessageType = "livechat-close"

// Store 是转录流程依赖的文档查询接口，便于在测试中替换实现。
type Store interface {
	FindRoomByRID(ctx context.Context, rid string) (*database.Room, error)
	MarkTranscriptRequested(ctx context.Context, rid string) (bool, error)
	UnsetTranscriptRequested(ctx context.Context, rid string) error
	SetTranscriptFile(ctx context.Context, rid, fileID string) error
	FindTranscriptMessages(ctx context.Context, rid string) ([]database.Message, error)
	FindUserByID(ctx context.Context, id uint) (*database.User, error)
	FindUserByUsername(ctx context.Context, username string) (*database.User, error)
	FindVisitorByID(ctx context.Context, id uint) (*database.Visitor, error)
	FindUploadByFileID(ctx context.Context, fileID string) (*database.Upload, error)
	FindRoomUploadByName(ctx context.Context, rid, name string) (*database.Upload, error)
	CreateUpload(ctx context.Context, upload *database.Upload) error
	CreateMessage(ctx context.Context, message *database.Message) error
	FindOrCreateDirectRoom(ctx context.Context, a, b uint) (*database.Room, error)
}

// IsNotFound 判断错误是否表示记录不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

type gormStore struct {
	db *gorm.DB
}

// New 返回基于 GORM 的 Store 实现。
func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) FindRoomByRID(ctx context.Context, rid string) (*database.Room, error) {
	var room database.Room
	if err := s.db.WithContext(ctx).Where("r_id = ?", rid).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// MarkTranscriptRequested 以条件更新的方式原子置位待处理标记。
// 返回 false 表示该房间已有待处理的转录请求。
func (s *gormStore) MarkTranscriptRequested(ctx context.Context, rid string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&database.Room{}).
		Where("r_id = ? AND transcript_requested = ?", rid, false).
		Update("transcript_requested", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore) UnsetTranscriptRequested(ctx context.Context, rid string) error {
	return s.db.WithContext(ctx).
		Model(&database.Room{}).
		Where("r_id = ?", rid).
		Update("transcript_requested", false).Error
}

func (s *gormStore) SetTranscriptFile(ctx context.Context, rid, fileID string) error {
	return s.db.WithContext(ctx).
		Model(&database.Room{}).
		Where("r_id = ?", rid).
		Updates(map[string]any{
			"transcript_file_id":   fileID,
			"transcript_requested": false,
		}).Error
}

// FindTranscriptMessages 返回房间内按时间升序排列的消息，排除关闭房间的系统消息。
func (s *gormStore) FindTranscriptMessages(ctx context.Context, rid string) ([]database.Message, error) {
	var messages []database.Message
	err := s.db.WithContext(ctx).
		Select("id", "r_id", "sender_id", "sender_username", "msg", "type", "ts", "attachments", "file_id").
		Where("r_id = ? AND type <> ?", rid, closeMessageType).
		Order("ts ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *gormStore) FindUserByID(ctx context.Context, id uint) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) FindUserByUsername(ctx context.Context, username string) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) FindVisitorByID(ctx context.Context, id uint) (*database.Visitor, error) {
	var visitor database.Visitor
	if err := s.db.WithContext(ctx).First(&visitor, id).Error; err != nil {
		return nil, err
	}
	return &visitor, nil
}

func (s *gormStore) FindUploadByFileID(ctx context.Context, fileID string) (*database.Upload, error) {
	var upload database.Upload
	if err := s.db.WithContext(ctx).Where("file_id = ?", fileID).First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

func (s *gormStore) FindRoomUploadByName(ctx context.Context, rid, name string) (*database.Upload, error) {
	var upload database.Upload
	if err := s.db.WithContext(ctx).
		Where("r_id = ? AND name = ?", rid, name).
		Order("created_at DESC").
		First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

func (s *gormStore) CreateUpload(ctx context.Context, upload *database.Upload) error {
	return s.db.WithContext(ctx).Create(upload).Error
}

func (s *gormStore) CreateMessage(ctx context.Context, message *database.Message) error {
	return s.db.WithContext(ctx).Create(message).Error
}

// FindOrCreateDirectRoom 查找两名成员之间的私聊房间，不存在则创建。
func (s *gormStore) FindOrCreateDirectRoom(ctx context.Context, a, b uint) (*database.Room, error) {
	if a > b {
		a, b = b, a
	}

	var room database.Room
	err := s.db.WithContext(ctx).
		Where("type = ? AND member_a = ? AND member_b = ?", "d", a, b).
		First(&room).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = database.Room{
		RID:     newDirectRID(a, b),
		Type:    "d",
		Open:    true,
		MemberA: a,
		MemberB: b,
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}
