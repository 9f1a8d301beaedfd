// Package messaging implements direct-message creation and plain message
// delivery on top of the document store.
package messaging

import (
	"context"
	"fmt"
	"time"

	"omniscribe/internal/database"
	"omniscribe/internal/store"
)

// Service 提供私聊房间与消息投递能力。
type Service struct {
	store store.Store
}

// NewService 构造消息服务。
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateDirectMessage 打开（或复用）from 与 to 之间的私聊房间。
func (s *Service) CreateDirectMessage(ctx context.Context, to, from uint) (*database.Room, error) {
	room, err := s.store.FindOrCreateDirectRoom(ctx, to, from)
	if err != nil {
		return nil, fmt.Errorf("create direct message %d<->%d: %w", to, from, err)
	}
	return room, nil
}

// SendMessage 以 sender 的身份向房间发送一条文本消息。
func (s *Service) SendMessage(ctx context.Context, sender *database.User, rid, msg string) error {
	message := &database.Message{
		RID:            rid,
		SenderID:       fmt.Sprintf("%d", sender.ID),
		SenderUsername: sender.Username,
		Msg:            msg,
		Ts:             time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return fmt.Errorf("send message to %q: %w", rid, err)
	}
	return nil
}
