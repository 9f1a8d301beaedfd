package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示平台账号（客服坐席、请求者或系统账号）。
type User struct {
	gorm.Model
	Username  string `gorm:"uniqueIndex;size:64"`
	Name      string `gorm:"size:128"`
	Language  string `gorm:"size:16"`
	UTCOffset float64
}

// DisplayName 优先返回姓名，缺省时退回用户名。
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Visitor 表示 Omnichannel 会话里的访客。
type Visitor struct {
	gorm.Model
	Username string `gorm:"size:64"`
	Name     string `gorm:"size:128"`
	Language string `gorm:"size:16"`
}

// DisplayName 优先返回姓名，缺省时退回用户名。
func (v Visitor) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Username
}

// Room 表示一个会话房间。Omnichannel 房间在关闭后才允许请求转录；
// TranscriptRequested 用于防止同一房间的并发重复请求。
type Room struct {
	gorm.Model
	RID                 string `gorm:"uniqueIndex;size:32"`
	Type                string `gorm:"size:8"` // l = omnichannel, d = direct
	Open                bool
	ServedByID          *uint `gorm:"index"`
	VisitorID           *uint `gorm:"index"`
	MemberA             uint  `gorm:"index"` // direct 房间的两个成员
	MemberB             uint  `gorm:"index"`
	TranscriptRequested bool
	TranscriptFileID    string `gorm:"size:64"`
	ClosedAt            *time.Time
}

// Message 表示房间里的一条消息，按 Ts 升序构成会话时间线。
// Attachments 以 JSONB 存储，与上传文件通过 FileID/标题关联。
type Message struct {
	gorm.Model
	RID            string `gorm:"index;size:32"`
	SenderID       string `gorm:"size:32"`
	SenderUsername string `gorm:"size:64"`
	Msg            string
	Type           string    `gorm:"size:32"` // 系统消息类型，如 livechat-close
	Ts             time.Time `gorm:"index"`
	Attachments    datatypes.JSON
	FileID         string `gorm:"size:64"`
}

// Upload 记录一个已上传文件的元数据，二进制内容存放在对象存储中。
type Upload struct {
	gorm.Model
	FileID      string `gorm:"uniqueIndex;size:64"`
	Name        string `gorm:"size:255"`
	Size        int64
	ContentType string `gorm:"size:128"`
	RID         string `gorm:"index;size:32"`
	UserID      uint   `gorm:"index"`
	ObjectKey   string `gorm:"size:512"`
}
