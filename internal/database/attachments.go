package database

import "encoding/json"

// Attachment 是 Message.Attachments JSONB 数组的元素结构。
// TitleLink 形如 /file-upload/{fileId}/{fileName}，用于回退定位文件。
type Attachment struct {
	Title       string `json:"title"`
	TitleLink   string `json:"title_link,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ParseAttachments 解码消息携带的附件列表，空值返回 nil。
func ParseAttachments(raw json.RawMessage) ([]Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var attachments []Attachment
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// MarshalAttachments 编码附件列表，便于写入 JSONB 字段。
func MarshalAttachments(attachments []Attachment) (json.RawMessage, error) {
	return json.Marshal(attachments)
}
