package worker

// 统一的实时通知协议（通过 Redis Pub/Sub 转发给前端 WebSocket）。
// 注意：这里的字段名与前端解析保持一致。
type TranscriptNotifyMessage struct {
	Status       string `json:"status"`
	RID          string `json:"rid"`
	FileID       string `json:"file_id,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
