package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型与队列常量，确保队列生产者与消费者一致。
const (
	TypeTranscriptGenerate = "omnichannel:transcript"
	QueueWork              = "work"
)

// TranscriptDetails 标识一次转录请求：房间、请求者及来源。
type TranscriptDetails struct {
	UserID uint   `json:"userId"`
	RID    string `json:"rid"`
	From   string `json:"from"`
}

// TranscriptGeneratePayload 描述生成转录 PDF 所需的最小信息。
type TranscriptGeneratePayload struct {
	Template string            `json:"template"`
	Details  TranscriptDetails `json:"details"`
}

// NewTranscriptGenerateTask 构造一个新的转录生成任务，投递到 work 队列。
func NewTranscriptGenerateTask(rid string, userID uint, from string) (*asynq.Task, error) {
	payload, err := json.Marshal(TranscriptGeneratePayload{
		Template: "omnichannel-transcript",
		Details: TranscriptDetails{
			UserID: userID,
			RID:    rid,
			From:   from,
		},
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTranscriptGenerate, payload, asynq.Queue(QueueWork)), nil
}
