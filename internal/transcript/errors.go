package transcript

import "errors"

// 请求入口的同步错误与队列层的重试信号。
// ErrRetryLater 仅作为准入限流信号返回给队列适配器触发重投，
// 其余错误均为终态，会走失败通知路径。
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomStillOpen    = errors.New("room is still open")
	ErrInvalidRoomState = errors.New("room has no serving agent or visitor")
	ErrRetryLater       = errors.New("retry later")
)
