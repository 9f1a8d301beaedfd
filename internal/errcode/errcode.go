package errcode

// 错误码约定：
// - 0：无错误
// - 5xxx：系统错误（任务终止，已通知请求者）
const (
	OK          = 0
	SystemError = 5000
)
