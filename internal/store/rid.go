package store

import "fmt"

// newDirectRID 为私聊房间生成确定性的 RID，成员顺序已在调用方归一化。
func newDirectRID(a, b uint) string {
	return fmt.Sprintf("d-%d-%d", a, b)
}
