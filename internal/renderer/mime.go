package renderer

import "strings"

// 可以内联进 PDF 的附件类型；其余一律降级为占位符。
var validMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// IsMimeTypeValid 判断附件类型是否受渲染引擎支持。
func IsMimeTypeValid(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	_, ok := validMimeTypes[mimeType]
	return ok
}
