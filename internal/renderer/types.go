package renderer

// TranscriptData 是渲染引擎的只读输入：访客、客服、本地化文案与消息列表。
type TranscriptData struct {
	SiteName string
	Title    string // 本地化后的 "Transcript"
	Visitor  string
	Agent    string
	Date     string
	Labels   Labels
	Messages []TranscriptMessage
}

// Labels 汇总模板里用到的本地化字段名。
type Labels struct {
	Agent       string
	Customer    string
	Date        string
	Time        string
	Unsupported string
}

// TranscriptMessage 是时间线上的一条消息，附件已完成解析。
type TranscriptMessage struct {
	Sender      string
	Time        string
	Body        string
	Attachments []TranscriptAttachment
}

// TranscriptAttachment 表示一个已解析的附件。
// Buffer 为 nil 时渲染为“不支持的附件”占位符。
type TranscriptAttachment struct {
	Name     string
	MimeType string
	Buffer   []byte
}
