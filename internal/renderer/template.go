package renderer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
)

// TranscriptTemplateString 是转录 PDF 的 Go HTML 模板。
// 页面尺寸由打印参数控制，这里只负责排版。
const TranscriptTemplateString = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            margin: 0;
            padding: 24px;
            font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif;
            font-size: 11pt;
            color: #1f2329;
        }
        .header {
            border-bottom: 2px solid #1f2329;
            padding-bottom: 12px;
            margin-bottom: 16px;
        }
        .header h1 {
            margin: 0 0 4px 0;
            font-size: 16pt;
        }
        .header .meta {
            color: #5c6370;
            font-size: 9pt;
        }
        .message {
            margin-bottom: 12px;
            page-break-inside: avoid;
        }
        .message .sender {
            font-weight: bold;
        }
        .message .time {
            color: #5c6370;
            font-size: 8pt;
            margin-left: 6px;
        }
        .message .body {
            margin-top: 2px;
            white-space: pre-wrap;
        }
        .attachment {
            margin-top: 6px;
        }
        .attachment img {
            max-width: 480px;
            max-height: 360px;
        }
        .attachment .placeholder {
            color: #5c6370;
            font-style: italic;
            font-size: 9pt;
        }
        @page {
            size: A4;
            margin: 1cm;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}} · {{.SiteName}}</h1>
        <div class="meta">{{.Labels.Customer}}: {{.Visitor}} · {{.Labels.Agent}}: {{.Agent}} · {{.Labels.Date}}: {{.Date}}</div>
    </div>
    {{range .Messages}}
        <div class="message">
            <span class="sender">{{.Sender}}</span><span class="time">{{$.Labels.Time}}: {{.Time}}</span>
            <div class="body">{{.Body}}</div>
            {{range .Attachments}}
                <div class="attachment">
                    {{if .Buffer}}
                        <img src="{{dataURI .MimeType .Buffer}}" alt="{{.Name}}" />
                    {{else}}
                        <div class="placeholder">{{.Name}} ({{$.Labels.Unsupported}})</div>
                    {{end}}
                </div>
            {{end}}
        </div>
    {{end}}
</body>
</html>
`

var transcriptTemplate = template.Must(
	template.New("transcript").
		Funcs(template.FuncMap{"dataURI": dataURI}).
		Parse(TranscriptTemplateString),
)

// dataURI 把附件内容内联为 data URI，避免渲染时的外部请求。
func dataURI(mimeType string, buffer []byte) template.URL {
	encoded := base64.StdEncoding.EncodeToString(buffer)
	return template.URL(fmt.Sprintf("data:%s;base64,%s", mimeType, encoded))
}

// BuildTranscriptHTML 渲染转录 HTML，供无头浏览器打印为 PDF。
func BuildTranscriptHTML(data *TranscriptData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute transcript template: %w", err)
	}
	return buf.String(), nil
}
