package renderer

import (
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodEngine 使用 go-rod 在无头浏览器中把转录 HTML 打印为 PDF 字节流。
type RodEngine struct{}

// NewRodEngine 构造渲染引擎。
func NewRodEngine() *RodEngine {
	return &RodEngine{}
}

// RenderToStream 渲染转录并返回 PDF 字节流。
// 返回的 ReadCloser 在 Close 时回收页面与浏览器进程，调用方负责把流读尽。
func (e *RodEngine) RenderToStream(data *TranscriptData) (io.ReadCloser, error) {
	htmlContent, err := BuildTranscriptHTML(data)
	if err != nil {
		return nil, err
	}

	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	cleanup := func() {
		launch.Cleanup()
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	cleanup = func() {
		_ = browser.Close()
		launch.Cleanup()
	}

	page, err := browser.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}
	cleanup = func() {
		_ = page.Close()
		_ = browser.Close()
		launch.Cleanup()
	}

	page = page.Timeout(30 * time.Second)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		cleanup()
		return nil, fmt.Errorf("set document content: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		cleanup()
		return nil, fmt.Errorf("wait load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("export pdf: %w", err)
	}

	return &pdfStream{reader: reader, cleanup: cleanup}, nil
}

// pdfStream 把 PDF 流与浏览器生命周期绑在一起。
type pdfStream struct {
	reader  io.ReadCloser
	cleanup func()
}

func (s *pdfStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *pdfStream) Close() error {
	err := s.reader.Close()
	s.cleanup()
	return err
}
