package geoio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nxadm/tail"

	"github.com/rsdeploy/rsdeploy/internal/utils/logger"
)

// TailConfig controls how a newline-delimited input file is read.
// TailConfig 控制如何读取按行分隔的输入文件。
type TailConfig struct {
	// Follow keeps reading as the file grows; otherwise reading stops at EOF.
	// Follow 为真时随文件增长持续读取，否则读到 EOF 停止。
	Follow bool
	// Poll uses polling instead of inotify.
	// Poll 使用轮询代替 inotify。
	Poll bool
	// FromEnd starts at the current end of the file instead of its beginning.
	FromEnd bool
}

// Tailer streams the lines of one file to a handler.
// Tailer 将单个文件的行流式传递给处理函数。
type Tailer struct {
	filename string
	cfg      TailConfig
}

// NewTailer creates a new Tailer.
func NewTailer(filename string, cfg TailConfig) *Tailer {
	return &Tailer{filename: filename, cfg: cfg}
}

// Run calls handle for every non-blank line until EOF (when not following),
// until ctx is cancelled, or until handle returns an error. Cancellation is a
// clean stop and returns nil.
//
// Run 对每个非空行调用 handle，直到 EOF（非跟随模式）、ctx 取消或 handle 返回错误。取消视为正常停止，返回 nil。
func (t *Tailer) Run(ctx context.Context, handle func(lineNo int, text string) error) error {
	log := logger.Get(ctx)

	config := tail.Config{
		Follow:    t.cfg.Follow,
		ReOpen:    t.cfg.Follow, // Handle log rotation
		MustExist: true,
		Poll:      t.cfg.Poll,
		Logger:    tail.DiscardingLogger,
	}
	if t.cfg.FromEnd {
		config.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	tailer, err := tail.TailFile(t.filename, config)
	if err != nil {
		return fmt.Errorf("tail %s: %w", t.filename, err)
	}
	defer tailer.Cleanup()

	log.Debugf("geoio: tailing %s (follow=%v)", t.filename, t.cfg.Follow)

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			_ = tailer.Stop()
			log.Debugf("geoio: stopped tailing %s after %d lines", t.filename, lineNo)
			return nil
		case line, ok := <-tailer.Lines:
			if !ok {
				return tailer.Wait()
			}
			lineNo++
			if line.Err != nil {
				_ = tailer.Stop()
				return fmt.Errorf("read %s line %d: %w", t.filename, lineNo, line.Err)
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			if err := handle(lineNo, text); err != nil {
				_ = tailer.Stop()
				return err
			}
		}
	}
}
