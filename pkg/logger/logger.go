package logger

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var Log *slog.Logger

// Audit receives retention audit records. When nil, callers fall back to Log.
var Audit *slog.Logger

type asyncWriter struct {
	ch chan []byte
}

func (a *asyncWriter) Write(p []byte) (n int, err error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case a.ch <- cp:
	default:
		// queue full: drop rather than block the caller
	}
	return len(p), nil
}

var (
	logCh     chan []byte
	logStopCh chan struct{}
	logWG     sync.WaitGroup
	auditFile *os.File
)

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the global logger behind an async buffered writer.
// An empty level falls back to PAGEDESK_LOG_LEVEL. PAGEDESK_LOG_SINK
// ("file:/path") redirects output from stdout to a file and
// PAGEDESK_LOG_FORMAT=json switches the handler to JSON.
func Init(level string) {
	if strings.TrimSpace(level) == "" {
		level = os.Getenv("PAGEDESK_LOG_LEVEL")
	}
	sink := os.Getenv("PAGEDESK_LOG_SINK")
	format := strings.ToLower(strings.TrimSpace(os.Getenv("PAGEDESK_LOG_FORMAT")))

	logCh = make(chan []byte, 10000)
	logStopCh = make(chan struct{})
	aw := &asyncWriter{ch: logCh}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "json" {
		Log = slog.New(slog.NewJSONHandler(aw, opts))
	} else {
		Log = slog.New(slog.NewTextHandler(aw, opts))
	}

	logWG.Add(1)
	go func(ch chan []byte, stop chan struct{}) {
		defer logWG.Done()
		out, closer := openSink(sink)
		buf := bufio.NewWriterSize(out, 8192)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case b := <-ch:
				buf.Write(b)
			case <-ticker.C:
				buf.Flush()
			case <-stop:
				// drain what is already queued
				for {
					select {
					case b := <-ch:
						buf.Write(b)
						continue
					default:
					}
					break
				}
				buf.Flush()
				if closer != nil {
					closer.Close()
				}
				return
			}
		}
	}(logCh, logStopCh)
}

// InitWriter installs a synchronous logger writing to w. Tests use it to
// capture output.
func InitWriter(w io.Writer, level string) {
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func openSink(sink string) (io.Writer, io.Closer) {
	if !strings.HasPrefix(sink, "file:") {
		return os.Stdout, nil
	}
	path := strings.TrimPrefix(sink, "file:")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
		return os.Stdout, nil
	}
	return f, f
}

// AttachAuditFileSink writes audit records as JSON to <auditDir>/audit.log.
func AttachAuditFileSink(auditDir string) error {
	if auditDir == "" {
		return fmt.Errorf("empty audit dir")
	}
	if fi, err := os.Lstat(auditDir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit path is a symlink: %s", auditDir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("audit path exists and is not a directory: %s", auditDir)
		}
	}
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	fname := filepath.Join(auditDir, "audit.log")
	if fi, err := os.Stat(fname); err == nil {
		const maxSize = 10 * 1024 * 1024
		if fi.Size() > maxSize {
			bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
			_ = os.Rename(fname, bak)
		}
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	auditFile = f
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Audit.Info("audit_sink_attached", "path", fname)
	return nil
}

// AuditInfo writes to the audit logger, or to Log when none is attached.
func AuditInfo(msg string, args ...any) {
	if Audit != nil {
		Audit.Info(msg, args...)
		return
	}
	Info(msg, args...)
}

// Sync flushes buffered logs and closes sinks.
func Sync() {
	if logStopCh != nil {
		close(logStopCh)
		logWG.Wait()
		logStopCh = nil
	}
	if auditFile != nil {
		_ = auditFile.Close()
		auditFile = nil
		Audit = nil
	}
}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// LogConfigSummary prints a titled block of "- item" lines to stdout so
// startup settings stay readable in a terminal.
func LogConfigSummary(title string, items []string) {
	if len(items) == 0 {
		return
	}
	words := strings.Fields(strings.ReplaceAll(title, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	header := "== " + strings.Join(words, " ") + " "
	const width = 60
	if len(header) < width {
		header += strings.Repeat("=", width-len(header))
	}
	fmt.Fprintln(os.Stdout, header)
	for _, it := range items {
		fmt.Fprintln(os.Stdout, "- "+it)
	}
	fmt.Fprintln(os.Stdout)
}
