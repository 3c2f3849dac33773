// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Testing interface to log to. Some functions are marked as Helper function to log the call site accurately.
// Standard Go testing.TB implements this.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Name() string
	Cleanup(func())
}

// testWriter forwards complete lines to t.Logf until the test has finished.
type testWriter struct {
	t    Testing
	mu   sync.Mutex
	done bool
	buf  bytes.Buffer
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return len(p), nil
	}
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.t.Helper()
		w.t.Logf("%s", strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

func (w *testWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
}

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return log.NewLogger(handler(t, level))
}

func handler(t Testing, level slog.Level) slog.Handler {
	w := &testWriter{t: t}
	t.Cleanup(w.close)
	return log.NewTerminalHandlerWithLevel(w, level, false)
}

// CaptureLogger returns a logger which logs to t and also records every log record,
// so tests can assert on what was logged.
func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	ch := &CapturingHandler{handler: handler(t, level), logs: new(captured)}
	return log.NewLogger(ch), ch
}
