package testlog

import (
	"context"
	"log/slog"
	"sync"
)

// CapturedRecord is a log record together with the attributes inherited from the logger
// that emitted it.
type CapturedRecord struct {
	slog.Record
	inherited []slog.Attr
}

// AttrValue returns the value of the first attribute named key.
func (r *CapturedRecord) AttrValue(key string) (slog.Value, bool) {
	var (
		out   slog.Value
		found bool
	)
	r.Record.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			out, found = a.Value, true
			return false
		}
		return true
	})
	if found {
		return out, true
	}
	for _, a := range r.inherited {
		if a.Key == key {
			return a.Value, true
		}
	}
	return slog.Value{}, false
}

type captured struct {
	mu   sync.Mutex
	logs []*CapturedRecord
}

// CapturingHandler records every log record and forwards it to a delegate.
// Derived handlers share the same record list.
type CapturingHandler struct {
	handler slog.Handler
	logs    *captured
	attrs   []slog.Attr
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	c.logs.mu.Lock()
	c.logs.logs = append(c.logs.logs, &CapturedRecord{Record: r.Clone(), inherited: c.attrs})
	c.logs.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		logs:    c.logs,
		attrs:   append(append([]slog.Attr{}, c.attrs...), attrs...),
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithGroup(name),
		logs:    c.logs,
		attrs:   c.attrs,
	}
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

// FindLogs returns all captured records matching every filter.
func (c *CapturingHandler) FindLogs(filters ...LogFilter) []*CapturedRecord {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	var out []*CapturedRecord
outer:
	for _, r := range c.logs.logs {
		for _, f := range filters {
			if !f(r) {
				continue outer
			}
		}
		out = append(out, r)
	}
	return out
}

type LogFilter func(*CapturedRecord) bool

func NewLevelFilter(level slog.Level) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Level == level
	}
}

func NewMessageFilter(msg string) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Message == msg
	}
}

func NewAttributesFilter(key, value string) LogFilter {
	return func(r *CapturedRecord) bool {
		v, ok := r.AttrValue(key)
		return ok && v.String() == value
	}
}
