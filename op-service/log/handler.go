package log

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"reflect"
	"time"

	"github.com/holiman/uint256"

	"github.com/ethereum/go-ethereum/common/hexutil"
	elog "github.com/ethereum/go-ethereum/log"
)

const timeFormatMs = "2006-01-02T15:04:05.000-0700"

type leveler struct{ minLevel slog.Level }

func (l *leveler) Level() slog.Level {
	return l.minLevel
}

// attrRewriter normalizes attribute values so JSON and logfmt output render chain values
// the same way the terminal handler does.
type attrRewriter struct {
	// flatTime formats timestamps as strings instead of leaving them to the encoder.
	flatTime bool
}

func (r attrRewriter) replace(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() != slog.KindTime {
			break
		}
		if r.flatTime {
			return slog.String("t", attr.Value.Time().Format(timeFormatMs))
		}
		return slog.Attr{Key: "t", Value: attr.Value}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.String("lvl", elog.LevelString(l))
		}
	}
	if s, ok := r.render(attr.Value.Any()); ok {
		attr.Value = slog.StringValue(s)
	}
	return attr
}

func (r attrRewriter) render(v any) (string, bool) {
	switch v := v.(type) {
	case time.Time:
		if !r.flatTime {
			return "", false
		}
		return v.Format(timeFormatMs), true
	case time.Duration:
		return v.String(), true
	case []byte:
		return hexutil.Encode(v), true
	case *big.Int:
		if v == nil {
			return "<nil>", true
		}
		return v.String(), true
	case *uint256.Int:
		if v == nil {
			return "<nil>", true
		}
		return v.Dec(), true
	case error:
		if isNilPtr(v) {
			return "<nil>", true
		}
		return v.Error(), true
	case fmt.Stringer:
		if isNilPtr(v) {
			return "<nil>", true
		}
		return v.String(), true
	}
	return "", false
}

func isNilPtr(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// JSONMsHandlerWithLevel writes JSON records with millisecond timestamps.
func JSONMsHandlerWithLevel(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: attrRewriter{}.replace,
		Level:       &leveler{level},
	})
}

// LogfmtMsHandlerWithLevel writes logfmt records with millisecond timestamps.
func LogfmtMsHandlerWithLevel(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: attrRewriter{flatTime: true}.replace,
		Level:       &leveler{level},
	})
}
