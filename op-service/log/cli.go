package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

// FormatType defines a type of log format.
type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

func (ft FormatType) String() string {
	return string(ft)
}

// ParseFormat returns the FormatType matching s.
func ParseFormat(s string) (FormatType, error) {
	switch ft := FormatType(strings.ToLower(s)); ft {
	case FormatText, FormatTerminal, FormatLogFmt, FormatJSON:
		return ft, nil
	default:
		return "", fmt.Errorf("unrecognized log format: %q", s)
	}
}

// ParseLevel parses the textual level names used by the log.level flag.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

func prefixEnvVars(envPrefix string, name string) []string {
	return []string{envPrefix + "_" + name}
}

// CLIFlags creates the logging flags, with env vars under envPrefix.
func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   "info",
			EnvVars: prefixEnvVars(envPrefix, "LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. Supported formats: 'text', 'terminal', 'logfmt', 'json'",
			Value:   FormatText.String(),
			EnvVars: prefixEnvVars(envPrefix, "LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: prefixEnvVars(envPrefix, "LOG_COLOR"),
		},
	}
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatText,
	}
}

// ReadCLIConfig reads the logging flags. Unparseable values fall back to the defaults,
// they are validated by the flag layer before reaching here.
func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	if lvl, err := ParseLevel(ctx.String(LevelFlagName)); err == nil {
		cfg.Level = lvl
	}
	if ft, err := ParseFormat(ctx.String(FormatFlagName)); err == nil {
		cfg.Format = ft
	}
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg
}

// NewLogger creates a logger writing to wr in the configured format.
func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	return log.NewLogger(NewHandler(wr, cfg))
}

func NewHandler(wr io.Writer, cfg CLIConfig) slog.Handler {
	switch cfg.Format {
	case FormatJSON:
		return JSONMsHandlerWithLevel(wr, cfg.Level)
	case FormatLogFmt:
		return LogfmtMsHandlerWithLevel(wr, cfg.Level)
	case FormatTerminal:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color)
	default:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color && isTerminal(wr))
	}
}

func isTerminal(wr io.Writer) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := wr.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// AppOut returns the writer logs should go to: the app's error writer, so stdout stays
// reserved for command results.
func AppOut(ctx *cli.Context) io.Writer {
	if ctx.App.ErrWriter != nil {
		return ctx.App.ErrWriter
	}
	return os.Stderr
}

// SetGlobalLogHandler sets the log handler of the root logger.
func SetGlobalLogHandler(h slog.Handler) {
	log.SetDefault(log.NewLogger(h))
}
