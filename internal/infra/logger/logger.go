// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
//
// With File set, entries are written there as JSON. Otherwise they go to
// Console in human-readable form; the interactive player passes the prompt's
// stderr so log lines do not tear the line being edited.
type Config struct {
	Level   string    // "debug", "info", "warn", "error"
	File    string    // JSON log file; empty logs to Console
	Console io.Writer // defaults to os.Stderr
}

// Init initializes the global zerolog logger with the given configuration.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	logger, err := newLogger(cfg, level)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(level)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return nil
}

func init() {
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller
}

// newLogger builds the logger for cfg. The caller is only recorded at
// debug level.
func newLogger(cfg Config, level zerolog.Level) (zerolog.Logger, error) {
	var ctx zerolog.Context
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, errors.Wrapf(err, "failed to open log file %s", cfg.File)
		}
		ctx = zerolog.New(f).With()
	} else {
		ctx = zerolog.New(consoleWriter(cfg.Console, level)).With()
	}

	ctx = ctx.Timestamp()
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), nil
}

// consoleWriter renders colored lines on out.
func consoleWriter(out io.Writer, level zerolog.Level) zerolog.ConsoleWriter {
	if out == nil {
		out = os.Stderr
	}
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
	}
	if level == zerolog.DebugLevel {
		w.PartsOrder = []string{"time", "level", "message", "caller"}
		w.FormatCaller = func(i interface{}) string {
			return "(" + i.(string) + ")"
		}
	}
	return w
}

// shortCaller keeps the last directory and file name.
func shortCaller(pc uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
