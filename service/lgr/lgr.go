package lgr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
)

// Logger is the process wide logger. It is replaced by Configure once the
// config service is available.
var Logger = slog.New(NewHandler(os.Stdout, nil, slog.LevelInfo))

// Configure points the logger at stdout and a rotating log file.
func Configure(logFile string, level slog.Level) {
	var files io.Writer
	if logFile != "" {
		_ = os.MkdirAll(filepath.Dir(logFile), 0755)
		files = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		}
	}

	Logger = slog.New(NewHandler(os.Stdout, files, level))
	slog.SetDefault(Logger)
}

// ParseLevel accepts debug, info, warn and error. Anything else is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type ctxKey struct{}

// WithRun tags every record logged with ctx by the run id.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, runID)
}

func runFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
