// Package logs builds the node's structured logger. Records are written as
// JSON through log/slog to stdout, stderr or a rotated file.
package logs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/akyaiy/GoSally-connector/internal/core/utils"
	"github.com/akyaiy/GoSally-connector/internal/engine/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file created when log.output names a directory.
const FileName = "event.log"

type levelsStruct struct {
	Available []string
	Fallback  string
}

var Levels = levelsStruct{
	Available: []string{
		"debug", "info",
	},
	Fallback: "info",
}

// ParseLevel maps a configured level name onto a slog level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

type SlogWriter struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (w *SlogWriter) Write(p []byte) (n int, err error) {
	msg := string(bytes.TrimSpace(p))
	w.Logger.Log(context.TODO(), w.Level, msg)
	return len(p), nil
}

// Output opens the writer log.output points at. The returned closer is nil
// for the standard streams.
func Output(out string) (io.Writer, io.Closer) {
	switch out {
	case config.OutStdout:
		return os.Stdout, nil
	case config.OutStderr, "":
		return os.Stderr, nil
	}
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(out, FileName),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	return logFile, logFile
}

// SetupLogger returns a JSON logger whose level is held by level, so it can
// be raised while the logger is in use. The closer releases a log file.
func SetupLogger(o *config.Log, level *slog.LevelVar) (*slog.Logger, io.Closer, error) {
	level.Set(ParseLevel(*o.Level))

	out := utils.SafeFetch(o.OutPath, config.OutStderr)
	writer, closer := Output(out)
	if closer != nil {
		if err := os.MkdirAll(out, 0755); err != nil {
			return nil, nil, err
		}
	}

	log := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
	return log, closer, nil
}
