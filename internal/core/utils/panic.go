package utils

import (
	"log/slog"
	"runtime"
)

func stack() []byte {
	buf := make([]byte, 8096)
	return buf[:runtime.Stack(buf, false)]
}

// CatchPanic logs a recovered panic. It must be deferred directly.
func CatchPanic(log *slog.Logger) {
	if err := recover(); err != nil {
		log.Error("recovered panic", slog.Any("panic", err), slog.String("stack", string(stack())))
	}
}

// CatchPanicWithFallback hands a recovered panic and its stack to onPanic.
// It must be deferred directly.
func CatchPanicWithFallback(onPanic func(rec any, stack []byte)) {
	if err := recover(); err != nil {
		onPanic(err, stack())
	}
}
