package log

import (
	stdlog "log"
	"strings"
)

// ToStdLogger returns a *log.Logger whose output is forwarded to l at the
// given level. Useful for libraries that accept only the standard logger.
func ToStdLogger(l Logger, level Level) *stdlog.Logger {
	return stdlog.New(&stdWriter{logger: l, level: level}, "", 0)
}

// RedirectStdLog routes the process-global standard logger through l at
// InfoLevel. Flags and prefix are cleared so lines are not double-stamped.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(&stdWriter{logger: l, level: InfoLevel})
}

type stdWriter struct {
	logger Logger
	level  Level
}

func (w *stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}
