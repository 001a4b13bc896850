package log

import (
	"io"
	stdlog "log"
)

// stdWriter adapts a Logger into an io.Writer suitable for stdlib log.Logger
// or http.Server.ErrorLog, which only ever see pre-formatted messages.
type stdWriter struct {
	logger Logger
	level  Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that writes through the given Logger at
// the given level, for interop with stdlib APIs that take *log.Logger.
func ToStdLogger(logger Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdWriter{logger: logger, level: level}, "", 0)
}

// RedirectStdLog points the stdlib "log" package's default logger at the
// given Logger, so output from dependencies using log.Print* is captured in
// the same structured pipeline.
func RedirectStdLog(logger Logger) {
	stdlog.SetOutput(stdWriter{logger: logger, level: ErrorLevel})
	stdlog.SetFlags(0)
}

var _ io.Writer = stdWriter{}
