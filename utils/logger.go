package utils

import (
	"fmt"
	"log"
)

type LogLevel int

const (
	LogLevelError = LogLevel(1 << iota)
	LogLevelInfo
	LogLevelNotice
	LogLevelDebug
)

var GlobalLogLevel = LogLevelError | LogLevelInfo

// SetLogLevel maps a verbosity number onto GlobalLogLevel.
// 0 only errors, 1 adds info, 2 adds notices, 3 and above logs everything.
func SetLogLevel(verbosity int) {
	level := LogLevelError
	if verbosity >= 1 {
		level |= LogLevelInfo
	}
	if verbosity >= 2 {
		level |= LogLevelNotice
	}
	if verbosity >= 3 {
		level |= LogLevelDebug
	}
	GlobalLogLevel = level
}

func Errorf(format string, v ...any) {
	if GlobalLogLevel&LogLevelError == 0 {
		return
	}
	log.Printf(format, v...)
}

func Logf(format string, v ...any) {
	if GlobalLogLevel&LogLevelInfo == 0 {
		return
	}
	log.Printf(format, v...)
}

func Noticef(format string, v ...any) {
	if GlobalLogLevel&LogLevelNotice == 0 {
		return
	}
	log.Printf(format, v...)
}

func Debugf(format string, v ...any) {
	if GlobalLogLevel&LogLevelDebug == 0 {
		return
	}
	log.Printf(format, v...)
}

// Logger prefixes every line with a bracketed component tag, e.g. "[P2Pool] ".
type Logger string

func (l Logger) prefix(format string) string {
	return fmt.Sprintf("[%s] %s", string(l), format)
}

func (l Logger) Errorf(format string, v ...any) {
	Errorf(l.prefix(format), v...)
}

func (l Logger) Logf(format string, v ...any) {
	Logf(l.prefix(format), v...)
}

func (l Logger) Noticef(format string, v ...any) {
	Noticef(l.prefix(format), v...)
}

func (l Logger) Debugf(format string, v ...any) {
	Debugf(l.prefix(format), v...)
}
