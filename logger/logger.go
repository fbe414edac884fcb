package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Logger struct {
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
}

func NewLogger() *Logger {
	return New(os.Stdout, os.Stderr)
}

// New builds a Logger writing info to out and warnings/errors to errOut.
func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmsgprefix
	return &Logger{
		infoLog:  log.New(out, "INFO: ", flags),
		warnLog:  log.New(errOut, "WARN: ", flags),
		errorLog: log.New(errOut, "ERROR: ", flags),
	}
}

// Discard drops everything; handy in tests.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.infoLog.Println(format(msg, kv))
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.warnLog.Println(format(msg, kv))
}

func (l *Logger) Error(msg string, kv ...any) {
	l.errorLog.Println(format(msg, kv))
}

// format renders msg followed by key=value pairs.
func format(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, " %v", kv[i])
		}
	}
	return b.String()
}
