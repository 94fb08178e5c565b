package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/trezcool/masomo/portal/core"
)

// Logger is a core.Logger that records messages for assertions.
type Logger struct {
	mu       sync.Mutex
	t        testing.TB
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
	if l.t != nil {
		l.t.Logf("%s: %s %v", level, msg, args)
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{}) { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{}) { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Logged returns a copy of the recorded messages.
func (l *Logger) Logged() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Messages...)
}
