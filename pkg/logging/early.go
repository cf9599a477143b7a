package logging

import (
	"fmt"
	"os"
)

// EarlyLog writes plain lines to stderr until the structured logger exists,
// which needs the configuration it may be reporting about.
type EarlyLog struct{}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "mail2alert: error: "+msg+"\n", args...)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "mail2alert: warning: "+msg+"\n", args...)
}
