// Package logging provides the bracket-tagged logger used throughout
// the pipeline: plain log.Printf("[TAG] ...") lines, one tag per
// component.
package logging

import (
	"log"
	"os"
)

// Logger writes bracket-tagged lines to an underlying *log.Logger. It
// exists so call sites write logging.New("RULER").Infof(...) instead of
// repeating the tag in every format string.
type Logger struct {
	tag string
	std *log.Logger
}

var base = log.New(os.Stdout, "", log.LstdFlags)

// New returns a Logger that prefixes every line with [tag].
func New(tag string) *Logger {
	return &Logger{tag: tag, std: base}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.std.Printf("[%s] "+format, append([]interface{}{l.tag}, args...)...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Printf("[%s][WARN] "+format, append([]interface{}{l.tag}, args...)...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.std.Printf("[%s][ERROR] "+format, append([]interface{}{l.tag}, args...)...)
}
