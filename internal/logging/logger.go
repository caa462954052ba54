// Package logging is the diagnostic logger shared by the codec and engine
// packages. Nothing in the core prints directly.
//
// Messages go through one sink at three levels. Warnings report input that
// was ignored or dropped, Logf reports conversions applied on the way, and
// Debugf traces individual loads and saves. The CLI picks the level.
package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level selects which diagnostics reach the sink.
type Level int32

const (
	Quiet Level = iota
	Warn
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case Quiet:
		return "quiet"
	case Warn:
		return "warn"
	case Debug:
		return "debug"
	default:
		return "info"
	}
}

// ParseLevel parses "quiet", "warn", "info" or "debug".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "off", "none":
		return Quiet, nil
	case "warn", "warning":
		return Warn, nil
	case "", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}

var (
	level atomic.Int32
	sink  = log.Printf
)

func init() { level.Store(int32(Info)) }

// SetLevel sets the most detailed level that is emitted.
func SetLevel(l Level) { level.Store(int32(l)) }

// CurrentLevel returns the level set by SetLevel.
func CurrentLevel() Level { return Level(level.Load()) }

// Enabled reports whether messages at l are emitted.
func Enabled(l Level) bool { return l != Quiet && CurrentLevel() >= l }

// SetLogger replaces the sink. Passing nil mutes every level.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		sink = func(string, ...any) {}
		return
	}
	sink = f
}

// Warnf reports input that was ignored or dropped.
func Warnf(format string, v ...any) { emit(Warn, "warning: "+format, v) }

// Logf reports a conversion or other notable step.
func Logf(format string, v ...any) { emit(Info, format, v) }

// Debugf traces routine work.
func Debugf(format string, v ...any) { emit(Debug, format, v) }

func emit(l Level, format string, v []any) {
	if Enabled(l) {
		sink(format, v...)
	}
}
