package trust

import (
	"fmt"
	"io"
	"os"
	"strings"

	"camaraderie/src/lib/lock"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

var level = fatalMask | StatsMask | ErrorMask | WarnMask | InfoMask

var output io.Writer = os.Stdout

// exit is called by Fatalf.  The boot code replaces it with the tohost
// exit of the board.
var exit = os.Exit

// printLock keeps lines from different harts from interleaving.
var printLock lock.SpinMutex

// SetOutput changes where log lines go and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	printLock.Lock()
	defer printLock.Unlock()
	prev := output
	output = w
	return prev
}

// SetExitHook replaces the function Fatalf uses to stop the machine.  A nil
// hook puts back os.Exit.
func SetExitHook(fn func(int)) {
	if fn == nil {
		fn = os.Exit
	}
	exit = fn
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask.
func SetLevel(mask MaskLevel) MaskLevel {
	r := level & 0x1f
	level = (mask & 0x1f) | fatalMask
	return r
}

func Level() MaskLevel {
	return level
}

// ParseLevel turns a name like "warn" into the mask that prints that level
// and everything more severe.  Stats are always on.
func ParseLevel(s string) (MaskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return Nothing, true
	case "error":
		return ErrorMask | StatsMask, true
	case "warn":
		return ErrorMask | WarnMask | StatsMask, true
	case "info":
		return ErrorMask | WarnMask | InfoMask | StatsMask, true
	case "debug":
		return ErrorMask | WarnMask | InfoMask | DebugMask | StatsMask, true
	}
	return Nothing, false
}

func LevelToString() string {
	var parts []string
	if level&ErrorMask > 0 {
		parts = append(parts, "error")
	}
	if level&WarnMask > 0 {
		parts = append(parts, "warn")
	}
	if level&InfoMask > 0 {
		parts = append(parts, "info")
	}
	if level&DebugMask > 0 {
		parts = append(parts, "debug")
	}
	if level&StatsMask > 0 {
		parts = append(parts, "stats")
	}
	return strings.Join(parts, " ")
}

func logf(l MaskLevel, format string, params ...interface{}) {
	if level&l == 0 {
		return
	}
	prefix := ""
	switch {
	case l&fatalMask > 0:
		prefix = "FATAL:"
	case l&ErrorMask > 0:
		prefix = "ERROR:"
	case l&WarnMask > 0:
		prefix = " WARN:"
	case l&InfoMask > 0:
		prefix = " INFO:"
	case l&DebugMask > 0:
		prefix = "DEBUG:"
	case l&StatsMask > 0:
		s, ok := params[0].(string)
		if !ok {
			s = "unknown"
		}
		prefix = fmt.Sprintf("STATS[%s]:", s)
		params = params[1:]
	}
	if len(format) == 0 {
		format = "\n"
	} else if format[len(format)-1] != '\n' {
		format += "\n"
	}
	line := prefix + fmt.Sprintf(format, params...)
	printLock.Lock()
	io.WriteString(output, line)
	printLock.Unlock()
}

//Fatalf prints the given log message (format + params) and then
//exits with the exitCode provided.  Fatalf is not maskable.
func Fatalf(exitCode int, format string, params ...interface{}) {
	logf(fatalMask, format, params...)
	exit(exitCode)
}

//Errorf prints the given log message (format + params) using the ErrorMask level.
func Errorf(format string, params ...interface{}) {
	logf(ErrorMask, format, params...)
}

//Warnf prints the given log message (format + params) using the WarnMask level.
func Warnf(format string, params ...interface{}) {
	logf(WarnMask, format, params...)
}

//Infof prints the given log message (format + params) using the InfoMask level.
func Infof(format string, params ...interface{}) {
	logf(InfoMask, format, params...)
}

//Debugf prints the given log message (format + params) using the DebugMask level.
func Debugf(format string, params ...interface{}) {
	logf(DebugMask, format, params...)
}

//Statsf prints the given log message (format + params) using the StatsMask level and
//takes an extra parameter that will be visible in the log message as the category
//of stats that is reported.
func Statsf(category string, format string, params ...interface{}) {
	logf(StatsMask, format, append([]interface{}{category}, params...)...)
}
