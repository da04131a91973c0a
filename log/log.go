package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/starkandwayne/goutils/ansi"
)

// DebugOn enables DEBUG output to stderr when true.
var DebugOn = false

// TraceOn enables TRACE output to stderr when true. Trace implies debug.
var TraceOn = false

func init() {
	if envFlag("SKEIN_DEBUG") {
		DebugOn = true
	}
	if envFlag("SKEIN_TRACE") {
		TraceOn = true
		DebugOn = true
	}
	ansi.Color(isatty.IsTerminal(os.Stderr.Fd()))
}

func envFlag(varname string) bool {
	val := os.Getenv(varname)
	return val != "" && strings.ToLower(val) != "false" && val != "0"
}

// DEBUG ...
func DEBUG(format string, args ...interface{}) {
	if DebugOn {
		PrintfStdErr("DEBUG> "+format+"\n", args...)
	}
}

// TRACE ...
func TRACE(format string, args ...interface{}) {
	if TraceOn {
		PrintfStdErr("TRACE> "+format+"\n", args...)
	}
}

// PrintfStdErr writes a formatted message directly to stderr.
func PrintfStdErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
