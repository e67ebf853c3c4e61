// Package logging builds the component loggers used across the server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = `{"time":"${time_rfc3339}","level":"${level}","component":"${prefix}"}`

var output io.Writer = os.Stdout

// SetOutput redirects loggers created afterwards.
func SetOutput(w io.Writer) {
	output = w
}

// New returns a logger tagged with component at the given level.
func New(component, level string) *log.Logger {
	l := log.New(component)
	l.SetHeader(header)
	l.SetOutput(output)
	l.SetLevel(ParseLevel(level))
	return l
}

// Discard returns a logger that drops everything. Tests use it.
func Discard(component string) *log.Logger {
	l := log.New(component)
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}

// ParseLevel maps a config string to a gommon level, defaulting to INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	default:
		return log.INFO
	}
}
