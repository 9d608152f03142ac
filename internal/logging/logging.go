// Package logging builds the process logger. Every line passes through a
// redacting formatter so bearer tokens and passwords never reach the sink.
package logging

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var sensitive = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)(Bearer\s+)[^\s"']+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(token["']?\s*[:=]\s*["']?)[^"'\s,}]+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(password["']?\s*[:=]\s*["']?)[^"'\s,}]+`), "${1}[REDACTED]"},
}

// Redact masks credentials in s.
func Redact(s string) string {
	for _, p := range sensitive {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// RedactingFormatter wraps another formatter and scrubs its output.
type RedactingFormatter struct {
	Inner logrus.Formatter
}

func (f *RedactingFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b, err := f.Inner.Format(e)
	if err != nil {
		return nil, err
	}
	return []byte(Redact(string(b))), nil
}

// New returns a logger writing to stderr. level defaults to info; format is "text" or "json".
func New(level, format string) *logrus.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	var inner logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
	if strings.EqualFold(format, "json") {
		inner = &logrus.JSONFormatter{}
	}
	l.SetFormatter(&RedactingFormatter{Inner: inner})
	return l
}

// Discard is a logger for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
