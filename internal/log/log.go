// Package log is a small key/value logging facade over logrus.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// Setup configures the global logger. Verbose enables debug output.
func Setup(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output, mostly useful in tests
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debug logs a message at debug level with alternating key/value pairs
func Debug(msg string, args ...any) {
	logger.WithFields(fields(args)).Debug(msg)
}

// Info logs a message at info level with alternating key/value pairs
func Info(msg string, args ...any) {
	logger.WithFields(fields(args)).Info(msg)
}

// Warn logs a message at warn level with alternating key/value pairs
func Warn(msg string, args ...any) {
	logger.WithFields(fields(args)).Warn(msg)
}

// Error logs a message at error level with alternating key/value pairs
func Error(msg string, args ...any) {
	logger.WithFields(fields(args)).Error(msg)
}

// fields converts alternating key/value pairs into logrus fields.
// A trailing key without a value is logged under "!BADKEY".
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			f["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		f[key] = args[i+1]
	}
	return f
}
