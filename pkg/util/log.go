// Logging for nvconf: a single logrus logger, quiet (warn) unless -v is
// given, with device and phase fields on session entries.

package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. nvconf writes results to stdout, so
// logs always go to stderr unless redirected.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.WarnLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel parses a logrus level name ("debug", "warn", ...) and applies it.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetVerbose switches between the quiet default (warn) and debug.
func SetVerbose(verbose bool) {
	if verbose {
		Logger.SetLevel(logrus.DebugLevel)
		return
	}
	Logger.SetLevel(logrus.WarnLevel)
}

// SetLogOutput redirects logs, e.g. to a buffer in tests.
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetJSONFormat switches to one JSON object per line, for log shippers
// collecting nvconf runs from many switches.
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithDevice returns a logger with device context. Local execution is
// reported as "localhost".
func WithDevice(device string) *logrus.Entry {
	if device == "" {
		device = "localhost"
	}
	return Logger.WithField("device", device)
}

// WithPhase adds the session phase to the device entry. Every nv call a
// session makes is logged through it at debug level.
func WithPhase(device, phase string) *logrus.Entry {
	return WithDevice(device).WithField("phase", phase)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// Warnf is used for non-fatal problems: unreadable settings, audit or
// metrics files that could not be written.
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}
