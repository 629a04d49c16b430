// Package logging implements application log support for signet on top
// of logrus. Secrets, signatures and signed URLs are never logged by
// any signet component; this package only carries the plumbing.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

type prefixFormatter struct {
	prefix    string
	formatter logrus.Formatter
}

// Init options for logging.
type Options struct {

	// Prefix for application log entries.
	ApplicationLogPrefix string

	// Output for the application log entries, when nil, os.Stderr is
	// used.
	ApplicationLogOutput io.Writer

	// ApplicationLogJSONEnabled switches the application log to JSON
	// format.
	ApplicationLogJSONEnabled bool

	// Level sets the application log level, defaults to INFO.
	Level logrus.Level
}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}

	return append([]byte(f.prefix), b...), nil
}

// Initializes logging.
func Init(o Options) {
	if o.ApplicationLogJSONEnabled {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else if o.ApplicationLogPrefix != "" {
		logrus.SetFormatter(&prefixFormatter{
			o.ApplicationLogPrefix, logrus.StandardLogger().Formatter})
	}

	if o.ApplicationLogOutput != nil {
		logrus.SetOutput(o.ApplicationLogOutput)
	}

	if o.Level != 0 {
		logrus.SetLevel(o.Level)
	}
}
