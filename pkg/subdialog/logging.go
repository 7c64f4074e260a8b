package subdialog

import "github.com/sirupsen/logrus"

// logger is the package-wide logrus instance. Callers may reconfigure its
// level, formatter, and output via Logger(); the package never calls
// logrus.SetLevel/SetOutput on its own so it stays a well-behaved library.
var logger = logrus.New()

// Logger returns the package's logrus.Logger so an embedding application
// can wire its own level, output, and formatter.
func Logger() *logrus.Logger { return logger }

// subLogFields builds the base structured-logging fields shared by every
// log line emitted about a single Sub.
func subLogFields(setID string, role Role, event, id string) logrus.Fields {
	return logrus.Fields{
		"component": "subdialog",
		"set":       setID,
		"role":      role.String(),
		"event":     event,
		"id":        id,
	}
}
