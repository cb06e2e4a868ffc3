package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Fields struct {
	Service    string
	OrderID    string
	EventID    string
	Step       string
	Status     string
	DurationMS int64
	Message    string
}

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000000Z07:00"})
	return l
}

// SetOutput redirects all service logs, mainly for tests.
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
}

func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
}

func Log(fields Fields) {
	entry(fields).Info(message(fields))
}

func Warn(fields Fields, err error) {
	entry(fields).WithError(err).Warn(message(fields))
}

func Error(fields Fields, err error) {
	entry(fields).WithError(err).Error(message(fields))
}

// message falls back to step and status so no entry carries an empty msg.
func message(fields Fields) string {
	switch {
	case fields.Message != "":
		return fields.Message
	case fields.Step != "" && fields.Status != "":
		return fields.Step + " " + fields.Status
	case fields.Status != "":
		return fields.Status
	default:
		return fields.Step
	}
}

func entry(fields Fields) *logrus.Entry {
	data := logrus.Fields{"service": fields.Service}
	if fields.OrderID != "" {
		data["order_id"] = fields.OrderID
	}
	if fields.EventID != "" {
		data["event_id"] = fields.EventID
	}
	if fields.Step != "" {
		data["step"] = fields.Step
	}
	if fields.Status != "" {
		data["status"] = fields.Status
	}
	if fields.DurationMS > 0 {
		data["duration_ms"] = fields.DurationMS
	}
	return logger.WithFields(data)
}
