package services

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// logrusWALogger bridges whatsmeow's logger onto logrus
type logrusWALogger struct {
	entry *logrus.Entry
}

// NewWALogger returns a whatsmeow logger writing through entry under module
func NewWALogger(entry *logrus.Entry, module string) waLog.Logger {
	return &logrusWALogger{entry: entry.WithField("module", module)}
}

func (l *logrusWALogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *logrusWALogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *logrusWALogger) Infof(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *logrusWALogger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }

func (l *logrusWALogger) Sub(module string) waLog.Logger {
	current, _ := l.entry.Data["module"].(string)
	if current != "" {
		module = current + "/" + module
	}
	return &logrusWALogger{entry: l.entry.WithField("module", module)}
}
