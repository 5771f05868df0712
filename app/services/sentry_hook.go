package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/cantalab/leadflow/config"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry configures the global Sentry client. It is a no-op without a DSN.
func InitSentry(cfg config.SentryConfig, release string) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

// FlushSentry drains buffered events before shutdown
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// SentryHook forwards error level log entries to Sentry
type SentryHook struct {
	hub    *sentry.Hub
	levels []logrus.Level
}

// NewSentryHook creates a hook bound to the current hub
func NewSentryHook() *SentryHook {
	return &SentryHook{
		hub:    sentry.CurrentHub(),
		levels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
	}
}

// Levels implements logrus.Hook
func (h *SentryHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook
func (h *SentryHook) Fire(entry *logrus.Entry) error {
	hub := h.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(entry.Level))
		extras := make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			if k == logrus.ErrorKey {
				continue
			}
			extras[k] = fmt.Sprint(v)
		}
		scope.SetExtras(extras)

		if err, ok := entry.Data[logrus.ErrorKey].(error); ok && err != nil {
			hub.CaptureException(fmt.Errorf("%s: %w", entry.Message, err))
			return
		}
		hub.CaptureException(errors.New(entry.Message))
	})
	return nil
}

func sentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
