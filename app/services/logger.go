package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cantalab/leadflow/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger from the logging section.
// File output is rotated by lumberjack; "both" tees to stdout.
func NewLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(cfg.EnableCaller)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	out, err := logOutput(cfg.Output, cfg.FilePath, cfg)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	return logger, nil
}

// NewComponentLogger returns a logger for a long-running component that writes to stdout and
// its own rotated file. It falls back to the parent output when the file cannot be created.
func NewComponentLogger(parent *logrus.Logger, component, path string, cfg config.LoggingConfig) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(parent.GetLevel())
	logger.SetFormatter(parent.Formatter)
	logger.ReplaceHooks(parent.Hooks)

	out, err := logOutput("both", path, cfg)
	if err != nil {
		logger.SetOutput(parent.Out)
		logger.WithError(err).WithField("component", component).Warn("failed to initialize component log file")
	} else {
		logger.SetOutput(out)
	}
	return logger.WithField("component", component)
}

func logOutput(mode, path string, cfg config.LoggingConfig) (io.Writer, error) {
	if mode == "stdout" || mode == "" {
		return os.Stdout, nil
	}
	if path == "" {
		return nil, fmt.Errorf("log file path is required for %s output", mode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if mode == "file" {
		return rotator, nil
	}
	return io.MultiWriter(os.Stdout, rotator), nil
}
