package utils

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	slog *slog.Logger
}

func NewLogger() *Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("MEDROTA_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
	return &Logger{slog: slog.New(handler)}
}

func (l *Logger) Printf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Debug(fmt.Sprintf(format, v...))
}

func (l *Logger) Warnf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) Fatalf(format string, v ...any) {
	if l == nil || l.slog == nil {
		os.Exit(1)
	}
	l.slog.Error(fmt.Sprintf("FATAL: "+format, v...))
	os.Exit(1)
}
