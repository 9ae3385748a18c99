package mlog

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

type Logger interface {
	Trace(v ...any)
	Debug(v ...any)
	Info(v ...any)
	Notice(v ...any)
	Warn(v ...any)
	Error(v ...any)
	Fatal(v ...any)

	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Noticef(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	Fatalf(format string, v ...any)
}

type holder struct {
	l Logger
}

// 定时器goroutine和调用方goroutine都会打日志, 替换logger需要原子操作
var current atomic.Pointer[holder]

func SetLogger(l Logger) {
	if l == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{l: l})
}

func getLogger() Logger {
	if h := current.Load(); h != nil {
		return h.l
	}
	return nopLogger{}
}

// UseDefaultLogger 使用文件日志, ctx结束时落盘并关闭文件
func UseDefaultLogger(ctx context.Context, wg *sync.WaitGroup, path string, logName string, level Level, stdOut bool) error {
	l, err := newDefaultLogger(path, logName, level, stdOut)
	if err != nil {
		return err
	}
	l.Start(ctx, wg)
	SetLogger(l)
	return nil
}

func UseStdLogger(level Level) error {
	l := newStdoutLogger(level)
	SetLogger(l)
	return nil
}

type Level uint32

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	NoticeLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

func Trace(a ...any)                 { getLogger().Trace(a...) }
func Tracef(format string, a ...any) { getLogger().Tracef(format, a...) }
func Debug(a ...any)                 { getLogger().Debug(a...) }
func Debugf(format string, a ...any) { getLogger().Debugf(format, a...) }
func Info(a ...any)                  { getLogger().Info(a...) }
func Infof(format string, a ...any)  { getLogger().Infof(format, a...) }
func Notice(a ...any)                { getLogger().Notice(a...) }
func Noticef(format string, a ...any) {
	getLogger().Noticef(format, a...)
}
func Warn(a ...any)                  { getLogger().Warn(a...) }
func Warnf(format string, a ...any)  { getLogger().Warnf(format, a...) }
func Error(a ...any)                 { getLogger().Error(a...) }
func Errorf(format string, a ...any) { getLogger().Errorf(format, a...) }
func Fatal(a ...any)                 { getLogger().Fatal(a...) }
func Fatalf(format string, a ...any) { getLogger().Fatalf(format, a...) }

// nopLogger 未设置logger时丢弃所有日志
type nopLogger struct{}

func (nopLogger) Trace(...any)           {}
func (nopLogger) Tracef(string, ...any)  {}
func (nopLogger) Debug(...any)           {}
func (nopLogger) Debugf(string, ...any)  {}
func (nopLogger) Info(...any)            {}
func (nopLogger) Infof(string, ...any)   {}
func (nopLogger) Notice(...any)          {}
func (nopLogger) Noticef(string, ...any) {}
func (nopLogger) Warn(...any)            {}
func (nopLogger) Warnf(string, ...any)   {}
func (nopLogger) Error(...any)           {}
func (nopLogger) Errorf(string, ...any)  {}
func (nopLogger) Fatal(...any)           {}
func (nopLogger) Fatalf(string, ...any)  {}
