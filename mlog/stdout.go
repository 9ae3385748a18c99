package mlog

import (
	"fmt"
	"log"
	"os"
)

// stdoutLogger 同步输出到标准输出, 不修改标准库log的全局设置
type stdoutLogger struct {
	level Level
	out   *log.Logger
}

func newStdoutLogger(level Level) *stdoutLogger {
	return &stdoutLogger{
		level: level,
		out:   log.New(os.Stdout, "", log.Ldate|log.Lmicroseconds),
	}
}

func (l *stdoutLogger) IsLevelEnabled(level Level) bool {
	return l.level >= level
}

func (l *stdoutLogger) Logf(level Level, format string, args ...any) {
	if !l.IsLevelEnabled(level) {
		return
	}
	var msg string
	if len(format) == 0 {
		msg = fmt.Sprint(args...)
	} else {
		msg = fmt.Sprintf(format, args...)
	}
	l.out.Println(getLevelTag(level) + msg)
}

func (l *stdoutLogger) Trace(v ...any)                 { l.Logf(TraceLevel, "", v...) }
func (l *stdoutLogger) Tracef(format string, v ...any) { l.Logf(TraceLevel, format, v...) }
func (l *stdoutLogger) Debug(v ...any)                 { l.Logf(DebugLevel, "", v...) }
func (l *stdoutLogger) Debugf(format string, v ...any) { l.Logf(DebugLevel, format, v...) }
func (l *stdoutLogger) Info(v ...any)                  { l.Logf(InfoLevel, "", v...) }
func (l *stdoutLogger) Infof(format string, v ...any)  { l.Logf(InfoLevel, format, v...) }
func (l *stdoutLogger) Notice(v ...any)                { l.Logf(NoticeLevel, "", v...) }
func (l *stdoutLogger) Noticef(format string, v ...any) {
	l.Logf(NoticeLevel, format, v...)
}
func (l *stdoutLogger) Warn(v ...any)                  { l.Logf(WarnLevel, "", v...) }
func (l *stdoutLogger) Warnf(format string, v ...any)  { l.Logf(WarnLevel, format, v...) }
func (l *stdoutLogger) Error(v ...any)                 { l.Logf(ErrorLevel, "", v...) }
func (l *stdoutLogger) Errorf(format string, v ...any) { l.Logf(ErrorLevel, format, v...) }

func (l *stdoutLogger) Fatal(v ...any) {
	l.Logf(FatalLevel, "", v...)
	os.Exit(1)
}

func (l *stdoutLogger) Fatalf(format string, v ...any) {
	l.Logf(FatalLevel, format, v...)
	os.Exit(1)
}
