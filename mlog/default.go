package mlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100 // 单个日志文件上限 MB
	defaultMaxBackups = 10
)

// loggerImp 文件日志, zap负责编码, lumberjack负责按大小切割
type loggerImp struct {
	path     string
	file     *lumberjack.Logger
	fileCore zapcore.Core
	outCore  zapcore.Core // 为nil时不输出到stdout
	zl       *zap.SugaredLogger
	level    Level
}

func newDefaultLogger(logpath, logName string, level Level, stdOut bool) (*loggerImp, error) {
	// 默认使用当前路径
	if len(logpath) == 0 {
		logpath = "."
	}
	if err := os.MkdirAll(logpath, 0755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logpath, genLogName(logName)),
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		LocalTime:  true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	enabler := zap.LevelEnablerFunc(func(zapcore.Level) bool { return true })

	l := &loggerImp{
		path:     logpath,
		file:     rotator,
		fileCore: zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(rotator), enabler),
		level:    level,
	}
	cores := []zapcore.Core{l.fileCore}
	if stdOut {
		l.outCore = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), enabler)
		cores = append(cores, l.outCore)
	}
	l.zl = zap.New(zapcore.NewTee(cores...)).Sugar()
	return l, nil
}

// Start ctx结束后落盘并关闭日志文件
func (me *loggerImp) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := me.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "mlog close error %v\n", err)
		}
	}()
}

func (me *loggerImp) Close() error {
	err := me.fileCore.Sync()
	if me.outCore != nil {
		err = multierr.Append(err, ignoreStdoutSync(me.outCore.Sync()))
	}
	return multierr.Append(err, me.file.Close())
}

// stdout是终端或管道时Sync返回EINVAL或ENOTTY, 不算错误
func ignoreStdoutSync(err error) error {
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

func (me *loggerImp) IsLevelEnabled(level Level) bool {
	return me.level >= level
}

func (me *loggerImp) log(level Level, msg string) {
	switch level {
	case FatalLevel:
		me.zl.Error(getLevelTag(level) + msg)
	case ErrorLevel:
		me.zl.Error(msg)
	case WarnLevel:
		me.zl.Warn(msg)
	case DebugLevel:
		me.zl.Debug(msg)
	case TraceLevel:
		me.zl.Debug(getLevelTag(level) + msg)
	case NoticeLevel:
		me.zl.Info(getLevelTag(level) + msg)
	default:
		me.zl.Info(msg)
	}
}

func (me *loggerImp) Logf(level Level, format string, args ...interface{}) {
	if !me.IsLevelEnabled(level) {
		return
	}
	if len(format) == 0 {
		me.log(level, fmt.Sprint(args...))
	} else {
		me.log(level, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Trace(args ...interface{}) { me.Logf(TraceLevel, "", args...) }
func (me *loggerImp) Tracef(format string, args ...interface{}) {
	me.Logf(TraceLevel, format, args...)
}
func (me *loggerImp) Debug(args ...interface{}) { me.Logf(DebugLevel, "", args...) }
func (me *loggerImp) Debugf(format string, args ...interface{}) {
	me.Logf(DebugLevel, format, args...)
}
func (me *loggerImp) Info(args ...interface{}) { me.Logf(InfoLevel, "", args...) }
func (me *loggerImp) Infof(format string, args ...interface{}) {
	me.Logf(InfoLevel, format, args...)
}
func (me *loggerImp) Notice(args ...interface{}) { me.Logf(NoticeLevel, "", args...) }
func (me *loggerImp) Noticef(format string, args ...interface{}) {
	me.Logf(NoticeLevel, format, args...)
}
func (me *loggerImp) Warn(args ...interface{}) { me.Logf(WarnLevel, "", args...) }
func (me *loggerImp) Warnf(format string, args ...interface{}) {
	me.Logf(WarnLevel, format, args...)
}
func (me *loggerImp) Error(args ...interface{}) { me.Logf(ErrorLevel, "", args...) }
func (me *loggerImp) Errorf(format string, args ...interface{}) {
	me.Logf(ErrorLevel, format, args...)
}

func (me *loggerImp) Fatal(args ...interface{}) {
	me.Logf(FatalLevel, "", args...)
	_ = me.Close()
	os.Exit(1)
}

func (me *loggerImp) Fatalf(format string, args ...interface{}) {
	me.Logf(FatalLevel, format, args...)
	_ = me.Close()
	os.Exit(1)
}

func getLevelTag(level Level) string {
	switch level {
	case FatalLevel:
		return "[fatal] "
	case ErrorLevel:
		return "[error] "
	case WarnLevel:
		return "[warn] "
	case NoticeLevel:
		return "[notice] "
	case InfoLevel:
		return "[info] "
	case DebugLevel:
		return "[debug] "
	case TraceLevel:
		return "[trace] "
	}
	return ""
}

func genLogName(logName string) string {
	if logName == "" {
		logName = "mlog"
	}
	return logName + ".log"
}
