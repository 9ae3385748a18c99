package timer

import (
	"sync"
	"time"

	"github.com/fixkme/polltimer/errs"
	"go.uber.org/atomic"
)

// builtin 进程内默认定时器, payload为any
type builtin struct {
	timer atomic.Pointer[Timer[any]]
	once  sync.Once
	err   error // 第一次启动的结果
}

var std builtin

// Start 创建并启动默认定时器, quit关闭时停止. 只有第一次调用生效,
// 第一次失败时之后的调用都返回同一个错误.
func Start(quit <-chan struct{}, opt *Options) error {
	return std.start(quit, opt)
}

func (b *builtin) start(quit <-chan struct{}, opt *Options) error {
	started := false
	b.once.Do(func() {
		started = true
		b.err = b.init(quit, opt)
	})
	if started || b.err != nil {
		return b.err
	}
	return errs.AlreadyStarted.Print("builtin")
}

func (b *builtin) init(quit <-chan struct{}, opt *Options) error {
	t, err := New[any](opt)
	if err != nil {
		return err
	}
	if err = t.Start(); err != nil {
		return err
	}
	b.timer.Store(t)
	go func() {
		<-quit
		t.Close()
	}()
	return nil
}

// SetTimer 默认定时器未启动时返回InvalidID
func SetTimer(delay time.Duration, cb Callback[any], payload any) TimerID {
	t := std.timer.Load()
	if t == nil {
		return InvalidID
	}
	return t.SetTimer(delay, cb, payload)
}

func CancelTimer(id TimerID) bool {
	t := std.timer.Load()
	if t == nil {
		return false
	}
	return t.CancelTimer(id)
}

// Builtin 返回默认定时器, 未启动时为nil
func Builtin() *Timer[any] {
	return std.timer.Load()
}
