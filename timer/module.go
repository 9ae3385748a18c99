package timer

import (
	"sync"

	"github.com/fixkme/polltimer/framework/app"
)

var _ app.Module = (*Module[any])(nil)

// Module 把Timer挂到app生命周期上: OnInit启动, Destroy关闭
type Module[P any] struct {
	*Timer[P]
	closeSig  chan struct{}
	closeOnce sync.Once
	onInit    func(t *Timer[P]) error
}

// NewModule onInit在Start之后调用, 可以在这里注册初始定时器
func NewModule[P any](t *Timer[P], onInit func(t *Timer[P]) error) *Module[P] {
	return &Module[P]{
		Timer:    t,
		closeSig: make(chan struct{}),
		onInit:   onInit,
	}
}

func (m *Module[P]) OnInit() error {
	if err := m.Timer.Start(); err != nil {
		return err
	}
	if m.onInit == nil {
		return nil
	}
	if err := m.onInit(m.Timer); err != nil {
		// app不会销毁初始化失败的模块, 这里自己回收轮询goroutine
		m.Destroy()
		return err
	}
	return nil
}

// Run 定时器自己有轮询goroutine, 这里只等待销毁
func (m *Module[P]) Run() {
	<-m.closeSig
}

func (m *Module[P]) Destroy() {
	m.closeOnce.Do(func() {
		m.Timer.Close()
		close(m.closeSig)
	})
}

func (m *Module[P]) Name() string {
	return "timer:" + m.Timer.Name()
}
