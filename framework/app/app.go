package app

import (
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/fixkme/polltimer/errs"
	"github.com/fixkme/polltimer/mlog"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// 节点全局状态
const (
	AppStateNone = iota // 未开始或已停止
	AppStateInit        // 正在初始化中
	AppStateRun         // 正在运行中
	AppStateStop        // 正在停止中
)

// 单例
var defaultApp = New()

type Module interface {
	OnInit() error // 初始化
	Destroy()      // 销毁
	Run()          // 启动, Destroy之后必须返回
	Name() string  // 名字
}

// DefaultApp 默认单例
func DefaultApp() *App {
	return defaultApp
}

// App 中的 modules 在启动之后不能变更
type App struct {
	mods  []Module
	state atomic.Int32
	sig   chan os.Signal
	wg    sync.WaitGroup
}

func New() *App {
	return &App{sig: make(chan os.Signal, 1)}
}

// GetState 获取状态
func (app *App) GetState() int32 {
	return app.state.Load()
}

// Start 初始化并启动所有模块, 初始化失败时销毁已初始化的模块
func (app *App) Start(mods ...Module) error {
	// 单个app不能启动两次
	if !app.state.CompareAndSwap(AppStateNone, AppStateInit) {
		return errs.AlreadyStarted.Print("app")
	}
	mlog.Info("app starting up")
	for i, mi := range mods {
		if err := mi.OnInit(); err != nil {
			err = fmt.Errorf("module %v init: %w", reflect.TypeOf(mi), err)
			for j := i - 1; j >= 0; j-- {
				err = multierr.Append(err, destroy(mods[j]))
			}
			app.state.Store(AppStateNone)
			return err
		}
	}
	app.mods = mods
	for _, m := range app.mods {
		app.wg.Add(1)
		go run(m, &app.wg)
	}
	app.state.Store(AppStateRun)
	mlog.Info("app started")
	return nil
}

// Shutdown 先进后出销毁模块并等待所有Run返回
func (app *App) Shutdown() error {
	if !app.state.CompareAndSwap(AppStateRun, AppStateStop) {
		return nil
	}
	mlog.Info("app stop begin")
	var err error
	for i := len(app.mods) - 1; i >= 0; i-- {
		m := app.mods[i]
		mlog.Infof("app stop module %s", m.Name())
		err = multierr.Append(err, destroy(m))
	}
	app.wg.Wait()
	app.state.Store(AppStateNone)
	mlog.Info("app stopped")
	return err
}

func run(m Module, wg *sync.WaitGroup) {
	defer wg.Done()
	m.Run()
}

func destroy(m Module) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module destroy panic: %v\n%s", m.Name(), r, debug.Stack())
			if e, ok := r.(error); ok {
				err = errs.WrapError(e)
			} else {
				err = errs.Unknown.Printf("module %s destroy panic: %v", m.Name(), r)
			}
		}
	}()

	m.Destroy()
	return nil
}

// Run 启动模块后阻塞到收到退出信号, SIGHUP忽略
func (app *App) Run(mods ...Module) error {
	if err := app.Start(mods...); err != nil {
		return err
	}
	signal.Notify(app.sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(app.sig)
	for {
		sig := <-app.sig
		mlog.Infof("server closing down (signal: %v)", sig)
		if sig != syscall.SIGHUP {
			break
		}
	}
	return app.Shutdown()
}

// Stop 通知Run退出
func (app *App) Stop() {
	select {
	case app.sig <- syscall.SIGTERM:
	default:
	}
}
