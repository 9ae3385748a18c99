package timer

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fixkme/polltimer/errs"
	"github.com/fixkme/polltimer/mlog"
	"github.com/fixkme/polltimer/util"
	"go.uber.org/atomic"
)

// 生命周期状态
const (
	stateNone    = iota // 未启动
	stateRunning        // 轮询中
	stateClosed         // 已关闭
)

// Timer 独占一个goroutine的轮询定时器.
//
// 轮询goroutine每隔PollInterval取出所有到期的定时器并按到期顺序执行回调,
// 定时器在到期后的一个轮询间隔内触发. SetTimer和CancelTimer可以在任意goroutine
// (包括回调内部)调用, Start之前注册的定时器在Start后正常触发.
type Timer[P any] struct {
	name         string
	interval     time.Duration
	clock        clock.Clock
	epoch        time.Time
	panicHandler func(id TimerID, r any)
	store        *store[P]

	state    atomic.Int32
	stopping atomic.Bool
	stopCh   chan struct{}
	done     chan struct{}
	workerID atomic.Int64 // 轮询goroutine id, 用于识别回调内的Close

	stats counters

	onPolled func() // 每轮询一次后调用, 测试用
}

type counters struct {
	scheduled atomic.Uint64
	fired     atomic.Uint64
	canceled  atomic.Uint64
	dropped   atomic.Uint64
	discarded atomic.Uint64
	panics    atomic.Uint64
}

// Stats 计数快照
type Stats struct {
	Pending   int     // 当前待触发
	Next      TimerID // 最早到期的定时器, 没有时为InvalidID
	Scheduled uint64  // 注册成功
	Fired     uint64  // 回调已执行(包括panic的)
	Canceled  uint64  // 触发前被取消
	Dropped   uint64  // 已取出但因关闭未执行
	Discarded uint64  // 关闭时仍在等待而被丢弃
	Panics    uint64  // 回调panic次数
}

func New[P any](opt *Options) (*Timer[P], error) {
	o, err := opt.normalize()
	if err != nil {
		return nil, err
	}
	t := &Timer[P]{
		name:         o.Name,
		interval:     o.PollInterval,
		clock:        o.Clock,
		epoch:        o.Clock.Now(),
		panicHandler: o.PanicHandler,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	t.store = newStore[P](func() TimerID { return t.now(true) })
	return t, nil
}

func (t *Timer[P]) Name() string {
	return t.name
}

func (t *Timer[P]) PollInterval() time.Duration {
	return t.interval
}

// Start 启动轮询goroutine, 只能调用一次
func (t *Timer[P]) Start() error {
	if !t.state.CompareAndSwap(stateNone, stateRunning) {
		if t.state.Load() == stateClosed {
			return errs.Closed.Printf("timer %s", t.name)
		}
		return errs.AlreadyStarted.Printf("timer %s", t.name)
	}
	// 在调用方goroutine上创建, Start返回时第一次轮询的时刻已经确定
	tick := t.clock.Timer(t.interval)
	go t.run(tick)
	mlog.Infof("timer %s started, poll interval %v", t.name, t.interval)
	return nil
}

// SetTimer 注册delay之后触发的定时器, 返回唯一的TimerID, 触发过的ID不会再分配.
// 关闭后调用返回InvalidID. delay<=0时在下一次轮询触发.
func (t *Timer[P]) SetTimer(delay time.Duration, cb Callback[P], payload P) TimerID {
	id := InvalidID
	if t.state.Load() != stateClosed {
		id = t.store.insert(ceilMicros(delay), cb, payload)
	}
	if id == InvalidID {
		mlog.Warnf("timer %s closed, set timer ignored", t.name)
		return InvalidID
	}
	t.stats.scheduled.Inc()
	mlog.Tracef("timer %s set id:%d delay:%v", t.name, id, delay)
	return id
}

// CancelTimer 取消还未触发的定时器.
// 返回true表示定时器已被删除且回调永远不会执行;
// false表示id不存在, 已经触发, 或者已被轮询取出正在等待执行.
func (t *Timer[P]) CancelTimer(id TimerID) bool {
	if !t.store.remove(id) {
		return false
	}
	t.stats.canceled.Inc()
	return true
}

// Len 待触发的定时器数量
func (t *Timer[P]) Len() int {
	return t.store.len()
}

func (t *Timer[P]) Stats() Stats {
	return Stats{
		Pending:   t.store.len(),
		Next:      t.store.front(),
		Scheduled: t.stats.scheduled.Load(),
		Fired:     t.stats.fired.Load(),
		Canceled:  t.stats.canceled.Load(),
		Dropped:   t.stats.dropped.Load(),
		Discarded: t.stats.discarded.Load(),
		Panics:    t.stats.panics.Load(),
	}
}

// Close 停止轮询并等待轮询goroutine退出, 丢弃所有未触发的定时器.
// Close返回后不会再有回调执行. 可重复调用; 在回调内调用时不等待自身,
// 当前回调返回后轮询goroutine退出.
func (t *Timer[P]) Close() error {
	prev := t.state.Swap(stateClosed)
	if prev == stateClosed {
		return nil
	}
	t.stopping.Store(true)
	if prev == stateRunning {
		close(t.stopCh)
		if int64(util.GoroutineID()) != t.workerID.Load() {
			<-t.done
		}
	}
	n := t.store.close()
	t.stats.discarded.Add(uint64(n))
	mlog.Infof("timer %s closed, %d pending discarded", t.name, n)
	return nil
}

// now 当前时刻距epoch的微秒数, 注册时向上取整, 轮询时向下取整
func (t *Timer[P]) now(ceil bool) TimerID {
	elapsed := t.clock.Since(t.epoch)
	if ceil {
		return ceilMicros(elapsed)
	}
	if elapsed <= 0 {
		return 0
	}
	return TimerID(elapsed / time.Microsecond)
}
