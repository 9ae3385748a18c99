package timer

import (
	"runtime/debug"

	"github.com/benbjohnson/clock"
	"github.com/fixkme/polltimer/mlog"
	"github.com/fixkme/polltimer/util"
)

func (t *Timer[P]) run(tick *clock.Timer) {
	t.workerID.Store(int64(util.GoroutineID()))
	defer close(t.done)
	defer tick.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-tick.C:
		}
		due := t.store.extractDue(t.now(false))
		t.dispatch(due)
		if t.stopping.Load() {
			return
		}
		tick.Reset(t.interval)
		if t.onPolled != nil {
			t.onPolled()
		}
	}
}

// dispatch 按到期顺序执行回调, 关闭后剩余的直接丢弃
func (t *Timer[P]) dispatch(due []*entry[P]) {
	for i, e := range due {
		if t.stopping.Load() {
			left := len(due) - i
			t.stats.dropped.Add(uint64(left))
			mlog.Debugf("timer %s stopping, %d due dropped", t.name, left)
			return
		}
		t.exec(e)
	}
}

func (t *Timer[P]) exec(e *entry[P]) {
	defer func() {
		if r := recover(); r != nil {
			t.stats.panics.Inc()
			mlog.Errorf("timer %s callback panic, id:%d, err:%v\n%s", t.name, e.id, r, debug.Stack())
			if t.panicHandler != nil {
				t.callPanicHandler(e.id, r)
			}
		}
	}()

	t.stats.fired.Inc()
	if e.cb == nil {
		return
	}
	e.cb.OnTimeout(e.id, e.payload)
}

// panicHandler自身panic也不能让轮询goroutine退出, 否则Close会一直等待
func (t *Timer[P]) callPanicHandler(id TimerID, r any) {
	defer func() {
		if r2 := recover(); r2 != nil {
			mlog.Errorf("timer %s panic handler panic, id:%d, err:%v", t.name, id, r2)
		}
	}()
	t.panicHandler(id, r)
}
