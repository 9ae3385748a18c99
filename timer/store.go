package timer

import (
	"sync"
	"time"

	"github.com/fixkme/polltimer/ds/skiplist"
)

// TimerID 到期时刻距Timer创建时的微秒数, 升序即到期顺序
type TimerID uint64

// InvalidID 不会分配给任何定时器
const InvalidID TimerID = 0

// 向上取整到微秒, 保证定时器不会早于请求的时长触发
func ceilMicros(d time.Duration) TimerID {
	if d <= 0 {
		return 0
	}
	return TimerID((d + time.Microsecond - 1) / time.Microsecond)
}

type entry[P any] struct {
	id      TimerID
	cb      Callback[P]
	payload P
}

func (e *entry[P]) Compare(o *entry[P]) int {
	if e.id < o.id {
		return -1
	} else if e.id > o.id {
		return 1
	}
	return 0
}

// store 按到期时刻排序的待触发定时器, 锁只在操作跳表期间持有
type store[P any] struct {
	mu     sync.Mutex
	sl     *skiplist.SkipList[*entry[P]]
	now    func() TimerID // 注册时刻, 必须在锁内读取
	fence  TimerID        // 已经取出过的最大时刻, 新ID总是大于它
	closed bool
}

func newStore[P any](now func() TimerID) *store[P] {
	return &store[P]{sl: skiplist.NewSkipList[*entry[P]](), now: now}
}

// insert 以now+delay为期望ID插入, 冲突时递增直到找到空闲ID.
// ID不会小于等于fence, 已经触发过的ID不会再分配. 关闭后返回InvalidID.
func (s *store[P]) insert(delay TimerID, cb Callback[P], payload P) TimerID {
	e := &entry[P]{cb: cb, payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return InvalidID
	}
	e.id = s.now() + delay
	if e.id <= s.fence {
		e.id = s.fence + 1
	}
	for !s.sl.Insert(e) {
		e.id++
	}
	return e.id
}

func (s *store[P]) remove(id TimerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sl.Remove(&entry[P]{id: id})
	return ok
}

// extractDue 取出并删除所有 id <= now 的定时器, 按升序返回
func (s *store[P]) extractDue(now TimerID) []*entry[P] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now > s.fence {
		s.fence = now
	}
	return s.sl.PopWhile(func(e *entry[P]) bool {
		return e.id <= now
	})
}

func (s *store[P]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sl.Len()
}

// front 最早到期的定时器ID, 没有时返回InvalidID
func (s *store[P]) front() TimerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sl.Front(); ok {
		return e.id
	}
	return InvalidID
}

// close 丢弃所有待触发的定时器并拒绝之后的插入, 返回丢弃的数量
func (s *store[P]) close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	n := s.sl.Len()
	s.sl.Clear()
	return n
}
