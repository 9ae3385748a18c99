package skiplist

import (
	"math/rand"
	"time"
)

const (
	maxLevel  = 32   // 跳跃表最大层数
	skipListP = 0.25 // 随机概率
)

// ElemType 参与排序的数据, Compare返回负数表示排在o前面, 0表示同一个元素
type ElemType[T any] interface {
	Compare(o T) int
}

func randomLevel(r *rand.Rand) int {
	level := 1
	for r.Float32() < skipListP && level < maxLevel {
		level++
	}
	return level
}

type Node[T ElemType[T]] struct {
	Data  T
	level []*Node[T]
}

// SkipList 有序表, 非并发安全, 由上层加锁
type SkipList[T ElemType[T]] struct {
	header *Node[T]
	level  int
	length int
	rand   *rand.Rand
}

func NewSkipList[T ElemType[T]]() *SkipList[T] {
	header := &Node[T]{}
	header.level = make([]*Node[T], maxLevel)
	return &SkipList[T]{
		header: header,
		level:  1,
		length: 0,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// 查找每一层中最后一个小于data的节点
func (sl *SkipList[T]) findPrev(data T, update *[maxLevel]*Node[T]) *Node[T] {
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i] != nil && x.level[i].Data.Compare(data) < 0 {
			x = x.level[i]
		}
		update[i] = x
	}
	return x
}

// Insert 插入新的元素, 已存在时返回false
func (sl *SkipList[T]) Insert(data T) bool {
	var update [maxLevel]*Node[T]
	x := sl.findPrev(data, &update)
	if next := x.level[0]; next != nil && next.Data.Compare(data) == 0 {
		return false
	}

	level := randomLevel(sl.rand)
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			update[i] = sl.header
		}
		sl.level = level
	}
	x = &Node[T]{Data: data, level: make([]*Node[T], level)}
	for i := 0; i < level; i++ {
		x.level[i] = update[i].level[i]
		update[i].level[i] = x
	}
	sl.length++
	return true
}

// Remove 删除与data相等的元素, 返回表中被删除的数据
func (sl *SkipList[T]) Remove(data T) (removed T, ok bool) {
	var update [maxLevel]*Node[T]
	x := sl.findPrev(data, &update)
	x = x.level[0]
	if x == nil || x.Data.Compare(data) != 0 {
		return removed, false
	}
	for i := 0; i < sl.level; i++ {
		if update[i].level[i] != x {
			break
		}
		update[i].level[i] = x.level[i]
	}
	sl.shrink()
	sl.length--
	return x.Data, true
}

func (sl *SkipList[T]) shrink() {
	for sl.level > 1 && sl.header.level[sl.level-1] == nil {
		sl.level--
	}
}

// Front 返回最小的元素
func (sl *SkipList[T]) Front() (T, bool) {
	if x := sl.header.level[0]; x != nil {
		return x.Data, true
	}
	return *new(T), false
}

// PopWhile 从表头开始删除满足pred的元素, 遇到第一个不满足的停止, 按升序返回被删除的数据
func (sl *SkipList[T]) PopWhile(pred func(T) bool) []T {
	var res []T
	x := sl.header.level[0]
	for x != nil && pred(x.Data) {
		res = append(res, x.Data)
		x = x.level[0]
	}
	if len(res) == 0 {
		return nil
	}
	// x是第一个保留的节点, 表头每一层直接跳过被删除的前缀
	for i := 0; i < sl.level; i++ {
		n := sl.header.level[i]
		for n != nil && (x == nil || n.Data.Compare(x.Data) < 0) {
			n = n.level[i]
		}
		sl.header.level[i] = n
	}
	sl.shrink()
	sl.length -= len(res)
	return res
}

// Clear 快速清空，让gc回收节点
func (sl *SkipList[T]) Clear() {
	for i := 0; i < maxLevel; i++ {
		sl.header.level[i] = nil
	}
	sl.level = 1
	sl.length = 0
}

func (sl *SkipList[T]) Len() int {
	return sl.length
}
