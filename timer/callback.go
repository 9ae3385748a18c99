package timer

// Callback 定时器到期回调.
// 同一个Timer的所有回调都在轮询goroutine上串行执行, 每个TimerID最多执行一次.
// 回调阻塞会推迟之后所有到期定时器的触发.
type Callback[P any] interface {
	OnTimeout(id TimerID, payload P)
}

// CallbackFunc 函数适配为Callback
type CallbackFunc[P any] func(id TimerID, payload P)

func (f CallbackFunc[P]) OnTimeout(id TimerID, payload P) {
	f(id, payload)
}
