package timer

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fixkme/polltimer/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 50 * time.Millisecond

type fired struct {
	id      TimerID
	payload string
	at      time.Time
}

type recorder struct {
	clk clock.Clock
	mu  sync.Mutex
	got []fired
}

func (r *recorder) OnTimeout(id TimerID, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, fired{id: id, payload: payload, at: r.clk.Now()})
}

func (r *recorder) fired() []fired {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fired(nil), r.got...)
}

func newMockTimer(t *testing.T, opt *Options) (*Timer[string], *clock.Mock, <-chan struct{}) {
	t.Helper()
	mock := clock.NewMock()
	if opt == nil {
		opt = &Options{}
	}
	opt.Clock = mock
	if opt.PollInterval == 0 {
		opt.PollInterval = testInterval
	}
	tm, err := New[string](opt)
	require.NoError(t, err)
	polled := make(chan struct{}, 64)
	tm.onPolled = func() { polled <- struct{}{} }
	t.Cleanup(func() { tm.Close() })
	return tm, mock, polled
}

// advance 推进一个轮询间隔并等待这一轮轮询结束
func advance(t *testing.T, mock *clock.Mock, polled <-chan struct{}) {
	t.Helper()
	mock.Add(testInterval)
	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("poll cycle did not complete")
	}
}

func waitClosed[P any](t *testing.T, tm *Timer[P]) {
	t.Helper()
	select {
	case <-tm.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit")
	}
}

func TestFireWithinOnePollInterval(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	start := mock.Now()
	id := tm.SetTimer(120*time.Millisecond, rec, "a")
	assert.NotEqual(t, InvalidID, id)

	advance(t, mock, polled) // 50ms
	advance(t, mock, polled) // 100ms
	assert.Empty(t, rec.fired())

	advance(t, mock, polled) // 150ms
	got := rec.fired()
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].id)
	assert.Equal(t, "a", got[0].payload)
	elapsed := got[0].at.Sub(start)
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 120*time.Millisecond+testInterval)

	advance(t, mock, polled)
	assert.Len(t, rec.fired(), 1, "fired more than once")
	assert.Equal(t, 0, tm.Len())
}

func TestCancelBeforeFirstPoll(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	id := tm.SetTimer(10*time.Millisecond, rec, "b")
	assert.True(t, tm.CancelTimer(id))
	assert.False(t, tm.CancelTimer(id))
	assert.False(t, tm.CancelTimer(id+12345))

	advance(t, mock, polled)
	advance(t, mock, polled)
	assert.Empty(t, rec.fired())
	assert.Equal(t, uint64(1), tm.Stats().Canceled)
}

func TestCancelAfterFireReturnsFalse(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	id := tm.SetTimer(time.Millisecond, rec, "c")
	advance(t, mock, polled)
	require.Len(t, rec.fired(), 1)
	assert.False(t, tm.CancelTimer(id))
}

func TestCollidingDeadlines(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	// mock时钟不走, 两次注册的到期时刻相同
	first := tm.SetTimer(30*time.Millisecond, rec, "first")
	second := tm.SetTimer(30*time.Millisecond, rec, "second")
	require.NotEqual(t, first, second)
	assert.Equal(t, first+1, second)

	advance(t, mock, polled)
	got := rec.fired()
	require.Len(t, got, 2)
	assert.Equal(t, []TimerID{first, second}, []TimerID{got[0].id, got[1].id})
	assert.Equal(t, "first", got[0].payload)
	assert.Equal(t, "second", got[1].payload)
}

func TestFiredIDNeverReissued(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	first := tm.SetTimer(testInterval, rec, "first")
	advance(t, mock, polled)
	require.Len(t, rec.fired(), 1)
	require.Equal(t, first, rec.fired()[0].id)

	// 时钟停在上一次轮询的时刻, 期望ID与刚触发的ID相同
	second := tm.SetTimer(0, rec, "second")
	assert.NotEqual(t, first, second)
	assert.Greater(t, second, first)
	assert.Equal(t, second, tm.Stats().Next)

	// 用已触发的旧ID取消不会影响新的定时器
	assert.False(t, tm.CancelTimer(first))
	advance(t, mock, polled)
	got := rec.fired()
	require.Len(t, got, 2)
	assert.Equal(t, second, got[1].id)
	assert.Equal(t, "second", got[1].payload)
	assert.Equal(t, InvalidID, tm.Stats().Next)
}

func TestDeadlineOrderWithinCycle(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	tm.SetTimer(40*time.Millisecond, rec, "40")
	tm.SetTimer(10*time.Millisecond, rec, "10")
	tm.SetTimer(0, rec, "0")
	tm.SetTimer(-time.Second, rec, "neg")
	tm.SetTimer(25*time.Millisecond, rec, "25")

	advance(t, mock, polled)
	var order []string
	for _, f := range rec.fired() {
		order = append(order, f.payload)
	}
	assert.Equal(t, []string{"0", "neg", "10", "25", "40"}, order)
}

func TestRegisterBeforeStart(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}

	tm.SetTimer(10*time.Millisecond, rec, "early")
	mock.Add(time.Second) // 未启动, 不会触发
	assert.Empty(t, rec.fired())
	assert.Equal(t, 1, tm.Len())

	require.NoError(t, tm.Start())
	advance(t, mock, polled)
	got := rec.fired()
	require.Len(t, got, 1)
	assert.Equal(t, "early", got[0].payload)
}

func TestCloseDiscardsPending(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	tm.SetTimer(10*time.Second, rec, "pending")
	advance(t, mock, polled)

	done := make(chan error, 1)
	go func() { done <- tm.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("close deadlocked")
	}

	mock.Add(time.Minute)
	assert.Empty(t, rec.fired())
	st := tm.Stats()
	assert.Equal(t, uint64(1), st.Discarded)
	assert.Equal(t, 0, st.Pending)

	assert.NoError(t, tm.Close())
	assert.Equal(t, InvalidID, tm.SetTimer(time.Millisecond, rec, "late"))
	assert.True(t, errors.Is(tm.Start(), errs.Closed))
}

func TestCloseBeforeStart(t *testing.T) {
	tm, mock, _ := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	tm.SetTimer(time.Millisecond, rec, "x")
	require.NoError(t, tm.Close())
	assert.Equal(t, 0, tm.Len())
	assert.True(t, errors.Is(tm.Start(), errs.Closed))
}

func TestStartTwice(t *testing.T) {
	tm, _, _ := newMockTimer(t, nil)
	require.NoError(t, tm.Start())
	err := tm.Start()
	assert.True(t, errors.Is(err, errs.AlreadyStarted))
}

func TestCallbackPanicIsContained(t *testing.T) {
	var (
		mu       sync.Mutex
		panicked []TimerID
	)
	tm, mock, polled := newMockTimer(t, &Options{
		PanicHandler: func(id TimerID, r any) {
			mu.Lock()
			defer mu.Unlock()
			panicked = append(panicked, id)
			assert.Equal(t, "boom", r)
		},
	})
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	bad := tm.SetTimer(time.Millisecond, CallbackFunc[string](func(TimerID, string) {
		panic("boom")
	}), "")
	tm.SetTimer(2*time.Millisecond, rec, "after")

	advance(t, mock, polled)
	require.Len(t, rec.fired(), 1)
	mu.Lock()
	assert.Equal(t, []TimerID{bad}, panicked)
	mu.Unlock()

	// 轮询goroutine仍然存活
	tm.SetTimer(time.Millisecond, rec, "next")
	advance(t, mock, polled)
	assert.Len(t, rec.fired(), 2)

	st := tm.Stats()
	assert.Equal(t, uint64(1), st.Panics)
	assert.Equal(t, uint64(3), st.Fired)
}

func TestPanicHandlerPanicIsContained(t *testing.T) {
	tm, mock, polled := newMockTimer(t, &Options{
		PanicHandler: func(TimerID, any) { panic("again") },
	})
	require.NoError(t, tm.Start())
	tm.SetTimer(time.Millisecond, CallbackFunc[string](func(TimerID, string) { panic("boom") }), "")
	advance(t, mock, polled)
	advance(t, mock, polled)
	assert.Equal(t, uint64(1), tm.Stats().Panics)
}

func TestNilCallbackIsNoop(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	require.NoError(t, tm.Start())
	tm.SetTimer(time.Millisecond, nil, "")
	advance(t, mock, polled)
	st := tm.Stats()
	assert.Equal(t, uint64(1), st.Fired)
	assert.Equal(t, uint64(0), st.Panics)
}

func TestReentrantSetAndCancel(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	victim := tm.SetTimer(80*time.Millisecond, rec, "victim")
	var canceled bool
	tm.SetTimer(10*time.Millisecond, CallbackFunc[string](func(TimerID, string) {
		canceled = tm.CancelTimer(victim)
		tm.SetTimer(time.Millisecond, rec, "child")
	}), "parent")

	advance(t, mock, polled) // parent
	assert.True(t, canceled)
	assert.Empty(t, rec.fired())

	advance(t, mock, polled) // child
	got := rec.fired()
	require.Len(t, got, 1)
	assert.Equal(t, "child", got[0].payload)

	advance(t, mock, polled)
	assert.Len(t, rec.fired(), 1)
}

func TestCloseFromCallback(t *testing.T) {
	tm, mock, polled := newMockTimer(t, nil)
	rec := &recorder{clk: mock}
	require.NoError(t, tm.Start())

	closed := make(chan error, 1)
	tm.SetTimer(time.Millisecond, CallbackFunc[string](func(TimerID, string) {
		closed <- tm.Close()
	}), "closer")
	tm.SetTimer(2*time.Millisecond, rec, "dropped")
	tm.SetTimer(time.Hour, rec, "discarded")

	mock.Add(testInterval)
	waitClosed(t, tm)
	require.NoError(t, <-closed)

	assert.Empty(t, rec.fired())
	assert.Empty(t, polled)
	st := tm.Stats()
	assert.Equal(t, uint64(1), st.Fired)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, uint64(1), st.Discarded)
}

func TestOptions(t *testing.T) {
	_, err := New[int](&Options{PollInterval: -time.Millisecond})
	assert.True(t, errors.Is(err, errs.InvalidOption))

	tm, err := New[int](nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, tm.PollInterval())
	assert.NotEmpty(t, tm.Name())

	tm, err = New[int](&Options{Name: "conn-timeouts", PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "conn-timeouts", tm.Name())
	assert.Equal(t, 5*time.Millisecond, tm.PollInterval())
}

func TestLivenessRealClock(t *testing.T) {
	const interval = 10 * time.Millisecond
	const slop = 150 * time.Millisecond // 调度抖动
	tm, err := New[time.Duration](&Options{PollInterval: interval})
	require.NoError(t, err)
	defer tm.Close()
	require.NoError(t, tm.Start())

	type reg struct {
		delay         time.Duration
		before, after time.Time
	}
	var (
		mu    sync.Mutex
		regs  = make(map[TimerID]reg)
		fires = make(map[TimerID]time.Time)
		all   sync.WaitGroup
	)
	cb := CallbackFunc[time.Duration](func(id TimerID, _ time.Duration) {
		now := time.Now()
		mu.Lock()
		fires[id] = now
		mu.Unlock()
		all.Done()
	})

	delays := []time.Duration{0, 5 * time.Millisecond, 20 * time.Millisecond, 45 * time.Millisecond, 120 * time.Millisecond}
	all.Add(len(delays))
	for _, d := range delays {
		mu.Lock()
		before := time.Now()
		id := tm.SetTimer(d, cb, d)
		regs[id] = reg{delay: d, before: before, after: time.Now()}
		mu.Unlock()
	}
	waitOrFail(t, &all, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	for id, r := range regs {
		at, ok := fires[id]
		require.True(t, ok)
		assert.GreaterOrEqual(t, at.Sub(r.before), r.delay, "timer %d fired early", id)
		assert.LessOrEqual(t, at.Sub(r.after), r.delay+interval+slop, "timer %d fired late", id)
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for callbacks")
	}
}

func TestConcurrentSetCancelRealClock(t *testing.T) {
	tm, err := New[int](&Options{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	defer tm.Close()
	require.NoError(t, tm.Start())

	var (
		mu        sync.Mutex
		fireCount = make(map[TimerID]int)
		canceled  = make(map[TimerID]bool)
		issued    = make(map[TimerID]int)
		wg        sync.WaitGroup
	)
	cb := CallbackFunc[int](func(id TimerID, _ int) {
		mu.Lock()
		defer mu.Unlock()
		fireCount[id]++
	})

	const workers, each = 8, 100
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < each; i++ {
				id := tm.SetTimer(time.Duration(r.Intn(30))*time.Millisecond, cb, i)
				mu.Lock()
				issued[id]++
				mu.Unlock()
				if r.Intn(2) == 0 && tm.CancelTimer(id) {
					mu.Lock()
					canceled[id] = true
					mu.Unlock()
				}
			}
		}(int64(w))
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		st := tm.Stats()
		return st.Fired+st.Canceled == workers*each
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, issued, workers*each, "timer id issued twice")
	assert.Len(t, fireCount, workers*each-len(canceled))
	for id, n := range fireCount {
		assert.Equal(t, 1, n, "timer %d fired %d times", id, n)
		assert.False(t, canceled[id], "canceled timer %d fired", id)
	}
}

func TestSetTimerRacingClose(t *testing.T) {
	tm, err := New[int](&Options{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, tm.Start())

	var (
		wg      sync.WaitGroup
		started = make(chan struct{})
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-started
			for i := 0; i < 500; i++ {
				tm.SetTimer(time.Hour, nil, i)
			}
		}()
	}
	close(started)
	time.Sleep(time.Millisecond)
	require.NoError(t, tm.Close())
	wg.Wait()

	// Close返回后注册的全部被拒绝, 之前注册的全部被丢弃
	st := tm.Stats()
	assert.Equal(t, 0, tm.Len())
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, st.Scheduled, st.Discarded)
}

func TestShutdownQuiescenceRealClock(t *testing.T) {
	const interval = 5 * time.Millisecond
	tm, err := New[int](&Options{PollInterval: interval})
	require.NoError(t, err)
	require.NoError(t, tm.Start())

	var count int64
	var mu sync.Mutex
	cb := CallbackFunc[int](func(TimerID, int) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	for i := 0; i < 200; i++ {
		tm.SetTimer(time.Duration(i%40)*time.Millisecond, cb, i)
	}
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tm.Close())

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(10 * interval)
	mu.Lock()
	assert.Equal(t, after, count)
	mu.Unlock()

	st := tm.Stats()
	assert.Equal(t, uint64(200), st.Fired+st.Dropped+st.Discarded)
	assert.Equal(t, 0, st.Pending)
}
