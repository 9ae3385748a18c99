package main

import (
	"context"
	"flag"
	"log"
	"sync"
	"time"

	"github.com/fixkme/polltimer/framework/app"
	"github.com/fixkme/polltimer/framework/config"
	"github.com/fixkme/polltimer/mlog"
	"github.com/fixkme/polltimer/timer"
)

// demoPayload 演示用的超时数据
type demoPayload struct {
	seq      int
	delay    time.Duration
	setAt    time.Time
	canceled bool
}

type logCallback struct{}

func (logCallback) OnTimeout(id timer.TimerID, p *demoPayload) {
	mlog.Infof("timer fired id:%d seq:%d delay:%v late:%v", id, p.seq, p.delay, time.Since(p.setAt)-p.delay)
}

func main() {
	confFile := flag.String("config", "", "json config file")
	flag.Parse()

	if err := config.LoadConfig(*confFile, config.LoadFromEnv); err != nil {
		log.Fatalf("load config: %v", err)
	}
	conf := config.Config

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	if err := mlog.UseDefaultLogger(ctx, wg, conf.LogPath, conf.LogName, conf.Level(), conf.LogStdOut); err != nil {
		log.Fatalf("init log: %v", err)
	}
	defer func() {
		cancel()
		wg.Wait()
	}()
	mlog.Infof("config:\n%s", conf.JsonFormat())

	tm, err := timer.New[*demoPayload](conf.Options())
	if err != nil {
		mlog.Errorf("new timer: %v", err)
		return
	}
	mod := timer.NewModule(tm, func(t *timer.Timer[*demoPayload]) error {
		base := time.Duration(conf.DemoDelayMs) * time.Millisecond
		for i := 0; i < conf.DemoTimers; i++ {
			p := &demoPayload{seq: i, delay: base * time.Duration(i+1), setAt: time.Now()}
			id := t.SetTimer(p.delay, logCallback{}, p)
			// 每隔一个取消一次, 演示取消
			if i%2 == 1 {
				p.canceled = t.CancelTimer(id)
				mlog.Infof("timer canceled id:%d seq:%d ok:%v", id, i, p.canceled)
			}
		}
		return nil
	})

	if err := app.DefaultApp().Run(mod); err != nil {
		mlog.Errorf("app exit: %v", err)
	}
	st := tm.Stats()
	mlog.Infof("timer stats: scheduled:%d fired:%d canceled:%d discarded:%d panics:%d",
		st.Scheduled, st.Fired, st.Canceled, st.Discarded, st.Panics)
}
