package timer

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fixkme/polltimer/errs"
	"github.com/rs/xid"
)

// DefaultPollInterval 默认轮询间隔, 也是定时精度的下限
const DefaultPollInterval = 50 * time.Millisecond

type Options struct {
	Name         string        `json:"name" mapstructure:"name"`                   //名字, 用于日志, 默认随机生成
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"` //轮询间隔, 0使用默认值

	// 测试时可替换为clock.NewMock()
	Clock clock.Clock `json:"-" mapstructure:"-"`
	// 回调panic后调用, 在轮询goroutine上执行
	PanicHandler func(id TimerID, r any) `json:"-" mapstructure:"-"`
}

func (o *Options) normalize() (Options, error) {
	var opt Options
	if o != nil {
		opt = *o
	}
	if opt.PollInterval < 0 {
		return opt, errs.InvalidOption.Printf("poll interval %v", opt.PollInterval)
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = DefaultPollInterval
	}
	if opt.Name == "" {
		opt.Name = xid.New().String()
	}
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	return opt, nil
}
