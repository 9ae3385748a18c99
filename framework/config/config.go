package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fixkme/polltimer/mlog"
	"github.com/fixkme/polltimer/timer"
)

var Config *AppConfig

type AppConfig struct {
	LogConfig   `json:",inline" mapstructure:",inline"`
	TimerConfig `json:",inline" mapstructure:",inline"`
	DemoTimers  int `json:"demo_timers" mapstructure:"demo_timers"`     //启动时注册的演示定时器数量
	DemoDelayMs int `json:"demo_delay_ms" mapstructure:"demo_delay_ms"` //演示定时器的基础延时 毫秒
}

type LogConfig struct {
	LogPath   string `json:"log_path" mapstructure:"log_path"`
	LogName   string `json:"log_name" mapstructure:"log_name"`
	LogLevel  int    `json:"log_level" mapstructure:"log_level"`
	LogStdOut bool   `json:"log_std_out" mapstructure:"log_std_out"`
}

type TimerConfig struct {
	TimerName      string `json:"timer_name" mapstructure:"timer_name"`
	PollIntervalMs int    `json:"poll_interval_ms" mapstructure:"poll_interval_ms"` //轮询间隔 毫秒, 0使用默认值
}

// 环境变量覆盖
const (
	EnvPollIntervalMs = "POLLTIMER_POLL_INTERVAL_MS"
	EnvLogLevel       = "POLLTIMER_LOG_LEVEL"
)

func (c *LogConfig) Level() mlog.Level {
	return mlog.Level(c.LogLevel)
}

func (c *TimerConfig) Options() *timer.Options {
	return &timer.Options{
		Name:         c.TimerName,
		PollInterval: time.Duration(c.PollIntervalMs) * time.Millisecond,
	}
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		LogConfig: LogConfig{
			LogPath:   ".",
			LogName:   "polltimer",
			LogLevel:  int(mlog.InfoLevel),
			LogStdOut: true,
		},
		TimerConfig: TimerConfig{
			PollIntervalMs: int(timer.DefaultPollInterval / time.Millisecond),
		},
	}
}

// LoadConfig configFile为空时只使用默认值和环境变量
func LoadConfig(configFile string, loadConfigFromEnv func(*AppConfig) error) error {
	conf := defaultConfig()
	if len(configFile) > 0 {
		if err := loadConfigFromFile(configFile, conf); err != nil {
			return err
		}
	}
	if loadConfigFromEnv != nil {
		if err := loadConfigFromEnv(conf); err != nil {
			return err
		}
	}
	if conf.PollIntervalMs < 0 {
		return fmt.Errorf("config poll_interval_ms %d invalid", conf.PollIntervalMs)
	}
	Config = conf
	return nil
}

func loadConfigFromFile(configFile string, conf *AppConfig) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", configFile, err)
	}
	if err = json.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("parse config %s: %w", configFile, err)
	}
	return nil
}

// LoadFromEnv 默认的环境变量覆盖
func LoadFromEnv(conf *AppConfig) error {
	if v, ok := os.LookupEnv(EnvPollIntervalMs); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollIntervalMs, err)
		}
		conf.PollIntervalMs = n
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		conf.LogLevel = n
	}
	return nil
}

func (conf *AppConfig) JsonFormat() string {
	if conf == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
