package gateway

import (
	"time"

	"github.com/RussellLuo/timingwheel"
)

type Timer interface {
	Stop() bool
}

// Clock schedules the shard's heartbeat, drain and settle timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock is backed by the runtime timers.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WheelClock shares one timing wheel between all shards of a process.
type WheelClock struct {
	tw *timingwheel.TimingWheel
}

func NewWheelClock(tw *timingwheel.TimingWheel) *WheelClock {
	return &WheelClock{tw: tw}
}

func (w *WheelClock) Now() time.Time { return time.Now() }

func (w *WheelClock) AfterFunc(d time.Duration, f func()) Timer {
	return w.tw.AfterFunc(d, f)
}
