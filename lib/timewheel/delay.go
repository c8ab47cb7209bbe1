package timewheel

import "time"

var tw = New(time.Second, 3600)

func init() {
	tw.Start()
}

// Delay 添加一个延迟duration执行的任务
func Delay(duration time.Duration, key string, job func()) {
	tw.AddJob(duration, key, job)
}

// At 添加一个在at时刻执行的任务
func At(at time.Time, key string, job func()) {
	tw.AddJob(time.Until(at), key, job)
}

// Cancel 根据key移除任务
func Cancel(key string) {
	tw.RemoveJob(key)
}
