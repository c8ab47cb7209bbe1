package timewheel

import (
	"container/list"
	"time"

	"redisGo/lib/logger"
)

// location 记录一个任务在时间轮中的位置
type location struct {
	slot  int
	etask *list.Element
}

// TimeWheel 时间轮，用于在固定的时间点执行一次性任务（例如key的定时过期）
type TimeWheel struct {
	interval time.Duration // 每个槽的时间间隔
	ticker   *time.Ticker
	slots    []*list.List // 每个槽存储该时段内需要执行的任务

	timer             map[string]*location // key -> 任务位置，用于查询和移除
	currentPos        int
	slotNum           int
	addTaskChannel    chan task
	removeTaskChannel chan string
	stopChannel       chan bool
}

// 时间轮中的一个任务
type task struct {
	delay  time.Duration
	circle int // 任务需要在时间轮转动多少圈之后执行
	key    string
	job    func()
}

// New 创建时间轮，interval表示槽间隔，slotNum表示槽数量
func New(interval time.Duration, slotNum int) *TimeWheel {
	if interval <= 0 || slotNum <= 0 {
		return nil
	}
	tw := &TimeWheel{
		interval:          interval,
		slots:             make([]*list.List, slotNum),
		timer:             make(map[string]*location),
		currentPos:        0,
		slotNum:           slotNum,
		addTaskChannel:    make(chan task),
		removeTaskChannel: make(chan string),
		stopChannel:       make(chan bool),
	}
	for i := 0; i < slotNum; i++ {
		tw.slots[i] = list.New()
	}
	return tw
}

// Start 启动时间轮
func (tw *TimeWheel) Start() {
	tw.ticker = time.NewTicker(tw.interval)
	go tw.start()
}

// Stop 停止时间轮
func (tw *TimeWheel) Stop() {
	tw.stopChannel <- true
}

// AddJob 添加一个延迟任务，key相同则覆盖旧任务
func (tw *TimeWheel) AddJob(delay time.Duration, key string, job func()) {
	if delay < 0 {
		delay = 0
	}
	tw.addTaskChannel <- task{delay: delay, key: key, job: job}
}

// RemoveJob 根据key移除任务
func (tw *TimeWheel) RemoveJob(key string) {
	if key == "" {
		return
	}
	tw.removeTaskChannel <- key
}

// 时间轮的事件循环，所有对slots的修改都在这个协程中完成
func (tw *TimeWheel) start() {
	for {
		select {
		case <-tw.ticker.C:
			tw.tickHandler()
		case t := <-tw.addTaskChannel:
			tw.addTask(&t)
		case key := <-tw.removeTaskChannel:
			tw.removeTask(key)
		case <-tw.stopChannel:
			tw.ticker.Stop()
			return
		}
	}
}

func (tw *TimeWheel) addTask(t *task) {
	pos, circle := tw.getPositionAndCircle(t.delay)
	t.circle = circle

	e := tw.slots[pos].PushBack(t)
	loc := &location{
		slot:  pos,
		etask: e,
	}
	if t.key != "" {
		if _, ok := tw.timer[t.key]; ok {
			tw.removeTask(t.key)
		}
	}
	tw.timer[t.key] = loc
}

// getPositionAndCircle 计算任务所在的槽位置与需要等待的圈数
func (tw *TimeWheel) getPositionAndCircle(d time.Duration) (pos int, circle int) {
	delaySeconds := int(d.Seconds())
	intervalSeconds := int(tw.interval.Seconds())
	circle = delaySeconds / intervalSeconds / tw.slotNum
	pos = (tw.currentPos + delaySeconds/intervalSeconds) % tw.slotNum
	return
}

func (tw *TimeWheel) tickHandler() {
	l := tw.slots[tw.currentPos]
	if tw.currentPos == tw.slotNum-1 {
		tw.currentPos = 0
	} else {
		tw.currentPos++
	}
	go tw.scanAndRunTask(l)
}

func (tw *TimeWheel) scanAndRunTask(l *list.List) {
	for e := l.Front(); e != nil; {
		t := e.Value.(*task)
		if t.circle > 0 {
			t.circle--
			e = e.Next()
			continue
		}

		go func() {
			defer func() {
				if err := recover(); err != nil {
					logger.Error(err)
				}
			}()
			t.job()
		}()

		next := e.Next()
		l.Remove(e)
		if t.key != "" {
			delete(tw.timer, t.key)
		}
		e = next
	}
}

func (tw *TimeWheel) removeTask(key string) {
	pos, ok := tw.timer[key]
	if !ok {
		return
	}
	l := tw.slots[pos.slot]
	l.Remove(pos.etask)
	delete(tw.timer, key)
}
