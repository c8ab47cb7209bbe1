package database

import (
	"strconv"
	"sync"
	"time"

	"redisGo/datastruct/list"
	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

/*
	阻塞命令协调器。每个key维护一个FIFO的等待者队列，
	等待者挂起时不持有任何store资源；唤醒由满足条件的写操作在
	持有key锁期间发起，每产生一个元素只唤醒一个等待者。
*/

// keyWaiter 表示一个阻塞等待者
type keyWaiter struct {
	ch chan struct{} // 被唤醒时关闭
}

// keyEventBoard 按key登记阻塞等待者
type keyEventBoard struct {
	mu      sync.Mutex
	waiters map[string]*list.LinkedList // key -> *keyWaiter 的FIFO队列
}

func makeKeyEventBoard() *keyEventBoard {
	return &keyEventBoard{
		waiters: make(map[string]*list.LinkedList),
	}
}

// addWaiter 登记等待者，front为true时插到队首（被唤醒但未抢到元素的等待者重新排队时保持公平）
func (board *keyEventBoard) addWaiter(key string, front bool) *keyWaiter {
	w := &keyWaiter{
		ch: make(chan struct{}),
	}
	board.mu.Lock()
	defer board.mu.Unlock()
	q, ok := board.waiters[key]
	if !ok {
		q = list.Make()
		board.waiters[key] = q
	}
	if front {
		q.Insert(0, w)
	} else {
		q.Add(w)
	}
	return w
}

// removeWaiter 注销等待者，连接关闭或超时后调用
func (board *keyEventBoard) removeWaiter(key string, w *keyWaiter) {
	board.mu.Lock()
	defer board.mu.Unlock()
	q, ok := board.waiters[key]
	if !ok {
		return
	}
	q.RemoveAllByVal(func(a interface{}) bool {
		return a == w
	})
	if q.Len() == 0 {
		delete(board.waiters, key)
	}
}

// signal 按FIFO顺序唤醒最多count个等待者，每个等待者只被唤醒一次
func (board *keyEventBoard) signal(key string, count int) {
	board.mu.Lock()
	defer board.mu.Unlock()
	q, ok := board.waiters[key]
	if !ok {
		return
	}
	for i := 0; i < count && q.Len() > 0; i++ {
		raw := q.Remove(0)
		w := raw.(*keyWaiter)
		close(w.ch)
	}
	if q.Len() == 0 {
		delete(board.waiters, key)
	}
}

// signalListPush 在向列表推入count个元素后唤醒等待者，推入方持有key锁时调用
func (db *DB) signalListPush(key string, count int) {
	db.blocking.signal(key, count)
}

// closingAware 能够感知连接关闭的连接实现
type closingAware interface {
	Closing() <-chan struct{}
}

// tryPopListElement 在持有key锁的前提下弹出一个列表元素
func tryPopListElement(db *DB, key string, left bool) ([]byte, protocol.ErrorReply) {
	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return nil, errReply
	}
	if lst == nil || lst.Len() == 0 {
		return nil, nil
	}
	var val []byte
	if left {
		val, _ = lst.Remove(0).([]byte)
	} else {
		val, _ = lst.RemoveLast().([]byte)
	}
	if lst.Len() == 0 {
		db.Remove(key)
	}
	if left {
		db.addAof(utils.ToCmdLine2("lpop", key))
	} else {
		db.addAof(utils.ToCmdLine2("rpop", key))
	}
	return val, nil
}

// execBlockingPop 执行BLPOP/BRPOP。先尝试立即弹出，失败则挂起当前连接的处理协程，
// 等待写操作唤醒、超时或连接关闭。
func execBlockingPop(db *DB, c redis.Connection, args [][]byte, left bool) redis.Reply {
	timeoutSecs, err := strconv.ParseFloat(string(args[len(args)-1]), 64)
	if err != nil || timeoutSecs < 0 {
		return protocol.MakeErrReply("ERR timeout is not a float or out of range")
	}
	keys := make([]string, len(args)-1)
	for i := 0; i < len(args)-1; i++ {
		keys[i] = string(args[i])
	}

	var deadline time.Time
	if timeoutSecs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSecs * float64(time.Second)))
	}

	var closing <-chan struct{}
	if ca, ok := c.(closingAware); ok {
		closing = ca.Closing()
	}

	// 重新排队时插到队首，保证先阻塞者先被服务
	requeueFront := false
	for {
		// 依次尝试每个key，同时在key锁内登记等待者，
		// 避免在检查与登记的间隙错过唤醒信号
		waiters := make(map[string]*keyWaiter)
		for _, key := range keys {
			db.RWLocks([]string{key}, nil)
			val, errReply := tryPopListElement(db, key, left)
			if errReply == nil && val != nil {
				db.addVersion(key)
			}
			if errReply == nil && val == nil {
				waiters[key] = db.blocking.addWaiter(key, requeueFront)
			}
			db.RWUnLocks([]string{key}, nil)

			if errReply != nil {
				for wKey, w := range waiters {
					db.blocking.removeWaiter(wKey, w)
				}
				return errReply
			}
			if val != nil {
				for wKey, w := range waiters {
					db.blocking.removeWaiter(wKey, w)
				}
				return protocol.MakeMultiBulkReply([][]byte{[]byte(key), val})
			}
		}

		// 所有key都为空，挂起等待
		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if timeoutSecs > 0 {
			timer = time.NewTimer(time.Until(deadline))
			timeoutCh = timer.C
		}
		cases := make([]chan struct{}, 0, len(keys))
		for _, key := range keys {
			cases = append(cases, waiters[key].ch)
		}
		woken := waitAny(cases, timeoutCh, closing)
		if timer != nil {
			timer.Stop()
		}
		for wKey, w := range waiters {
			db.blocking.removeWaiter(wKey, w)
		}
		switch woken {
		case wakeSignal:
			// 回到循环重试，可能与其他客户端竞争失败
			requeueFront = true
			continue
		case wakeTimeout:
			return protocol.MakeNullMultiBulkReply()
		default: // wakeClosed
			return &protocol.NoReply{}
		}
	}
}

const (
	wakeSignal = iota
	wakeTimeout
	wakeClosed
)

// waitAny 等待任意一个唤醒信号、超时或连接关闭
func waitAny(signals []chan struct{}, timeout <-chan time.Time, closing <-chan struct{}) int {
	// 把多个key的信号汇聚到一个channel上
	agg := make(chan struct{}, len(signals))
	done := make(chan struct{})
	defer close(done)
	for _, sig := range signals {
		go func(sig chan struct{}) {
			select {
			case <-sig:
				select {
				case agg <- struct{}{}:
				case <-done:
				}
			case <-done:
			}
		}(sig)
	}
	select {
	case <-agg:
		return wakeSignal
	case <-timeout:
		return wakeTimeout
	case <-closing:
		return wakeClosed
	}
}
