package lock

import (
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"
)

// 随机key组合并发加锁，没有全局顺序保证时会死锁
func TestRWLocksNoDeadlock(t *testing.T) {
	locks := Make(8)
	keys := make([]string, 16)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for j := 0; j < 100; j++ {
				writeKeys := []string{keys[r.Intn(len(keys))], keys[r.Intn(len(keys))]}
				readKeys := []string{keys[r.Intn(len(keys))]}
				locks.RWLocks(writeKeys, readKeys)
				locks.RWUnLocks(writeKeys, readKeys)
			}
		}(int64(i))
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock suspected")
	}
}

func TestLocksMutualExclusion(t *testing.T) {
	locks := Make(8)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				locks.Locks("a", "b")
				counter++
				locks.UnLocks("a", "b")
			}
		}()
	}
	wg.Wait()
	if counter != 800 {
		t.Errorf("expect 800, actually %d", counter)
	}
}

// LockAll期间任何key的写锁都不可获取
func TestLockAll(t *testing.T) {
	locks := Make(8)
	locks.LockAll()
	acquired := make(chan struct{})
	go func() {
		locks.Lock("any")
		locks.UnLock("any")
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("lock acquired while LockAll held")
	case <-time.After(100 * time.Millisecond):
	}
	locks.UnlockAll()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released after UnlockAll")
	}
}
