package lock

import (
	"sort"
	"sync"

	"github.com/spaolacci/murmur3"
)

/*
	锁矩阵，用于需要同时锁定多个key的复合命令（MSET、事务EXEC等）。
	key经哈希后映射到固定数量的锁上，加锁时按槽下标统一排序，
	保证所有协程以相同的全局顺序获取锁，避免互相等待造成死锁。
*/

// Locks 提供按key加锁的能力
type Locks struct {
	table []*sync.RWMutex
}

// Make 创建一个拥有tableSize个锁的锁矩阵
func Make(tableSize int) *Locks {
	table := make([]*sync.RWMutex, tableSize)
	for i := 0; i < tableSize; i++ {
		table[i] = &sync.RWMutex{}
	}
	return &Locks{
		table: table,
	}
}

func hashKey(key string) uint64 {
	h := murmur3.New64()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (locks *Locks) spread(hashCode uint64) uint64 {
	if locks == nil {
		panic("locks is nil")
	}
	tableSize := uint64(len(locks.table))
	return hashCode % tableSize
}

// Lock 对单个key加写锁
func (locks *Locks) Lock(key string) {
	index := locks.spread(hashKey(key))
	mu := locks.table[index]
	mu.Lock()
}

// RLock 对单个key加读锁
func (locks *Locks) RLock(key string) {
	index := locks.spread(hashKey(key))
	mu := locks.table[index]
	mu.RLock()
}

// UnLock 释放单个key的写锁
func (locks *Locks) UnLock(key string) {
	index := locks.spread(hashKey(key))
	mu := locks.table[index]
	mu.Unlock()
}

// RUnLock 释放单个key的读锁
func (locks *Locks) RUnLock(key string) {
	index := locks.spread(hashKey(key))
	mu := locks.table[index]
	mu.RUnlock()
}

// 将一组key转换为去重且排序后的锁下标，reverse用于解锁时逆序释放
func (locks *Locks) toLockIndices(keys []string, reverse bool) []uint64 {
	indexMap := make(map[uint64]struct{})
	for _, key := range keys {
		index := locks.spread(hashKey(key))
		indexMap[index] = struct{}{}
	}
	indices := make([]uint64, 0, len(indexMap))
	for index := range indexMap {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool {
		if !reverse {
			return indices[i] < indices[j]
		}
		return indices[i] > indices[j]
	})
	return indices
}

// Locks 对一组key加写锁，按全局固定顺序加锁
func (locks *Locks) Locks(keys ...string) {
	indices := locks.toLockIndices(keys, false)
	for _, index := range indices {
		mu := locks.table[index]
		mu.Lock()
	}
}

// RLocks 对一组key加读锁
func (locks *Locks) RLocks(keys ...string) {
	indices := locks.toLockIndices(keys, false)
	for _, index := range indices {
		mu := locks.table[index]
		mu.RLock()
	}
}

// UnLocks 释放一组key的写锁
func (locks *Locks) UnLocks(keys ...string) {
	indices := locks.toLockIndices(keys, true)
	for _, index := range indices {
		mu := locks.table[index]
		mu.Unlock()
	}
}

// RUnLocks 释放一组key的读锁
func (locks *Locks) RUnLocks(keys ...string) {
	indices := locks.toLockIndices(keys, true)
	for _, index := range indices {
		mu := locks.table[index]
		mu.RUnlock()
	}
}

// LockAll 按下标顺序获取全部写锁，用于生成一致性快照时的全局停写
func (locks *Locks) LockAll() {
	for _, mu := range locks.table {
		mu.Lock()
	}
}

// UnlockAll 逆序释放LockAll获取的全部写锁
func (locks *Locks) UnlockAll() {
	for i := len(locks.table) - 1; i >= 0; i-- {
		locks.table[i].Unlock()
	}
}

// RWLocks 同时对写key集合加写锁、读key集合加读锁。
// 同一个锁槽以写锁优先，整体仍按全局固定顺序获取。
func (locks *Locks) RWLocks(writeKeys []string, readKeys []string) {
	keys := append(readKeys, writeKeys...)
	indices := locks.toLockIndices(keys, false)
	writeIndexSet := make(map[uint64]struct{})
	for _, wKey := range writeKeys {
		idx := locks.spread(hashKey(wKey))
		writeIndexSet[idx] = struct{}{}
	}
	for _, index := range indices {
		_, w := writeIndexSet[index]
		mu := locks.table[index]
		if w {
			mu.Lock()
		} else {
			mu.RLock()
		}
	}
}

// RWUnLocks 释放RWLocks获取的锁
func (locks *Locks) RWUnLocks(writeKeys []string, readKeys []string) {
	keys := append(readKeys, writeKeys...)
	indices := locks.toLockIndices(keys, true)
	writeIndexSet := make(map[uint64]struct{})
	for _, wKey := range writeKeys {
		idx := locks.spread(hashKey(wKey))
		writeIndexSet[idx] = struct{}{}
	}
	for _, index := range indices {
		_, w := writeIndexSet[index]
		mu := locks.table[index]
		if w {
			mu.Unlock()
		} else {
			mu.RUnlock()
		}
	}
}
