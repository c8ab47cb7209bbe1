package dict

import (
	"math"
	"math/rand"
	"sync"

	"github.com/spaolacci/murmur3"
)

// ConcurrentDict 通过分段锁实现的并发安全的字典，key经murmur3哈希后定位到分片
type ConcurrentDict struct {
	table      []*shard
	count      int32
	shardCount int
	countMu    sync.Mutex
}

type shard struct {
	m     map[string]interface{}
	mutex sync.RWMutex
}

// 将容量对齐到2的整数次幂，保证可以用掩码计算分片下标
func computeCapacity(param int) (size int) {
	if param <= 16 {
		return 16
	}
	n := param - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	if n < 0 {
		return math.MaxInt32
	}
	return n + 1
}

// MakeConcurrent 创建一个拥有shardCount个分片的ConcurrentDict
func MakeConcurrent(shardCount int) *ConcurrentDict {
	shardCount = computeCapacity(shardCount)
	table := make([]*shard, shardCount)
	for i := 0; i < shardCount; i++ {
		table[i] = &shard{
			m: make(map[string]interface{}),
		}
	}
	return &ConcurrentDict{
		count:      0,
		table:      table,
		shardCount: shardCount,
	}
}

func hashKey(key string) uint64 {
	h := murmur3.New64()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (dict *ConcurrentDict) spread(hashCode uint64) uint64 {
	if dict == nil {
		panic("dict is nil")
	}
	tableSize := uint64(len(dict.table))
	return hashCode & (tableSize - 1)
}

func (dict *ConcurrentDict) getShard(index uint64) *shard {
	if dict == nil {
		panic("dict is nil")
	}
	return dict.table[index]
}

// Get 从字典中获取元素
func (dict *ConcurrentDict) Get(key string) (val interface{}, exists bool) {
	s := dict.getShard(dict.spread(hashKey(key)))
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	val, exists = s.m[key]
	return
}

// Len 获取字典的元素个数
func (dict *ConcurrentDict) Len() int {
	if dict == nil {
		panic("dict is nil")
	}
	dict.countMu.Lock()
	defer dict.countMu.Unlock()
	return int(dict.count)
}

// Put 插入k-v，如果key已经存在则返回0，是新key则返回1
func (dict *ConcurrentDict) Put(key string, val interface{}) (result int) {
	s := dict.getShard(dict.spread(hashKey(key)))
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.m[key]; ok {
		s.m[key] = val
		return 0
	}
	s.m[key] = val
	dict.addCount()
	return 1
}

// PutIfAbsent 仅当key不存在时插入，插入成功返回1
func (dict *ConcurrentDict) PutIfAbsent(key string, val interface{}) (result int) {
	s := dict.getShard(dict.spread(hashKey(key)))
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.m[key]; ok {
		return 0
	}
	s.m[key] = val
	dict.addCount()
	return 1
}

// PutIfExists 仅当key存在时覆盖，覆盖成功返回1
func (dict *ConcurrentDict) PutIfExists(key string, val interface{}) (result int) {
	s := dict.getShard(dict.spread(hashKey(key)))
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.m[key]; ok {
		s.m[key] = val
		return 1
	}
	return 0
}

// Remove 移除key，返回实际移除的数量
func (dict *ConcurrentDict) Remove(key string) (result int) {
	s := dict.getShard(dict.spread(hashKey(key)))
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.m[key]; ok {
		delete(s.m, key)
		dict.decreaseCount()
		return 1
	}
	return 0
}

func (dict *ConcurrentDict) addCount() {
	dict.countMu.Lock()
	defer dict.countMu.Unlock()
	dict.count++
}

func (dict *ConcurrentDict) decreaseCount() {
	dict.countMu.Lock()
	defer dict.countMu.Unlock()
	dict.count--
}

// ForEach 遍历字典，遍历期间对单个分片加读锁
func (dict *ConcurrentDict) ForEach(consumer Consumer) {
	if dict == nil {
		panic("dict is nil")
	}
	for _, s := range dict.table {
		s.mutex.RLock()
		finished := func() bool {
			defer s.mutex.RUnlock()
			for key, value := range s.m {
				if !consumer(key, value) {
					return true
				}
			}
			return false
		}()
		if finished {
			break
		}
	}
}

// Keys 返回所有的key
func (dict *ConcurrentDict) Keys() []string {
	keys := make([]string, 0, dict.Len())
	dict.ForEach(func(key string, val interface{}) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// 从分片中随机取出一个key
func (s *shard) randomKey() string {
	if s == nil {
		panic("shard is nil")
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for key := range s.m {
		return key
	}
	return ""
}

// RandomKeys 返回指定数量的随机键，可能重复
func (dict *ConcurrentDict) RandomKeys(limit int) []string {
	size := dict.Len()
	if limit >= size {
		return dict.Keys()
	}
	shardCount := len(dict.table)

	result := make([]string, limit)
	for i := 0; i < limit; {
		s := dict.getShard(uint64(rand.Intn(shardCount)))
		if s == nil {
			continue
		}
		key := s.randomKey()
		if key != "" {
			result[i] = key
			i++
		}
	}
	return result
}

// RandomDistinctKeys 返回指定数量的不重复随机键
func (dict *ConcurrentDict) RandomDistinctKeys(limit int) []string {
	size := dict.Len()
	if limit >= size {
		return dict.Keys()
	}

	shardCount := len(dict.table)
	result := make(map[string]struct{})
	for len(result) < limit {
		shardIndex := uint64(rand.Intn(shardCount))
		s := dict.getShard(shardIndex)
		if s == nil {
			continue
		}
		key := s.randomKey()
		if key != "" {
			if _, exists := result[key]; !exists {
				result[key] = struct{}{}
			}
		}
	}
	arr := make([]string, limit)
	i := 0
	for k := range result {
		arr[i] = k
		i++
	}
	return arr
}

// Clear 清空字典
func (dict *ConcurrentDict) Clear() {
	*dict = *MakeConcurrent(dict.shardCount)
}
