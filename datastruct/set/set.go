package set

import "redisGo/datastruct/dict"

// Set 基于字典实现的字符串集合
type Set struct {
	dict dict.Dict
}

// Make 创建集合并加入给定成员
func Make(members ...string) *Set {
	set := &Set{
		dict: dict.MakeSimple(),
	}
	for _, member := range members {
		set.Add(member)
	}
	return set
}

// Add 加入成员，返回实际加入的数量
func (set *Set) Add(val string) int {
	return set.dict.Put(val, nil)
}

// Remove 移除成员，返回实际移除的数量
func (set *Set) Remove(val string) int {
	return set.dict.Remove(val)
}

// Has 判断成员是否存在
func (set *Set) Has(val string) bool {
	_, exists := set.dict.Get(val)
	return exists
}

// Len 返回集合的成员数量
func (set *Set) Len() int {
	return set.dict.Len()
}

// ToSlice 返回包含所有成员的切片
func (set *Set) ToSlice() []string {
	slice := make([]string, set.Len())
	i := 0
	set.dict.ForEach(func(key string, val interface{}) bool {
		if i < len(slice) {
			slice[i] = key
		} else {
			// 遍历期间集合被并发修改时兜底
			slice = append(slice, key)
		}
		i++
		return true
	})
	return slice
}

// ForEach 遍历集合
func (set *Set) ForEach(consumer func(member string) bool) {
	set.dict.ForEach(func(key string, val interface{}) bool {
		return consumer(key)
	})
}

// Intersect 求与另一个集合的交集
func (set *Set) Intersect(another *Set) *Set {
	if set == nil {
		panic("set is nil")
	}
	result := Make()
	another.ForEach(func(member string) bool {
		if set.Has(member) {
			result.Add(member)
		}
		return true
	})
	return result
}

// Union 求与另一个集合的并集
func (set *Set) Union(another *Set) *Set {
	if set == nil {
		panic("set is nil")
	}
	result := Make()
	set.ForEach(func(member string) bool {
		result.Add(member)
		return true
	})
	another.ForEach(func(member string) bool {
		result.Add(member)
		return true
	})
	return result
}

// Diff 求差集，返回在set中但不在another中的成员
func (set *Set) Diff(another *Set) *Set {
	if set == nil {
		panic("set is nil")
	}
	result := Make()
	set.ForEach(func(member string) bool {
		if !another.Has(member) {
			result.Add(member)
		}
		return true
	})
	return result
}

// RandomMembers 随机返回指定数量的成员，可能重复
func (set *Set) RandomMembers(limit int) []string {
	return set.dict.RandomKeys(limit)
}

// RandomDistinctMembers 随机返回指定数量的不重复成员
func (set *Set) RandomDistinctMembers(limit int) []string {
	return set.dict.RandomDistinctKeys(limit)
}
