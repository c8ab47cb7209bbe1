package list

// LinkedList 双向链表
type LinkedList struct {
	first *node
	last  *node
	size  int
}

type node struct {
	val  interface{}
	prev *node
	next *node
}

// Make 创建链表并依次加入给定元素
func Make(vals ...interface{}) *LinkedList {
	list := LinkedList{}
	for _, v := range vals {
		list.Add(v)
	}
	return &list
}

// Add 在链表尾部追加元素
func (list *LinkedList) Add(val interface{}) {
	if list == nil {
		panic("list is nil")
	}
	n := &node{
		val: val,
	}
	if list.last == nil {
		// 空链表
		list.first = n
		list.last = n
	} else {
		n.prev = list.last
		list.last.next = n
		list.last = n
	}
	list.size++
}

// 折半查找，返回index对应的结点
func (list *LinkedList) find(index int) (n *node) {
	if index < list.size/2 {
		n = list.first
		for i := 0; i < index; i++ {
			n = n.next
		}
	} else {
		n = list.last
		for i := list.size - 1; i > index; i-- {
			n = n.prev
		}
	}
	return n
}

// Get 返回index处的元素
func (list *LinkedList) Get(index int) (val interface{}) {
	if list == nil {
		panic("list is nil")
	}
	if index < 0 || index >= list.size {
		panic("index out of bound")
	}
	return list.find(index).val
}

// Set 修改index处的元素
func (list *LinkedList) Set(index int, val interface{}) {
	if list == nil {
		panic("list is nil")
	}
	if index < 0 || index >= list.size {
		panic("index out of bound")
	}
	n := list.find(index)
	n.val = val
}

// Insert 在index处插入元素，原有元素后移
func (list *LinkedList) Insert(index int, val interface{}) {
	if list == nil {
		panic("list is nil")
	}
	if index < 0 || index > list.size {
		panic("index out of bound")
	}
	if index == list.size {
		list.Add(val)
		return
	}
	// 插入到pivot之前
	pivot := list.find(index)
	n := &node{
		val:  val,
		prev: pivot.prev,
		next: pivot,
	}
	if pivot.prev == nil {
		list.first = n
	} else {
		pivot.prev.next = n
	}
	pivot.prev = n
	list.size++
}

func (list *LinkedList) removeNode(n *node) {
	if n.prev == nil {
		list.first = n.next
	} else {
		n.prev.next = n.next
	}
	if n.next == nil {
		list.last = n.prev
	} else {
		n.next.prev = n.prev
	}
	n.prev = nil
	n.next = nil
	list.size--
}

// Remove 移除index处的元素并返回
func (list *LinkedList) Remove(index int) (val interface{}) {
	if list == nil {
		panic("list is nil")
	}
	if index < 0 || index >= list.size {
		panic("index out of bound")
	}
	n := list.find(index)
	list.removeNode(n)
	return n.val
}

// RemoveLast 移除并返回尾部元素
func (list *LinkedList) RemoveLast() (val interface{}) {
	if list == nil {
		panic("list is nil")
	}
	if list.last == nil {
		return nil
	}
	n := list.last
	list.removeNode(n)
	return n.val
}

// RemoveAllByVal 移除所有符合条件的元素，返回移除数量
func (list *LinkedList) RemoveAllByVal(expected Expected) int {
	if list == nil {
		panic("list is nil")
	}
	removed := 0
	for n := list.first; n != nil; {
		next := n.next
		if expected(n.val) {
			list.removeNode(n)
			removed++
		}
		n = next
	}
	return removed
}

// RemoveByVal 从头向尾最多移除count个符合条件的元素
func (list *LinkedList) RemoveByVal(expected Expected, count int) int {
	if list == nil {
		panic("list is nil")
	}
	removed := 0
	for n := list.first; n != nil && removed < count; {
		next := n.next
		if expected(n.val) {
			list.removeNode(n)
			removed++
		}
		n = next
	}
	return removed
}

// ReverseRemoveByVal 从尾向头最多移除count个符合条件的元素
func (list *LinkedList) ReverseRemoveByVal(expected Expected, count int) int {
	if list == nil {
		panic("list is nil")
	}
	removed := 0
	for n := list.last; n != nil && removed < count; {
		prev := n.prev
		if expected(n.val) {
			list.removeNode(n)
			removed++
		}
		n = prev
	}
	return removed
}

// Len 返回链表长度
func (list *LinkedList) Len() int {
	if list == nil {
		panic("list is nil")
	}
	return list.size
}

// ForEach 从头遍历链表
func (list *LinkedList) ForEach(consumer Consumer) {
	if list == nil {
		panic("list is nil")
	}
	i := 0
	for n := list.first; n != nil; n = n.next {
		if !consumer(i, n.val) {
			break
		}
		i++
	}
}

// Contains 判断是否存在符合条件的元素
func (list *LinkedList) Contains(expected Expected) bool {
	contains := false
	list.ForEach(func(i int, v interface{}) bool {
		if expected(v) {
			contains = true
			return false
		}
		return true
	})
	return contains
}

// Range 返回[start, stop)区间内的元素
func (list *LinkedList) Range(start int, stop int) []interface{} {
	if list == nil {
		panic("list is nil")
	}
	if start < 0 || start >= list.size {
		panic("`start` out of range")
	}
	if stop < start || stop > list.size {
		panic("`stop` out of range")
	}
	sliceSize := stop - start
	slice := make([]interface{}, sliceSize)
	n := list.find(start)
	for i := 0; i < sliceSize; i++ {
		slice[i] = n.val
		n = n.next
	}
	return slice
}
