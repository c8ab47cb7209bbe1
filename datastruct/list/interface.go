package list

// Expected 检查给定元素是否与期望值一致
type Expected func(a interface{}) bool

// Consumer 遍历链表，返回false表示中断遍历
type Consumer func(i int, v interface{}) bool

// List 是有序列表的抽象接口
type List interface {
	Add(val interface{})
	Get(index int) (val interface{})
	Set(index int, val interface{})
	Insert(index int, val interface{})
	Remove(index int) (val interface{})
	RemoveLast() (val interface{})
	RemoveAllByVal(expected Expected) int
	RemoveByVal(expected Expected, count int) int
	ReverseRemoveByVal(expected Expected, count int) int
	Len() int
	ForEach(consumer Consumer)
	Contains(expected Expected) bool
	Range(start int, stop int) []interface{}
}
