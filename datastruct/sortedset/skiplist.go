package sortedset

import "math/rand"

const (
	maxLevel = 16
)

// Element 保存有序集合成员及其分值
type Element struct {
	Member string
	Score  float64
}

// Level 表示结点在某一层的信息
type Level struct {
	forward *node // 指向同层的下一个结点
	span    int64 // 到forward结点跨越的结点数
}

type node struct {
	Element
	backward *node
	level    []*Level // level[0]是最底层
}

// 跳表，底层链表按score升序，score相同按member字典序
type skiplist struct {
	header *node
	tail   *node
	length int64
	level  int16
}

func makeNode(level int16, score float64, member string) *node {
	n := &node{
		Element: Element{
			Score:  score,
			Member: member,
		},
		level: make([]*Level, level),
	}
	for i := range n.level {
		n.level[i] = new(Level)
	}
	return n
}

func makeSkiplist() *skiplist {
	return &skiplist{
		level:  1,
		header: makeNode(maxLevel, 0, ""),
	}
}

// 以1/2的概率逐层提升，限制在maxLevel以内
func randomLevel() int16 {
	level := int16(1)
	for float32(rand.Int31()&0xFFFF) < (0.25 * 0xFFFF) {
		level++
	}
	if level < maxLevel {
		return level
	}
	return maxLevel
}

func (sl *skiplist) insert(member string, score float64) *node {
	update := make([]*node, maxLevel) // 每层中新结点的前驱
	rank := make([]int64, maxLevel)   // 每层前驱结点的排名

	// 从最高层向下查找插入位置
	n := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		if i == sl.level-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		if n.level[i] != nil {
			for n.level[i].forward != nil &&
				(n.level[i].forward.Score < score ||
					(n.level[i].forward.Score == score && n.level[i].forward.Member < member)) {
				rank[i] += n.level[i].span
				n = n.level[i].forward
			}
		}
		update[i] = n
	}

	level := randomLevel()
	// 如果新结点层数超过当前最高层，则扩展
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			rank[i] = 0
			update[i] = sl.header
			update[i].level[i].span = sl.length
		}
		sl.level = level
	}

	n = makeNode(level, score, member)
	for i := int16(0); i < level; i++ {
		n.level[i].forward = update[i].level[i].forward
		update[i].level[i].forward = n

		n.level[i].span = update[i].level[i].span - (rank[0] - rank[i])
		update[i].level[i].span = (rank[0] - rank[i]) + 1
	}

	// 未触及的更高层，跨度加一
	for i := level; i < sl.level; i++ {
		update[i].level[i].span++
	}

	if update[0] == sl.header {
		n.backward = nil
	} else {
		n.backward = update[0]
	}
	if n.level[0].forward != nil {
		n.level[0].forward.backward = n
	} else {
		sl.tail = n
	}
	sl.length++
	return n
}

// 删除结点，update为每层中n的前驱
func (sl *skiplist) removeNode(n *node, update []*node) {
	for i := int16(0); i < sl.level; i++ {
		if update[i].level[i].forward == n {
			update[i].level[i].span += n.level[i].span - 1
			update[i].level[i].forward = n.level[i].forward
		} else {
			update[i].level[i].span--
		}
	}
	if n.level[0].forward != nil {
		n.level[0].forward.backward = n.backward
	} else {
		sl.tail = n.backward
	}
	for sl.level > 1 && sl.header.level[sl.level-1].forward == nil {
		sl.level--
	}
	sl.length--
}

func (sl *skiplist) remove(member string, score float64) bool {
	update := make([]*node, maxLevel)
	n := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for n.level[i].forward != nil &&
			(n.level[i].forward.Score < score ||
				(n.level[i].forward.Score == score && n.level[i].forward.Member < member)) {
			n = n.level[i].forward
		}
		update[i] = n
	}
	n = n.level[0].forward
	if n != nil && score == n.Score && n.Member == member {
		sl.removeNode(n, update)
		return true
	}
	return false
}

// getRank 返回成员的排名，从1开始，0表示成员不存在
func (sl *skiplist) getRank(member string, score float64) int64 {
	var rank int64 = 0
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil &&
			(x.level[i].forward.Score < score ||
				(x.level[i].forward.Score == score && x.level[i].forward.Member <= member)) {
			rank += x.level[i].span
			x = x.level[i].forward
		}
		if x.Member == member {
			return rank
		}
	}
	return 0
}

// getByRank 返回排名对应的结点，排名从1开始
func (sl *skiplist) getByRank(rank int64) *node {
	var i int64 = 0
	n := sl.header
	for level := sl.level - 1; level >= 0; level-- {
		for n.level[level].forward != nil && (i+n.level[level].span) <= rank {
			i += n.level[level].span
			n = n.level[level].forward
		}
		if i == rank {
			return n
		}
	}
	return nil
}

// 判断跳表中是否存在score位于[min, max]区间的结点
func (sl *skiplist) hasInRange(min *ScoreBorder, max *ScoreBorder) bool {
	// 空区间
	if min.Value > max.Value || (min.Value == max.Value && (min.Exclude || max.Exclude)) {
		return false
	}
	n := sl.tail
	if n == nil || !min.less(n.Score) {
		return false
	}
	n = sl.header.level[0].forward
	if n == nil || !max.greater(n.Score) {
		return false
	}
	return true
}

// getFirstInScoreRange 返回区间内的第一个结点
func (sl *skiplist) getFirstInScoreRange(min *ScoreBorder, max *ScoreBorder) *node {
	if !sl.hasInRange(min, max) {
		return nil
	}
	n := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		// 向前直到forward落入区间
		for n.level[i].forward != nil && !min.less(n.level[i].forward.Score) {
			n = n.level[i].forward
		}
	}
	n = n.level[0].forward
	if !max.greater(n.Score) {
		return nil
	}
	return n
}

// getLastInScoreRange 返回区间内的最后一个结点
func (sl *skiplist) getLastInScoreRange(min *ScoreBorder, max *ScoreBorder) *node {
	if !sl.hasInRange(min, max) {
		return nil
	}
	n := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for n.level[i].forward != nil && max.greater(n.level[i].forward.Score) {
			n = n.level[i].forward
		}
	}
	if !min.less(n.Score) {
		return nil
	}
	return n
}

// RemoveRangeByScore 删除score位于区间内的结点，limit小于等于0表示不限制数量
func (sl *skiplist) RemoveRangeByScore(min *ScoreBorder, max *ScoreBorder, limit int) (removed []*Element) {
	update := make([]*node, maxLevel)
	removed = make([]*Element, 0)

	node := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for node.level[i].forward != nil {
			if min.less(node.level[i].forward.Score) {
				break
			}
			node = node.level[i].forward
		}
		update[i] = node
	}

	node = node.level[0].forward
	for node != nil {
		if !max.greater(node.Score) {
			break
		}
		next := node.level[0].forward
		removedElement := node.Element
		removed = append(removed, &removedElement)
		sl.removeNode(node, update)
		if limit > 0 && len(removed) == limit {
			break
		}
		node = next
	}
	return removed
}

// RemoveRangeByRank 删除排名位于[start, stop)区间内的结点，排名从1开始
func (sl *skiplist) RemoveRangeByRank(start int64, stop int64) (removed []*Element) {
	var i int64 = 0 // 当前遍历到的结点排名
	update := make([]*node, maxLevel)
	removed = make([]*Element, 0)

	node := sl.header
	for level := sl.level - 1; level >= 0; level-- {
		for node.level[level].forward != nil && (i+node.level[level].span) < start {
			i += node.level[level].span
			node = node.level[level].forward
		}
		update[level] = node
	}

	i++
	node = node.level[0].forward
	for node != nil && i < stop {
		next := node.level[0].forward
		removedElement := node.Element
		removed = append(removed, &removedElement)
		sl.removeNode(node, update)
		node = next
		i++
	}
	return removed
}
