package wildcard

/*
	实现Redis风格的glob模式匹配，用于KEYS和PSUBSCRIBE：
	  *  匹配任意数量的字符
	  ?  匹配单个字符
	  [] 匹配括号内的任意一个字符，支持^取反和a-z范围
	  \  转义后面的一个字符
*/

const (
	normal = iota
	all      // *
	any      // ?
	setItem  // [a]
	rangItem // [a-b]
	negSet   // [^a]
)

type item struct {
	character byte
	set       map[byte]bool
	typeCode  int
}

func (i *item) contains(c byte) bool {
	if i.typeCode == setItem {
		_, ok := i.set[c]
		return ok
	} else if i.typeCode == rangItem {
		if _, ok := i.set[c]; ok {
			return true
		}
		var (
			min uint8 = 255
			max uint8 = 0
		)
		for k := range i.set {
			if min > k {
				min = k
			}
			if max < k {
				max = k
			}
		}
		return c >= min && c <= max
	} else { // negSet
		_, ok := i.set[c]
		return !ok
	}
}

// Pattern 表示一个已编译的通配符模式
type Pattern struct {
	items []*item
}

// CompilePattern 将模式字符串编译为 Pattern
func CompilePattern(src string) *Pattern {
	items := make([]*item, 0)
	escape := false
	inSet := false
	var set map[byte]bool
	negate := false
	isRange := false
	for _, v := range src {
		c := byte(v)
		if escape {
			items = append(items, &item{typeCode: normal, character: c})
			escape = false
		} else if c == '*' {
			items = append(items, &item{typeCode: all})
		} else if c == '?' {
			items = append(items, &item{typeCode: any})
		} else if c == '\\' {
			escape = true
		} else if c == '[' {
			if !inSet {
				inSet = true
				set = make(map[byte]bool)
				negate = false
				isRange = false
			} else {
				set[c] = true
			}
		} else if c == ']' {
			if inSet {
				inSet = false
				typeCode := setItem
				if negate {
					typeCode = negSet
				} else if isRange {
					typeCode = rangItem
				}
				items = append(items, &item{typeCode: typeCode, set: set})
			} else {
				items = append(items, &item{typeCode: normal, character: c})
			}
		} else if inSet {
			if c == '^' && len(set) == 0 {
				negate = true
			} else if c == '-' {
				isRange = true
			} else {
				set[c] = true
			}
		} else {
			items = append(items, &item{typeCode: normal, character: c})
		}
	}
	return &Pattern{items: items}
}

// IsMatch 判断字符串s是否与该模式匹配
func (p *Pattern) IsMatch(s string) bool {
	if len(p.items) == 0 {
		return len(s) == 0
	}
	m := len(s)
	n := len(p.items)
	// 动态规划，table[i][j]表示s前i个字符能否匹配模式前j项
	table := make([][]bool, m+1)
	for i := 0; i <= m; i++ {
		table[i] = make([]bool, n+1)
	}
	table[0][0] = true
	for j := 1; j <= n; j++ {
		table[0][j] = table[0][j-1] && p.items[j-1].typeCode == all
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			it := p.items[j-1]
			if it.typeCode == all {
				table[i][j] = table[i-1][j] || table[i][j-1]
			} else if it.typeCode == any ||
				(it.typeCode == normal && s[i-1] == it.character) ||
				(it.typeCode >= setItem && it.contains(s[i-1])) {
				table[i][j] = table[i-1][j-1]
			}
		}
	}
	return table[m][n]
}
