package sortedset

import (
	"errors"
	"strconv"
)

/*
 * ScoreBorder 表示ZRANGEBYSCORE等命令的分值边界，可以接受：
 *   int或float，例如 2.718, 2, -2.718, -2
 *   开区间的int或float，例如 (2.718, (2
 *   无穷: +inf, -inf, inf(等同于+inf)
 */

const (
	negativeInf int8 = -1 // 负无穷
	positiveInf int8 = 1  // 正无穷
)

// ScoreBorder 表示一个浮点值的边界: <, <=, >, >=, +inf, -inf
type ScoreBorder struct {
	Inf     int8    // 是否表示无穷
	Value   float64 // 边界的具体取值
	Exclude bool    // true表示开区间，边界值本身不在范围内
}

// if max.greater(score) then the score is within the upper border
// do not use min.greater()
func (border *ScoreBorder) greater(value float64) bool {
	if border.Inf == negativeInf {
		return false
	} else if border.Inf == positiveInf {
		return true
	}
	if border.Exclude {
		return border.Value > value
	}
	return border.Value >= value
}

// if min.less(score) then the score is within the lower border
// do not use max.less()
func (border *ScoreBorder) less(value float64) bool {
	if border.Inf == negativeInf {
		return true
	} else if border.Inf == positiveInf {
		return false
	}
	if border.Exclude {
		return border.Value < value
	}
	return border.Value <= value
}

var positiveInfBorder = &ScoreBorder{
	Inf: positiveInf,
}

var negativeInfBorder = &ScoreBorder{
	Inf: negativeInf,
}

// ParseScoreBorder 将命令参数解析为 ScoreBorder
func ParseScoreBorder(s string) (*ScoreBorder, error) {
	if s == "inf" || s == "+inf" {
		return positiveInfBorder, nil
	}
	if s == "-inf" {
		return negativeInfBorder, nil
	}
	if len(s) > 0 && s[0] == '(' {
		value, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return nil, errors.New("ERR min or max is not a float")
		}
		return &ScoreBorder{
			Inf:     0,
			Value:   value,
			Exclude: true,
		}, nil
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("ERR min or max is not a float")
	}
	return &ScoreBorder{
		Inf:     0,
		Value:   value,
		Exclude: false,
	}, nil
}
