package protocol

import (
	"strconv"

	"github.com/valyala/bytebufferpool"

	"redisGo/interface/redis"
)

var (
	// CRLF 是RESP协议中每行的末尾分隔符
	CRLF = "\r\n"
)

// BulkReply 存储一行二进制安全的字符串
type BulkReply struct {
	Arg []byte
}

// MakeBulkReply 创建一个单行字符串回复
func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{
		Arg: arg,
	}
}

// ToBytes 编码为 $5\r\nvalue\r\n 的形式
func (r *BulkReply) ToBytes() []byte {
	if r.Arg == nil {
		return nullBulkBytes
	}
	return []byte("$" + strconv.Itoa(len(r.Arg)) + CRLF + string(r.Arg) + CRLF)
}

// MultiBulkReply 存储数组类型的回复，每个元素是一个二进制安全的字符串
type MultiBulkReply struct {
	Args [][]byte
}

// MakeMultiBulkReply 创建一个多行字符串回复
func MakeMultiBulkReply(args [][]byte) *MultiBulkReply {
	return &MultiBulkReply{
		Args: args,
	}
}

// ToBytes 编码为RESP数组，例如：
// *1\r\n
// $4\r\n
// ping\r\n
func (r *MultiBulkReply) ToBytes() []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString("*" + strconv.Itoa(len(r.Args)) + CRLF)
	for _, arg := range r.Args {
		if arg == nil {
			_, _ = buf.WriteString("$-1" + CRLF)
		} else {
			_, _ = buf.WriteString("$" + strconv.Itoa(len(arg)) + CRLF + string(arg) + CRLF)
		}
	}
	result := make([]byte, buf.Len())
	copy(result, buf.B)
	return result
}

// MultiRawReply 存储元素为任意Reply的数组，用于EXEC返回嵌套结果
type MultiRawReply struct {
	Replies []redis.Reply
}

// MakeMultiRawReply 创建一个嵌套数组回复
func MakeMultiRawReply(replies []redis.Reply) *MultiRawReply {
	return &MultiRawReply{
		Replies: replies,
	}
}

// ToBytes 将每个元素各自编码后拼接
func (r *MultiRawReply) ToBytes() []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString("*" + strconv.Itoa(len(r.Replies)) + CRLF)
	for _, arg := range r.Replies {
		_, _ = buf.Write(arg.ToBytes())
	}
	result := make([]byte, buf.Len())
	copy(result, buf.B)
	return result
}

// StatusReply 简单状态回复
type StatusReply struct {
	Status string
}

// MakeStatusReply 创建一个状态回复
func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{
		Status: status,
	}
}

func (r *StatusReply) ToBytes() []byte {
	return []byte("+" + r.Status + CRLF)
}

// IsOKReply 判断给定回复是否是+OK
func IsOKReply(reply redis.Reply) bool {
	return string(reply.ToBytes()) == "+OK\r\n"
}

// IntReply 整数回复
type IntReply struct {
	Code int64
}

// MakeIntReply 创建一个整数回复
func MakeIntReply(code int64) *IntReply {
	return &IntReply{
		Code: code,
	}
}

func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

// ErrorReply 既是error又是redis.Reply
type ErrorReply interface {
	Error() string
	ToBytes() []byte
}

// StandardErrReply 表示一个服务端错误
type StandardErrReply struct {
	Status string
}

// MakeErrReply 创建一个错误回复
func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{
		Status: status,
	}
}

// IsErrorReply 判断给定回复是否是错误
func IsErrorReply(reply redis.Reply) bool {
	return reply.ToBytes()[0] == '-'
}

func (r *StandardErrReply) ToBytes() []byte {
	return []byte("-" + r.Status + CRLF)
}

func (r *StandardErrReply) Error() string {
	return r.Status
}
