package parser

import (
	"bytes"
	"io"
	"testing"

	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

func TestParseStream(t *testing.T) {
	replies := []redis.Reply{
		protocol.MakeIntReply(1),
		protocol.MakeStatusReply("OK"),
		protocol.MakeErrReply("ERR unknown"),
		protocol.MakeBulkReply([]byte("a\r\nb")), // test binary safety
		protocol.MakeNullBulkReply(),
		protocol.MakeMultiBulkReply([][]byte{
			[]byte("set"),
			[]byte("a"),
			[]byte("a"),
		}),
		protocol.MakeEmptyMultiBulkReply(),
	}
	reqs := bytes.Buffer{}
	for _, re := range replies {
		reqs.Write(re.ToBytes())
	}
	reqs.Write([]byte("set a a" + protocol.CRLF)) // test inline command
	expected := make([]redis.Reply, len(replies))
	copy(expected, replies)
	expected = append(expected, protocol.MakeMultiBulkReply([][]byte{
		[]byte("set"), []byte("a"), []byte("a"),
	}))

	ch := ParseStream(bytes.NewReader(reqs.Bytes()))
	i := 0
	for payload := range ch {
		if payload.Err != nil {
			if payload.Err == io.EOF {
				return
			}
			t.Error(payload.Err)
			return
		}
		if payload.Data == nil {
			t.Error("empty data")
			return
		}
		exp := expected[i]
		i++
		if !utils.BytesEquals(exp.ToBytes(), payload.Data.ToBytes()) {
			t.Error("parse failed: " + string(exp.ToBytes()))
		}
	}
}

func TestParseOne(t *testing.T) {
	reply := protocol.MakeMultiBulkReply([][]byte{
		[]byte("get"),
		[]byte("a"),
	})
	result, err := ParseOne(reply.ToBytes())
	if err != nil {
		t.Error(err)
		return
	}
	multi, ok := result.(*protocol.MultiBulkReply)
	if !ok {
		t.Error("parse failed")
		return
	}
	if len(multi.Args) != 2 || string(multi.Args[0]) != "get" || string(multi.Args[1]) != "a" {
		t.Error("parse failed: wrong args")
	}
}

func TestParseBytes(t *testing.T) {
	cmd1 := protocol.MakeMultiBulkReply(utils.ToCmdLine("set", "a", "1"))
	cmd2 := protocol.MakeMultiBulkReply(utils.ToCmdLine("set", "b", "2"))
	data := append(cmd1.ToBytes(), cmd2.ToBytes()...)
	results, err := ParseBytes(data)
	if err != nil {
		t.Error(err)
		return
	}
	if len(results) != 2 {
		t.Errorf("expect 2 commands, got %d", len(results))
	}
}

func TestCorruptedArrayNotEmitted(t *testing.T) {
	// 数组中途损坏时解析终止，已读到的前缀不能被当作完整命令交出去
	data := []byte("*3\r\n$3\r\nDEL\r\n$1\r\na\r\nGARBAGE\r\n")
	ch := ParseStream(bytes.NewReader(data))
	sawErr := false
	for payload := range ch {
		if payload.Err != nil {
			sawErr = true
			continue
		}
		if _, ok := payload.Data.(*protocol.MultiBulkReply); ok {
			t.Errorf("truncated array emitted as command: %s", string(payload.Data.ToBytes()))
		}
	}
	if !sawErr {
		t.Error("expect protocol error for corrupted array")
	}
}

func TestProtocolError(t *testing.T) {
	// 错误的bulk长度不应中断解析协程
	data := []byte("$-5\r\nabc\r\n")
	ch := ParseStream(bytes.NewReader(data))
	payload := <-ch
	if payload.Err == nil {
		t.Error("expect protocol error")
	}
}
