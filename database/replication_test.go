package database_test

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"redisGo/database"
	"redisGo/lib/utils"
	"redisGo/redis/connection"
	"redisGo/redis/protocol"
	"redisGo/redis/server"
)

// startMaster 在随机端口上启动一个完整的服务端，返回引擎与端口
func startMaster(t *testing.T) (*database.Server, int, func()) {
	t.Helper()
	engine := database.NewStandaloneServer()
	handler := server.MakeHandlerWithEngine(engine)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handler.Handle(context.Background(), conn)
		}
	}()
	port := listener.Addr().(*net.TCPAddr).Port
	closeFn := func() {
		_ = listener.Close()
		_ = handler.Close()
	}
	return engine, port, closeFn
}

func waitUntil(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func slaveGet(slave *database.Server, key string) (string, bool) {
	reply := slave.Exec(nil, utils.ToCmdLine("get", key))
	bulk, ok := reply.(*protocol.BulkReply)
	if !ok {
		return "", false
	}
	return string(bulk.Arg), true
}

func TestReplication(t *testing.T) {
	master, port, closeMaster := startMaster(t)
	defer closeMaster()

	// 全量同步前写入的数据
	master.Exec(nil, utils.ToCmdLine("set", "repl:str", "v1"))
	master.Exec(nil, utils.ToCmdLine("rpush", "repl:list", "a", "b"))
	master.Exec(nil, utils.ToCmdLine("set", "repl:ttl", "x", "EX", "1000"))

	slave := database.NewStandaloneServer()
	defer slave.Close()
	conn := connection.NewFakeConn()
	reply := slave.Exec(conn, utils.ToCmdLine("slaveof", "127.0.0.1", strconv.Itoa(port)))
	if protocol.IsErrorReply(reply) {
		t.Fatalf("slaveof failed: %s", string(reply.ToBytes()))
	}

	// 全量同步
	waitUntil(t, 5*time.Second, func() bool {
		v, ok := slaveGet(slave, "repl:str")
		return ok && v == "v1"
	}, "full resync did not converge")

	listReply := slave.Exec(nil, utils.ToCmdLine("lrange", "repl:list", "0", "-1"))
	multi, ok := listReply.(*protocol.MultiBulkReply)
	if !ok || len(multi.Args) != 2 {
		t.Errorf("list not replicated: %s", string(listReply.ToBytes()))
	}

	// 同步完成后的增量传播
	master.Exec(nil, utils.ToCmdLine("set", "repl:after", "v2"))
	waitUntil(t, 5*time.Second, func() bool {
		v, ok := slaveGet(slave, "repl:after")
		return ok && v == "v2"
	}, "command propagation did not converge")

	// 删除同样会被传播
	master.Exec(nil, utils.ToCmdLine("del", "repl:str"))
	waitUntil(t, 5*time.Second, func() bool {
		_, ok := slaveGet(slave, "repl:str")
		return !ok
	}, "del not propagated")

	// INFO报告从节点角色
	infoReply := slave.Exec(nil, utils.ToCmdLine("info", "replication"))
	infoBulk, ok := infoReply.(*protocol.BulkReply)
	if !ok || !strings.Contains(string(infoBulk.Arg), "role:slave") {
		t.Errorf("unexpected info reply: %s", string(infoReply.ToBytes()))
	}

	// 普通客户端对副本的写入被拒绝
	clientConn := connection.NewFakeConn()
	writeReply := slave.Exec(clientConn, utils.ToCmdLine("set", "repl:deny", "v"))
	errReply, ok := writeReply.(protocol.ErrorReply)
	if !ok || !strings.HasPrefix(errReply.Error(), "READONLY") {
		t.Errorf("expect READONLY error, actually %s", string(writeReply.ToBytes()))
	}

	// 解除复制关系后恢复可写
	reply = slave.Exec(conn, utils.ToCmdLine("slaveof", "no", "one"))
	if protocol.IsErrorReply(reply) {
		t.Fatalf("slaveof no one failed: %s", string(reply.ToBytes()))
	}
	writeReply = slave.Exec(clientConn, utils.ToCmdLine("set", "repl:deny", "v"))
	if protocol.IsErrorReply(writeReply) {
		t.Errorf("write after slaveof no one failed: %s", string(writeReply.ToBytes()))
	}
}

func TestWait(t *testing.T) {
	master, port, closeMaster := startMaster(t)
	defer closeMaster()

	slave := database.NewStandaloneServer()
	defer slave.Close()
	slave.Exec(connection.NewFakeConn(), utils.ToCmdLine("slaveof", "127.0.0.1", strconv.Itoa(port)))

	master.Exec(nil, utils.ToCmdLine("set", "wait:key", "v"))
	waitUntil(t, 5*time.Second, func() bool {
		v, ok := slaveGet(slave, "wait:key")
		return ok && v == "v"
	}, "replication did not converge")

	// 从节点周期性汇报进度，WAIT最终看到至少一个确认
	reply := master.Exec(nil, utils.ToCmdLine("wait", "1", "3000"))
	intReply, ok := reply.(*protocol.IntReply)
	if !ok {
		t.Fatalf("expect int protocol, actually %s", string(reply.ToBytes()))
	}
	if intReply.Code < 1 {
		t.Errorf("expect at least 1 acked replica, actually %d", intReply.Code)
	}
}
