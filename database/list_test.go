package database

import (
	"testing"
	"time"

	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/connection"
	"redisGo/redis/protocol"
)

func TestPushPop(t *testing.T) {
	db := testDB()
	key := uniqueKey("list")

	assertIntReply(t, execCmd(db, "rpush", key, "a", "b", "c"), 3)
	assertIntReply(t, execCmd(db, "lpush", key, "z"), 4)
	assertMultiBulkReply(t, execCmd(db, "lrange", key, "0", "-1"), []string{"z", "a", "b", "c"})

	assertBulkReply(t, execCmd(db, "lpop", key), "z")
	assertBulkReply(t, execCmd(db, "rpop", key), "c")
	assertIntReply(t, execCmd(db, "llen", key), 2)

	// 弹空后key被删除
	execCmd(db, "lpop", key)
	execCmd(db, "lpop", key)
	assertIntReply(t, execCmd(db, "exists", key), 0)
	assertNullBulkReply(t, execCmd(db, "lpop", key))
}

func TestLIndexLSet(t *testing.T) {
	db := testDB()
	key := uniqueKey("list")

	execCmd(db, "rpush", key, "a", "b", "c")
	assertBulkReply(t, execCmd(db, "lindex", key, "0"), "a")
	assertBulkReply(t, execCmd(db, "lindex", key, "-1"), "c")
	assertNullBulkReply(t, execCmd(db, "lindex", key, "5"))

	assertStatusReply(t, execCmd(db, "lset", key, "1", "B"), "OK")
	assertBulkReply(t, execCmd(db, "lindex", key, "1"), "B")
	assertErrReply(t, execCmd(db, "lset", key, "10", "x"), "ERR index out of range")
	assertErrReply(t, execCmd(db, "lset", uniqueKey("nolist"), "0", "x"), "ERR no such key")
}

func TestLRem(t *testing.T) {
	db := testDB()
	key := uniqueKey("list")

	execCmd(db, "rpush", key, "a", "b", "a", "c", "a")
	assertIntReply(t, execCmd(db, "lrem", key, "2", "a"), 2)
	assertMultiBulkReply(t, execCmd(db, "lrange", key, "0", "-1"), []string{"b", "c", "a"})
	assertIntReply(t, execCmd(db, "lrem", key, "0", "a"), 1)
}

func TestRPopLPush(t *testing.T) {
	db := testDB()
	src := uniqueKey("list")
	dst := uniqueKey("list")

	execCmd(db, "rpush", src, "a", "b")
	assertBulkReply(t, execCmd(db, "rpoplpush", src, dst), "b")
	assertMultiBulkReply(t, execCmd(db, "lrange", dst, "0", "-1"), []string{"b"})
	assertMultiBulkReply(t, execCmd(db, "lrange", src, "0", "-1"), []string{"a"})
}

func TestBLPopImmediate(t *testing.T) {
	db := testDB()
	key := uniqueKey("blist")
	conn := connection.NewFakeConn()

	execCmd(db, "rpush", key, "a")
	result := db.Exec(conn, utils.ToCmdLine("blpop", key, "0"))
	assertMultiBulkReply(t, result, []string{key, "a"})
}

func TestBLPopTimeout(t *testing.T) {
	db := testDB()
	key := uniqueKey("blist")
	conn := connection.NewFakeConn()

	start := time.Now()
	result := db.Exec(conn, utils.ToCmdLine("blpop", key, "0.1"))
	if _, ok := result.(*protocol.NullMultiBulkReply); !ok {
		t.Errorf("expect null multi bulk after timeout, actually %s", string(result.ToBytes()))
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("returned before timeout elapsed")
	}
}

// 先阻塞者先被唤醒，每个元素只交付一个等待者
func TestBLPopFIFO(t *testing.T) {
	db := testDB()
	key := uniqueKey("blist")

	type popResult struct {
		order int
		reply redis.Reply
	}
	results := make(chan popResult, 3)
	startPop := func(order int) {
		conn := connection.NewFakeConn()
		go func() {
			reply := db.Exec(conn, utils.ToCmdLine("blpop", key, "2"))
			results <- popResult{order: order, reply: reply}
		}()
	}
	// 依次挂起三个等待者，间隔保证注册顺序
	startPop(1)
	time.Sleep(50 * time.Millisecond)
	startPop(2)
	time.Sleep(50 * time.Millisecond)
	startPop(3)
	time.Sleep(50 * time.Millisecond)

	execCmd(db, "rpush", key, "x", "y")

	got := make(map[int]string)
	timeout := time.After(3 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			multi, ok := r.reply.(*protocol.MultiBulkReply)
			if !ok {
				t.Fatalf("waiter %d got %s", r.order, string(r.reply.ToBytes()))
			}
			got[r.order] = string(multi.Args[1])
		case <-timeout:
			t.Fatal("waiters not woken")
		}
	}
	// 前两个等待者各拿到一个元素
	if got[1] != "x" || got[2] != "y" {
		t.Errorf("unexpected delivery order: %v", got)
	}
	// 第三个等待者等到超时
	select {
	case r := <-results:
		if _, ok := r.reply.(*protocol.NullMultiBulkReply); !ok {
			t.Errorf("waiter %d should time out, got %s", r.order, string(r.reply.ToBytes()))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("third waiter never returned")
	}
}

// 连接关闭时阻塞命令被取消
func TestBLPopCanceledByClose(t *testing.T) {
	db := testDB()
	key := uniqueKey("blist")
	conn := connection.NewFakeConn()

	done := make(chan redis.Reply, 1)
	go func() {
		done <- db.Exec(conn, utils.ToCmdLine("blpop", key, "0"))
	}()
	time.Sleep(50 * time.Millisecond)
	_ = conn.Close()
	select {
	case reply := <-done:
		if _, ok := reply.(*protocol.NoReply); !ok {
			t.Errorf("expect no reply after close, actually %s", string(reply.ToBytes()))
		}
	case <-time.After(time.Second):
		t.Fatal("blpop not canceled by connection close")
	}
	// 取消后的等待者不再消费元素
	execCmd(db, "rpush", key, "a")
	assertIntReply(t, execCmd(db, "llen", key), 1)
}

func TestBRPop(t *testing.T) {
	db := testDB()
	key := uniqueKey("blist")

	conn := connection.NewFakeConn()
	done := make(chan redis.Reply, 1)
	go func() {
		done <- db.Exec(conn, utils.ToCmdLine("brpop", key, "2"))
	}()
	time.Sleep(50 * time.Millisecond)
	execCmd(db, "rpush", key, "a", "b")
	select {
	case reply := <-done:
		assertMultiBulkReply(t, reply, []string{key, "b"})
	case <-time.After(time.Second):
		t.Fatal("brpop not woken by push")
	}
}
