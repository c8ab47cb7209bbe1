package database

import (
	"testing"

	"redisGo/lib/utils"
	"redisGo/redis/connection"
	"redisGo/redis/protocol"
)

func TestMultiExec(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")

	assertStatusReply(t, db.Exec(conn, utils.ToCmdLine("multi")), "OK")
	asserts(t, db.Exec(conn, utils.ToCmdLine("set", key, "v")), protocol.MakeQueuedReply())
	asserts(t, db.Exec(conn, utils.ToCmdLine("get", key)), protocol.MakeQueuedReply())
	// 入队阶段不执行
	assertNullBulkReply(t, execCmd(db, "get", key))

	result := db.Exec(conn, utils.ToCmdLine("exec"))
	raw, ok := result.(*protocol.MultiRawReply)
	if !ok {
		t.Fatalf("expect multi raw protocol, actually %s", string(result.ToBytes()))
	}
	if len(raw.Replies) != 2 {
		t.Fatalf("expect 2 replies, actually %d", len(raw.Replies))
	}
	assertBulkReply(t, raw.Replies[1], "v")
	assertBulkReply(t, execCmd(db, "get", key), "v")
	// 事务结束后回到普通状态
	if conn.InMultiState() {
		t.Error("connection still in multi state after exec")
	}
}

func TestExecWithoutMulti(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	assertErrReply(t, db.Exec(conn, utils.ToCmdLine("exec")), "ERR EXEC without MULTI")
	assertErrReply(t, db.Exec(conn, utils.ToCmdLine("discard")), "ERR DISCARD without MULTI")
}

func TestNestedMulti(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	db.Exec(conn, utils.ToCmdLine("multi"))
	assertErrReply(t, db.Exec(conn, utils.ToCmdLine("multi")), "ERR MULTI calls can not be nested")
	db.Exec(conn, utils.ToCmdLine("discard"))
}

func TestDiscard(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")

	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("set", key, "v"))
	assertStatusReply(t, db.Exec(conn, utils.ToCmdLine("discard")), "OK")
	assertNullBulkReply(t, execCmd(db, "get", key))
	if conn.InMultiState() {
		t.Error("connection still in multi state after discard")
	}
}

// 入队阶段发现的错误使整个事务被拒绝
func TestExecAbortOnQueueError(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")

	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("set", key, "v"))
	result := db.Exec(conn, utils.ToCmdLine("notacommand", "x"))
	if _, ok := result.(protocol.ErrorReply); !ok {
		t.Fatalf("expect error on unknown command, actually %s", string(result.ToBytes()))
	}
	assertErrReply(t, db.Exec(conn, utils.ToCmdLine("exec")),
		"EXECABORT Transaction discarded because of previous errors.")
	// 队列中的合法命令也不执行
	assertNullBulkReply(t, execCmd(db, "get", key))
}

// 执行途中出错时已生效的命令被回滚
func TestExecRollback(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")
	execCmd(db, "set", key, "old")

	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("set", key, "new"))
	db.Exec(conn, utils.ToCmdLine("rename", uniqueKey("missing"), uniqueKey("dst")))
	result := db.Exec(conn, utils.ToCmdLine("exec"))
	if _, ok := result.(protocol.ErrorReply); !ok {
		t.Fatalf("expect error protocol, actually %s", string(result.ToBytes()))
	}
	assertBulkReply(t, execCmd(db, "get", key), "old")
}

// WATCH的key在EXEC前被其他客户端修改时事务放弃执行
func TestWatchConflict(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")
	execCmd(db, "set", key, "base")

	assertStatusReply(t, db.Exec(conn, utils.ToCmdLine("watch", key)), "OK")
	// 另一个客户端写入被watch的key
	execCmd(db, "set", key, "changed")

	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("set", key, "from-tx"))
	result := db.Exec(conn, utils.ToCmdLine("exec"))
	if _, ok := result.(*protocol.NullMultiBulkReply); !ok {
		t.Fatalf("expect null multi bulk on conflict, actually %s", string(result.ToBytes()))
	}
	// 事务未生效，丢失更新被阻止
	assertBulkReply(t, execCmd(db, "get", key), "changed")
}

func TestWatchNoConflict(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")
	execCmd(db, "set", key, "base")

	db.Exec(conn, utils.ToCmdLine("watch", key))
	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("set", key, "from-tx"))
	result := db.Exec(conn, utils.ToCmdLine("exec"))
	if _, ok := result.(*protocol.MultiRawReply); !ok {
		t.Fatalf("expect multi raw protocol, actually %s", string(result.ToBytes()))
	}
	assertBulkReply(t, execCmd(db, "get", key), "from-tx")
}

func TestWatchInsideMulti(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")

	db.Exec(conn, utils.ToCmdLine("multi"))
	assertErrReply(t, db.Exec(conn, utils.ToCmdLine("watch", key)),
		"ERR WATCH inside MULTI is not allowed")
	db.Exec(conn, utils.ToCmdLine("discard"))
}

func TestUnwatch(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("str")
	execCmd(db, "set", key, "base")

	db.Exec(conn, utils.ToCmdLine("watch", key))
	execCmd(db, "set", key, "changed")
	assertStatusReply(t, db.Exec(conn, utils.ToCmdLine("unwatch")), "OK")

	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("set", key, "from-tx"))
	result := db.Exec(conn, utils.ToCmdLine("exec"))
	if _, ok := result.(*protocol.MultiRawReply); !ok {
		t.Fatalf("expect multi raw protocol after unwatch, actually %s", string(result.ToBytes()))
	}
	assertBulkReply(t, execCmd(db, "get", key), "from-tx")
}

// 事务内的BLPOP不阻塞，队列为空时直接返回空
func TestBLPopInMulti(t *testing.T) {
	db := testDB()
	conn := connection.NewFakeConn()
	key := uniqueKey("blist")

	db.Exec(conn, utils.ToCmdLine("multi"))
	asserts(t, db.Exec(conn, utils.ToCmdLine("blpop", key, "0")), protocol.MakeQueuedReply())
	result := db.Exec(conn, utils.ToCmdLine("exec"))
	raw, ok := result.(*protocol.MultiRawReply)
	if !ok {
		t.Fatalf("expect multi raw protocol, actually %s", string(result.ToBytes()))
	}
	if _, ok := raw.Replies[0].(*protocol.NullMultiBulkReply); !ok {
		t.Errorf("expect null multi bulk inside transaction, actually %s", string(raw.Replies[0].ToBytes()))
	}

	// 有元素时立即弹出
	execCmd(db, "rpush", key, "a")
	db.Exec(conn, utils.ToCmdLine("multi"))
	db.Exec(conn, utils.ToCmdLine("blpop", key, "0"))
	result = db.Exec(conn, utils.ToCmdLine("exec"))
	raw, ok = result.(*protocol.MultiRawReply)
	if !ok {
		t.Fatalf("expect multi raw protocol, actually %s", string(result.ToBytes()))
	}
	assertMultiBulkReply(t, raw.Replies[0], []string{key, "a"})
}
