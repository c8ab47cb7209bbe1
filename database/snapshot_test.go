package database

import (
	"testing"

	"redisGo/aof"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

func populateAllTypes(t *testing.T, server *Server) {
	t.Helper()
	db := server.mustSelectDB(0)
	execCmd(db, "set", "snap:str", "hello")
	execCmd(db, "set", "snap:ttl", "expiring", "EX", "1000")
	execCmd(db, "rpush", "snap:list", "a", "b", "c")
	execCmd(db, "hmset", "snap:hash", "f1", "v1", "f2", "v2")
	execCmd(db, "sadd", "snap:set", "x", "y")
	execCmd(db, "zadd", "snap:zset", "1", "one", "2", "two")
	// 第二个db验证select被正确重放
	db1 := server.mustSelectDB(1)
	execCmd(db1, "set", "snap:other", "db1")
}

func TestSnapshotRoundTrip(t *testing.T) {
	source := NewStandaloneServer()
	defer source.Close()
	populateAllTypes(t, source)

	data := source.Snapshot()

	target := NewStandaloneServer()
	defer target.Close()
	if err := target.LoadSnapshot(data); err != nil {
		t.Fatal(err)
	}

	db := target.mustSelectDB(0)
	assertBulkReply(t, execCmd(db, "get", "snap:str"), "hello")
	assertMultiBulkReply(t, execCmd(db, "lrange", "snap:list", "0", "-1"), []string{"a", "b", "c"})
	assertBulkReply(t, execCmd(db, "hget", "snap:hash", "f1"), "v1")
	assertIntReply(t, execCmd(db, "sismember", "snap:set", "x"), 1)
	assertBulkReply(t, execCmd(db, "zscore", "snap:zset", "two"), "2")
	assertMultiBulkReply(t, execCmd(db, "zrange", "snap:zset", "0", "-1"), []string{"one", "two"})

	// 过期时间以绝对时刻恢复
	assertBulkReply(t, execCmd(db, "get", "snap:ttl"), "expiring")
	ttl := execCmd(db, "ttl", "snap:ttl")
	ttlInt, ok := ttl.(*protocol.IntReply)
	if !ok || ttlInt.Code <= 0 || ttlInt.Code > 1000 {
		t.Errorf("ttl not restored: %s", string(ttl.ToBytes()))
	}

	db1 := target.mustSelectDB(1)
	assertBulkReply(t, execCmd(db1, "get", "snap:other"), "db1")
}

// 装载快照前先清空本地数据
func TestLoadSnapshotFlushesExisting(t *testing.T) {
	source := NewStandaloneServer()
	defer source.Close()
	source.mustSelectDB(0).Exec(nil, utils.ToCmdLine("set", "snap:str", "v"))
	data := source.Snapshot()

	target := NewStandaloneServer()
	defer target.Close()
	target.mustSelectDB(0).Exec(nil, utils.ToCmdLine("set", "stale:key", "old"))
	if err := target.LoadSnapshot(data); err != nil {
		t.Fatal(err)
	}
	db := target.mustSelectDB(0)
	assertNullBulkReply(t, execCmd(db, "get", "stale:key"))
	assertBulkReply(t, execCmd(db, "get", "snap:str"), "v")
}

func TestCorruptedSnapshot(t *testing.T) {
	source := NewStandaloneServer()
	defer source.Close()
	source.mustSelectDB(0).Exec(nil, utils.ToCmdLine("set", "snap:str", "v"))
	data := source.Snapshot()

	target := NewStandaloneServer()
	defer target.Close()

	// 篡改正文导致校验和不匹配
	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	corrupted[len(corrupted)-1] ^= 0xff
	if err := target.LoadSnapshot(corrupted); err != aof.ErrSnapshotChecksum {
		t.Errorf("expect checksum error, actually %v", err)
	}

	// 魔数损坏
	copy(corrupted, data)
	corrupted[0] = 'X'
	if err := target.LoadSnapshot(corrupted); err != aof.ErrSnapshotFormat {
		t.Errorf("expect format error, actually %v", err)
	}

	// 截断的快照
	if err := target.LoadSnapshot(data[:8]); err != aof.ErrSnapshotFormat {
		t.Errorf("expect format error on truncated data, actually %v", err)
	}
}
