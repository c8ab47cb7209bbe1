package database

import (
	"strconv"
	"testing"
	"time"

	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

func TestDelExists(t *testing.T) {
	db := testDB()
	k1 := uniqueKey("str")
	k2 := uniqueKey("str")

	execCmd(db, "set", k1, "a")
	execCmd(db, "set", k2, "b")
	assertIntReply(t, execCmd(db, "exists", k1, k2), 2)
	assertIntReply(t, execCmd(db, "del", k1, k2, uniqueKey("missing")), 2)
	assertIntReply(t, execCmd(db, "exists", k1), 0)
}

func TestType(t *testing.T) {
	db := testDB()

	strKey := uniqueKey("str")
	listKey := uniqueKey("list")
	hashKey := uniqueKey("hash")
	setKey := uniqueKey("set")
	zsetKey := uniqueKey("zset")
	execCmd(db, "set", strKey, "a")
	execCmd(db, "rpush", listKey, "a")
	execCmd(db, "hset", hashKey, "f", "v")
	execCmd(db, "sadd", setKey, "a")
	execCmd(db, "zadd", zsetKey, "1", "a")

	assertStatusReply(t, execCmd(db, "type", strKey), "string")
	assertStatusReply(t, execCmd(db, "type", listKey), "list")
	assertStatusReply(t, execCmd(db, "type", hashKey), "hash")
	assertStatusReply(t, execCmd(db, "type", setKey), "set")
	assertStatusReply(t, execCmd(db, "type", zsetKey), "zset")
	assertStatusReply(t, execCmd(db, "type", uniqueKey("missing")), "none")
}

func TestRename(t *testing.T) {
	db := testDB()
	src := uniqueKey("str")
	dst := uniqueKey("str")

	execCmd(db, "set", src, "v", "EX", "1000")
	assertStatusReply(t, execCmd(db, "rename", src, dst), "OK")
	assertIntReply(t, execCmd(db, "exists", src), 0)
	assertBulkReply(t, execCmd(db, "get", dst), "v")
	// TTL跟随key一起改名
	ttl := execCmd(db, "ttl", dst)
	intResult, ok := ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 {
		t.Errorf("ttl lost after rename: %s", string(ttl.ToBytes()))
	}

	assertErrReply(t, execCmd(db, "rename", uniqueKey("missing"), dst), "ERR no such key")
}

// 改名覆盖带TTL的目标key时，旧的过期定时器不能带到新值上
func TestRenameClearsDestTTL(t *testing.T) {
	db := testDB()
	src := uniqueKey("str")
	dst := uniqueKey("str")

	execCmd(db, "set", dst, "old")
	assertIntReply(t, execCmd(db, "pexpire", dst, "50"), 1)
	execCmd(db, "set", src, "new")
	assertStatusReply(t, execCmd(db, "rename", src, dst), "OK")

	assertIntReply(t, execCmd(db, "ttl", dst), -1)
	time.Sleep(100 * time.Millisecond)
	assertBulkReply(t, execCmd(db, "get", dst), "new")
}

func TestRenameNx(t *testing.T) {
	db := testDB()
	src := uniqueKey("str")
	dst := uniqueKey("str")

	execCmd(db, "set", src, "v")
	execCmd(db, "set", dst, "w")
	assertIntReply(t, execCmd(db, "renamenx", src, dst), 0)
	assertBulkReply(t, execCmd(db, "get", dst), "w")

	dst2 := uniqueKey("str")
	assertIntReply(t, execCmd(db, "renamenx", src, dst2), 1)
	assertBulkReply(t, execCmd(db, "get", dst2), "v")
}

func TestExpireTTLPersist(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	// 不存在的key
	assertIntReply(t, execCmd(db, "ttl", uniqueKey("missing")), -2)
	assertIntReply(t, execCmd(db, "expire", uniqueKey("missing"), "10"), 0)

	execCmd(db, "set", key, "v")
	assertIntReply(t, execCmd(db, "ttl", key), -1)
	assertIntReply(t, execCmd(db, "expire", key, "1000"), 1)
	ttl := execCmd(db, "ttl", key)
	intResult, ok := ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 || intResult.Code > 1000 {
		t.Errorf("unexpected ttl: %s", string(ttl.ToBytes()))
	}
	pttl := execCmd(db, "pttl", key)
	intResult, ok = pttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 || intResult.Code > 1000*1000 {
		t.Errorf("unexpected pttl: %s", string(pttl.ToBytes()))
	}

	assertIntReply(t, execCmd(db, "persist", key), 1)
	assertIntReply(t, execCmd(db, "ttl", key), -1)
	assertIntReply(t, execCmd(db, "persist", key), 0)
}

func TestExpireAt(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	execCmd(db, "set", key, "v")
	expireAt := time.Now().Add(time.Hour).Unix()
	assertIntReply(t, execCmd(db, "expireat", key, strconv.FormatInt(expireAt, 10)), 1)
	ttl := execCmd(db, "ttl", key)
	intResult, ok := ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 || intResult.Code > 3600 {
		t.Errorf("unexpected ttl: %s", string(ttl.ToBytes()))
	}
}

// 已过期的key在下一次读取时被当作不存在
func TestLazyExpiration(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	execCmd(db, "set", key, "v")
	assertIntReply(t, execCmd(db, "pexpire", key, "50"), 1)
	assertBulkReply(t, execCmd(db, "get", key), "v")
	time.Sleep(80 * time.Millisecond)
	assertNullBulkReply(t, execCmd(db, "get", key))
	assertIntReply(t, execCmd(db, "exists", key), 0)
}

func TestKeys(t *testing.T) {
	db := testDB()
	prefix := utils.RandString(10)
	execCmd(db, "set", prefix+":a", "1")
	execCmd(db, "set", prefix+":b", "2")
	execCmd(db, "set", prefix+"x", "3")

	result := execCmd(db, "keys", prefix+":*")
	multi, ok := result.(*protocol.MultiBulkReply)
	if !ok {
		t.Fatalf("expect multi bulk protocol, actually %s", string(result.ToBytes()))
	}
	if len(multi.Args) != 2 {
		t.Errorf("expect 2 keys, actually %d", len(multi.Args))
	}
}

// KEYS遇到已过期但尚未被清理的key时不能卡死，且结果中不包含它
func TestKeysWithExpiredKey(t *testing.T) {
	db := testDB()
	prefix := utils.RandString(10)
	execCmd(db, "set", prefix+":live", "1")
	execCmd(db, "set", prefix+":dead", "2")
	execCmd(db, "pexpire", prefix+":dead", "10")
	time.Sleep(50 * time.Millisecond)

	done := make(chan redis.Reply, 1)
	go func() {
		done <- execCmd(db, "keys", prefix+":*")
	}()
	select {
	case result := <-done:
		multi, ok := result.(*protocol.MultiBulkReply)
		if !ok {
			t.Fatalf("expect multi bulk protocol, actually %s", string(result.ToBytes()))
		}
		if len(multi.Args) != 1 || string(multi.Args[0]) != prefix+":live" {
			t.Errorf("unexpected keys result: %s", string(result.ToBytes()))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("keys blocked on expired key")
	}
	// 过期key已被顺手清理
	assertIntReply(t, execCmd(db, "exists", prefix+":dead"), 0)
}
