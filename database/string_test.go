package database

import (
	"strconv"
	"testing"
	"time"

	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

func TestSetGet(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")
	value := utils.RandString(10)

	asserts(t, execCmd(db, "set", key, value), protocol.MakeOkReply())
	assertBulkReply(t, execCmd(db, "get", key), value)

	// missing key
	assertNullBulkReply(t, execCmd(db, "get", uniqueKey("missing")))
}

func TestSetNXAndXX(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")
	value := utils.RandString(10)

	// XX on missing key does nothing
	actual := execCmd(db, "set", key, value, "XX")
	assertNullBulkReply(t, actual)
	assertNullBulkReply(t, execCmd(db, "get", key))

	// NX sets missing key
	asserts(t, execCmd(db, "set", key, value, "NX"), protocol.MakeOkReply())
	// NX fails on existing key
	assertNullBulkReply(t, execCmd(db, "set", key, "other", "NX"))
	assertBulkReply(t, execCmd(db, "get", key), value)

	// XX overwrites existing key
	value2 := utils.RandString(10)
	asserts(t, execCmd(db, "set", key, value2, "XX"), protocol.MakeOkReply())
	assertBulkReply(t, execCmd(db, "get", key), value2)

	// NX与XX互斥
	result := execCmd(db, "set", key, value, "NX", "XX")
	if _, ok := result.(protocol.ErrorReply); !ok {
		t.Error("expect syntax error")
	}
}

func TestSetEXOverwritesTTL(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	asserts(t, execCmd(db, "set", key, "v", "EX", "1000"), protocol.MakeOkReply())
	ttl := execCmd(db, "ttl", key)
	intResult, ok := ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 || intResult.Code > 1000 {
		t.Errorf("unexpected ttl %s", string(ttl.ToBytes()))
	}

	// 不带TTL的set清除原TTL
	asserts(t, execCmd(db, "set", key, "v2"), protocol.MakeOkReply())
	assertIntReply(t, execCmd(db, "ttl", key), -1)

	// KEEPTTL保留原TTL
	asserts(t, execCmd(db, "set", key, "v3", "EX", "1000"), protocol.MakeOkReply())
	asserts(t, execCmd(db, "set", key, "v4", "KEEPTTL"), protocol.MakeOkReply())
	ttl = execCmd(db, "ttl", key)
	intResult, ok = ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 {
		t.Errorf("keepttl lost ttl: %s", string(ttl.ToBytes()))
	}
}

func TestSetAbsoluteExpire(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	// EXAT以秒级unix时间戳设定过期时刻
	at := time.Now().Add(1000 * time.Second).Unix()
	asserts(t, execCmd(db, "set", key, "v", "EXAT", strconv.FormatInt(at, 10)), protocol.MakeOkReply())
	ttl := execCmd(db, "ttl", key)
	intResult, ok := ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 || intResult.Code > 1000 {
		t.Errorf("unexpected ttl %s", string(ttl.ToBytes()))
	}

	// PXAT以毫秒级unix时间戳设定过期时刻
	key2 := uniqueKey("str")
	atMs := time.Now().Add(500 * time.Second).UnixNano() / 1e6
	asserts(t, execCmd(db, "set", key2, "v", "PXAT", strconv.FormatInt(atMs, 10)), protocol.MakeOkReply())
	ttl = execCmd(db, "ttl", key2)
	intResult, ok = ttl.(*protocol.IntReply)
	if !ok || intResult.Code <= 0 || intResult.Code > 500 {
		t.Errorf("unexpected ttl %s", string(ttl.ToBytes()))
	}

	// EX与EXAT互斥
	result := execCmd(db, "set", key, "v", "EX", "10", "EXAT", strconv.FormatInt(at, 10))
	if _, ok := result.(protocol.ErrorReply); !ok {
		t.Error("expect syntax error")
	}
}

func TestSetNX(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")
	assertIntReply(t, execCmd(db, "setnx", key, "a"), 1)
	assertIntReply(t, execCmd(db, "setnx", key, "b"), 0)
	assertBulkReply(t, execCmd(db, "get", key), "a")
}

func TestMSetMGet(t *testing.T) {
	db := testDB()
	k1 := uniqueKey("str")
	k2 := uniqueKey("str")
	asserts(t, execCmd(db, "mset", k1, "v1", k2, "v2"), protocol.MakeOkReply())
	assertMultiBulkReply(t, execCmd(db, "mget", k1, k2), []string{"v1", "v2"})

	// msetnx fails if any key exists
	k3 := uniqueKey("str")
	assertIntReply(t, execCmd(db, "msetnx", k1, "x", k3, "y"), 0)
	assertIntReply(t, execCmd(db, "exists", k3), 0)
	assertIntReply(t, execCmd(db, "msetnx", k3, "y"), 1)
}

func TestIncrDecr(t *testing.T) {
	db := testDB()
	key := uniqueKey("counter")

	for i := 1; i <= 5; i++ {
		assertIntReply(t, execCmd(db, "incr", key), int64(i))
	}
	assertIntReply(t, execCmd(db, "incrby", key, "5"), 10)
	assertIntReply(t, execCmd(db, "decrby", key, "3"), 7)
	assertIntReply(t, execCmd(db, "decr", key), 6)
	assertBulkReply(t, execCmd(db, "get", key), "6")

	// 非数字值
	key2 := uniqueKey("str")
	execCmd(db, "set", key2, "not-a-number")
	assertErrReply(t, execCmd(db, "incr", key2), "ERR value is not an integer or out of range")
}

func TestIncrConcurrency(t *testing.T) {
	db := testDB()
	key := uniqueKey("counter")
	loops := 100
	workers := 4
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < loops; j++ {
				execCmd(db, "incr", key)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
	assertBulkReply(t, execCmd(db, "get", key), strconv.Itoa(loops*workers))
}

func TestGetSet(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	assertNullBulkReply(t, execCmd(db, "getset", key, "a"))
	assertBulkReply(t, execCmd(db, "getset", key, "b"), "a")
	assertBulkReply(t, execCmd(db, "get", key), "b")
}

func TestStrLenAppend(t *testing.T) {
	db := testDB()
	key := uniqueKey("str")

	assertIntReply(t, execCmd(db, "strlen", key), 0)
	assertIntReply(t, execCmd(db, "append", key, "abc"), 3)
	assertIntReply(t, execCmd(db, "append", key, "de"), 5)
	assertIntReply(t, execCmd(db, "strlen", key), 5)
	assertBulkReply(t, execCmd(db, "get", key), "abcde")
}

func TestWrongTypeError(t *testing.T) {
	db := testDB()
	key := uniqueKey("list")
	execCmd(db, "rpush", key, "a")
	result := execCmd(db, "get", key)
	if _, ok := result.(*protocol.WrongTypeErrReply); !ok {
		t.Errorf("expect wrong type error, actually %s", string(result.ToBytes()))
	}
}
