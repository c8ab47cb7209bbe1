package database

import (
	"testing"

	"redisGo/redis/protocol"
)

func toStringSet(t *testing.T, reply interface{ ToBytes() []byte }) map[string]struct{} {
	t.Helper()
	multi, ok := reply.(*protocol.MultiBulkReply)
	if !ok {
		t.Fatalf("expect multi bulk protocol, actually %s", string(reply.ToBytes()))
	}
	result := make(map[string]struct{})
	for _, arg := range multi.Args {
		result[string(arg)] = struct{}{}
	}
	return result
}

func TestSAddSRem(t *testing.T) {
	db := testDB()
	key := uniqueKey("set")

	assertIntReply(t, execCmd(db, "sadd", key, "a", "b", "c"), 3)
	assertIntReply(t, execCmd(db, "sadd", key, "a", "d"), 1)
	assertIntReply(t, execCmd(db, "scard", key), 4)
	assertIntReply(t, execCmd(db, "sismember", key, "a"), 1)
	assertIntReply(t, execCmd(db, "sismember", key, "z"), 0)

	assertIntReply(t, execCmd(db, "srem", key, "a", "z"), 1)
	assertIntReply(t, execCmd(db, "scard", key), 3)

	// 删光成员后key被移除
	assertIntReply(t, execCmd(db, "srem", key, "b", "c", "d"), 3)
	assertIntReply(t, execCmd(db, "exists", key), 0)
}

func TestSMembers(t *testing.T) {
	db := testDB()
	key := uniqueKey("set")

	execCmd(db, "sadd", key, "a", "b")
	members := toStringSet(t, execCmd(db, "smembers", key))
	if len(members) != 2 {
		t.Fatalf("expect 2 members, actually %d", len(members))
	}
	if _, ok := members["a"]; !ok {
		t.Error("member a missing")
	}
}

func TestSPop(t *testing.T) {
	db := testDB()
	key := uniqueKey("set")

	execCmd(db, "sadd", key, "a", "b", "c")
	popped := toStringSet(t, execCmd(db, "spop", key, "2"))
	if len(popped) != 2 {
		t.Fatalf("expect 2 popped members, actually %d", len(popped))
	}
	assertIntReply(t, execCmd(db, "scard", key), 1)
	for member := range popped {
		assertIntReply(t, execCmd(db, "sismember", key, member), 0)
	}
}

func TestSetCalculate(t *testing.T) {
	db := testDB()
	k1 := uniqueKey("set")
	k2 := uniqueKey("set")
	execCmd(db, "sadd", k1, "a", "b", "c")
	execCmd(db, "sadd", k2, "b", "c", "d")

	inter := toStringSet(t, execCmd(db, "sinter", k1, k2))
	if len(inter) != 2 {
		t.Errorf("unexpected sinter result: %v", inter)
	}
	union := toStringSet(t, execCmd(db, "sunion", k1, k2))
	if len(union) != 4 {
		t.Errorf("unexpected sunion result: %v", union)
	}
	diff := toStringSet(t, execCmd(db, "sdiff", k1, k2))
	if _, ok := diff["a"]; len(diff) != 1 || !ok {
		t.Errorf("unexpected sdiff result: %v", diff)
	}
}

func TestSetCalculateStore(t *testing.T) {
	db := testDB()
	k1 := uniqueKey("set")
	k2 := uniqueKey("set")
	dst := uniqueKey("set")
	execCmd(db, "sadd", k1, "a", "b")
	execCmd(db, "sadd", k2, "b", "c")

	assertIntReply(t, execCmd(db, "sinterstore", dst, k1, k2), 1)
	assertIntReply(t, execCmd(db, "sismember", dst, "b"), 1)

	assertIntReply(t, execCmd(db, "sunionstore", dst, k1, k2), 3)
	assertIntReply(t, execCmd(db, "scard", dst), 3)

	// 交集为空时destination被删除
	k3 := uniqueKey("set")
	execCmd(db, "sadd", k3, "x")
	assertIntReply(t, execCmd(db, "sinterstore", dst, k1, k3), 0)
	assertIntReply(t, execCmd(db, "exists", dst), 0)
}

func TestSRandMember(t *testing.T) {
	db := testDB()
	key := uniqueKey("set")
	execCmd(db, "sadd", key, "a", "b", "c")

	result := execCmd(db, "srandmember", key)
	if _, ok := result.(*protocol.BulkReply); !ok {
		t.Fatalf("expect bulk protocol, actually %s", string(result.ToBytes()))
	}
	// 正数count返回不重复成员
	distinct := toStringSet(t, execCmd(db, "srandmember", key, "2"))
	if len(distinct) != 2 {
		t.Errorf("expect 2 distinct members, actually %d", len(distinct))
	}
	// 负数count允许重复
	repeated := execCmd(db, "srandmember", key, "-5")
	multi, ok := repeated.(*protocol.MultiBulkReply)
	if !ok || len(multi.Args) != 5 {
		t.Errorf("unexpected srandmember -5 result: %s", string(repeated.ToBytes()))
	}
	// 集合大小不够时正数count截断
	truncated := toStringSet(t, execCmd(db, "srandmember", key, "10"))
	if len(truncated) != 3 {
		t.Errorf("expect 3 members, actually %d", len(truncated))
	}
}
