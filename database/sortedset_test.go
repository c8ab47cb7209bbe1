package database

import (
	"testing"

	"redisGo/redis/protocol"
)

func TestZAddZScore(t *testing.T) {
	db := testDB()
	key := uniqueKey("zset")

	assertIntReply(t, execCmd(db, "zadd", key, "1", "a", "2", "b"), 2)
	// 更新分数不计入新增数量
	assertIntReply(t, execCmd(db, "zadd", key, "10", "a", "3", "c"), 1)
	assertBulkReply(t, execCmd(db, "zscore", key, "a"), "10")
	assertNullBulkReply(t, execCmd(db, "zscore", key, "missing"))
	assertIntReply(t, execCmd(db, "zcard", key), 3)
}

func TestZRank(t *testing.T) {
	db := testDB()
	key := uniqueKey("zset")

	execCmd(db, "zadd", key, "1", "a", "2", "b", "3", "c")
	assertIntReply(t, execCmd(db, "zrank", key, "a"), 0)
	assertIntReply(t, execCmd(db, "zrank", key, "c"), 2)
	assertIntReply(t, execCmd(db, "zrevrank", key, "c"), 0)
	result := execCmd(db, "zrank", key, "missing")
	if _, ok := result.(*protocol.NullBulkReply); !ok {
		t.Errorf("expect null bulk for missing member, actually %s", string(result.ToBytes()))
	}
}

func TestZRange(t *testing.T) {
	db := testDB()
	key := uniqueKey("zset")

	execCmd(db, "zadd", key, "1", "a", "2", "b", "3", "c")
	assertMultiBulkReply(t, execCmd(db, "zrange", key, "0", "-1"), []string{"a", "b", "c"})
	assertMultiBulkReply(t, execCmd(db, "zrange", key, "1", "2"), []string{"b", "c"})
	assertMultiBulkReply(t, execCmd(db, "zrevrange", key, "0", "-1"), []string{"c", "b", "a"})
	assertMultiBulkReply(t, execCmd(db, "zrange", key, "0", "-1", "WITHSCORES"),
		[]string{"a", "1", "b", "2", "c", "3"})
}

func TestZRangeByScore(t *testing.T) {
	db := testDB()
	key := uniqueKey("zset")

	execCmd(db, "zadd", key, "1", "a", "2", "b", "3", "c", "4", "d")
	assertMultiBulkReply(t, execCmd(db, "zrangebyscore", key, "2", "3"), []string{"b", "c"})
	// 开区间
	assertMultiBulkReply(t, execCmd(db, "zrangebyscore", key, "(2", "3"), []string{"c"})
	// 无穷区间
	assertMultiBulkReply(t, execCmd(db, "zrangebyscore", key, "-inf", "+inf"),
		[]string{"a", "b", "c", "d"})
	assertMultiBulkReply(t, execCmd(db, "zrevrangebyscore", key, "3", "2"), []string{"c", "b"})
	// LIMIT
	assertMultiBulkReply(t, execCmd(db, "zrangebyscore", key, "-inf", "+inf", "LIMIT", "1", "2"),
		[]string{"b", "c"})
	assertIntReply(t, execCmd(db, "zcount", key, "2", "3"), 2)
}

func TestZRem(t *testing.T) {
	db := testDB()
	key := uniqueKey("zset")

	execCmd(db, "zadd", key, "1", "a", "2", "b", "3", "c")
	assertIntReply(t, execCmd(db, "zrem", key, "a", "missing"), 1)
	assertIntReply(t, execCmd(db, "zcard", key), 2)

	assertIntReply(t, execCmd(db, "zremrangebyscore", key, "2", "2"), 1)
	assertIntReply(t, execCmd(db, "zcard", key), 1)

	execCmd(db, "zadd", key, "1", "a", "2", "b")
	assertIntReply(t, execCmd(db, "zremrangebyrank", key, "0", "0"), 1)
	assertNullBulkReply(t, execCmd(db, "zscore", key, "a"))
}

func TestZIncrBy(t *testing.T) {
	db := testDB()
	key := uniqueKey("zset")

	assertBulkReply(t, execCmd(db, "zincrby", key, "5", "a"), "5")
	assertBulkReply(t, execCmd(db, "zincrby", key, "2.5", "a"), "7.5")
	assertBulkReply(t, execCmd(db, "zscore", key, "a"), "7.5")
}
