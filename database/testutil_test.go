package database

import (
	"fmt"
	"testing"

	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

// testServer 供本包内各测试共享的引擎实例，测试之间用不同的key避免互相干扰
var testServer = NewStandaloneServer()

func testDB() *DB {
	return testServer.mustSelectDB(0)
}

func execCmd(db *DB, cmd ...string) redis.Reply {
	return db.Exec(nil, utils.ToCmdLine(cmd...))
}

func asserts(t *testing.T, actual redis.Reply, expected redis.Reply) {
	t.Helper()
	if !utils.BytesEquals(actual.ToBytes(), expected.ToBytes()) {
		t.Errorf("expect %s, actually %s", string(expected.ToBytes()), string(actual.ToBytes()))
	}
}

func assertIntReply(t *testing.T, actual redis.Reply, expected int64) {
	t.Helper()
	intResult, ok := actual.(*protocol.IntReply)
	if !ok {
		t.Errorf("expect int protocol, actually %s", string(actual.ToBytes()))
		return
	}
	if intResult.Code != expected {
		t.Errorf("expect %d, actually %d", expected, intResult.Code)
	}
}

func assertBulkReply(t *testing.T, actual redis.Reply, expected string) {
	t.Helper()
	bulkReply, ok := actual.(*protocol.BulkReply)
	if !ok {
		t.Errorf("expect bulk protocol, actually %s", string(actual.ToBytes()))
		return
	}
	if string(bulkReply.Arg) != expected {
		t.Errorf("expect %s, actually %s", expected, string(bulkReply.Arg))
	}
}

func assertStatusReply(t *testing.T, actual redis.Reply, expected string) {
	t.Helper()
	statusReply, ok := actual.(*protocol.StatusReply)
	if ok {
		if statusReply.Status != expected {
			t.Errorf("expect %s, actually %s", expected, statusReply.Status)
		}
		return
	}
	if expected == "OK" {
		if _, ok := actual.(*protocol.OkReply); ok {
			return
		}
	}
	t.Errorf("expect status protocol, actually %s", string(actual.ToBytes()))
}

func assertErrReply(t *testing.T, actual redis.Reply, expected string) {
	t.Helper()
	errReply, ok := actual.(protocol.ErrorReply)
	if !ok {
		t.Errorf("expect err protocol, actually %s", string(actual.ToBytes()))
		return
	}
	if errReply.Error() != expected {
		t.Errorf("expect %s, actually %s", expected, errReply.Error())
	}
}

func assertNullBulkReply(t *testing.T, actual redis.Reply) {
	t.Helper()
	if _, ok := actual.(*protocol.NullBulkReply); !ok {
		t.Errorf("expect null bulk protocol, actually %s", string(actual.ToBytes()))
	}
}

func assertMultiBulkReply(t *testing.T, actual redis.Reply, expected []string) {
	t.Helper()
	multiBulk, ok := actual.(*protocol.MultiBulkReply)
	if !ok {
		t.Errorf("expect multi bulk protocol, actually %s", string(actual.ToBytes()))
		return
	}
	if len(multiBulk.Args) != len(expected) {
		t.Errorf("expect %d elements, actually %d", len(expected), len(multiBulk.Args))
		return
	}
	for i, v := range multiBulk.Args {
		str := string(v)
		if str != expected[i] {
			t.Errorf("expect %s, actually %s", expected[i], str)
		}
	}
}

func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s:%s", prefix, utils.RandString(10))
}
