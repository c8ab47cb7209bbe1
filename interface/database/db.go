package database

import (
	"time"

	"redisGo/interface/redis"
)

// CmdLine 表示一行命令
type CmdLine = [][]byte

// DB 是面向连接处理层的存储引擎抽象
type DB interface {
	Exec(client redis.Connection, cmdLine [][]byte) redis.Reply
	AfterClientClose(c redis.Connection)
	Close()
}

// DBEngine 是功能更完整的存储引擎抽象，事务、AOF重写与复制需要这些能力
type DBEngine interface {
	DB
	ExecWithLock(conn redis.Connection, cmdLine [][]byte) redis.Reply
	ExecMulti(conn redis.Connection, watching map[string]uint32, cmdLines []CmdLine) redis.Reply
	GetUndoLogs(dbIndex int, cmdLine [][]byte) []CmdLine
	ForEach(dbIndex int, cb func(key string, data *DataEntity, expiration *time.Time) bool)
	RWLocks(dbIndex int, writeKeys []string, readKeys []string)
	RWUnLocks(dbIndex int, writeKeys []string, readKeys []string)
	GetDBSize(dbIndex int) (int, int)
}

// DataEntity 存储绑定在key上的值，包括string、list、hash、set、zset
type DataEntity struct {
	Data interface{}
}
