package database

import (
	"redisGo/interface/redis"
	"redisGo/redis/protocol"
)

// execPing returns PONG, or echoes the given message
func execPing(db *DB, args [][]byte) redis.Reply {
	if len(args) == 0 {
		return &protocol.PongReply{}
	} else if len(args) == 1 {
		return protocol.MakeStatusReply(string(args[0]))
	}
	return protocol.MakeErrReply("ERR wrong number of arguments for 'ping' command")
}

// execEcho returns the given message
func execEcho(db *DB, args [][]byte) redis.Reply {
	if len(args) != 1 {
		return protocol.MakeErrReply("ERR wrong number of arguments for 'echo' command")
	}
	return protocol.MakeBulkReply(args[0])
}

func init() {
	RegisterCommand("ping", execPing, noPrepare, nil, -1, flagReadOnly)
	RegisterCommand("echo", execEcho, noPrepare, nil, 2, flagReadOnly)
}
