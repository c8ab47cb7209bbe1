package pubsub

import (
	"redisGo/datastruct/dict"
	"redisGo/datastruct/lock"
)

// Hub 保存发布订阅的全部状态
type Hub struct {
	// subs channel -> list(*Connection)
	subs dict.Dict
	// psubs pattern -> list(*Connection)
	psubs dict.Dict
	// subsLocker 锁定channel/pattern，防止并发修改订阅链表
	subsLocker *lock.Locks
}

// MakeHub creates new hub
func MakeHub() *Hub {
	return &Hub{
		subs:       dict.MakeConcurrent(4),
		psubs:      dict.MakeConcurrent(4),
		subsLocker: lock.Make(16),
	}
}
