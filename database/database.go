package database

import (
	"strings"
	"time"

	"redisGo/datastruct/dict"
	"redisGo/datastruct/lock"
	"redisGo/interface/database"
	"redisGo/interface/redis"
	"redisGo/lib/logger"
	"redisGo/lib/timewheel"
	"redisGo/redis/protocol"
)

/*
	database.go 表示一个数据库实体（一个逻辑keyspace）
*/

const (
	dataDictSize = 1 << 16
	ttlDictSize  = 1 << 10
	lockerSize   = 1024

	// 后台清扫每轮随机抽样的带过期时间的key数量
	sweepSampleSize = 20
)

// DB 一个逻辑数据库
type DB struct {
	index int
	// key -> DataEntity
	data dict.Dict
	// key -> expireTime (time.Time)
	ttlMap dict.Dict
	// key -> version(uint32)，每次写操作递增，用于乐观事务的冲突检测
	versionMap dict.Dict

	// dict.Dict保证了单个方法的并发安全
	// locker用于需要锁住多个key的复合命令，例如rpush、incr、事务等
	locker *lock.Locks

	// 写命令提交后的传播回调，持有key锁时调用，保证传播顺序与执行顺序一致
	addAof func(CmdLine)

	// 阻塞命令的等待者登记表
	blocking *keyEventBoard
}

// CmdLine 表示一行命令，命令行是多个参数，所以使用二维字节数组
type CmdLine = [][]byte

// ExecFunc is interface for command executor, args don't include cmd line
type ExecFunc func(db *DB, args [][]byte) redis.Reply

// PreFunc 在加锁之前分析命令行
// returns related write keys and read keys
type PreFunc func(args [][]byte) ([]string, []string)

// UndoFunc returns undo logs for the given command line
// execute from head to tail when undo
type UndoFunc func(db *DB, args [][]byte) []CmdLine

// makeDB create DB instance
func makeDB() *DB {
	db := &DB{
		data:       dict.MakeConcurrent(dataDictSize),
		ttlMap:     dict.MakeConcurrent(ttlDictSize),
		versionMap: dict.MakeConcurrent(dataDictSize),
		locker:     lock.Make(lockerSize),
		addAof:     func(line CmdLine) {},
		blocking:   makeKeyEventBoard(),
	}
	return db
}

// makeBasicDB 创建一个使用简单数据结构的DB，用于AOF加载等单协程场景
func makeBasicDB() *DB {
	db := &DB{
		data:       dict.MakeSimple(),
		ttlMap:     dict.MakeSimple(),
		versionMap: dict.MakeSimple(),
		locker:     lock.Make(1),
		addAof:     func(line CmdLine) {},
		blocking:   makeKeyEventBoard(),
	}
	return db
}

// Exec 在当前数据库上执行命令
func (db *DB) Exec(c redis.Connection, cmdLine [][]byte) redis.Reply {
	// 事务控制命令以及不允许在事务内执行的命令在这里单独处理
	cmdName := strings.ToLower(string(cmdLine[0]))
	if cmdName == "multi" {
		if len(cmdLine) != 1 {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		return StartMulti(c)
	} else if cmdName == "discard" {
		if len(cmdLine) != 1 {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		return DiscardMulti(c)
	} else if cmdName == "exec" {
		if len(cmdLine) != 1 {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		return execMulti(db, c)
	} else if cmdName == "watch" {
		if !validateArity(-2, cmdLine) {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		return Watch(db, c, cmdLine[1:])
	} else if cmdName == "unwatch" {
		if len(cmdLine) != 1 {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		return UnWatch(c)
	}
	if c != nil && c.InMultiState() {
		// 事务中的普通命令入队，不立即执行
		return EnqueueCmd(c, cmdLine)
	}
	if cmdName == "blpop" || cmdName == "brpop" {
		// 阻塞命令会挂起当前连接的处理协程，不能在普通路径中执行
		if !validateArity(-3, cmdLine) {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		return execBlockingPop(db, c, cmdLine[1:], cmdName == "blpop")
	}

	return db.execNormalCommand(cmdLine)
}

// execNormalCommand 执行不在事务中的普通命令
func (db *DB) execNormalCommand(cmdLine [][]byte) redis.Reply {
	cmdName := strings.ToLower(string(cmdLine[0]))
	cmd, ok := cmdTable[cmdName]
	if !ok {
		return protocol.MakeErrReply("ERR unknown command '" + cmdName + "'")
	}
	if !validateArity(cmd.arity, cmdLine) {
		return protocol.MakeArgNumErrReply(cmdName)
	}

	prepare := cmd.prepare
	write, read := prepare(cmdLine[1:])
	db.addVersion(write...)
	db.RWLocks(write, read)
	defer db.RWUnLocks(write, read)
	fun := cmd.executor
	return fun(db, cmdLine[1:])
}

// execWithLock 执行命令但不获取锁，调用方负责加锁
func (db *DB) execWithLock(cmdLine [][]byte) redis.Reply {
	cmdName := strings.ToLower(string(cmdLine[0]))
	cmd, ok := cmdTable[cmdName]
	if !ok {
		return protocol.MakeErrReply("ERR unknown command '" + cmdName + "'")
	}
	if !validateArity(cmd.arity, cmdLine) {
		return protocol.MakeArgNumErrReply(cmdName)
	}
	fun := cmd.executor
	return fun(db, cmdLine[1:])
}

// validateArity 检查参数数量是否合法
func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

/* ---- Data Access 数据操作入口 ----- */

// GetEntity 返回key绑定的数据实体，读取前先做惰性过期检查
func (db *DB) GetEntity(key string) (*database.DataEntity, bool) {
	raw, ok := db.data.Get(key)
	if !ok {
		return nil, false
	}
	if db.IsExpired(key) {
		return nil, false
	}
	entity, _ := raw.(*database.DataEntity)
	return entity, true
}

// PutEntity 将k-v放入数据库
func (db *DB) PutEntity(key string, entity *database.DataEntity) int {
	return db.data.Put(key, entity)
}

// PutIfExists 仅当key存在时写入
func (db *DB) PutIfExists(key string, entity *database.DataEntity) int {
	return db.data.PutIfExists(key, entity)
}

// PutIfAbsent 仅当key不存在时写入
func (db *DB) PutIfAbsent(key string, entity *database.DataEntity) int {
	return db.data.PutIfAbsent(key, entity)
}

// Remove 移除key及其过期时间
func (db *DB) Remove(key string) {
	db.data.Remove(key)
	db.ttlMap.Remove(key)
	taskKey := genExpireTask(key)
	timewheel.Cancel(taskKey)
}

// Removes 移除一组key，返回实际移除的数量
func (db *DB) Removes(keys ...string) (deleted int) {
	deleted = 0
	for _, key := range keys {
		_, exists := db.data.Get(key)
		if exists {
			db.Remove(key)
			deleted++
		}
	}
	return deleted
}

// Flush 清空数据库
func (db *DB) Flush() {
	db.data.Clear()
	db.ttlMap.Clear()
	db.versionMap.Clear()
}

// RWLocks 对读写key集合加锁
func (db *DB) RWLocks(writeKeys []string, readKeys []string) {
	db.locker.RWLocks(writeKeys, readKeys)
}

// RWUnLocks 释放读写key集合的锁
func (db *DB) RWUnLocks(writeKeys []string, readKeys []string) {
	db.locker.RWUnLocks(writeKeys, readKeys)
}

/* ---- TTL 过期管理 ---- */

// 生成key的过期任务名
func genExpireTask(key string) string {
	return "expire:" + key
}

// Expire 设置key的过期时刻
func (db *DB) Expire(key string, expireTime time.Time) {
	db.ttlMap.Put(key, expireTime)
	taskKey := genExpireTask(key)

	timewheel.At(expireTime, taskKey, func() {
		keys := []string{key}
		db.RWLocks(keys, nil)
		defer db.RWUnLocks(keys, nil)
		// check-lock-check, 等锁期间ttl可能已被更新
		logger.Debug("expire " + key)
		rawExpireTime, ok := db.ttlMap.Get(key)
		if !ok {
			return
		}
		expireTime, _ := rawExpireTime.(time.Time)
		if time.Now().After(expireTime) {
			db.Remove(key)
		}
	})
}

// Persist 取消key的过期时间
func (db *DB) Persist(key string) {
	db.ttlMap.Remove(key)
	taskKey := genExpireTask(key)
	timewheel.Cancel(taskKey)
}

// IsExpired 检查key是否已过期，已过期则顺手删除
func (db *DB) IsExpired(key string) bool {
	rawExpireTime, ok := db.ttlMap.Get(key)
	if !ok {
		return false
	}
	expireTime, _ := rawExpireTime.(time.Time)
	expired := time.Now().After(expireTime)
	if expired {
		db.Remove(key)
	}
	return expired
}

// sweepExpired 随机抽样一批带过期时间的key并清理其中已过期的，
// 保证从未被再次访问的key也能被回收
func (db *DB) sweepExpired() {
	keys := db.ttlMap.RandomDistinctKeys(sweepSampleSize)
	for _, key := range keys {
		db.RWLocks([]string{key}, nil)
		db.IsExpired(key)
		db.RWUnLocks([]string{key}, nil)
	}
}

/* --- version 版本管理 --- */

// addVersion 递增一组key的版本号
func (db *DB) addVersion(keys ...string) {
	for _, key := range keys {
		versionCode := db.GetVersion(key)
		db.versionMap.Put(key, versionCode+1)
	}
}

// GetVersion 返回key当前的版本号
func (db *DB) GetVersion(key string) uint32 {
	entity, ok := db.versionMap.Get(key)
	if !ok {
		return 0
	}
	return entity.(uint32)
}

// ForEach 遍历数据库中的每个key
func (db *DB) ForEach(cb func(key string, data *database.DataEntity, expiration *time.Time) bool) {
	db.data.ForEach(func(key string, raw interface{}) bool {
		entity, _ := raw.(*database.DataEntity)
		var expiration *time.Time
		rawExpireTime, ok := db.ttlMap.Get(key)
		if ok {
			expireTime, _ := rawExpireTime.(time.Time)
			expiration = &expireTime
		}
		return cb(key, entity, expiration)
	})
}
