package database

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"redisGo/aof"
	"redisGo/config"
	"redisGo/interface/database"
	"redisGo/interface/redis"
	"redisGo/lib/logger"
	"redisGo/lib/utils"
	"redisGo/pubsub"
	"redisGo/redis/connection"
	"redisGo/redis/protocol"
)

/*
	Server 是一个完整的存储引擎实例：多个逻辑db、发布订阅、
	AOF持久化与主从复制都在这一层拼装
*/

const (
	// 后台过期清扫的周期
	expiryCycleInterval = 100 * time.Millisecond
	// 从节点向主节点汇报进度的周期
	replCronInterval = time.Second
)

// Server is a redis-server with full capabilities including multiple database, aof and replication
type Server struct {
	dbSet []*atomic.Value // *DB

	// 发布订阅
	hub *pubsub.Hub
	// AOF持久化
	persister *aof.Persister

	// 主从复制
	role        int32 // masterRole / slaveRole
	master      *masterStatus
	slaveStatus *slaveStatus

	closed    chan struct{}
	closeOnce sync.Once
}

// NewStandaloneServer creates a standalone redis server
func NewStandaloneServer() *Server {
	server := &Server{
		closed: make(chan struct{}),
	}
	if config.Properties.Databases == 0 {
		config.Properties.Databases = 16
	}
	server.dbSet = make([]*atomic.Value, config.Properties.Databases)
	for i := range server.dbSet {
		singleDB := makeDB()
		singleDB.index = i
		holder := &atomic.Value{}
		holder.Store(singleDB)
		server.dbSet[i] = holder
	}
	server.hub = pubsub.MakeHub()
	server.master = newMasterStatus()
	server.slaveStatus = initSlaveStatus()

	if config.Properties.AppendOnly {
		// 先重放已有的AOF文件再开始接收新命令
		persister, err := aof.NewPersister(server,
			config.Properties.AppendFilename, true, config.Properties.AppendFsync,
			func() database.DBEngine {
				return MakeAuxiliaryServer()
			})
		if err != nil {
			logger.Fatal(err)
		}
		server.persister = persister
	}
	server.bindPropagation()

	if config.Properties.ReplicaOf != "" {
		host, portStr, ok := splitAddr(config.Properties.ReplicaOf)
		port, err := strconv.Atoi(portStr)
		if !ok || err != nil {
			logger.Fatal("invalid replicaof address: " + config.Properties.ReplicaOf)
		} else {
			server.setupMaster(host, port)
		}
	}

	go server.backgroundCron()
	return server
}

// MakeAuxiliaryServer 创建不带持久化与复制的轻量实例，用于AOF重写时的临时重放
func MakeAuxiliaryServer() *Server {
	server := &Server{}
	server.dbSet = make([]*atomic.Value, config.Properties.Databases)
	for i := range server.dbSet {
		singleDB := makeBasicDB()
		singleDB.index = i
		holder := &atomic.Value{}
		holder.Store(singleDB)
		server.dbSet[i] = holder
	}
	server.master = newMasterStatus()
	server.slaveStatus = initSlaveStatus()
	server.closed = make(chan struct{})
	return server
}

func splitAddr(addr string) (host string, port string, ok bool) {
	idx := strings.LastIndex(addr, ":")
	if idx <= 0 || idx == len(addr)-1 {
		return "", "", false
	}
	return addr[:idx], addr[idx+1:], true
}

// bindPropagation 把每个db的写传播回调接到AOF与复制积压缓冲区上。
// 回调在持有key锁期间被调用，因此传播顺序与执行顺序一致。
func (server *Server) bindPropagation() {
	for _, holder := range server.dbSet {
		singleDB := holder.Load().(*DB)
		singleDB.addAof = func(line CmdLine) {
			if config.Properties.AppendOnly && server.persister != nil {
				server.persister.SaveCmdLine(singleDB.index, line)
			}
			server.propagate(singleDB.index, line)
		}
	}
}

// backgroundCron 周期性任务：过期key清扫与复制进度汇报
func (server *Server) backgroundCron() {
	expiryTicker := time.NewTicker(expiryCycleInterval)
	replTicker := time.NewTicker(replCronInterval)
	defer func() {
		expiryTicker.Stop()
		replTicker.Stop()
	}()
	for {
		select {
		case <-server.closed:
			return
		case <-expiryTicker.C:
			for _, holder := range server.dbSet {
				db := holder.Load().(*DB)
				db.sweepExpired()
			}
		case <-replTicker.C:
			if atomic.LoadInt32(&server.role) == slaveRole {
				server.slaveCron()
			}
		}
	}
}

// Exec executes command
// parameter `cmdLine` contains command and its arguments, for example: "set key value"
func (server *Server) Exec(c redis.Connection, cmdLine [][]byte) (result redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			logger.Warn(fmt.Sprintf("error occurs: %v\n%s", err, string(debug.Stack())))
			result = &protocol.UnknownErrReply{}
		}
	}()

	cmdName := strings.ToLower(string(cmdLine[0]))
	// 连接层与实例层命令在这里处理，其余交给选中的db
	switch cmdName {
	case "slaveof":
		if c != nil && c.InMultiState() {
			return protocol.MakeErrReply("cannot use slave of database within multi")
		}
		return server.execSlaveOf(c, cmdLine[1:])
	case "replconf":
		return server.execReplConf(c, cmdLine[1:])
	case "psync":
		if c != nil && c.InMultiState() {
			return protocol.MakeErrReply("cannot use psync within multi")
		}
		return server.execPsync(c, cmdLine[1:])
	case "wait":
		return server.execWait(c, cmdLine[1:])
	case "subscribe":
		if len(cmdLine) < 2 {
			return protocol.MakeArgNumErrReply("subscribe")
		}
		return pubsub.Subscribe(server.hub, c, cmdLine[1:])
	case "unsubscribe":
		return pubsub.UnSubscribe(server.hub, c, cmdLine[1:])
	case "psubscribe":
		if len(cmdLine) < 2 {
			return protocol.MakeArgNumErrReply("psubscribe")
		}
		return pubsub.PSubscribe(server.hub, c, cmdLine[1:])
	case "punsubscribe":
		return pubsub.PUnSubscribe(server.hub, c, cmdLine[1:])
	case "publish":
		return pubsub.Publish(server.hub, cmdLine[1:])
	case "bgrewriteaof":
		return BGRewriteAOF(server)
	case "rewriteaof":
		return RewriteAOF(server)
	case "flushall":
		return server.execFlushAll()
	case "select":
		if c != nil && c.InMultiState() {
			return protocol.MakeErrReply("cannot select database within multi")
		}
		if len(cmdLine) != 2 {
			return protocol.MakeArgNumErrReply("select")
		}
		return execSelect(c, server, cmdLine[1:])
	case "dbsize":
		return execDBSize(c, server)
	case "info":
		return server.execInfo(cmdLine[1:])
	}

	// 只读副本拒绝来自普通客户端的写命令，复制流不受限制
	if atomic.LoadInt32(&server.role) == slaveRole &&
		c != nil && !c.IsMaster() && isWriteCommand(cmdName) {
		return protocol.MakeErrReply("READONLY You can't write against a read only replica.")
	}

	dbIndex := 0
	if c != nil {
		dbIndex = c.GetDBIndex()
	}
	selectedDB, errReply := server.selectDB(dbIndex)
	if errReply != nil {
		return errReply
	}
	return selectedDB.Exec(c, cmdLine)
}

// AfterClientClose does some clean after client close connection
func (server *Server) AfterClientClose(c redis.Connection) {
	pubsub.UnsubscribeAll(server.hub, c)
}

// Close graceful shutdown database
func (server *Server) Close() {
	server.closeOnce.Do(func() {
		close(server.closed)
		_ = server.slaveStatus.close()
		server.master.mu.Lock()
		for slave := range server.master.slaves {
			slave.closeOnce.Do(func() {
				close(slave.closeChan)
			})
		}
		server.master.slaves = make(map[*slaveClient]struct{})
		server.master.mu.Unlock()
		if server.persister != nil {
			server.persister.Close()
		}
	})
}

func execSelect(c redis.Connection, server *Server, args [][]byte) redis.Reply {
	dbIndex, err := strconv.Atoi(string(args[0]))
	if err != nil {
		return protocol.MakeErrReply("ERR invalid DB index")
	}
	if dbIndex >= len(server.dbSet) || dbIndex < 0 {
		return protocol.MakeErrReply("ERR DB index is out of range")
	}
	c.SelectDB(dbIndex)
	return protocol.MakeOkReply()
}

func execDBSize(c redis.Connection, server *Server) redis.Reply {
	dbIndex := 0
	if c != nil {
		dbIndex = c.GetDBIndex()
	}
	keys, _ := server.GetDBSize(dbIndex)
	return protocol.MakeIntReply(int64(keys))
}

// execInfo 目前只输出replication段，供互联与调试使用
func (server *Server) execInfo(args [][]byte) redis.Reply {
	if len(args) > 1 {
		return protocol.MakeArgNumErrReply("info")
	}
	if len(args) == 1 && strings.ToLower(string(args[0])) != "replication" {
		return protocol.MakeBulkReply([]byte("\r\n"))
	}
	var sb strings.Builder
	sb.WriteString("# Replication\r\n")
	if atomic.LoadInt32(&server.role) == masterRole {
		server.master.mu.Lock()
		sb.WriteString("role:master\r\n")
		sb.WriteString("connected_slaves:" + strconv.Itoa(len(server.master.slaves)) + "\r\n")
		sb.WriteString("master_replid:" + server.master.replId + "\r\n")
		sb.WriteString("master_repl_offset:" + strconv.FormatInt(server.master.backlog.currentOffset, 10) + "\r\n")
		server.master.mu.Unlock()
	} else {
		slave := server.slaveStatus
		slave.mu.Lock()
		sb.WriteString("role:slave\r\n")
		sb.WriteString("master_host:" + slave.masterHost + "\r\n")
		sb.WriteString("master_port:" + strconv.Itoa(slave.masterPort) + "\r\n")
		sb.WriteString("slave_repl_offset:" + strconv.FormatInt(slave.replOffset, 10) + "\r\n")
		slave.mu.Unlock()
	}
	return protocol.MakeBulkReply([]byte(sb.String()))
}

// execFlushAll 清空全部db
func (server *Server) execFlushAll() redis.Reply {
	server.flushAll()
	if server.persister != nil {
		server.persister.SaveCmdLine(0, utils.ToCmdLine("FlushAll"))
	}
	server.propagate(0, utils.ToCmdLine("FlushAll"))
	return &protocol.OkReply{}
}

func (server *Server) flushAll() {
	for _, holder := range server.dbSet {
		db := holder.Load().(*DB)
		db.Flush()
	}
}

// selectDB returns the database with the given index, or an error if index is out of range
func (server *Server) selectDB(dbIndex int) (*DB, *protocol.StandardErrReply) {
	if dbIndex >= len(server.dbSet) || dbIndex < 0 {
		return nil, protocol.MakeErrReply("ERR DB index is out of range")
	}
	return server.dbSet[dbIndex].Load().(*DB), nil
}

func (server *Server) mustSelectDB(dbIndex int) *DB {
	selectedDB, err := server.selectDB(dbIndex)
	if err != nil {
		panic(err)
	}
	return selectedDB
}

// ExecWithLock executes normal commands, invoker should provide locks
func (server *Server) ExecWithLock(conn redis.Connection, cmdLine [][]byte) redis.Reply {
	db, errReply := server.selectDB(conn.GetDBIndex())
	if errReply != nil {
		return errReply
	}
	return db.execWithLock(cmdLine)
}

// ExecMulti executes multi commands transaction Atomically and Isolated
func (server *Server) ExecMulti(conn redis.Connection, watching map[string]uint32, cmdLines []CmdLine) redis.Reply {
	selectedDB, errReply := server.selectDB(conn.GetDBIndex())
	if errReply != nil {
		return errReply
	}
	return selectedDB.ExecMulti(conn, watching, cmdLines)
}

// GetUndoLogs return rollback commands
func (server *Server) GetUndoLogs(dbIndex int, cmdLine [][]byte) []CmdLine {
	return server.mustSelectDB(dbIndex).GetUndoLogs(cmdLine)
}

// ForEach traverses all the keys in the given database
func (server *Server) ForEach(dbIndex int, cb func(key string, data *database.DataEntity, expiration *time.Time) bool) {
	server.mustSelectDB(dbIndex).ForEach(cb)
}

// RWLocks lock keys for writing and reading
func (server *Server) RWLocks(dbIndex int, writeKeys []string, readKeys []string) {
	server.mustSelectDB(dbIndex).RWLocks(writeKeys, readKeys)
}

// RWUnLocks unlock keys for writing and reading
func (server *Server) RWUnLocks(dbIndex int, writeKeys []string, readKeys []string) {
	server.mustSelectDB(dbIndex).RWUnLocks(writeKeys, readKeys)
}

// GetDBSize returns keys count and ttl key count
func (server *Server) GetDBSize(dbIndex int) (int, int) {
	db := server.mustSelectDB(dbIndex)
	return db.data.Len(), db.ttlMap.Len()
}

// Snapshot 停写并生成带校验和的全库快照
func (server *Server) Snapshot() []byte {
	server.lockAllKeyspaces()
	defer server.unlockAllKeyspaces()
	return aof.SnapshotBytes(server, len(server.dbSet))
}

// LoadSnapshot 清空本地数据并从快照恢复，快照损坏时返回错误且不保证数据完整
func (server *Server) LoadSnapshot(data []byte) error {
	if _, err := aof.ValidateSnapshot(data); err != nil {
		return err
	}
	server.flushAll()
	fakeConn := connection.NewFakeConn()
	fakeConn.SetMaster()
	return aof.LoadSnapshot(data, func(cmdLine aof.CmdLine) error {
		ret := server.Exec(fakeConn, cmdLine)
		if protocol.IsErrorReply(ret) {
			return protocol.MakeErrReply("apply snapshot failed: " + string(ret.ToBytes()))
		}
		return nil
	})
}

// BGRewriteAOF asynchronously rewrites Append-Only-File
func BGRewriteAOF(server *Server) redis.Reply {
	if server.persister == nil {
		return protocol.MakeErrReply("ERR aof is disabled")
	}
	go func() {
		if err := server.persister.Rewrite(); err != nil {
			logger.Error("aof rewrite failed: " + err.Error())
		}
	}()
	return protocol.MakeStatusReply("Background append only file rewriting started")
}

// RewriteAOF start Append-Only-File rewriting and blocked until it finished
func RewriteAOF(server *Server) redis.Reply {
	if server.persister == nil {
		return protocol.MakeErrReply("ERR aof is disabled")
	}
	err := server.persister.Rewrite()
	if err != nil {
		return protocol.MakeErrReply(err.Error())
	}
	return protocol.MakeOkReply()
}
