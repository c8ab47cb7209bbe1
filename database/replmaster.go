package database

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"redisGo/aof"
	"redisGo/config"
	"redisGo/interface/redis"
	"redisGo/lib/logger"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

/*
	主节点侧的复制实现。写命令传播进积压缓冲区，
	每个从节点由一个发送协程按自己的进度从缓冲区读取，
	慢到跌出缓冲区的从节点被断开，重连后走全量同步。
*/

const (
	slaveSenderWakeQueue = 1
)

// masterStatus 主节点维护的复制状态
type masterStatus struct {
	mu        sync.Mutex
	replId    string
	backlog   *replBacklog
	backlogDB int // 积压缓冲区字节流当前选中的db
	slaves    map[*slaveClient]struct{}
}

// slaveClient 一个已完成同步握手的从节点连接
type slaveClient struct {
	conn       redis.Connection
	sentOffset int64 // 已发送到的偏移量，仅发送协程修改
	ackOffset  int64 // 从节点确认收到的偏移量，持有master.mu时读写
	notify     chan struct{}
	closeChan  chan struct{}
	closeOnce  sync.Once
}

func newMasterStatus() *masterStatus {
	return &masterStatus{
		replId:  utils.RandHexString(40),
		backlog: newBacklog(int64(config.Properties.ReplBacklogSize)),
		slaves:  make(map[*slaveClient]struct{}),
	}
}

// propagate 把写命令追加进积压缓冲区并唤醒各从节点的发送协程。
// 调用发生在持有相关key锁期间，传播顺序与执行顺序一致。
func (server *Server) propagate(dbIndex int, cmdLine CmdLine) {
	m := server.master
	m.mu.Lock()
	if dbIndex != m.backlogDB {
		selectCmd := utils.ToCmdLine("SELECT", strconv.Itoa(dbIndex))
		m.backlog.appendBytes(protocol.MakeMultiBulkReply(selectCmd).ToBytes())
		m.backlogDB = dbIndex
	}
	m.backlog.appendBytes(protocol.MakeMultiBulkReply(cmdLine).ToBytes())
	for slave := range m.slaves {
		select {
		case slave.notify <- struct{}{}:
		default: // 发送协程已有待处理的通知
		}
	}
	m.mu.Unlock()
}

// registerSlaveLocked 登记从节点，调用方需持有master.mu
func (server *Server) registerSlaveLocked(c redis.Connection, sentOffset int64) *slaveClient {
	slave := &slaveClient{
		conn:       c,
		sentOffset: sentOffset,
		ackOffset:  sentOffset,
		notify:     make(chan struct{}, slaveSenderWakeQueue),
		closeChan:  make(chan struct{}),
	}
	server.master.slaves[slave] = struct{}{}
	c.SetSlave()
	return slave
}

func (server *Server) removeSlave(slave *slaveClient) {
	m := server.master
	m.mu.Lock()
	delete(m.slaves, slave)
	m.mu.Unlock()
	slave.closeOnce.Do(func() {
		close(slave.closeChan)
	})
	logger.Info("disconnect with slave " + slave.conn.Name())
}

// slaveSender 按从节点自己的进度从积压缓冲区读取并发送
func (server *Server) slaveSender(slave *slaveClient) {
	m := server.master
	for {
		select {
		case <-slave.closeChan:
			return
		case <-slave.notify:
		}
		for {
			m.mu.Lock()
			data, ok := m.backlog.getSince(slave.sentOffset)
			newOffset := m.backlog.currentOffset
			m.mu.Unlock()
			if !ok {
				// 进度跌出积压缓冲区，断开让其重新全量同步
				server.removeSlave(slave)
				_ = slave.conn.Close()
				return
			}
			if len(data) == 0 {
				break
			}
			if _, err := slave.conn.Write(data); err != nil {
				server.removeSlave(slave)
				return
			}
			slave.sentOffset = newOffset
		}
	}
}

// execPsync 处理从节点的同步请求，优先尝试部分重同步
func (server *Server) execPsync(c redis.Connection, args [][]byte) redis.Reply {
	if len(args) != 2 {
		return protocol.MakeArgNumErrReply("psync")
	}
	requestId := string(args[0])
	requestOffset, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		requestOffset = -1
	}

	m := server.master
	m.mu.Lock()
	if requestId == m.replId && requestOffset >= 0 && m.backlog.isValidOffset(requestOffset) {
		// 复制流身份一致且请求的偏移量仍在缓冲区内，从断点继续
		slave := server.registerSlaveLocked(c, requestOffset)
		m.mu.Unlock()
		if _, err := c.Write([]byte("+CONTINUE " + m.replId + protocol.CRLF)); err != nil {
			server.removeSlave(slave)
			return &protocol.NoReply{}
		}
		go server.slaveSender(slave)
		slave.notify <- struct{}{}
		logger.Info("partial resync with slave " + c.Name())
		return &protocol.NoReply{}
	}
	m.mu.Unlock()
	return server.fullResyncWithSlave(c)
}

// fullResyncWithSlave 全量同步：停写生成快照，切割偏移量与快照内容严格一致
func (server *Server) fullResyncWithSlave(c redis.Connection) redis.Reply {
	logger.Info("full resync with slave " + c.Name())
	server.lockAllKeyspaces()
	snapshot := aof.SnapshotBytes(server, len(server.dbSet))
	m := server.master
	m.mu.Lock()
	cutOffset := m.backlog.currentOffset
	slave := server.registerSlaveLocked(c, cutOffset)
	m.mu.Unlock()
	server.unlockAllKeyspaces()

	header := "+FULLRESYNC " + m.replId + " " + strconv.FormatInt(cutOffset, 10) + protocol.CRLF
	if _, err := c.Write([]byte(header)); err != nil {
		server.removeSlave(slave)
		return &protocol.NoReply{}
	}
	if _, err := c.Write(protocol.MakeBulkReply(snapshot).ToBytes()); err != nil {
		server.removeSlave(slave)
		return &protocol.NoReply{}
	}
	go server.slaveSender(slave)
	return &protocol.NoReply{}
}

// execReplConf 处理从节点的REPLCONF，目前关心的只有ACK
func (server *Server) execReplConf(c redis.Connection, args [][]byte) redis.Reply {
	if len(args) < 1 {
		return protocol.MakeArgNumErrReply("replconf")
	}
	subCmd := strings.ToLower(string(args[0]))
	switch subCmd {
	case "listening-port", "capa":
		return protocol.MakeOkReply()
	case "getack":
		// 从节点在复制流中收到getack后主动回报ack，这里无需回复
		return &protocol.NoReply{}
	case "ack":
		if len(args) != 2 {
			return protocol.MakeArgNumErrReply("replconf")
		}
		offset, err := strconv.ParseInt(string(args[1]), 10, 64)
		if err != nil {
			return protocol.MakeErrReply("ERR value is not an integer or out of range")
		}
		m := server.master
		m.mu.Lock()
		for slave := range m.slaves {
			if slave.conn == c {
				if offset > slave.ackOffset {
					slave.ackOffset = offset
				}
				break
			}
		}
		m.mu.Unlock()
		return &protocol.NoReply{}
	}
	return protocol.MakeErrReply("ERR Unrecognized REPLCONF option: " + subCmd)
}

// execWait 等待至少numreplicas个从节点确认收到当前复制偏移量
func (server *Server) execWait(c redis.Connection, args [][]byte) redis.Reply {
	if len(args) != 2 {
		return protocol.MakeArgNumErrReply("wait")
	}
	numReplicas, err := strconv.ParseInt(string(args[0]), 10, 64)
	if err != nil || numReplicas < 0 {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil || timeoutMs < 0 {
		return protocol.MakeErrReply("ERR timeout is negative")
	}

	m := server.master
	m.mu.Lock()
	targetOffset := m.backlog.currentOffset
	m.mu.Unlock()

	var deadline time.Time
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	for {
		acked := server.countAckedSlaves(targetOffset)
		if acked >= int(numReplicas) {
			return protocol.MakeIntReply(int64(acked))
		}
		if timeoutMs > 0 && time.Now().After(deadline) {
			return protocol.MakeIntReply(int64(acked))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (server *Server) countAckedSlaves(targetOffset int64) int {
	m := server.master
	m.mu.Lock()
	defer m.mu.Unlock()
	acked := 0
	for slave := range m.slaves {
		if slave.ackOffset >= targetOffset {
			acked++
		}
	}
	return acked
}

// lockAllKeyspaces 按db序依次获取全部key锁，期间整个实例停写
func (server *Server) lockAllKeyspaces() {
	for _, raw := range server.dbSet {
		db := raw.Load().(*DB)
		db.locker.LockAll()
	}
}

func (server *Server) unlockAllKeyspaces() {
	for i := len(server.dbSet) - 1; i >= 0; i-- {
		db := server.dbSet[i].Load().(*DB)
		db.locker.UnlockAll()
	}
}
