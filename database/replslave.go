package database

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"redisGo/aof"
	"redisGo/config"
	"redisGo/interface/redis"
	"redisGo/lib/logger"
	"redisGo/lib/utils"
	"redisGo/redis/connection"
	"redisGo/redis/parser"
	"redisGo/redis/protocol"
)

/*
	从节点侧的复制实现。与主节点握手后优先请求部分重同步，
	失败则接收快照做全量同步，之后持续应用复制流并按字节数
	推进自己的复制偏移量，每秒向主节点汇报一次。
*/

const (
	masterRole = iota
	slaveRole
)

var errReplCanceled = errors.New("replication canceled")

// slaveStatus 从节点维护的复制状态
type slaveStatus struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	// modCount 配置每变化一次加一，旧的同步协程据此退出
	modCount int32

	masterHost string
	masterPort int

	masterConn net.Conn
	masterChan <-chan *parser.Payload

	replId       string
	replOffset   int64
	lastRecvTime time.Time
}

func initSlaveStatus() *slaveStatus {
	ctx, cancel := context.WithCancel(context.Background())
	return &slaveStatus{
		ctx:    ctx,
		cancel: cancel,
	}
}

// execSlaveOf 处理SLAVEOF命令，切换主从角色
func (server *Server) execSlaveOf(c redis.Connection, args [][]byte) redis.Reply {
	if len(args) != 2 {
		return protocol.MakeArgNumErrReply("slaveof")
	}
	if strings.ToLower(string(args[0])) == "no" &&
		strings.ToLower(string(args[1])) == "one" {
		server.slaveOfNone()
		return protocol.MakeOkReply()
	}
	host := string(args[0])
	port, err := strconv.Atoi(string(args[1]))
	if err != nil || port <= 0 || port > 65535 {
		return protocol.MakeErrReply("ERR Invalid master port")
	}
	server.setupMaster(host, port)
	return protocol.MakeOkReply()
}

// slaveOfNone 断开与主节点的复制关系，重新作为主节点服务
func (server *Server) slaveOfNone() {
	slave := server.slaveStatus
	slave.mu.Lock()
	slave.masterHost = ""
	slave.masterPort = 0
	slave.replId = ""
	slave.replOffset = -1
	slave.stopSlaveWithMutex()
	slave.mu.Unlock()
	atomic.StoreInt32(&server.role, masterRole)
}

// stopSlaveWithMutex 停止当前的同步协程，调用方需持有slave.mu
func (slaveStatus *slaveStatus) stopSlaveWithMutex() {
	// 让正在运行的接收协程退出
	atomic.AddInt32(&slaveStatus.modCount, 1)
	if slaveStatus.masterConn != nil {
		_ = slaveStatus.masterConn.Close()
		slaveStatus.masterConn = nil
		slaveStatus.masterChan = nil
	}
}

func (slaveStatus *slaveStatus) close() error {
	slaveStatus.mu.Lock()
	defer slaveStatus.mu.Unlock()
	slaveStatus.stopSlaveWithMutex()
	slaveStatus.cancel()
	return nil
}

// setupMaster 登记主节点地址并启动后台同步
func (server *Server) setupMaster(host string, port int) {
	slave := server.slaveStatus
	slave.mu.Lock()
	slave.stopSlaveWithMutex()
	slave.masterHost = host
	slave.masterPort = port
	modCount := atomic.LoadInt32(&slave.modCount)
	slave.mu.Unlock()
	atomic.StoreInt32(&server.role, slaveRole)
	go server.syncWithMaster(modCount)
}

// syncWithMaster 完成与主节点的同步并持续接收复制流，断线后自动重连
func (server *Server) syncWithMaster(modCount int32) {
	slave := server.slaveStatus
	for {
		if atomic.LoadInt32(&slave.modCount) != modCount {
			return // slaveof关系已变化
		}
		err := server.connectWithMaster(modCount)
		if err == nil {
			err = server.receiveAOF(modCount)
		}
		if err == errReplCanceled {
			return
		}
		if err != nil {
			logger.Error("sync with master failed: " + err.Error())
		}
		select {
		case <-slave.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// connectWithMaster 建立连接、握手并完成全量或部分重同步
func (server *Server) connectWithMaster(modCount int32) error {
	slave := server.slaveStatus
	slave.mu.Lock()
	addr := slave.masterHost + ":" + strconv.Itoa(slave.masterPort)
	slave.mu.Unlock()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return errors.New("connect master failed " + err.Error())
	}
	masterChan := parser.ParseStream(conn)

	// ping
	if err := sendCmdToMaster(conn, utils.ToCmdLine("ping"), masterChan); err != nil {
		_ = conn.Close()
		return err
	}
	// 告知自己的监听端口
	portCmd := utils.ToCmdLine("replconf", "listening-port", strconv.Itoa(config.Properties.Port))
	if err := sendCmdToMaster(conn, portCmd, masterChan); err != nil {
		_ = conn.Close()
		return err
	}
	if err := sendCmdToMaster(conn, utils.ToCmdLine("replconf", "capa", "psync2"), masterChan); err != nil {
		_ = conn.Close()
		return err
	}

	// psync，带上一次同步留下的id与偏移量尝试断点续传
	slave.mu.Lock()
	psyncId := slave.replId
	psyncOffset := slave.replOffset
	slave.mu.Unlock()
	if psyncId == "" {
		psyncId = "?"
		psyncOffset = -1
	}
	psyncCmd := utils.ToCmdLine("psync", psyncId, strconv.FormatInt(psyncOffset, 10))
	if _, err := conn.Write(protocol.MakeMultiBulkReply(psyncCmd).ToBytes()); err != nil {
		_ = conn.Close()
		return errors.New("send psync failed " + err.Error())
	}
	psyncPayload := <-masterChan
	if psyncPayload.Err != nil {
		_ = conn.Close()
		return errors.New("read psync response failed: " + psyncPayload.Err.Error())
	}
	psyncHeader, ok := psyncPayload.Data.(*protocol.StatusReply)
	if !ok {
		_ = conn.Close()
		return errors.New("illegal psync response")
	}
	headers := strings.Split(psyncHeader.Status, " ")
	switch headers[0] {
	case "FULLRESYNC":
		if len(headers) != 3 {
			_ = conn.Close()
			return errors.New("illegal fullresync header: " + psyncHeader.Status)
		}
		logger.Info("full resync from master: " + headers[1])
		if err := server.loadMasterSnapshot(masterChan, headers[1], headers[2]); err != nil {
			_ = conn.Close()
			return err
		}
	case "CONTINUE":
		logger.Info("continue partial resync from master")
	default:
		_ = conn.Close()
		return errors.New("illegal psync response: " + psyncHeader.Status)
	}

	slave.mu.Lock()
	if atomic.LoadInt32(&slave.modCount) != modCount {
		slave.mu.Unlock()
		_ = conn.Close()
		return errReplCanceled
	}
	slave.masterConn = conn
	slave.masterChan = masterChan
	slave.lastRecvTime = time.Now()
	slave.mu.Unlock()
	return nil
}

func sendCmdToMaster(conn net.Conn, cmdLine CmdLine, masterChan <-chan *parser.Payload) error {
	binary := protocol.MakeMultiBulkReply(cmdLine).ToBytes()
	_, err := conn.Write(binary)
	if err != nil {
		return errors.New("send failed " + err.Error())
	}
	payload := <-masterChan
	if payload.Err != nil {
		return errors.New("read response failed: " + payload.Err.Error())
	}
	if protocol.IsErrorReply(payload.Data) {
		return errors.New("unexpected response: " + string(payload.Data.ToBytes()))
	}
	return nil
}

// loadMasterSnapshot 接收并应用主节点发来的全量快照
func (server *Server) loadMasterSnapshot(masterChan <-chan *parser.Payload, replId string, offsetStr string) error {
	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		return errors.New("illegal master offset: " + offsetStr)
	}
	payload := <-masterChan
	if payload.Err != nil {
		return errors.New("read snapshot failed: " + payload.Err.Error())
	}
	snapshot, ok := payload.Data.(*protocol.BulkReply)
	if !ok {
		return errors.New("illegal snapshot payload")
	}

	// 清空本地数据后整体重放，期间拒绝普通写入
	server.flushAll()
	fakeConn := connection.NewFakeConn()
	fakeConn.SetMaster()
	err = aof.LoadSnapshot(snapshot.Arg, func(cmdLine aof.CmdLine) error {
		ret := server.Exec(fakeConn, cmdLine)
		if protocol.IsErrorReply(ret) {
			return errors.New("apply snapshot failed: " + string(ret.ToBytes()))
		}
		return nil
	})
	if err != nil {
		return err
	}

	slave := server.slaveStatus
	slave.mu.Lock()
	slave.replId = replId
	slave.replOffset = offset
	slave.mu.Unlock()
	return nil
}

// receiveAOF 持续接收主节点的复制流并按本地执行字节数推进偏移量
func (server *Server) receiveAOF(modCount int32) error {
	slave := server.slaveStatus
	slave.mu.Lock()
	masterChan := slave.masterChan
	slave.mu.Unlock()

	fakeConn := connection.NewFakeConn()
	fakeConn.SetMaster()
	for payload := range masterChan {
		if payload.Err != nil {
			return errors.New("replication stream broken: " + payload.Err.Error())
		}
		cmdLine, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			return errors.New("unexpected payload in replication stream")
		}
		slave.mu.Lock()
		if atomic.LoadInt32(&slave.modCount) != modCount {
			slave.mu.Unlock()
			return errReplCanceled
		}
		server.Exec(fakeConn, cmdLine.Args)
		// 双方使用同一套编码，按编码后的字节数推进偏移量
		n := len(cmdLine.ToBytes())
		slave.replOffset += int64(n)
		slave.lastRecvTime = time.Now()
		// 主节点探测进度时立即汇报，偏移量包含getack命令本身
		if len(cmdLine.Args) >= 2 &&
			strings.ToLower(string(cmdLine.Args[0])) == "replconf" &&
			strings.ToLower(string(cmdLine.Args[1])) == "getack" {
			ackCmd := utils.ToCmdLine("replconf", "ack", strconv.FormatInt(slave.replOffset, 10))
			if slave.masterConn != nil {
				_, _ = slave.masterConn.Write(protocol.MakeMultiBulkReply(ackCmd).ToBytes())
			}
		}
		slave.mu.Unlock()
	}
	return errors.New("master connection closed")
}

// slaveCron 周期性向主节点汇报复制进度
func (server *Server) slaveCron() {
	slave := server.slaveStatus
	slave.mu.Lock()
	if slave.masterConn == nil {
		slave.mu.Unlock()
		return
	}
	// 主节点超时未发数据也照常ack，探活交给重连逻辑
	ackCmd := utils.ToCmdLine("replconf", "ack", strconv.FormatInt(slave.replOffset, 10))
	conn := slave.masterConn
	slave.mu.Unlock()
	_, _ = conn.Write(protocol.MakeMultiBulkReply(ackCmd).ToBytes())
}
