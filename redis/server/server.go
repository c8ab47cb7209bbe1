package server

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"redisGo/database"
	dbface "redisGo/interface/database"
	"redisGo/lib/logger"
	"redisGo/lib/sync/atomic"
	"redisGo/redis/connection"
	"redisGo/redis/parser"
	"redisGo/redis/protocol"
)

var (
	unknownErrReplyBytes = []byte("-ERR unknown\r\n")
)

// Handler 实现tcp.Handler并作为Redis服务的接入层
type Handler struct {
	activeConn sync.Map // *connection.Connection -> placeholder
	db         dbface.DB
	closing    atomic.Boolean // 拒绝新连接与新请求
}

// MakeHandler creates a Handler instance
func MakeHandler() *Handler {
	db := database.NewStandaloneServer()
	return &Handler{
		db: db,
	}
}

// MakeHandlerWithEngine 用外部创建的存储引擎构造Handler
func MakeHandlerWithEngine(db dbface.DB) *Handler {
	return &Handler{
		db: db,
	}
}

func (h *Handler) closeClient(client *connection.Connection) {
	_ = client.Close()
	h.db.AfterClientClose(client)
	h.activeConn.Delete(client)
}

// Handle 接收并执行一条连接上的命令。
// 解析协程与执行协程分离：执行协程可能被阻塞命令挂起，
// 对端断开的通知必须由解析协程发出才能把它唤醒。
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	if h.closing.Get() {
		// closing handler refuse new connection
		_ = conn.Close()
		return
	}

	client := connection.NewConn(conn)
	h.activeConn.Store(client, struct{}{})

	pending := make(chan *protocol.MultiBulkReply, 16)
	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		for r := range pending {
			result := h.db.Exec(client, r.Args)
			if result != nil {
				_, _ = client.Write(result.ToBytes())
			} else {
				_, _ = client.Write(unknownErrReplyBytes)
			}
		}
	}()

	ch := parser.ParseStream(conn)
	for payload := range ch {
		if payload.Err != nil {
			if payload.Err == io.EOF ||
				payload.Err == io.ErrUnexpectedEOF ||
				strings.Contains(payload.Err.Error(), "use of closed network connection") {
				break
			}
			// 协议层错误之后无法再恢复帧同步，尽力回写错误后关闭连接
			errReply := protocol.MakeErrReply(payload.Err.Error())
			_, _ = client.Write(errReply.ToBytes())
			break
		}
		if payload.Data == nil {
			logger.Error("empty payload")
			continue
		}
		r, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			logger.Error("require multi bulk protocol")
			continue
		}
		pending <- r
	}
	// 连接断开：先唤醒可能阻塞中的执行协程，等它退出后再清理
	client.NotifyClosing()
	close(pending)
	<-execDone
	h.closeClient(client)
	logger.Info("connection closed: " + client.Name())
}

// Close stops handler
func (h *Handler) Close() error {
	logger.Info("handler shutting down...")
	h.closing.Set(true)
	h.activeConn.Range(func(key interface{}, val interface{}) bool {
		client := key.(*connection.Connection)
		client.NotifyClosing()
		_ = client.Close()
		return true
	})
	h.db.Close()
	return nil
}
