package network

import (
	"io"
	"strings"

	"github.com/panjf2000/gnet"

	"redisGo/database"
	dbface "redisGo/interface/database"
	"redisGo/lib/logger"
	"redisGo/lib/sync/atomic"
	"redisGo/redis/connection"
	"redisGo/redis/parser"
	"redisGo/redis/protocol"
)

/*
	基于gnet事件循环的备选接入层。事件循环只负责搬运字节：
	收到的数据经pipe交给每个连接独立的会话协程解析执行，
	因此阻塞命令挂起会话协程而不会挂起事件循环。
*/

// Server 事件驱动的Redis接入层
type Server struct {
	*gnet.EventServer
	db      dbface.DB
	closing atomic.Boolean
}

type session struct {
	client *connection.Connection
	// 事件循环收到的字节写入inbox，由搬运协程按序写进pipe
	inbox chan []byte
	done  chan struct{}
}

// NewServer 创建gnet接入层，与tcp接入层共用同一套存储引擎逻辑
func NewServer() *Server {
	return &Server{
		db: database.NewStandaloneServer(),
	}
}

// NewServerWithEngine 复用外部创建的存储引擎
func NewServerWithEngine(db dbface.DB) *Server {
	return &Server{
		db: db,
	}
}

// ListenAndServe 启动事件循环
func (s *Server) ListenAndServe(addr string) error {
	return gnet.Serve(s, addr,
		gnet.WithMulticore(true),
		gnet.WithReusePort(true))
}

// OnInitComplete fires when the server is ready for accepting connections
func (s *Server) OnInitComplete(srv gnet.Server) (action gnet.Action) {
	logger.Info("gnet server is listening on " + srv.Addr.String())
	return
}

// OnOpened fires when a new connection has been opened
func (s *Server) OnOpened(c gnet.Conn) (out []byte, action gnet.Action) {
	if s.closing.Get() {
		return nil, gnet.Close
	}
	client := connection.NewConn(&gnetNetConn{conn: c})
	sess := &session{
		client: client,
		inbox:  make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	c.SetContext(sess)
	go s.serve(sess)
	return
}

// OnClosed fires when a connection has been closed
func (s *Server) OnClosed(c gnet.Conn, err error) (action gnet.Action) {
	sess, ok := c.Context().(*session)
	if !ok {
		return
	}
	close(sess.inbox)
	return
}

// React fires when a socket receives data from the peer
func (s *Server) React(frame []byte, c gnet.Conn) (out []byte, action gnet.Action) {
	sess, ok := c.Context().(*session)
	if !ok {
		return nil, gnet.Close
	}
	// frame在React返回后会被复用，必须拷贝
	data := make([]byte, len(frame))
	copy(data, frame)
	select {
	case sess.inbox <- data:
	case <-sess.done:
		return nil, gnet.Close
	}
	return
}

// OnShutdown fires when the server is being shut down
func (s *Server) OnShutdown(srv gnet.Server) {
	s.closing.Set(true)
	s.db.Close()
}

// serve 是连接的会话协程：解析RESP并执行，与tcp接入层的语义一致
func (s *Server) serve(sess *session) {
	pr, pw := io.Pipe()
	client := sess.client
	go func() {
		for data := range sess.inbox {
			if _, err := pw.Write(data); err != nil {
				return
			}
		}
		// 对端已断开，先唤醒可能阻塞中的命令再让解析结束
		client.NotifyClosing()
		_ = pw.Close()
	}()
	ch := parser.ParseStream(pr)
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
			continue
		}
		r, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			continue
		}
		result := s.db.Exec(client, r.Args)
		if result != nil {
			_, _ = client.Write(result.ToBytes())
		}
	}
	close(sess.done)
	client.NotifyClosing()
	s.db.AfterClientClose(client)
	_ = client.Close()
}
