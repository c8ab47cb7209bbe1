package network

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/panjf2000/gnet"
)

// gnetNetConn 把gnet.Conn适配成net.Conn，供连接会话层复用。
// 事件循环负责读取，这里的Read永远不会被调用。
type gnetNetConn struct {
	conn gnet.Conn
}

func (g *gnetNetConn) Read(b []byte) (int, error) {
	return 0, io.EOF
}

func (g *gnetNetConn) Write(b []byte) (int, error) {
	err := g.conn.AsyncWrite(b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (g *gnetNetConn) Close() error {
	return g.conn.Close()
}

func (g *gnetNetConn) LocalAddr() net.Addr {
	return g.conn.LocalAddr()
}

func (g *gnetNetConn) RemoteAddr() net.Addr {
	return g.conn.RemoteAddr()
}

func (g *gnetNetConn) SetDeadline(t time.Time) error {
	return errors.New("deadline is not supported")
}

func (g *gnetNetConn) SetReadDeadline(t time.Time) error {
	return errors.New("deadline is not supported")
}

func (g *gnetNetConn) SetWriteDeadline(t time.Time) error {
	return errors.New("deadline is not supported")
}
