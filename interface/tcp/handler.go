package tcp

import (
	"context"
	"net"
)

// HandleFunc 表示对一个连接的处理函数
type HandleFunc func(ctx context.Context, conn net.Conn)

// Handler 表示一个基于TCP的应用服务
type Handler interface {
	Handle(ctx context.Context, conn net.Conn)
	Close() error
}
