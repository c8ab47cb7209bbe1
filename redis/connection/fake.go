package connection

import (
	"io"
	"sync"
)

// FakeConn 实现redis.Connection，把写入的回复留在内存中，供测试断言
type FakeConn struct {
	Connection
	buf    []byte
	offset int
	waitOn chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewFakeConn creates a new FakeConn
func NewFakeConn() *FakeConn {
	c := &FakeConn{}
	c.closingChan = make(chan struct{})
	return c
}

// Write writes data to buffer
func (c *FakeConn) Write(b []byte) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	c.mu.Lock()
	c.buf = append(c.buf, b...)
	if c.waitOn != nil {
		close(c.waitOn)
		c.waitOn = nil
	}
	c.mu.Unlock()
	return len(b), nil
}

// Read 读取之前写入的回复
func (c *FakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offset >= len(c.buf) {
		if c.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, c.buf[c.offset:])
	c.offset += n
	return n, nil
}

// WaitResponse 阻塞等待服务端写回内容，供测试阻塞命令使用
func (c *FakeConn) WaitResponse() {
	c.mu.Lock()
	if len(c.buf) > 0 || c.closed {
		c.mu.Unlock()
		return
	}
	if c.waitOn == nil {
		c.waitOn = make(chan struct{})
	}
	waitOn := c.waitOn
	c.mu.Unlock()
	<-waitOn
}

// Clean 清空缓冲区
func (c *FakeConn) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = nil
	c.offset = 0
}

// Bytes 返回缓冲区中的全部内容
func (c *FakeConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// Close 关闭假连接
func (c *FakeConn) Close() error {
	c.NotifyClosing()
	c.mu.Lock()
	c.closed = true
	if c.waitOn != nil {
		close(c.waitOn)
		c.waitOn = nil
	}
	c.mu.Unlock()
	return nil
}

// RemoteAddr 假连接没有网络地址
func (c *FakeConn) Name() string {
	return "fake-conn"
}
