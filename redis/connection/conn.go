package connection

import (
	"net"
	"sync"
	"time"

	"redisGo/lib/logger"
	"redisGo/lib/sync/wait"
)

/*
	客户端和服务器之间的一个连接，连接处理过程中的会话状态（选中的库、
	事务队列、订阅关系、复制角色）都挂在这里，由所属的处理协程独占。
*/

const (
	// flagSlave 表示这是一个到从服务器的连接
	flagSlave = uint64(1 << iota)
	// flagMaster 表示这是一个到主服务器的连接
	flagMaster
	// flagMulti 表示该连接正处于事务中
	flagMulti
)

// Connection 代表一个客户端连接
type Connection struct {
	conn net.Conn

	// 等待数据发送完成，用于优雅关闭
	sendingData wait.Wait

	// 服务器写回复时加锁，避免多个协程交叉写同一个连接
	mu    sync.Mutex
	flags uint64

	// 订阅的频道与模式
	subs  map[string]bool
	psubs map[string]bool

	// multi开启后排队的命令
	queue [][][]byte
	// watch的key -> 记录时的版本号
	watching map[string]uint32
	// 入队过程中记录的语法错误，EXEC时直接中止
	txErrors []error

	// 选中的数据库
	selectedDB int

	// 连接进入关闭流程时关闭该管道，用于取消阻塞等待
	closingChan chan struct{}
	closingOnce sync.Once
}

var connPool = sync.Pool{
	New: func() interface{} {
		return &Connection{}
	},
}

// NewConn 包装一个网络连接
func NewConn(conn net.Conn) *Connection {
	c, ok := connPool.Get().(*Connection)
	if !ok {
		logger.Error("connection pool make wrong type")
		return &Connection{
			conn: conn,
		}
	}
	c.conn = conn
	c.closingChan = make(chan struct{})
	c.closingOnce = sync.Once{}
	return c
}

// Closing 返回连接关闭通知管道，连接断开时被关闭
func (c *Connection) Closing() <-chan struct{} {
	return c.closingChan
}

// NotifyClosing 宣告连接进入关闭流程，唤醒所有因它而阻塞的等待
func (c *Connection) NotifyClosing() {
	c.closingOnce.Do(func() {
		if c.closingChan != nil {
			close(c.closingChan)
		}
	})
}

// RemoteAddr 返回远端地址
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close 等待数据发送完毕后关闭连接，并将对象放回池中复用
func (c *Connection) Close() error {
	c.NotifyClosing()
	c.sendingData.WaitWithTimeout(10 * time.Second)
	_ = c.conn.Close()
	c.subs = nil
	c.psubs = nil
	c.queue = nil
	c.watching = nil
	c.txErrors = nil
	c.flags = 0
	c.selectedDB = 0
	connPool.Put(c)
	return nil
}

// Write 向客户端发送回复
func (c *Connection) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	c.sendingData.Add(1)
	defer func() {
		c.sendingData.Done()
	}()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(b)
}

// Name 返回远端地址串，例如 "192.0.2.1:25"
func (c *Connection) Name() string {
	if c.conn != nil {
		return c.conn.RemoteAddr().String()
	}
	return ""
}

// Subscribe 记录当前连接订阅了指定频道
func (c *Connection) Subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs == nil {
		c.subs = make(map[string]bool)
	}
	c.subs[channel] = true
}

// UnSubscribe 取消订阅指定频道
func (c *Connection) UnSubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subs) == 0 {
		return
	}
	delete(c.subs, channel)
}

// SubsCount 返回订阅的频道数量
func (c *Connection) SubsCount() int {
	return len(c.subs)
}

// GetChannels 返回订阅的所有频道
func (c *Connection) GetChannels() []string {
	if c.subs == nil {
		return make([]string, 0)
	}
	channels := make([]string, len(c.subs))
	i := 0
	for channel := range c.subs {
		channels[i] = channel
		i++
	}
	return channels
}

// PSubscribe 记录当前连接订阅了指定模式
func (c *Connection) PSubscribe(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.psubs == nil {
		c.psubs = make(map[string]bool)
	}
	c.psubs[pattern] = true
}

// PUnSubscribe 取消订阅指定模式
func (c *Connection) PUnSubscribe(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.psubs) == 0 {
		return
	}
	delete(c.psubs, pattern)
}

// GetPatterns 返回订阅的所有模式
func (c *Connection) GetPatterns() []string {
	if c.psubs == nil {
		return make([]string, 0)
	}
	patterns := make([]string, len(c.psubs))
	i := 0
	for pattern := range c.psubs {
		patterns[i] = pattern
		i++
	}
	return patterns
}

// InMultiState 判断当前连接是否处于事务中
func (c *Connection) InMultiState() bool {
	return c.flags&flagMulti > 0
}

// SetMultiState 设置事务标志，传入false时一并清空事务状态
func (c *Connection) SetMultiState(state bool) {
	if !state {
		c.watching = nil
		c.queue = nil
		c.txErrors = nil
		c.flags &= ^flagMulti
		return
	}
	c.flags |= flagMulti
}

// GetQueuedCmdLine 返回事务队列中的命令
func (c *Connection) GetQueuedCmdLine() [][][]byte {
	return c.queue
}

// EnqueueCmd 将命令加入事务队列
func (c *Connection) EnqueueCmd(cmdLine [][]byte) {
	c.queue = append(c.queue, cmdLine)
}

// ClearQueuedCmds 清空事务队列
func (c *Connection) ClearQueuedCmds() {
	c.queue = nil
}

// GetTxErrors 返回入队期间记录的错误
func (c *Connection) GetTxErrors() []error {
	return c.txErrors
}

// AddTxError 记录入队期间的错误
func (c *Connection) AddTxError(err error) {
	c.txErrors = append(c.txErrors, err)
}

// GetWatching 返回正在watch的key及记录的版本号
func (c *Connection) GetWatching() map[string]uint32 {
	if c.watching == nil {
		c.watching = make(map[string]uint32)
	}
	return c.watching
}

// GetDBIndex 返回选中的数据库下标
func (c *Connection) GetDBIndex() int {
	return c.selectedDB
}

// SelectDB 切换数据库
func (c *Connection) SelectDB(dbNum int) {
	c.selectedDB = dbNum
}

// SetSlave 标记该连接来自从服务器
func (c *Connection) SetSlave() {
	c.flags |= flagSlave
}

// IsSlave 判断该连接是否来自从服务器
func (c *Connection) IsSlave() bool {
	return c.flags&flagSlave > 0
}

// SetMaster 标记该连接指向主服务器
func (c *Connection) SetMaster() {
	c.flags |= flagMaster
}

// IsMaster 判断该连接是否指向主服务器
func (c *Connection) IsMaster() bool {
	return c.flags&flagMaster > 0
}
