package redis

// Reply 表示一个可以编码为RESP字节流的回复
type Reply interface {
	ToBytes() []byte
}

// Connection 表示客户端和服务端之间的一个连接，命令处理过程中需要的连接状态都通过它读写
type Connection interface {
	Write([]byte) (int, error)
	Close() error

	// 订阅状态，由连接自己持有
	Subscribe(channel string)
	UnSubscribe(channel string)
	SubsCount() int
	GetChannels() []string
	PSubscribe(pattern string)
	PUnSubscribe(pattern string)
	GetPatterns() []string

	// 事务状态
	InMultiState() bool
	SetMultiState(bool)
	GetQueuedCmdLine() [][][]byte
	EnqueueCmd([][]byte)
	ClearQueuedCmds()
	GetWatching() map[string]uint32
	AddTxError(err error)
	GetTxErrors() []error

	// 选中的数据库
	GetDBIndex() int
	SelectDB(int)

	// 复制关系中的角色标记
	SetSlave()
	IsSlave() bool
	SetMaster()
	IsMaster() bool

	Name() string
}
