package database

import "strings"

var cmdTable = make(map[string]*command)

// command 描述一条命令的执行方式，每个命令对应一个command结构体
type command struct {
	executor ExecFunc // 执行函数
	prepare  PreFunc  // 解析命令行涉及的读写key，用于加锁与版本登记
	undo     UndoFunc // 生成回滚命令
	arity    int      // 参数数量（含命令名），负数表示至少为其绝对值
	flags    int      // 命令属性，读写标志等
}

const (
	flagWrite    = 0
	flagReadOnly = 1
)

// RegisterCommand registers a new command
// arity means allowed number of cmdArgs, arity < 0 means len(args) >= -arity.
// for example: the arity of `get` is 2, `mget` is -2
func RegisterCommand(name string, executor ExecFunc, prepare PreFunc, rollback UndoFunc, arity int, flags int) {
	name = strings.ToLower(name)
	cmdTable[name] = &command{
		executor: executor,
		prepare:  prepare,
		undo:     rollback,
		arity:    arity,
		flags:    flags,
	}
}

// isReadOnlyCommand 判断命令是否是只读命令
func isReadOnlyCommand(name string) bool {
	name = strings.ToLower(name)
	cmd := cmdTable[name]
	if cmd == nil {
		return false
	}
	return cmd.flags&flagReadOnly > 0
}

// isWriteCommand 判断命令是否是写命令，写命令需要传播给AOF与从服务器
func isWriteCommand(name string) bool {
	name = strings.ToLower(name)
	cmd := cmdTable[name]
	if cmd == nil {
		return false
	}
	return cmd.flags&flagReadOnly == 0
}
