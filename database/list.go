package database

import (
	"strconv"

	"redisGo/datastruct/list"
	"redisGo/interface/database"
	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

// getAsList 按列表类型取出key的值，类型不符时返回错误
func (db *DB) getAsList(key string) (list.List, protocol.ErrorReply) {
	entity, ok := db.GetEntity(key)
	if !ok {
		return nil, nil
	}
	lst, ok := entity.Data.(list.List)
	if !ok {
		return nil, &protocol.WrongTypeErrReply{}
	}
	return lst, nil
}

func (db *DB) getOrInitList(key string) (lst list.List, isNew bool, errReply protocol.ErrorReply) {
	lst, errReply = db.getAsList(key)
	if errReply != nil {
		return nil, false, errReply
	}
	isNew = false
	if lst == nil {
		lst = list.Make()
		db.PutEntity(key, &database.DataEntity{
			Data: lst,
		})
		isNew = true
	}
	return lst, isNew, nil
}

// execLPush inserts element at head of list
func execLPush(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	values := args[1:]

	lst, _, errReply := db.getOrInitList(key)
	if errReply != nil {
		return errReply
	}
	for _, value := range values {
		lst.Insert(0, value)
	}
	db.addAof(utils.ToCmdLine3("lpush", args...))
	// 持有key锁期间唤醒阻塞的弹出命令，每个新元素只唤醒一个等待者
	db.signalListPush(key, len(values))
	return protocol.MakeIntReply(int64(lst.Len()))
}

// execLPushX inserts element at head of list, only if list exists
func execLPushX(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	values := args[1:]

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeIntReply(0)
	}
	for _, value := range values {
		lst.Insert(0, value)
	}
	db.addAof(utils.ToCmdLine3("lpushx", args...))
	db.signalListPush(key, len(values))
	return protocol.MakeIntReply(int64(lst.Len()))
}

// execRPush inserts element at tail of list
func execRPush(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	values := args[1:]

	lst, _, errReply := db.getOrInitList(key)
	if errReply != nil {
		return errReply
	}
	for _, value := range values {
		lst.Add(value)
	}
	db.addAof(utils.ToCmdLine3("rpush", args...))
	db.signalListPush(key, len(values))
	return protocol.MakeIntReply(int64(lst.Len()))
}

// execRPushX inserts element at tail of list, only if list exists
func execRPushX(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	values := args[1:]

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeIntReply(0)
	}
	for _, value := range values {
		lst.Add(value)
	}
	db.addAof(utils.ToCmdLine3("rpushx", args...))
	db.signalListPush(key, len(values))
	return protocol.MakeIntReply(int64(lst.Len()))
}

// execLPop removes the first element of list, and return it
func execLPop(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeNullBulkReply()
	}

	val, _ := lst.Remove(0).([]byte)
	if lst.Len() == 0 {
		db.Remove(key)
	}
	db.addAof(utils.ToCmdLine3("lpop", args...))
	return protocol.MakeBulkReply(val)
}

var lPushCmd = []byte("LPUSH")

func undoLPop(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return nil
	}
	if lst == nil || lst.Len() == 0 {
		return nil
	}
	element, _ := lst.Get(0).([]byte)
	return []CmdLine{
		{
			lPushCmd,
			args[0],
			element,
		},
	}
}

// execRPop removes last element of list then return it
func execRPop(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeNullBulkReply()
	}

	val, _ := lst.RemoveLast().([]byte)
	if lst.Len() == 0 {
		db.Remove(key)
	}
	db.addAof(utils.ToCmdLine3("rpop", args...))
	return protocol.MakeBulkReply(val)
}

var rPushCmd = []byte("RPUSH")

func undoRPop(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return nil
	}
	if lst == nil || lst.Len() == 0 {
		return nil
	}
	element, _ := lst.Get(lst.Len() - 1).([]byte)
	return []CmdLine{
		{
			rPushCmd,
			args[0],
			element,
		},
	}
}

func prepareRPopLPush(args [][]byte) ([]string, []string) {
	return []string{
		string(args[0]),
		string(args[1]),
	}, nil
}

// execRPopLPush pops last element of source-list then insert it to the head of dest-list
func execRPopLPush(db *DB, args [][]byte) redis.Reply {
	sourceKey := string(args[0])
	destKey := string(args[1])

	sourceList, errReply := db.getAsList(sourceKey)
	if errReply != nil {
		return errReply
	}
	if sourceList == nil {
		return protocol.MakeNullBulkReply()
	}

	destList, _, errReply := db.getOrInitList(destKey)
	if errReply != nil {
		return errReply
	}

	val, _ := sourceList.RemoveLast().([]byte)
	destList.Insert(0, val)
	if sourceList.Len() == 0 {
		db.Remove(sourceKey)
	}

	db.addAof(utils.ToCmdLine3("rpoplpush", args...))
	db.signalListPush(destKey, 1)
	return protocol.MakeBulkReply(val)
}

func undoRPopLPush(db *DB, args [][]byte) []CmdLine {
	sourceKey := string(args[0])
	lst, errReply := db.getAsList(sourceKey)
	if errReply != nil {
		return nil
	}
	if lst == nil || lst.Len() == 0 {
		return nil
	}
	element, _ := lst.Get(lst.Len() - 1).([]byte)
	return []CmdLine{
		{
			rPushCmd,
			args[0],
			element,
		},
		{
			[]byte("LPOP"),
			args[1],
		},
	}
}

// execLRem removes element of list at specified index
func execLRem(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	count64, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	count := int(count64)
	value := args[2]

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeIntReply(0)
	}

	var removed int
	if count == 0 {
		removed = lst.RemoveAllByVal(func(a interface{}) bool {
			return utils.Equals(a, value)
		})
	} else if count > 0 {
		removed = lst.RemoveByVal(func(a interface{}) bool {
			return utils.Equals(a, value)
		}, count)
	} else {
		removed = lst.ReverseRemoveByVal(func(a interface{}) bool {
			return utils.Equals(a, value)
		}, -count)
	}

	if lst.Len() == 0 {
		db.Remove(key)
	}
	if removed > 0 {
		db.addAof(utils.ToCmdLine3("lrem", args...))
	}

	return protocol.MakeIntReply(int64(removed))
}

// execLLen returns length of list
func execLLen(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(int64(lst.Len()))
}

// execLIndex returns element of list at given index
func execLIndex(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	index64, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	index := int(index64)

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeNullBulkReply()
	}

	size := lst.Len() // assert: size > 0
	if index < -1*size {
		return protocol.MakeNullBulkReply()
	} else if index < 0 {
		index = size + index
	} else if index >= size {
		return protocol.MakeNullBulkReply()
	}

	val, _ := lst.Get(index).([]byte)
	return protocol.MakeBulkReply(val)
}

// execLSet puts element at specified index of list
func execLSet(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	index64, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	index := int(index64)
	value := args[2]

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeErrReply("ERR no such key")
	}

	size := lst.Len() // assert: size > 0
	if index < -1*size {
		return protocol.MakeErrReply("ERR index out of range")
	} else if index < 0 {
		index = size + index
	} else if index >= size {
		return protocol.MakeErrReply("ERR index out of range")
	}

	lst.Set(index, value)
	db.addAof(utils.ToCmdLine3("lset", args...))
	return protocol.MakeOkReply()
}

func undoLSet(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	index64, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return nil
	}
	index := int(index64)
	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return nil
	}
	if lst == nil {
		return nil
	}
	size := lst.Len() // assert: size > 0
	if index < -1*size {
		return nil
	} else if index < 0 {
		index = size + index
	} else if index >= size {
		return nil
	}
	value, _ := lst.Get(index).([]byte)
	return []CmdLine{
		{
			[]byte("LSET"),
			args[0],
			args[1],
			value,
		},
	}
}

// execLRange gets elements of list in given range
func execLRange(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	start64, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	start := int(start64)
	stop64, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	stop := int(stop64)

	lst, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if lst == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}

	// compute index
	size := lst.Len() // assert: size > 0
	if start < -1*size {
		start = 0
	} else if start < 0 {
		start = size + start
	} else if start >= size {
		return protocol.MakeEmptyMultiBulkReply()
	}
	if stop < -1*size {
		stop = 0
	} else if stop < 0 {
		stop = size + stop + 1
	} else if stop < size {
		stop = stop + 1
	} else {
		stop = size
	}
	if stop < start {
		stop = start
	}

	// assert: start in [0, size - 1], stop in [start, size]
	slice := lst.Range(start, stop)
	result := make([][]byte, len(slice))
	for i, raw := range slice {
		bytes, _ := raw.([]byte)
		result[i] = bytes
	}
	return protocol.MakeMultiBulkReply(result)
}

func prepareBlockingPop(args [][]byte) ([]string, []string) {
	// 最后一个参数是超时时间
	keys := make([]string, len(args)-1)
	for i := 0; i < len(args)-1; i++ {
		keys[i] = string(args[i])
	}
	return keys, nil
}

func undoBlockingPop(db *DB, args [][]byte) []CmdLine {
	keys, _ := prepareBlockingPop(args)
	return rollbackGivenKeys(db, keys...)
}

// execTxBLPop 事务内的blpop退化为立即尝试，弹不到时视为超时
func execTxBLPop(db *DB, args [][]byte) redis.Reply {
	return execImmediatePop(db, args, true)
}

// execTxBRPop 事务内的brpop退化为立即尝试
func execTxBRPop(db *DB, args [][]byte) redis.Reply {
	return execImmediatePop(db, args, false)
}

func execImmediatePop(db *DB, args [][]byte, left bool) redis.Reply {
	if _, err := strconv.ParseFloat(string(args[len(args)-1]), 64); err != nil {
		return protocol.MakeErrReply("ERR timeout is not a float or out of range")
	}
	for i := 0; i < len(args)-1; i++ {
		key := string(args[i])
		val, errReply := tryPopListElement(db, key, left)
		if errReply != nil {
			return errReply
		}
		if val != nil {
			return protocol.MakeMultiBulkReply([][]byte{[]byte(key), val})
		}
	}
	return protocol.MakeNullMultiBulkReply()
}

func init() {
	RegisterCommand("LPush", execLPush, writeFirstKey, undoLPop, -3, flagWrite)
	RegisterCommand("LPushX", execLPushX, writeFirstKey, undoLPop, -3, flagWrite)
	RegisterCommand("RPush", execRPush, writeFirstKey, undoRPop, -3, flagWrite)
	RegisterCommand("RPushX", execRPushX, writeFirstKey, undoRPop, -3, flagWrite)
	RegisterCommand("LPop", execLPop, writeFirstKey, undoLPop, 2, flagWrite)
	RegisterCommand("RPop", execRPop, writeFirstKey, undoRPop, 2, flagWrite)
	RegisterCommand("RPopLPush", execRPopLPush, prepareRPopLPush, undoRPopLPush, 3, flagWrite)
	RegisterCommand("LRem", execLRem, writeFirstKey, rollbackFirstKey, 4, flagWrite)
	RegisterCommand("LLen", execLLen, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("LIndex", execLIndex, readFirstKey, nil, 3, flagReadOnly)
	RegisterCommand("LSet", execLSet, writeFirstKey, undoLSet, 4, flagWrite)
	RegisterCommand("LRange", execLRange, readFirstKey, nil, 4, flagReadOnly)
	// 事务内执行的非阻塞形态，直连路径由Exec拦截走阻塞协调器
	RegisterCommand("BLPop", execTxBLPop, prepareBlockingPop, undoBlockingPop, -3, flagWrite)
	RegisterCommand("BRPop", execTxBRPop, prepareBlockingPop, undoBlockingPop, -3, flagWrite)
}
